package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// GenerateMagicToken cria credencial aleatória de portador para acesso
// sem senha ao comprovante do envio.
func GenerateMagicToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateAuthCode cria código curto de autenticação para conferência
// manual do comprovante. Formato: RC<ano>-<10 hex maiúsculos>.
func GenerateAuthCode(now time.Time) (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("RC%d-%s", now.Year(), strings.ToUpper(hex.EncodeToString(buf))), nil
}
