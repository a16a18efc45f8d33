package auth

import (
	"regexp"
	"testing"
	"time"
)

func TestGenerateAuthCodeFormato(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	code, err := GenerateAuthCode(now)
	if err != nil {
		t.Fatalf("GenerateAuthCode: %v", err)
	}

	re := regexp.MustCompile(`^RC2026-[0-9A-F]{10}$`)
	if !re.MatchString(code) {
		t.Errorf("código fora do formato esperado: %s", code)
	}
}

func TestGenerateMagicTokenUnico(t *testing.T) {
	a, err := GenerateMagicToken()
	if err != nil {
		t.Fatalf("GenerateMagicToken: %v", err)
	}
	b, err := GenerateMagicToken()
	if err != nil {
		t.Fatalf("GenerateMagicToken: %v", err)
	}

	if a == "" || b == "" {
		t.Fatal("token vazio")
	}
	if a == b {
		t.Error("tokens deveriam ser distintos")
	}
}
