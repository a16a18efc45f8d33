package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gestaozabele/recadastro/internal/config"
)

// Templates de e-mail reconhecidos pelo serviço transacional.
const (
	TemplateConvite     = "recadastro-convite"
	TemplateLembrete    = "recadastro-lembrete"
	TemplateConfirmacao = "recadastro-confirmacao"
)

// Mensagem descreve um disparo de e-mail transacional.
type Mensagem struct {
	Destinatario string
	Nome         string
	Template     string
	Vars         map[string]any
}

// Mailer envia mensagens para servidores. Falhas não são fatais para a
// transição que as disparou.
type Mailer interface {
	Send(ctx context.Context, msg Mensagem) error
}

// HTTPMailer envia via API HTTP de e-mail transacional. O desligamento
// global vem da configuração injetada, não de estado consultado ad hoc.
type HTTPMailer struct {
	cfg    config.MailerConfig
	client *http.Client
	logger zerolog.Logger
}

func NewHTTPMailer(cfg config.MailerConfig, logger zerolog.Logger) *HTTPMailer {
	return &HTTPMailer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (m *HTTPMailer) Send(ctx context.Context, msg Mensagem) error {
	if !m.cfg.Enabled {
		m.logger.Debug().Str("template", msg.Template).Msg("mailer: envio suprimido (desligado)")
		return nil
	}
	if msg.Destinatario == "" {
		return errors.New("mailer: destinatário vazio")
	}

	payload := map[string]any{
		"from":     m.cfg.From,
		"to":       msg.Destinatario,
		"nome":     msg.Nome,
		"template": msg.Template,
		"vars":     msg.Vars,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mailer: status %d", resp.StatusCode)
	}
	return nil
}
