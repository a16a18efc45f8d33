package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gestaozabele/recadastro/internal/config"
	"github.com/gestaozabele/recadastro/internal/mailer"
	"github.com/gestaozabele/recadastro/internal/recadastro"
	"github.com/gestaozabele/recadastro/internal/servidor"
)

type stubCampanhas struct {
	expiradas   []uuid.UUID
	expireErr   error
	terminando  []recadastro.Campanha
	endingCalls int
}

func (s *stubCampanhas) ExpireOverdue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return s.expiradas, s.expireErr
}

func (s *stubCampanhas) EndingWithin(ctx context.Context, now time.Time) ([]recadastro.Campanha, error) {
	s.endingCalls++
	return s.terminando, nil
}

type stubEnvios struct {
	pendentes []uuid.UUID
}

func (s *stubEnvios) PendentesDaCampanha(ctx context.Context, campanhaID uuid.UUID) ([]uuid.UUID, error) {
	return s.pendentes, nil
}

type stubServidores struct {
	servidores map[uuid.UUID]*servidor.Servidor
}

func (s *stubServidores) GetByID(ctx context.Context, id uuid.UUID) (*servidor.Servidor, error) {
	if sv, ok := s.servidores[id]; ok {
		return sv, nil
	}
	return nil, servidor.ErrNotFound
}

type stubSweepMailer struct {
	enviadas []mailer.Mensagem
}

func (s *stubSweepMailer) Send(ctx context.Context, msg mailer.Mensagem) error {
	s.enviadas = append(s.enviadas, msg)
	return nil
}

type stubNotifier struct {
	alertas []AlertMessage
}

func (s *stubNotifier) Notify(ctx context.Context, msg AlertMessage) error {
	s.alertas = append(s.alertas, msg)
	return nil
}

func TestRunOnceExpiraEDisparaLembretes(t *testing.T) {
	comEmail := uuid.New()
	semEmail := uuid.New()
	email := "servidor@example.com"

	campanhas := &stubCampanhas{
		expiradas: []uuid.UUID{uuid.New()},
		terminando: []recadastro.Campanha{{
			ID:            uuid.New(),
			Titulo:        "Recadastramento 2026",
			Fim:           time.Now().Add(72 * time.Hour),
			EmailLembrete: true,
		}},
	}
	envios := &stubEnvios{pendentes: []uuid.UUID{comEmail, semEmail}}
	servidores := &stubServidores{servidores: map[uuid.UUID]*servidor.Servidor{
		comEmail: {ID: comEmail, Nome: "Com Email", Email: &email},
		semEmail: {ID: semEmail, Nome: "Sem Email"},
	}}
	correio := &stubSweepMailer{}
	notifier := &stubNotifier{}

	svc := NewService(campanhas, envios, servidores, correio, nil, nil,
		config.SweepConfig{Enabled: true}, zerolog.Nop(), notifier)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(correio.enviadas) != 1 {
		t.Fatalf("esperava 1 lembrete, got %d", len(correio.enviadas))
	}
	if correio.enviadas[0].Template != mailer.TemplateLembrete || correio.enviadas[0].Destinatario != email {
		t.Errorf("lembrete inesperado: %+v", correio.enviadas[0])
	}
	if len(notifier.alertas) != 0 {
		t.Errorf("execução saudável não deveria alertar: %+v", notifier.alertas)
	}
}

func TestRunOnceFalhaAlertaOperacao(t *testing.T) {
	campanhas := &stubCampanhas{expireErr: errors.New("banco fora do ar")}
	notifier := &stubNotifier{}

	svc := NewService(campanhas, &stubEnvios{}, &stubServidores{}, &stubSweepMailer{}, nil, nil,
		config.SweepConfig{Enabled: true}, zerolog.Nop(), notifier)

	if err := svc.RunOnce(context.Background()); err == nil {
		t.Fatal("esperava erro propagado")
	}
	if len(notifier.alertas) != 1 || notifier.alertas[0].Severity != "critical" {
		t.Fatalf("esperava alerta crítico, got %+v", notifier.alertas)
	}
}

func TestRunOnceSemCampanhasTerminando(t *testing.T) {
	campanhas := &stubCampanhas{}
	correio := &stubSweepMailer{}

	svc := NewService(campanhas, &stubEnvios{}, &stubServidores{}, correio, nil, nil,
		config.SweepConfig{Enabled: true}, zerolog.Nop(), nil)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if campanhas.endingCalls != 1 {
		t.Fatalf("EndingWithin deveria ser consultado uma vez, got %d", campanhas.endingCalls)
	}
	if len(correio.enviadas) != 0 {
		t.Errorf("sem campanhas não há lembretes: %+v", correio.enviadas)
	}
}
