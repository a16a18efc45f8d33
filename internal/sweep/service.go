package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gestaozabele/recadastro/internal/config"
	"github.com/gestaozabele/recadastro/internal/mailer"
	"github.com/gestaozabele/recadastro/internal/metrics"
	"github.com/gestaozabele/recadastro/internal/recadastro"
	"github.com/gestaozabele/recadastro/internal/servidor"
	"github.com/gestaozabele/recadastro/internal/util"
)

// CampanhaSweeper cobre as operações de campanha usadas pela varredura.
type CampanhaSweeper interface {
	ExpireOverdue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	EndingWithin(ctx context.Context, now time.Time) ([]recadastro.Campanha, error)
}

// EnvioSweeper resolve envios pendentes por campanha.
type EnvioSweeper interface {
	PendentesDaCampanha(ctx context.Context, campanhaID uuid.UUID) ([]uuid.UUID, error)
}

// ServidorLookup resolve destinatários de lembrete.
type ServidorLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*servidor.Servidor, error)
}

// Service expira campanhas vencidas e dispara lembretes de prazo.
// A varredura é idempotente: rodar duas vezes no mesmo dia não expira
// nada duas vezes nem repete lembretes.
type Service struct {
	campanhas  CampanhaSweeper
	envios     EnvioSweeper
	servidores ServidorLookup
	mailer     mailer.Mailer
	metrics    *metrics.Metrics
	redis      *redis.Client
	cfg        config.SweepConfig
	notifier   Notifier
	logger     zerolog.Logger

	once   sync.Once
	cancel context.CancelFunc
}

func NewService(
	campanhas CampanhaSweeper,
	envios EnvioSweeper,
	servidores ServidorLookup,
	m mailer.Mailer,
	mts *metrics.Metrics,
	redisClient *redis.Client,
	cfg config.SweepConfig,
	logger zerolog.Logger,
	notifier Notifier,
) *Service {
	return &Service{
		campanhas:  campanhas,
		envios:     envios,
		servidores: servidores,
		mailer:     m,
		metrics:    mts,
		redis:      redisClient,
		cfg:        cfg,
		notifier:   notifier,
		logger:     logger,
	}
}

// Start inicia loop periódico. Safe para chamar múltiplas vezes.
func (s *Service) Start(parent context.Context) {
	if !s.cfg.Enabled {
		return
	}
	s.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		go s.runLoop(ctx)
	})
}

// Stop encerra loop periódico.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Service) runLoop(ctx context.Context) {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("sweep: loop iniciado")

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("sweep: primeira execução falhou")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweep: loop encerrado")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep: execução periódica falhou")
			}
		}
	}
}

// RunOnce expira campanhas cujo fim passou e dispara lembretes para
// campanhas próximas do prazo.
func (s *Service) RunOnce(ctx context.Context) error {
	now := util.Now()

	expiradas, err := s.campanhas.ExpireOverdue(ctx, now)
	if err != nil {
		s.registrarFalha(ctx, fmt.Errorf("expirar campanhas: %w", err))
		return fmt.Errorf("expirar campanhas: %w", err)
	}

	if len(expiradas) > 0 {
		s.logger.Info().Int("campanhas", len(expiradas)).Msg("sweep: campanhas expiradas")
	}
	if s.metrics != nil {
		s.metrics.CampanhasExpiradas.Add(float64(len(expiradas)))
	}

	if err := s.dispararLembretes(ctx, now); err != nil {
		s.registrarFalha(ctx, fmt.Errorf("lembretes: %w", err))
		return fmt.Errorf("lembretes: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SweepExecucoes.WithLabelValues("ok").Inc()
	}
	return nil
}

func (s *Service) dispararLembretes(ctx context.Context, now time.Time) error {
	campanhas, err := s.campanhas.EndingWithin(ctx, now)
	if err != nil {
		return err
	}

	for _, campanha := range campanhas {
		if !s.deveLembrarHoje(ctx, campanha.ID, now) {
			continue
		}

		pendentes, err := s.envios.PendentesDaCampanha(ctx, campanha.ID)
		if err != nil {
			s.logger.Warn().Err(err).Stringer("campanha", campanha.ID).Msg("sweep: pendentes não resolvidos")
			continue
		}

		enviados := 0
		for _, servidorID := range pendentes {
			sv, err := s.servidores.GetByID(ctx, servidorID)
			if err != nil || sv.Email == nil {
				continue
			}
			msg := mailer.Mensagem{
				Destinatario: *sv.Email,
				Nome:         sv.Nome,
				Template:     mailer.TemplateLembrete,
				Vars: map[string]any{
					"campanha": campanha.Titulo,
					"fim":      campanha.Fim.Format("02/01/2006"),
				},
			}
			if err := s.mailer.Send(ctx, msg); err != nil {
				s.logger.Warn().Err(err).Stringer("servidor", servidorID).Msg("sweep: lembrete não enviado")
				continue
			}
			enviados++
			if s.metrics != nil {
				s.metrics.EmailsEnviados.Inc()
			}
		}

		s.logger.Info().Stringer("campanha", campanha.ID).
			Int("pendentes", len(pendentes)).Int("enviados", enviados).
			Msg("sweep: lembretes disparados")
	}

	return nil
}

// deveLembrarHoje usa SETNX com TTL diário para garantir no máximo um
// lote de lembretes por campanha por dia, mesmo com varreduras
// concorrentes ou reexecuções.
func (s *Service) deveLembrarHoje(ctx context.Context, campanhaID uuid.UUID, now time.Time) bool {
	if s.redis == nil {
		return true
	}

	key := fmt.Sprintf("sweep:lembrete:%s:%s", campanhaID, now.Format("2006-01-02"))
	ok, err := s.redis.SetNX(ctx, key, "1", 26*time.Hour).Result()
	if err != nil {
		s.logger.Warn().Err(err).Msg("sweep: throttle indisponível, lembrete segue")
		return true
	}
	return ok
}

func (s *Service) registrarFalha(ctx context.Context, err error) {
	if s.metrics != nil {
		s.metrics.SweepExecucoes.WithLabelValues("erro").Inc()
	}
	if s.notifier == nil {
		return
	}
	msg := AlertMessage{
		Title:    "Varredura de recadastramento",
		Text:     err.Error(),
		Severity: "critical",
	}
	if nerr := s.notifier.Notify(ctx, msg); nerr != nil {
		s.logger.Error().Err(nerr).Msg("sweep: falha ao enviar alerta")
	}
}
