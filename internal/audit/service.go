package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store abstrai a persistência da trilha.
type Store interface {
	Append(ctx context.Context, entry Entry) error
}

// Service enfileira registros em canal com capacidade fixa e os drena em
// segundo plano. Registro é melhor esforço: fila cheia descarta com log,
// nunca bloqueia a transição chamadora.
type Service struct {
	store  Store
	inbox  chan Entry
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		inbox:  make(chan Entry, 256),
		logger: logger,
	}
}

// Record enfileira um registro sem bloquear.
func (s *Service) Record(ctx context.Context, atorID *uuid.UUID, acao, entidade string, entidadeID uuid.UUID, metadata map[string]any) {
	entry := Entry{
		AtorID:     atorID,
		Acao:       acao,
		Entidade:   entidade,
		EntidadeID: entidadeID,
		Metadata:   metadata,
		OcorridoEm: time.Now().UTC(),
	}

	select {
	case s.inbox <- entry:
	default:
		s.logger.Warn().Str("acao", acao).Msg("audit: fila cheia, registro descartado")
	}
}

// Run drena a fila até o contexto encerrar.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-s.inbox:
			if err := s.store.Append(ctx, entry); err != nil {
				s.logger.Error().Err(err).Str("acao", entry.Acao).Msg("audit: persistência falhou")
			}
		}
	}
}
