package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry é um registro imutável da trilha de auditoria.
type Entry struct {
	ID         uuid.UUID
	AtorID     *uuid.UUID
	Acao       string
	Entidade   string
	EntidadeID uuid.UUID
	Metadata   map[string]any
	OcorridoEm time.Time
}

// Repository persiste a trilha de auditoria.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Append(ctx context.Context, entry Entry) error {
	const query = `
        INSERT INTO audit_log (id, ator_id, acao, entidade, entidade_id, metadata, ocorrido_em)
        VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, COALESCE($6::jsonb, '{}'::jsonb), $7)
    `

	var idArg any
	if entry.ID != uuid.Nil {
		idArg = entry.ID
	}

	var metadata any
	if entry.Metadata != nil {
		metadata = entry.Metadata
	}

	_, err := r.pool.Exec(ctx, query,
		idArg, entry.AtorID, entry.Acao, entry.Entidade, entry.EntidadeID, metadata, entry.OcorridoEm,
	)
	return err
}

// ListByEntidade lista a trilha de uma entidade, mais recente primeiro.
func (r *Repository) ListByEntidade(ctx context.Context, entidade string, entidadeID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
        SELECT id, ator_id, acao, entidade, entidade_id, metadata, ocorrido_em
        FROM audit_log
        WHERE entidade = $1 AND entidade_id = $2
        ORDER BY ocorrido_em DESC
        LIMIT $3
    `

	rows, err := r.pool.Query(ctx, query, entidade, entidadeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AtorID, &e.Acao, &e.Entidade, &e.EntidadeID, &e.Metadata, &e.OcorridoEm); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
