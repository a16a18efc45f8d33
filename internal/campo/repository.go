package campo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indica campo inexistente.
	ErrNotFound = errors.New("campo não encontrado")
)

// Repository persiste definições de campos personalizados.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const campoColumns = `
    id, grupo_id, chave, rotulo, tipo,
    COALESCE(opcoes, '{}'), COALESCE(dependencias, '{}'::jsonb),
    COALESCE(formato, ''), COALESCE(regex_padrao, ''), COALESCE(regex_mensagem, ''),
    obrigatorio, ativo, ordem, criado_em
`

func scanCampo(row pgx.Row) (*Campo, error) {
	var c Campo
	if err := row.Scan(
		&c.ID, &c.GrupoID, &c.Chave, &c.Rotulo, &c.Tipo,
		&c.Opcoes, &c.Dependencias,
		&c.Formato, &c.RegexPadrao, &c.RegexMensagem,
		&c.Obrigatorio, &c.Ativo, &c.Ordem, &c.CriadoEm,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Campo, error) {
	c, err := scanCampo(r.pool.QueryRow(ctx, `SELECT `+campoColumns+` FROM campos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListForGrupos devolve os campos ativos definidos para qualquer um dos
// grupos informados (tipicamente um grupo e seus ancestrais), ordenados.
func (r *Repository) ListForGrupos(ctx context.Context, grupoIDs []uuid.UUID) ([]Campo, error) {
	if len(grupoIDs) == 0 {
		return nil, nil
	}

	const query = `
        SELECT ` + campoColumns + `
        FROM campos
        WHERE grupo_id = ANY($1) AND ativo
        ORDER BY ordem, chave
    `

	rows, err := r.pool.Query(ctx, query, grupoIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campos []Campo
	for rows.Next() {
		c, err := scanCampo(rows)
		if err != nil {
			return nil, err
		}
		campos = append(campos, *c)
	}
	return campos, rows.Err()
}

func (r *Repository) Create(ctx context.Context, c *Campo) (uuid.UUID, error) {
	const query = `
        INSERT INTO campos (id, grupo_id, chave, rotulo, tipo, opcoes, dependencias, formato, regex_padrao, regex_mensagem, obrigatorio, ativo, ordem)
        VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id
    `

	var idArg any
	if c.ID != uuid.Nil {
		idArg = c.ID
	}

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query,
		idArg, c.GrupoID, c.Chave, c.Rotulo, c.Tipo,
		c.Opcoes, c.Dependencias,
		c.Formato, c.RegexPadrao, c.RegexMensagem,
		c.Obrigatorio, c.Ativo, c.Ordem,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, c *Campo) error {
	const query = `
        UPDATE campos
        SET rotulo = $2, tipo = $3, opcoes = $4, dependencias = $5,
            formato = $6, regex_padrao = $7, regex_mensagem = $8,
            obrigatorio = $9, ativo = $10, ordem = $11
        WHERE id = $1
    `

	tag, err := r.pool.Exec(ctx, query,
		c.ID, c.Rotulo, c.Tipo, c.Opcoes, c.Dependencias,
		c.Formato, c.RegexPadrao, c.RegexMensagem,
		c.Obrigatorio, c.Ativo, c.Ordem,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate desliga o campo sem apagar histórico de envios.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE campos SET ativo = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
