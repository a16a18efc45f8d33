package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries agrupa consultas de usuários e sessões.
type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const usuarioColumns = `id, nome, email, senha_hash, papel, ativo, criado_em`

func scanUsuario(row pgx.Row) (Usuario, error) {
	var u Usuario
	err := row.Scan(&u.ID, &u.Nome, &u.Email, &u.SenhaHash, &u.Papel, &u.Ativo, &u.CriadoEm)
	return u, err
}

// GetUsuarioByEmail localiza colaborador pelo e-mail.
func (q *Queries) GetUsuarioByEmail(ctx context.Context, email string) (Usuario, error) {
	const query = `SELECT ` + usuarioColumns + ` FROM usuarios WHERE LOWER(email) = $1`

	u, err := scanUsuario(q.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}

// GetUsuarioByID localiza colaborador pelo identificador.
func (q *Queries) GetUsuarioByID(ctx context.Context, id uuid.UUID) (Usuario, error) {
	const query = `SELECT ` + usuarioColumns + ` FROM usuarios WHERE id = $1`

	u, err := scanUsuario(q.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}

// InsertRefreshToken grava novo refresh token.
func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	const query = `
        INSERT INTO tokens_refresh (id, subject, audience, token_hash, expiracao, criado_em, revogado)
        VALUES ($1, $2, $3, $4, $5, $6, false)
        RETURNING id, subject, audience, token_hash, expiracao, criado_em, revogado
    `

	var t TokenRefresh
	err := q.pool.QueryRow(ctx, query, arg.ID, arg.Subject, arg.Audience, arg.TokenHash, arg.Expiracao, arg.CriadoEm).
		Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado)
	return t, err
}

// GetRefreshTokenByHash busca refresh token pelo hash.
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	const query = `
        SELECT id, subject, audience, token_hash, expiracao, criado_em, revogado
        FROM tokens_refresh
        WHERE token_hash = $1
    `

	var t TokenRefresh
	err := q.pool.QueryRow(ctx, query, tokenHash).
		Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenRefresh{}, ErrNotFound
		}
		return TokenRefresh{}, err
	}
	return t, nil
}

// InvalidateOtherRefreshTokens revoga sessões antigas do mesmo subject.
func (q *Queries) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	const query = `
        UPDATE tokens_refresh
        SET revogado = true
        WHERE subject = $1 AND audience = $2 AND token_hash <> $3 AND NOT revogado
    `

	_, err := q.pool.Exec(ctx, query, subject, audience, keepHash)
	return err
}

// RevokeRefreshToken revoga refresh token específico.
func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	const query = `UPDATE tokens_refresh SET revogado = true WHERE token_hash = $1 AND NOT revogado`

	tag, err := q.pool.Exec(ctx, query, tokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
