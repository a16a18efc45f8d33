package servidor

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indica servidor inexistente.
	ErrNotFound = errors.New("servidor não encontrado")
)

// Repository persiste o cadastro de servidores.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const servidorColumns = `
    id, nome, cpf, email, email_pessoal, matricula, senha_hash,
    divisao, setor, telefone, celular,
    COALESCE(campos_extras, '{}'::jsonb), ativo, criado_em
`

const servidorColumnsQualified = `
    s.id, s.nome, s.cpf, s.email, s.email_pessoal, s.matricula, s.senha_hash,
    s.divisao, s.setor, s.telefone, s.celular,
    COALESCE(s.campos_extras, '{}'::jsonb), s.ativo, s.criado_em
`

func scanServidor(row pgx.Row) (*Servidor, error) {
	var s Servidor
	if err := row.Scan(
		&s.ID, &s.Nome, &s.CPF, &s.Email, &s.EmailPessoal, &s.Matricula, &s.SenhaHash,
		&s.Divisao, &s.Setor, &s.Telefone, &s.Celular,
		&s.CamposExtras, &s.Ativo, &s.CriadoEm,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Servidor, error) {
	s, err := scanServidor(r.pool.QueryRow(ctx, `SELECT `+servidorColumns+` FROM servidores WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*Servidor, error) {
	const query = `SELECT ` + servidorColumns + ` FROM servidores WHERE LOWER(email) = $1 OR LOWER(email_pessoal) = $1`

	s, err := scanServidor(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetByCPF localiza um servidor pelo CPF normalizado (somente dígitos).
func (r *Repository) GetByCPF(ctx context.Context, cpf string) (*Servidor, error) {
	s, err := scanServidor(r.pool.QueryRow(ctx, `SELECT `+servidorColumns+` FROM servidores WHERE cpf = $1`, cpf))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// MirrorPerfil espelha campos padrão validados de um envio no cadastro.
func (r *Repository) MirrorPerfil(ctx context.Context, id uuid.UUID, p Perfil) error {
	const query = `
        UPDATE servidores
        SET nome = $2,
            cpf = $3,
            divisao = NULLIF($4, ''),
            setor = NULLIF($5, ''),
            telefone = NULLIF($6, ''),
            celular = NULLIF($7, ''),
            email_pessoal = COALESCE(NULLIF($8, ''), email_pessoal)
        WHERE id = $1
    `

	tag, err := r.pool.Exec(ctx, query, id, p.Nome, p.CPF, p.Divisao, p.Setor, p.Telefone, p.Celular, p.Email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MergeCamposExtras funde valores de campos personalizados no cadastro,
// preservando chaves não informadas.
func (r *Repository) MergeCamposExtras(ctx context.Context, id uuid.UUID, valores map[string]any) error {
	if len(valores) == 0 {
		return nil
	}

	const query = `
        UPDATE servidores
        SET campos_extras = COALESCE(campos_extras, '{}'::jsonb) || $2::jsonb
        WHERE id = $1
    `

	tag, err := r.pool.Exec(ctx, query, id, valores)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByGrupo lista servidores ativos vinculados ao grupo.
func (r *Repository) ListByGrupo(ctx context.Context, grupoID uuid.UUID) ([]Servidor, error) {
	const query = `
        SELECT ` + servidorColumnsQualified + `
        FROM servidores s
        JOIN grupo_membros m ON m.servidor_id = s.id
        WHERE m.grupo_id = $1 AND s.ativo
        ORDER BY s.nome
    `

	rows, err := r.pool.Query(ctx, query, grupoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servidores []Servidor
	for rows.Next() {
		s, err := scanServidor(rows)
		if err != nil {
			return nil, err
		}
		servidores = append(servidores, *s)
	}
	return servidores, rows.Err()
}
