package grupo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indica grupo inexistente.
	ErrNotFound = errors.New("grupo não encontrado")
)

// maxDepth limita a subida na hierarquia para conter ciclos acidentais.
const maxDepth = 16

// Repository encapsula o diretório de grupos e seus vínculos.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Grupo, error) {
	const query = `
        SELECT id, nome, slug, parent_id, ativo, criado_em
        FROM grupos
        WHERE id = $1
    `

	var g Grupo
	if err := r.pool.QueryRow(ctx, query, id).Scan(&g.ID, &g.Nome, &g.Slug, &g.ParentID, &g.Ativo, &g.CriadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *Repository) List(ctx context.Context) ([]Grupo, error) {
	const query = `
        SELECT id, nome, slug, parent_id, ativo, criado_em
        FROM grupos
        WHERE ativo
        ORDER BY nome
    `

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grupos []Grupo
	for rows.Next() {
		var g Grupo
		if err := rows.Scan(&g.ID, &g.Nome, &g.Slug, &g.ParentID, &g.Ativo, &g.CriadoEm); err != nil {
			return nil, err
		}
		grupos = append(grupos, g)
	}
	return grupos, rows.Err()
}

// AncestorChain devolve o grupo e todos os ancestrais, do mais próximo
// ao mais distante. A subida é limitada por maxDepth.
func (r *Repository) AncestorChain(ctx context.Context, id uuid.UUID) ([]Grupo, error) {
	var chain []Grupo
	current := id
	for depth := 0; depth < maxDepth; depth++ {
		g, err := r.GetByID(ctx, current)
		if err != nil {
			if errors.Is(err, ErrNotFound) && depth > 0 {
				return chain, nil
			}
			return nil, err
		}

		for _, seen := range chain {
			if seen.ID == g.ID {
				return chain, nil
			}
		}

		chain = append(chain, *g)
		if g.ParentID == nil {
			return chain, nil
		}
		current = *g.ParentID
	}
	return chain, nil
}

// Members lista servidores vinculados diretamente ao grupo.
func (r *Repository) Members(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	const query = `
        SELECT servidor_id
        FROM grupo_membros
        WHERE grupo_id = $1
    `

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var servidorID uuid.UUID
		if err := rows.Scan(&servidorID); err != nil {
			return nil, err
		}
		members = append(members, servidorID)
	}
	return members, rows.Err()
}

// MembersRecursive lista servidores do grupo e de todos os descendentes.
// Um servidor de grupo filho está implicitamente no escopo do grupo pai.
func (r *Repository) MembersRecursive(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	const query = `
        WITH RECURSIVE arvore AS (
            SELECT id FROM grupos WHERE id = $1
            UNION ALL
            SELECT g.id FROM grupos g JOIN arvore a ON g.parent_id = a.id
        )
        SELECT DISTINCT m.servidor_id
        FROM grupo_membros m
        JOIN arvore a ON a.id = m.grupo_id
    `

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var servidorID uuid.UUID
		if err := rows.Scan(&servidorID); err != nil {
			return nil, err
		}
		members = append(members, servidorID)
	}
	return members, rows.Err()
}

// GruposDoServidor lista grupos aos quais o servidor pertence diretamente.
func (r *Repository) GruposDoServidor(ctx context.Context, servidorID uuid.UUID) ([]Grupo, error) {
	const query = `
        SELECT g.id, g.nome, g.slug, g.parent_id, g.ativo, g.criado_em
        FROM grupos g
        JOIN grupo_membros m ON m.grupo_id = g.id
        WHERE m.servidor_id = $1 AND g.ativo
        ORDER BY g.nome
    `

	rows, err := r.pool.Query(ctx, query, servidorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grupos []Grupo
	for rows.Next() {
		var g Grupo
		if err := rows.Scan(&g.ID, &g.Nome, &g.Slug, &g.ParentID, &g.Ativo, &g.CriadoEm); err != nil {
			return nil, err
		}
		grupos = append(grupos, g)
	}
	return grupos, rows.Err()
}
