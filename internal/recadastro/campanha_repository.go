package recadastro

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaozabele/recadastro/internal/db"
)

var (
	// ErrCampanhaNaoEncontrada indica campanha inexistente.
	ErrCampanhaNaoEncontrada = errors.New("campanha não encontrada")
	// ErrCampanhaStatus indica operação incompatível com o status atual.
	ErrCampanhaStatus = errors.New("status da campanha não permite a operação")
)

// CampanhaRepository persiste campanhas e resolve grupos-alvo.
type CampanhaRepository struct {
	pool *pgxpool.Pool
}

func NewCampanhaRepository(pool *pgxpool.Pool) *CampanhaRepository {
	return &CampanhaRepository{pool: pool}
}

const campanhaColumns = `
    id, titulo, status, inicio, fim, auto_aprova,
    email_convite, email_lembrete, email_confirmacao, lembrete_dias, criado_em
`

// campanhaColumnsQualified evita ambiguidade em consultas com join.
const campanhaColumnsQualified = `
    campanhas.id, campanhas.titulo, campanhas.status, campanhas.inicio, campanhas.fim,
    campanhas.auto_aprova, campanhas.email_convite, campanhas.email_lembrete,
    campanhas.email_confirmacao, campanhas.lembrete_dias, campanhas.criado_em
`

func scanCampanha(row pgx.Row) (*Campanha, error) {
	var c Campanha
	if err := row.Scan(
		&c.ID, &c.Titulo, &c.Status, &c.Inicio, &c.Fim, &c.AutoAprova,
		&c.EmailConvite, &c.EmailLembrete, &c.EmailConfirmacao, &c.LembreteDias, &c.CriadoEm,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create insere campanha em rascunho com defaults.
func (r *CampanhaRepository) Create(ctx context.Context, c *Campanha) (uuid.UUID, error) {
	const query = `
        INSERT INTO campanhas (id, titulo, status, inicio, fim, auto_aprova, email_convite, email_lembrete, email_confirmacao, lembrete_dias)
        VALUES (gen_random_uuid(), $1, 'RASCUNHO', $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `

	lembrete := c.LembreteDias
	if lembrete <= 0 {
		lembrete = 7
	}

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query,
		c.Titulo, c.Inicio, c.Fim, c.AutoAprova,
		c.EmailConvite, c.EmailLembrete, c.EmailConfirmacao, lembrete,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *CampanhaRepository) Update(ctx context.Context, c *Campanha) error {
	const query = `
        UPDATE campanhas
        SET titulo = $2, inicio = $3, fim = $4, auto_aprova = $5,
            email_convite = $6, email_lembrete = $7, email_confirmacao = $8, lembrete_dias = $9
        WHERE id = $1
    `

	tag, err := r.pool.Exec(ctx, query,
		c.ID, c.Titulo, c.Inicio, c.Fim, c.AutoAprova,
		c.EmailConvite, c.EmailLembrete, c.EmailConfirmacao, c.LembreteDias,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampanhaNaoEncontrada
	}
	return nil
}

func (r *CampanhaRepository) GetByID(ctx context.Context, id uuid.UUID) (*Campanha, error) {
	c, err := scanCampanha(r.pool.QueryRow(ctx, `SELECT `+campanhaColumns+` FROM campanhas WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCampanhaNaoEncontrada
		}
		return nil, err
	}

	grupos, err := r.grupoIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	c.GrupoIDs = grupos
	return c, nil
}

func (r *CampanhaRepository) List(ctx context.Context) ([]Campanha, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+campanhaColumns+` FROM campanhas ORDER BY criado_em DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campanhas []Campanha
	for rows.Next() {
		c, err := scanCampanha(rows)
		if err != nil {
			return nil, err
		}
		campanhas = append(campanhas, *c)
	}
	return campanhas, rows.Err()
}

func (r *CampanhaRepository) grupoIDs(ctx context.Context, campanhaID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT grupo_id FROM campanha_grupos WHERE campanha_id = $1`, campanhaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetGrupos substitui o conjunto de grupos-alvo da campanha.
// Apaga e reinsere para que nenhum vínculo obsoleto sobreviva à edição.
func (r *CampanhaRepository) SetGrupos(ctx context.Context, campanhaID uuid.UUID, grupoIDs []uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM campanha_grupos WHERE campanha_id = $1`, campanhaID); err != nil {
			return err
		}

		seen := make(map[uuid.UUID]struct{}, len(grupoIDs))
		for _, grupoID := range grupoIDs {
			if _, ok := seen[grupoID]; ok {
				continue
			}
			seen[grupoID] = struct{}{}
			if _, err := tx.Exec(ctx,
				`INSERT INTO campanha_grupos (campanha_id, grupo_id) VALUES ($1, $2)`,
				campanhaID, grupoID,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetActiveForGrupo resolve campanhas ativas cujo alvo inclui o grupo
// informado ou qualquer ancestral dele na hierarquia.
func (r *CampanhaRepository) GetActiveForGrupo(ctx context.Context, grupoID uuid.UUID) ([]Campanha, error) {
	const query = `
        WITH RECURSIVE cadeia AS (
            SELECT id, parent_id FROM grupos WHERE id = $1
            UNION ALL
            SELECT g.id, g.parent_id FROM grupos g JOIN cadeia c ON g.id = c.parent_id
        )
        SELECT DISTINCT ` + campanhaColumnsQualified + `
        FROM campanhas
        JOIN campanha_grupos cg ON cg.campanha_id = campanhas.id
        JOIN cadeia ON cadeia.id = cg.grupo_id
        WHERE campanhas.status = 'ATIVA'
        ORDER BY campanhas.fim
    `

	return r.queryCampanhas(ctx, query, grupoID)
}

// GetActiveForUser une as campanhas ativas de todos os grupos do servidor
// (incluindo ancestrais), sem duplicatas.
func (r *CampanhaRepository) GetActiveForUser(ctx context.Context, servidorID uuid.UUID) ([]Campanha, error) {
	const query = `
        WITH RECURSIVE meus AS (
            SELECT grupo_id AS id FROM grupo_membros WHERE servidor_id = $1
            UNION
            SELECT g.parent_id FROM grupos g JOIN meus m ON g.id = m.id
            WHERE g.parent_id IS NOT NULL
        )
        SELECT DISTINCT ` + campanhaColumnsQualified + `
        FROM campanhas
        JOIN campanha_grupos cg ON cg.campanha_id = campanhas.id
        JOIN meus ON meus.id = cg.grupo_id
        WHERE campanhas.status = 'ATIVA'
        ORDER BY campanhas.fim
    `

	return r.queryCampanhas(ctx, query, servidorID)
}

func (r *CampanhaRepository) queryCampanhas(ctx context.Context, query string, args ...any) ([]Campanha, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campanhas []Campanha
	for rows.Next() {
		c, err := scanCampanha(rows)
		if err != nil {
			return nil, err
		}
		campanhas = append(campanhas, *c)
	}
	return campanhas, rows.Err()
}

// Activate publica a campanha e cria envios PENDENTE para todos os
// servidores dos grupos-alvo (incluindo grupos descendentes). A unicidade
// (campanha_id, servidor_id) torna a operação segura para reexecução.
func (r *CampanhaRepository) Activate(ctx context.Context, campanhaID uuid.UUID) (int, error) {
	criados := 0
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE campanhas SET status = 'ATIVA' WHERE id = $1 AND status = 'RASCUNHO'`,
			campanhaID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrCampanhaStatus
		}

		const seed = `
            WITH RECURSIVE alvo AS (
                SELECT grupo_id AS id FROM campanha_grupos WHERE campanha_id = $1
                UNION
                SELECT g.id FROM grupos g JOIN alvo a ON g.parent_id = a.id
            )
            INSERT INTO envios (id, campanha_id, servidor_id, status)
            SELECT gen_random_uuid(), $1, m.servidor_id, 'PENDENTE'
            FROM (SELECT DISTINCT gm.servidor_id
                  FROM grupo_membros gm
                  JOIN alvo ON alvo.id = gm.grupo_id) m
            ON CONFLICT (campanha_id, servidor_id) DO NOTHING
        `
		seeded, err := tx.Exec(ctx, seed, campanhaID)
		if err != nil {
			return err
		}
		criados = int(seeded.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return criados, nil
}

// Close encerra manualmente uma campanha ativa.
func (r *CampanhaRepository) Close(ctx context.Context, campanhaID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE campanhas SET status = 'ENCERRADA' WHERE id = $1 AND status = 'ATIVA'`,
		campanhaID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampanhaStatus
	}
	return nil
}

// ExpireOverdue expira campanhas ativas com fim ultrapassado e cascateia
// para envios ainda PENDENTE/EM_ANDAMENTO. Cada update é condicionado ao
// status corrente, então reexecuções não têm efeito adicional. Envios
// ENVIADO/APROVADO/REJEITADO preservam o status histórico.
func (r *CampanhaRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE campanhas SET status = 'EXPIRADA' WHERE status = 'ATIVA' AND fim < $1 RETURNING id`,
		now,
	)
	if err != nil {
		return nil, err
	}

	var expiradas []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		expiradas = append(expiradas, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, campanhaID := range expiradas {
		if _, err := r.pool.Exec(ctx,
			`UPDATE envios SET status = 'EXPIRADO', atualizado_em = $2
             WHERE campanha_id = $1 AND status IN ('PENDENTE', 'EM_ANDAMENTO')`,
			campanhaID, now,
		); err != nil {
			return expiradas, err
		}
	}

	return expiradas, nil
}

// EndingWithin lista campanhas ativas com fim dentro da janela de
// lembrete de cada uma, para o disparo diário.
func (r *CampanhaRepository) EndingWithin(ctx context.Context, now time.Time) ([]Campanha, error) {
	const query = `
        SELECT ` + campanhaColumns + `
        FROM campanhas
        WHERE status = 'ATIVA'
          AND email_lembrete
          AND fim >= $1
          AND fim <= $1 + (lembrete_dias || ' days')::interval
        ORDER BY fim
    `

	return r.queryCampanhas(ctx, query, now)
}
