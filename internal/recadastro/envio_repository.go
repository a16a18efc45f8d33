package recadastro

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaozabele/recadastro/internal/auth"
	"github.com/gestaozabele/recadastro/internal/util"
)

var (
	// ErrEnvioNaoEncontrado indica envio inexistente.
	ErrEnvioNaoEncontrado = errors.New("envio não encontrado")
	// ErrTransicao indica transição de status não permitida.
	ErrTransicao = errors.New("transição de status não permitida")
	// ErrEnvioNaoEnviado indica credencial pedida antes do envio final.
	ErrEnvioNaoEnviado = errors.New("envio ainda não finalizado")
)

// EnvioRepository persiste a máquina de estados do envio.
type EnvioRepository struct {
	pool *pgxpool.Pool
}

func NewEnvioRepository(pool *pgxpool.Pool) *EnvioRepository {
	return &EnvioRepository{pool: pool}
}

const envioColumns = `
    id, campanha_id, servidor_id, status, dados_padrao, campos_extras,
    codigo_autenticacao, magic_token, enviado_em, revisado_em, revisado_por,
    observacoes, criado_em, atualizado_em
`

func scanEnvio(row pgx.Row) (*Envio, error) {
	var e Envio
	if err := row.Scan(
		&e.ID, &e.CampanhaID, &e.ServidorID, &e.Status, &e.DadosPadrao, &e.CamposExtras,
		&e.CodigoAutenticacao, &e.MagicToken, &e.EnviadoEm, &e.RevisadoEm, &e.RevisadoPor,
		&e.Observacoes, &e.CriadoEm, &e.AtualizadoEm,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EnvioRepository) getOne(ctx context.Context, query string, args ...any) (*Envio, error) {
	e, err := scanEnvio(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEnvioNaoEncontrado
		}
		return nil, err
	}
	return e, nil
}

func (r *EnvioRepository) GetByID(ctx context.Context, id uuid.UUID) (*Envio, error) {
	return r.getOne(ctx, `SELECT `+envioColumns+` FROM envios WHERE id = $1`, id)
}

// GetForUser localiza o envio único do servidor na campanha.
func (r *EnvioRepository) GetForUser(ctx context.Context, campanhaID, servidorID uuid.UUID) (*Envio, error) {
	return r.getOne(ctx,
		`SELECT `+envioColumns+` FROM envios WHERE campanha_id = $1 AND servidor_id = $2`,
		campanhaID, servidorID,
	)
}

func (r *EnvioRepository) GetByMagicToken(ctx context.Context, token string) (*Envio, error) {
	return r.getOne(ctx, `SELECT `+envioColumns+` FROM envios WHERE magic_token = $1`, token)
}

func (r *EnvioRepository) GetByAuthCode(ctx context.Context, codigo string) (*Envio, error) {
	return r.getOne(ctx, `SELECT `+envioColumns+` FROM envios WHERE codigo_autenticacao = $1`, codigo)
}

// ListByCampanha lista envios para revisão, com filtro opcional de status.
func (r *EnvioRepository) ListByCampanha(ctx context.Context, campanhaID uuid.UUID, status *StatusEnvio) ([]Envio, error) {
	const query = `
        SELECT ` + envioColumns + `
        FROM envios
        WHERE campanha_id = $1 AND ($2::text IS NULL OR status = $2)
        ORDER BY atualizado_em DESC
    `

	rows, err := r.pool.Query(ctx, query, campanhaID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var envios []Envio
	for rows.Next() {
		e, err := scanEnvio(rows)
		if err != nil {
			return nil, err
		}
		envios = append(envios, *e)
	}
	return envios, rows.Err()
}

// MarkEmAndamento registra a abertura do formulário pelo servidor.
func (r *EnvioRepository) MarkEmAndamento(ctx context.Context, id uuid.UUID) error {
	// Já EM_ANDAMENTO não é erro; demais estados não regridem.
	_, err := r.pool.Exec(ctx,
		`UPDATE envios SET status = 'EM_ANDAMENTO', atualizado_em = $2
         WHERE id = $1 AND status = 'PENDENTE'`,
		id, util.Now(),
	)
	return err
}

// SaveDraft grava rascunho parcial. PENDENTE vira EM_ANDAMENTO; estados
// posteriores não aceitam rascunho.
func (r *EnvioRepository) SaveDraft(ctx context.Context, id uuid.UUID, dados *DadosPadrao, extras map[uuid.UUID]ValorCampo) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE envios
         SET status = 'EM_ANDAMENTO', dados_padrao = $2, campos_extras = $3, atualizado_em = $4
         WHERE id = $1 AND status IN ('PENDENTE', 'EM_ANDAMENTO')`,
		id, dados, extras, util.Now(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransicao
	}
	return nil
}

// Finalize aplica a transição terminal do envio do servidor em um único
// update: payload, status, código de autenticação e magic token. As
// credenciais nascem aqui e nunca antes.
func (r *EnvioRepository) Finalize(ctx context.Context, id uuid.UUID, status StatusEnvio, dados *DadosPadrao, extras map[uuid.UUID]ValorCampo, codigo, token string, revisor *uuid.UUID) error {
	if status != EnvioEnviado && status != EnvioAprovado {
		return ErrTransicao
	}

	now := util.Now()
	var revisadoEm *time.Time
	if status == EnvioAprovado {
		revisadoEm = &now
	} else {
		revisor = nil
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE envios
         SET status = $2, dados_padrao = $3, campos_extras = $4,
             codigo_autenticacao = $5, magic_token = $6,
             enviado_em = $7, revisado_em = $8, revisado_por = $9,
             atualizado_em = $7
         WHERE id = $1 AND status IN ('PENDENTE', 'EM_ANDAMENTO')`,
		id, status, dados, extras, codigo, token, now, revisadoEm, revisor,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransicao
	}
	return nil
}

// Approve aprova um envio ENVIADO.
func (r *EnvioRepository) Approve(ctx context.Context, id, revisorID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE envios
         SET status = 'APROVADO', revisado_em = $3, revisado_por = $2, atualizado_em = $3
         WHERE id = $1 AND status = 'ENVIADO'`,
		id, revisorID, util.Now(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransicao
	}
	return nil
}

// Reject rejeita um envio ENVIADO com justificativa.
func (r *EnvioRepository) Reject(ctx context.Context, id, revisorID uuid.UUID, observacoes string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE envios
         SET status = 'REJEITADO', revisado_em = $4, revisado_por = $2,
             observacoes = NULLIF($3, ''), atualizado_em = $4
         WHERE id = $1 AND status = 'ENVIADO'`,
		id, revisorID, observacoes, util.Now(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransicao
	}
	return nil
}

// ReturnToDraft é a única transição de retorno: REJEITADO volta a
// EM_ANDAMENTO com os metadados de revisão zerados, comportando-se como
// rascunho novo. Recusada quando a campanha não está mais ativa.
func (r *EnvioRepository) ReturnToDraft(ctx context.Context, id, revisorID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE envios
         SET status = 'EM_ANDAMENTO',
             enviado_em = NULL, revisado_em = NULL, revisado_por = NULL,
             observacoes = NULL, atualizado_em = $2
         WHERE id = $1 AND status = 'REJEITADO'
           AND EXISTS (SELECT 1 FROM campanhas c WHERE c.id = envios.campanha_id AND c.status = 'ATIVA')`,
		id, util.Now(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransicao
	}
	return nil
}

// BulkApprove aprova em lote com tolerância a falha parcial.
func (r *EnvioRepository) BulkApprove(ctx context.Context, ids []uuid.UUID, revisorID uuid.UUID) BulkResultado {
	return r.bulk(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
		return r.Approve(ctx, id, revisorID)
	})
}

// BulkReturnToDraft devolve em lote com tolerância a falha parcial.
func (r *EnvioRepository) BulkReturnToDraft(ctx context.Context, ids []uuid.UUID, revisorID uuid.UUID) BulkResultado {
	return r.bulk(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
		return r.ReturnToDraft(ctx, id, revisorID)
	})
}

func (r *EnvioRepository) bulk(ctx context.Context, ids []uuid.UUID, op func(context.Context, uuid.UUID) error) BulkResultado {
	var resultado BulkResultado
	for _, id := range ids {
		if err := op(ctx, id); err != nil {
			resultado.Falha = append(resultado.Falha, id)
			continue
		}
		resultado.Sucesso = append(resultado.Sucesso, id)
	}
	return resultado
}

// EnsureMagicToken gera o token sob demanda caso ausente e devolve o
// valor persistido. Chamadas repetidas devolvem sempre o mesmo token.
func (r *EnvioRepository) EnsureMagicToken(ctx context.Context, id uuid.UUID) (string, error) {
	envio, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	switch envio.Status {
	case EnvioEnviado, EnvioAprovado, EnvioRejeitado:
	default:
		return "", ErrEnvioNaoEnviado
	}

	if envio.MagicToken != nil && *envio.MagicToken != "" {
		return *envio.MagicToken, nil
	}

	token, err := auth.GenerateMagicToken()
	if err != nil {
		return "", err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE envios SET magic_token = $2, atualizado_em = $3
         WHERE id = $1 AND magic_token IS NULL`,
		id, token, util.Now(),
	)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		// Outra requisição gravou primeiro; devolve o valor vencedor.
		envio, err = r.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		if envio.MagicToken == nil {
			return "", ErrEnvioNaoEnviado
		}
		return *envio.MagicToken, nil
	}
	return token, nil
}

// Statistics agrega contagem por status e total da campanha.
func (r *EnvioRepository) Statistics(ctx context.Context, campanhaID uuid.UUID) (*Estatisticas, error) {
	const query = `
        SELECT status, COUNT(*)::int
        FROM envios
        WHERE campanha_id = $1
        GROUP BY status
    `

	rows, err := r.pool.Query(ctx, query, campanhaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &Estatisticas{PorStatus: make(map[StatusEnvio]int)}
	for rows.Next() {
		var status StatusEnvio
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.PorStatus[status] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

// PendentesDaCampanha lista servidores com envio ainda PENDENTE ou
// EM_ANDAMENTO, alvo dos lembretes.
func (r *EnvioRepository) PendentesDaCampanha(ctx context.Context, campanhaID uuid.UUID) ([]uuid.UUID, error) {
	const query = `
        SELECT servidor_id
        FROM envios
        WHERE campanha_id = $1 AND status IN ('PENDENTE', 'EM_ANDAMENTO')
    `

	rows, err := r.pool.Query(ctx, query, campanhaID)
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
