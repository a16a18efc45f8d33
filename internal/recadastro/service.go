package recadastro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gestaozabele/recadastro/internal/campo"
	"github.com/gestaozabele/recadastro/internal/grupo"
	"github.com/gestaozabele/recadastro/internal/mailer"
	"github.com/gestaozabele/recadastro/internal/servidor"
)

var (
	// ErrCampanhaInativa indica operação de servidor fora da janela ativa.
	ErrCampanhaInativa = errors.New("campanha não está ativa")
	// ErrDatas indica janela de datas inconsistente.
	ErrDatas = errors.New("início deve anteceder o fim")
)

// CampanhaStore abstrai o repositório de campanhas.
type CampanhaStore interface {
	Create(ctx context.Context, c *Campanha) (uuid.UUID, error)
	Update(ctx context.Context, c *Campanha) error
	GetByID(ctx context.Context, id uuid.UUID) (*Campanha, error)
	List(ctx context.Context) ([]Campanha, error)
	SetGrupos(ctx context.Context, campanhaID uuid.UUID, grupoIDs []uuid.UUID) error
	GetActiveForUser(ctx context.Context, servidorID uuid.UUID) ([]Campanha, error)
	Activate(ctx context.Context, campanhaID uuid.UUID) (int, error)
	Close(ctx context.Context, campanhaID uuid.UUID) error
}

// EnvioStore abstrai o repositório de envios.
type EnvioStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Envio, error)
	GetForUser(ctx context.Context, campanhaID, servidorID uuid.UUID) (*Envio, error)
	GetByMagicToken(ctx context.Context, token string) (*Envio, error)
	GetByAuthCode(ctx context.Context, codigo string) (*Envio, error)
	ListByCampanha(ctx context.Context, campanhaID uuid.UUID, status *StatusEnvio) ([]Envio, error)
	MarkEmAndamento(ctx context.Context, id uuid.UUID) error
	SaveDraft(ctx context.Context, id uuid.UUID, dados *DadosPadrao, extras map[uuid.UUID]ValorCampo) error
	Approve(ctx context.Context, id, revisorID uuid.UUID) error
	Reject(ctx context.Context, id, revisorID uuid.UUID, observacoes string) error
	ReturnToDraft(ctx context.Context, id, revisorID uuid.UUID) error
	BulkApprove(ctx context.Context, ids []uuid.UUID, revisorID uuid.UUID) BulkResultado
	BulkReturnToDraft(ctx context.Context, ids []uuid.UUID, revisorID uuid.UUID) BulkResultado
	EnsureMagicToken(ctx context.Context, id uuid.UUID) (string, error)
	Statistics(ctx context.Context, campanhaID uuid.UUID) (*Estatisticas, error)
	PendentesDaCampanha(ctx context.Context, campanhaID uuid.UUID) ([]uuid.UUID, error)
}

// CampoStore abstrai as definições de campos personalizados.
type CampoStore interface {
	ListForGrupos(ctx context.Context, grupoIDs []uuid.UUID) ([]campo.Campo, error)
}

// GrupoStore abstrai o diretório de grupos.
type GrupoStore interface {
	AncestorChain(ctx context.Context, id uuid.UUID) ([]grupo.Grupo, error)
}

// ServidorStore abstrai consultas ao cadastro de servidores.
type ServidorStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*servidor.Servidor, error)
}

// Service concentra as regras do recadastramento.
type Service struct {
	campanhas  CampanhaStore
	envios     EnvioStore
	campos     CampoStore
	grupos     GrupoStore
	servidores ServidorStore
	processor  *Processor
	mailer     mailer.Mailer
	audit      Auditor
	cache      *redis.Client
	logger     zerolog.Logger
}

func NewService(
	campanhas CampanhaStore,
	envios EnvioStore,
	campos CampoStore,
	grupos GrupoStore,
	servidores ServidorStore,
	processor *Processor,
	m mailer.Mailer,
	a Auditor,
	cache *redis.Client,
	logger zerolog.Logger,
) *Service {
	return &Service{
		campanhas:  campanhas,
		envios:     envios,
		campos:     campos,
		grupos:     grupos,
		servidores: servidores,
		processor:  processor,
		mailer:     m,
		audit:      a,
		cache:      cache,
		logger:     logger,
	}
}

// CampanhasAtivas lista campanhas ativas do servidor, com cache curto.
func (s *Service) CampanhasAtivas(ctx context.Context, servidorID uuid.UUID) ([]Campanha, error) {
	key := fmt.Sprintf("recadastro:ativas:%s", servidorID)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var campanhas []Campanha
			if json.Unmarshal(data, &campanhas) == nil {
				return campanhas, nil
			}
		}
	}

	campanhas, err := s.campanhas.GetActiveForUser(ctx, servidorID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(campanhas); err == nil {
			_ = s.cache.Set(ctx, key, payload, 60*time.Second).Err()
		}
	}

	return campanhas, nil
}

func (s *Service) invalidarAtivas(ctx context.Context, servidorID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, fmt.Sprintf("recadastro:ativas:%s", servidorID)).Err()
}

// camposDaCampanha resolve as definições de campo dos grupos-alvo,
// incluindo os campos herdados dos grupos ancestrais.
func (s *Service) camposDaCampanha(ctx context.Context, c *Campanha) ([]campo.Campo, error) {
	seen := make(map[uuid.UUID]struct{})
	var grupoIDs []uuid.UUID
	for _, gid := range c.GrupoIDs {
		chain, err := s.grupos.AncestorChain(ctx, gid)
		if err != nil {
			return nil, err
		}
		for _, g := range chain {
			if _, ok := seen[g.ID]; ok {
				continue
			}
			seen[g.ID] = struct{}{}
			grupoIDs = append(grupoIDs, g.ID)
		}
	}
	return s.campos.ListForGrupos(ctx, grupoIDs)
}

// FormularioAberto devolve campanha, envio e definições de campo para o
// servidor preencher. Abrir o formulário tira o envio de PENDENTE.
func (s *Service) FormularioAberto(ctx context.Context, campanhaID, servidorID uuid.UUID) (*Campanha, *Envio, []campo.Campo, error) {
	campanha, err := s.campanhas.GetByID(ctx, campanhaID)
	if err != nil {
		return nil, nil, nil, err
	}
	if campanha.Status != CampanhaAtiva {
		return nil, nil, nil, ErrCampanhaInativa
	}

	envio, err := s.envios.GetForUser(ctx, campanhaID, servidorID)
	if err != nil {
		return nil, nil, nil, err
	}

	if envio.Status == EnvioPendente {
		if err := s.envios.MarkEmAndamento(ctx, envio.ID); err != nil {
			return nil, nil, nil, err
		}
		envio.Status = EnvioEmAndamento
	}

	campos, err := s.camposDaCampanha(ctx, campanha)
	if err != nil {
		return nil, nil, nil, err
	}

	return campanha, envio, campos, nil
}

// SalvarRascunho persiste progresso parcial sem validar obrigatórios.
func (s *Service) SalvarRascunho(ctx context.Context, campanhaID, servidorID uuid.UUID, form Formulario) (*Envio, error) {
	campanha, err := s.campanhas.GetByID(ctx, campanhaID)
	if err != nil {
		return nil, err
	}
	if campanha.Status != CampanhaAtiva {
		return nil, ErrCampanhaInativa
	}

	envio, err := s.envios.GetForUser(ctx, campanhaID, servidorID)
	if err != nil {
		return nil, err
	}

	campos, err := s.camposDaCampanha(ctx, campanha)
	if err != nil {
		return nil, err
	}

	dados, extras := s.processor.Coletar(form, campos)
	if err := s.envios.SaveDraft(ctx, envio.ID, dados, extras); err != nil {
		return nil, err
	}

	return s.envios.GetByID(ctx, envio.ID)
}

// Enviar coleta, valida e, sem erros, conduz a transição terminal.
// Erros de validação voltam inteiros em um único mapa.
func (s *Service) Enviar(ctx context.Context, campanhaID, servidorID uuid.UUID, form Formulario) (*Envio, Erros, error) {
	campanha, err := s.campanhas.GetByID(ctx, campanhaID)
	if err != nil {
		return nil, nil, err
	}
	if campanha.Status != CampanhaAtiva {
		return nil, nil, ErrCampanhaInativa
	}

	envio, err := s.envios.GetForUser(ctx, campanhaID, servidorID)
	if err != nil {
		return nil, nil, err
	}

	campos, err := s.camposDaCampanha(ctx, campanha)
	if err != nil {
		return nil, nil, err
	}

	dados, extras := s.processor.Coletar(form, campos)
	validado, erros := s.processor.Validar(dados, extras, campos)
	if len(erros) > 0 {
		return nil, erros, nil
	}

	final, err := s.processor.Processar(ctx, envio, campanha, validado)
	if err != nil {
		return nil, nil, err
	}

	s.invalidarAtivas(ctx, servidorID)
	return final, nil, nil
}

// CriarCampanha valida a janela e cria em rascunho com grupos-alvo.
func (s *Service) CriarCampanha(ctx context.Context, c *Campanha, atorID uuid.UUID) (uuid.UUID, error) {
	if !c.Fim.After(c.Inicio) {
		return uuid.Nil, ErrDatas
	}

	id, err := s.campanhas.Create(ctx, c)
	if err != nil {
		return uuid.Nil, err
	}

	if len(c.GrupoIDs) > 0 {
		if err := s.campanhas.SetGrupos(ctx, id, c.GrupoIDs); err != nil {
			return uuid.Nil, err
		}
	}

	s.audit.Record(ctx, &atorID, "campanha_criada", "campanha", id, map[string]any{"titulo": c.Titulo})
	return id, nil
}

// AtualizarCampanha altera atributos e substitui os grupos-alvo.
func (s *Service) AtualizarCampanha(ctx context.Context, c *Campanha, atorID uuid.UUID) error {
	if !c.Fim.After(c.Inicio) {
		return ErrDatas
	}
	if err := s.campanhas.Update(ctx, c); err != nil {
		return err
	}
	if c.GrupoIDs != nil {
		if err := s.campanhas.SetGrupos(ctx, c.ID, c.GrupoIDs); err != nil {
			return err
		}
	}
	s.audit.Record(ctx, &atorID, "campanha_atualizada", "campanha", c.ID, nil)
	return nil
}

func (s *Service) GetCampanha(ctx context.Context, id uuid.UUID) (*Campanha, error) {
	return s.campanhas.GetByID(ctx, id)
}

func (s *Service) ListarCampanhas(ctx context.Context) ([]Campanha, error) {
	return s.campanhas.List(ctx)
}

// AtivarCampanha publica a campanha, semeia envios PENDENTE e dispara o
// convite quando habilitado. Convites são melhor esforço.
func (s *Service) AtivarCampanha(ctx context.Context, campanhaID, atorID uuid.UUID) (int, error) {
	criados, err := s.campanhas.Activate(ctx, campanhaID)
	if err != nil {
		return 0, err
	}

	s.audit.Record(ctx, &atorID, "campanha_ativada", "campanha", campanhaID, map[string]any{"envios_criados": criados})

	campanha, err := s.campanhas.GetByID(ctx, campanhaID)
	if err != nil {
		return criados, err
	}
	if campanha.EmailConvite {
		s.dispararConvites(ctx, campanha)
	}

	return criados, nil
}

func (s *Service) dispararConvites(ctx context.Context, campanha *Campanha) {
	pendentes, err := s.envios.PendentesDaCampanha(ctx, campanha.ID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("recadastro: convites não resolvidos")
		return
	}

	for _, servidorID := range pendentes {
		sv, err := s.servidores.GetByID(ctx, servidorID)
		if err != nil || sv.Email == nil {
			continue
		}
		msg := mailer.Mensagem{
			Destinatario: *sv.Email,
			Nome:         sv.Nome,
			Template:     mailer.TemplateConvite,
			Vars: map[string]any{
				"campanha": campanha.Titulo,
				"fim":      campanha.Fim.Format("02/01/2006"),
			},
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.logger.Warn().Err(err).Stringer("servidor", servidorID).Msg("recadastro: convite não enviado")
		}
	}
}

// EncerrarCampanha fecha manualmente uma campanha ativa.
func (s *Service) EncerrarCampanha(ctx context.Context, campanhaID, atorID uuid.UUID) error {
	if err := s.campanhas.Close(ctx, campanhaID); err != nil {
		return err
	}
	s.audit.Record(ctx, &atorID, "campanha_encerrada", "campanha", campanhaID, nil)
	return nil
}

func (s *Service) EstatisticasCampanha(ctx context.Context, campanhaID uuid.UUID) (*Estatisticas, error) {
	return s.envios.Statistics(ctx, campanhaID)
}

func (s *Service) ListarEnvios(ctx context.Context, campanhaID uuid.UUID, status *StatusEnvio) ([]Envio, error) {
	return s.envios.ListByCampanha(ctx, campanhaID, status)
}

func (s *Service) AprovarEnvio(ctx context.Context, envioID, revisorID uuid.UUID) error {
	if err := s.envios.Approve(ctx, envioID, revisorID); err != nil {
		return err
	}
	s.audit.Record(ctx, &revisorID, "envio_aprovado", "envio", envioID, nil)
	return nil
}

func (s *Service) RejeitarEnvio(ctx context.Context, envioID, revisorID uuid.UUID, observacoes string) error {
	if err := s.envios.Reject(ctx, envioID, revisorID, observacoes); err != nil {
		return err
	}
	s.audit.Record(ctx, &revisorID, "envio_rejeitado", "envio", envioID, map[string]any{"observacoes": observacoes})
	return nil
}

// DevolverEnvio reabre um envio rejeitado como rascunho.
func (s *Service) DevolverEnvio(ctx context.Context, envioID, revisorID uuid.UUID) error {
	if err := s.envios.ReturnToDraft(ctx, envioID, revisorID); err != nil {
		return err
	}
	s.audit.Record(ctx, &revisorID, "envio_devolvido", "envio", envioID, nil)
	return nil
}

func (s *Service) AprovarLote(ctx context.Context, ids []uuid.UUID, revisorID uuid.UUID) BulkResultado {
	resultado := s.envios.BulkApprove(ctx, ids, revisorID)
	s.auditLote(ctx, revisorID, "envios_aprovados_lote", resultado)
	return resultado
}

func (s *Service) DevolverLote(ctx context.Context, ids []uuid.UUID, revisorID uuid.UUID) BulkResultado {
	resultado := s.envios.BulkReturnToDraft(ctx, ids, revisorID)
	s.auditLote(ctx, revisorID, "envios_devolvidos_lote", resultado)
	return resultado
}

func (s *Service) auditLote(ctx context.Context, revisorID uuid.UUID, acao string, resultado BulkResultado) {
	for _, id := range resultado.Sucesso {
		s.audit.Record(ctx, &revisorID, acao, "envio", id, nil)
	}
}

// LinkComprovante garante o magic token do envio e o devolve.
func (s *Service) LinkComprovante(ctx context.Context, envioID uuid.UUID) (string, error) {
	return s.envios.EnsureMagicToken(ctx, envioID)
}

// Verificacao é a visão pública de conferência de um envio.
type Verificacao struct {
	Codigo    string      `json:"codigo"`
	Status    StatusEnvio `json:"status"`
	Nome      string      `json:"nome"`
	EnviadoEm *time.Time  `json:"enviado_em"`
}

// VerificarCodigo confere um código de autenticação e devolve o resumo
// público, sem expor o payload completo.
func (s *Service) VerificarCodigo(ctx context.Context, codigo string) (*Verificacao, error) {
	envio, err := s.envios.GetByAuthCode(ctx, codigo)
	if err != nil {
		return nil, err
	}

	nome := ""
	if envio.DadosPadrao != nil {
		nome = envio.DadosPadrao.Nome
	}

	return &Verificacao{
		Codigo:    codigo,
		Status:    envio.Status,
		Nome:      nome,
		EnviadoEm: envio.EnviadoEm,
	}, nil
}

// ComprovantePorToken devolve o envio completo via magic token.
func (s *Service) ComprovantePorToken(ctx context.Context, token string) (*Envio, error) {
	return s.envios.GetByMagicToken(ctx, token)
}
