package recadastro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gestaozabele/recadastro/internal/campo"
	"github.com/gestaozabele/recadastro/internal/grupo"
	"github.com/gestaozabele/recadastro/internal/servidor"
)

type stubCampanhaStore struct {
	campanha  *Campanha
	ativada   bool
	encerrada bool
	grupos    []uuid.UUID
}

func (s *stubCampanhaStore) Create(ctx context.Context, c *Campanha) (uuid.UUID, error) {
	c.ID = uuid.New()
	s.campanha = c
	return c.ID, nil
}

func (s *stubCampanhaStore) Update(ctx context.Context, c *Campanha) error {
	s.campanha = c
	return nil
}

func (s *stubCampanhaStore) GetByID(ctx context.Context, id uuid.UUID) (*Campanha, error) {
	if s.campanha == nil || s.campanha.ID != id {
		return nil, ErrCampanhaNaoEncontrada
	}
	return s.campanha, nil
}

func (s *stubCampanhaStore) List(ctx context.Context) ([]Campanha, error) {
	if s.campanha == nil {
		return nil, nil
	}
	return []Campanha{*s.campanha}, nil
}

func (s *stubCampanhaStore) SetGrupos(ctx context.Context, campanhaID uuid.UUID, grupoIDs []uuid.UUID) error {
	s.grupos = grupoIDs
	return nil
}

func (s *stubCampanhaStore) GetActiveForUser(ctx context.Context, servidorID uuid.UUID) ([]Campanha, error) {
	if s.campanha != nil && s.campanha.Status == CampanhaAtiva {
		return []Campanha{*s.campanha}, nil
	}
	return nil, nil
}

func (s *stubCampanhaStore) Activate(ctx context.Context, campanhaID uuid.UUID) (int, error) {
	if s.campanha == nil || s.campanha.Status != CampanhaRascunho {
		return 0, ErrCampanhaStatus
	}
	s.campanha.Status = CampanhaAtiva
	s.ativada = true
	return 3, nil
}

func (s *stubCampanhaStore) Close(ctx context.Context, campanhaID uuid.UUID) error {
	if s.campanha == nil || s.campanha.Status != CampanhaAtiva {
		return ErrCampanhaStatus
	}
	s.campanha.Status = CampanhaEncerrada
	s.encerrada = true
	return nil
}

// stubEnvioStore cobre EnvioStore e EnvioWriter com um único envio.
type stubEnvioStore struct {
	envio       *Envio
	emAndamento bool
	rascunhos   int
}

func (s *stubEnvioStore) GetByID(ctx context.Context, id uuid.UUID) (*Envio, error) {
	if s.envio == nil || s.envio.ID != id {
		return nil, ErrEnvioNaoEncontrado
	}
	return s.envio, nil
}

func (s *stubEnvioStore) GetForUser(ctx context.Context, campanhaID, servidorID uuid.UUID) (*Envio, error) {
	if s.envio == nil || s.envio.CampanhaID != campanhaID || s.envio.ServidorID != servidorID {
		return nil, ErrEnvioNaoEncontrado
	}
	return s.envio, nil
}

func (s *stubEnvioStore) GetByMagicToken(ctx context.Context, token string) (*Envio, error) {
	if s.envio == nil || s.envio.MagicToken == nil || *s.envio.MagicToken != token {
		return nil, ErrEnvioNaoEncontrado
	}
	return s.envio, nil
}

func (s *stubEnvioStore) GetByAuthCode(ctx context.Context, codigo string) (*Envio, error) {
	if s.envio == nil || s.envio.CodigoAutenticacao == nil || *s.envio.CodigoAutenticacao != codigo {
		return nil, ErrEnvioNaoEncontrado
	}
	return s.envio, nil
}

func (s *stubEnvioStore) ListByCampanha(ctx context.Context, campanhaID uuid.UUID, status *StatusEnvio) ([]Envio, error) {
	if s.envio == nil {
		return nil, nil
	}
	return []Envio{*s.envio}, nil
}

func (s *stubEnvioStore) MarkEmAndamento(ctx context.Context, id uuid.UUID) error {
	s.emAndamento = true
	s.envio.Status = EnvioEmAndamento
	return nil
}

func (s *stubEnvioStore) SaveDraft(ctx context.Context, id uuid.UUID, dados *DadosPadrao, extras map[uuid.UUID]ValorCampo) error {
	s.rascunhos++
	s.envio.DadosPadrao = dados
	s.envio.CamposExtras = extras
	return nil
}

func (s *stubEnvioStore) Finalize(ctx context.Context, id uuid.UUID, status StatusEnvio, dados *DadosPadrao, extras map[uuid.UUID]ValorCampo, codigo, token string, revisor *uuid.UUID) error {
	s.envio.Status = status
	s.envio.DadosPadrao = dados
	s.envio.CamposExtras = extras
	s.envio.CodigoAutenticacao = &codigo
	s.envio.MagicToken = &token
	s.envio.RevisadoPor = revisor
	return nil
}

func (s *stubEnvioStore) Approve(ctx context.Context, id, revisorID uuid.UUID) error {
	if s.envio.Status != EnvioEnviado {
		return ErrTransicao
	}
	s.envio.Status = EnvioAprovado
	return nil
}

func (s *stubEnvioStore) Reject(ctx context.Context, id, revisorID uuid.UUID, observacoes string) error {
	if s.envio.Status != EnvioEnviado {
		return ErrTransicao
	}
	s.envio.Status = EnvioRejeitado
	s.envio.Observacoes = &observacoes
	return nil
}

func (s *stubEnvioStore) ReturnToDraft(ctx context.Context, id, revisorID uuid.UUID) error {
	if s.envio.Status != EnvioRejeitado {
		return ErrTransicao
	}
	s.envio.Status = EnvioEmAndamento
	return nil
}

func (s *stubEnvioStore) BulkApprove(ctx context.Context, ids []uuid.UUID, revisorID uuid.UUID) BulkResultado {
	var resultado BulkResultado
	for _, id := range ids {
		if err := s.Approve(ctx, id, revisorID); err != nil {
			resultado.Falha = append(resultado.Falha, id)
			continue
		}
		resultado.Sucesso = append(resultado.Sucesso, id)
	}
	return resultado
}

func (s *stubEnvioStore) BulkReturnToDraft(ctx context.Context, ids []uuid.UUID, revisorID uuid.UUID) BulkResultado {
	var resultado BulkResultado
	for _, id := range ids {
		if err := s.ReturnToDraft(ctx, id, revisorID); err != nil {
			resultado.Falha = append(resultado.Falha, id)
			continue
		}
		resultado.Sucesso = append(resultado.Sucesso, id)
	}
	return resultado
}

func (s *stubEnvioStore) EnsureMagicToken(ctx context.Context, id uuid.UUID) (string, error) {
	if s.envio.MagicToken != nil {
		return *s.envio.MagicToken, nil
	}
	token := "token-" + id.String()
	s.envio.MagicToken = &token
	return token, nil
}

func (s *stubEnvioStore) Statistics(ctx context.Context, campanhaID uuid.UUID) (*Estatisticas, error) {
	return &Estatisticas{Total: 1, PorStatus: map[StatusEnvio]int{s.envio.Status: 1}}, nil
}

func (s *stubEnvioStore) PendentesDaCampanha(ctx context.Context, campanhaID uuid.UUID) ([]uuid.UUID, error) {
	if s.envio != nil && s.envio.Status == EnvioPendente {
		return []uuid.UUID{s.envio.ServidorID}, nil
	}
	return nil, nil
}

type stubCampoStore struct {
	campos []campo.Campo
}

func (s *stubCampoStore) ListForGrupos(ctx context.Context, grupoIDs []uuid.UUID) ([]campo.Campo, error) {
	return s.campos, nil
}

type stubGrupoStore struct{}

func (s *stubGrupoStore) AncestorChain(ctx context.Context, id uuid.UUID) ([]grupo.Grupo, error) {
	return []grupo.Grupo{{ID: id}}, nil
}

type stubServidorStore struct {
	servidores map[uuid.UUID]*servidor.Servidor
}

func (s *stubServidorStore) GetByID(ctx context.Context, id uuid.UUID) (*servidor.Servidor, error) {
	if sv, ok := s.servidores[id]; ok {
		return sv, nil
	}
	return nil, servidor.ErrNotFound
}

func novoServiceTeste(campanha *Campanha, envio *Envio) (*Service, *stubCampanhaStore, *stubEnvioStore, *stubAuditor) {
	campanhas := &stubCampanhaStore{campanha: campanha}
	envios := &stubEnvioStore{envio: envio}
	auditor := &stubAuditor{}
	correio := &stubMailer{}
	processor := NewProcessor(envios, &stubPerfilWriter{}, correio, auditor, &stubContador{}, zerolog.Nop())

	svc := NewService(campanhas, envios, &stubCampoStore{}, &stubGrupoStore{}, &stubServidorStore{},
		processor, correio, auditor, nil, zerolog.Nop())
	return svc, campanhas, envios, auditor
}

func campanhaAtiva() *Campanha {
	return &Campanha{
		ID:     uuid.New(),
		Titulo: "Recadastramento 2026",
		Status: CampanhaAtiva,
		Inicio: time.Now().Add(-24 * time.Hour),
		Fim:    time.Now().Add(30 * 24 * time.Hour),
	}
}

func TestFormularioAbertoSaiDePendente(t *testing.T) {
	campanha := campanhaAtiva()
	envio := &Envio{ID: uuid.New(), CampanhaID: campanha.ID, ServidorID: uuid.New(), Status: EnvioPendente}
	svc, _, envios, _ := novoServiceTeste(campanha, envio)

	_, aberto, _, err := svc.FormularioAberto(context.Background(), campanha.ID, envio.ServidorID)
	if err != nil {
		t.Fatalf("FormularioAberto: %v", err)
	}
	if !envios.emAndamento || aberto.Status != EnvioEmAndamento {
		t.Fatalf("abrir formulário deveria sair de PENDENTE, got %s", aberto.Status)
	}
}

func TestFormularioAbertoCampanhaInativa(t *testing.T) {
	campanha := campanhaAtiva()
	campanha.Status = CampanhaEncerrada
	envio := &Envio{ID: uuid.New(), CampanhaID: campanha.ID, ServidorID: uuid.New(), Status: EnvioPendente}
	svc, _, _, _ := novoServiceTeste(campanha, envio)

	_, _, _, err := svc.FormularioAberto(context.Background(), campanha.ID, envio.ServidorID)
	if !errors.Is(err, ErrCampanhaInativa) {
		t.Fatalf("esperava ErrCampanhaInativa, got %v", err)
	}
}

func TestEnviarDevolveErrosDeValidacao(t *testing.T) {
	campanha := campanhaAtiva()
	envio := &Envio{ID: uuid.New(), CampanhaID: campanha.ID, ServidorID: uuid.New(), Status: EnvioEmAndamento}
	svc, _, envios, _ := novoServiceTeste(campanha, envio)

	form := formularioValido()
	form["cpf"] = "11111111111"

	final, erros, err := svc.Enviar(context.Background(), campanha.ID, envio.ServidorID, form)
	if err != nil {
		t.Fatalf("Enviar: %v", err)
	}
	if final != nil || len(erros) == 0 {
		t.Fatalf("esperava erros de validação, got envio=%v erros=%v", final, erros)
	}
	if envios.envio.Status != EnvioEmAndamento {
		t.Fatalf("erros de validação não devem transicionar o envio, got %s", envios.envio.Status)
	}
}

func TestEnviarComAutoAprovacao(t *testing.T) {
	campanha := campanhaAtiva()
	campanha.AutoAprova = true
	envio := &Envio{ID: uuid.New(), CampanhaID: campanha.ID, ServidorID: uuid.New(), Status: EnvioEmAndamento}
	svc, _, _, auditor := novoServiceTeste(campanha, envio)

	final, erros, err := svc.Enviar(context.Background(), campanha.ID, envio.ServidorID, formularioValido())
	if err != nil {
		t.Fatalf("Enviar: %v", err)
	}
	if len(erros) > 0 {
		t.Fatalf("formulário válido rejeitado: %v", erros)
	}
	if final.Status != EnvioAprovado {
		t.Fatalf("auto-aprovação deveria terminar em APROVADO, got %s", final.Status)
	}
	if final.CodigoAutenticacao == nil || final.MagicToken == nil {
		t.Fatal("envio finalizado deveria carregar código e magic token")
	}
	if len(auditor.acoes) == 0 {
		t.Fatal("finalização deveria auditar")
	}
}

func TestCriarCampanhaDatasInvertidas(t *testing.T) {
	svc, _, _, _ := novoServiceTeste(nil, nil)

	_, err := svc.CriarCampanha(context.Background(), &Campanha{
		Titulo: "Campanha quebrada",
		Inicio: time.Now().Add(48 * time.Hour),
		Fim:    time.Now(),
	}, uuid.New())
	if !errors.Is(err, ErrDatas) {
		t.Fatalf("esperava ErrDatas, got %v", err)
	}
}

func TestAtivarCampanhaSemeiaEnvios(t *testing.T) {
	campanha := campanhaAtiva()
	campanha.Status = CampanhaRascunho
	svc, campanhas, _, auditor := novoServiceTeste(campanha, nil)

	criados, err := svc.AtivarCampanha(context.Background(), campanha.ID, uuid.New())
	if err != nil {
		t.Fatalf("AtivarCampanha: %v", err)
	}
	if criados != 3 || !campanhas.ativada {
		t.Fatalf("esperava 3 envios semeados, got %d", criados)
	}
	if campanhas.campanha.Status != CampanhaAtiva {
		t.Fatalf("campanha deveria estar ATIVA, got %s", campanhas.campanha.Status)
	}
	if len(auditor.acoes) == 0 || auditor.acoes[0] != "campanha_ativada" {
		t.Errorf("auditoria da ativação ausente: %v", auditor.acoes)
	}
}

func TestVerificarCodigoResumoPublico(t *testing.T) {
	campanha := campanhaAtiva()
	codigo := "RC2026-ABCDEF1234"
	enviadoEm := time.Now()
	envio := &Envio{
		ID:                 uuid.New(),
		CampanhaID:         campanha.ID,
		ServidorID:         uuid.New(),
		Status:             EnvioAprovado,
		CodigoAutenticacao: &codigo,
		DadosPadrao:        &DadosPadrao{Nome: "Maria José da Silva", CPF: "52998224725"},
		EnviadoEm:          &enviadoEm,
	}
	svc, _, _, _ := novoServiceTeste(campanha, envio)

	v, err := svc.VerificarCodigo(context.Background(), codigo)
	if err != nil {
		t.Fatalf("VerificarCodigo: %v", err)
	}
	if v.Nome != "Maria José da Silva" || v.Status != EnvioAprovado {
		t.Fatalf("resumo inesperado: %+v", v)
	}

	if _, err := svc.VerificarCodigo(context.Background(), "RC2026-0000000000"); !errors.Is(err, ErrEnvioNaoEncontrado) {
		t.Fatalf("código desconhecido deveria falhar, got %v", err)
	}
}

func TestDevolverEnvioRejeitado(t *testing.T) {
	campanha := campanhaAtiva()
	envio := &Envio{ID: uuid.New(), CampanhaID: campanha.ID, ServidorID: uuid.New(), Status: EnvioRejeitado}
	svc, _, envios, _ := novoServiceTeste(campanha, envio)

	if err := svc.DevolverEnvio(context.Background(), envio.ID, uuid.New()); err != nil {
		t.Fatalf("DevolverEnvio: %v", err)
	}
	if envios.envio.Status != EnvioEmAndamento {
		t.Fatalf("devolução deveria reabrir como EM_ANDAMENTO, got %s", envios.envio.Status)
	}

	// Envio aprovado é terminal.
	envios.envio.Status = EnvioAprovado
	if err := svc.DevolverEnvio(context.Background(), envio.ID, uuid.New()); !errors.Is(err, ErrTransicao) {
		t.Fatalf("esperava ErrTransicao, got %v", err)
	}
}
