package recadastro

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gestaozabele/recadastro/internal/campo"
	"github.com/gestaozabele/recadastro/internal/mailer"
	"github.com/gestaozabele/recadastro/internal/servidor"
)

type stubEnvioWriter struct {
	finalizado bool
	status     StatusEnvio
	codigo     string
	token      string
	revisor    *uuid.UUID
	envio      *Envio
}

func (s *stubEnvioWriter) Finalize(ctx context.Context, id uuid.UUID, status StatusEnvio, dados *DadosPadrao, extras map[uuid.UUID]ValorCampo, codigo, token string, revisor *uuid.UUID) error {
	s.finalizado = true
	s.status = status
	s.codigo = codigo
	s.token = token
	s.revisor = revisor
	if s.envio != nil {
		s.envio.Status = status
		s.envio.DadosPadrao = dados
		s.envio.CamposExtras = extras
	}
	return nil
}

func (s *stubEnvioWriter) GetByID(ctx context.Context, id uuid.UUID) (*Envio, error) {
	return s.envio, nil
}

type stubPerfilWriter struct {
	perfil      *servidor.Perfil
	mergeExtras map[string]any
}

func (s *stubPerfilWriter) MirrorPerfil(ctx context.Context, id uuid.UUID, p servidor.Perfil) error {
	s.perfil = &p
	return nil
}

func (s *stubPerfilWriter) MergeCamposExtras(ctx context.Context, id uuid.UUID, valores map[string]any) error {
	s.mergeExtras = valores
	return nil
}

type stubMailer struct {
	enviadas []mailer.Mensagem
}

func (s *stubMailer) Send(ctx context.Context, msg mailer.Mensagem) error {
	s.enviadas = append(s.enviadas, msg)
	return nil
}

type stubAuditor struct {
	acoes []string
}

func (s *stubAuditor) Record(ctx context.Context, atorID *uuid.UUID, acao, entidade string, entidadeID uuid.UUID, metadata map[string]any) {
	s.acoes = append(s.acoes, acao)
}

type stubContador struct {
	resultados []string
}

func (s *stubContador) EnvioProcessado(resultado string) {
	s.resultados = append(s.resultados, resultado)
}

func novoProcessorTeste() (*Processor, *stubEnvioWriter, *stubPerfilWriter, *stubMailer, *stubAuditor, *stubContador) {
	envios := &stubEnvioWriter{}
	perfis := &stubPerfilWriter{}
	correio := &stubMailer{}
	auditor := &stubAuditor{}
	contador := &stubContador{}
	p := NewProcessor(envios, perfis, correio, auditor, contador, zerolog.Nop())
	return p, envios, perfis, correio, auditor, contador
}

func formularioValido() Formulario {
	return Formulario{
		"nome":                "Maria José da Silva",
		"sexo":                "FEMININO",
		"estado_civil":        "CASADO(A)",
		"data_nascimento":     "1985-03-12",
		"cpf":                 "529.982.247-25",
		"celular":             "(83) 99999-1234",
		"contato_emergencia":  "João da Silva",
		"telefone_emergencia": "(83) 98888-4321",
		"divisao":             "DRE - Administração",
		"setor":               "Almoxarifado",
		"jornada":             `{"seg":{"entrada":"08:00","saida":"14:00"},"ter":{"entrada":"08:00","saida":"14:00"}}`,
		"email_pessoal":       "Maria@Example.com",
		"sindicato":           "SINTEM",
	}
}

func TestValidarFormularioCompleto(t *testing.T) {
	p, _, _, _, _, _ := novoProcessorTeste()

	dados, extras := p.Coletar(formularioValido(), nil)
	validado, erros := p.Validar(dados, extras, nil)
	if len(erros) > 0 {
		t.Fatalf("esperava formulário válido, erros: %v", erros)
	}
	if validado == nil {
		t.Fatal("validado nil sem erros")
	}
	if dados.EmailPessoal != "maria@example.com" {
		t.Errorf("email não normalizado: %q", dados.EmailPessoal)
	}
	if dados.CPF != "52998224725" {
		t.Errorf("cpf não normalizado: %q", dados.CPF)
	}
}

func TestValidarObrigatoriosAusentes(t *testing.T) {
	p, _, _, _, _, _ := novoProcessorTeste()

	dados, extras := p.Coletar(Formulario{}, nil)
	validado, erros := p.Validar(dados, extras, nil)
	if validado != nil {
		t.Fatal("formulário vazio não deveria validar")
	}

	for _, chave := range []string{"nome", "sexo", "divisao", "setor", "celular", "cpf", "jornada"} {
		if _, ok := erros[chave]; !ok {
			t.Errorf("esperava erro para %q, erros: %v", chave, erros)
		}
	}
}

func TestValidarSetorDeOutraDivisao(t *testing.T) {
	p, _, _, _, _, _ := novoProcessorTeste()

	form := formularioValido()
	form["divisao"] = "DRE - Gabinete"
	form["setor"] = "Almoxarifado"

	dados, extras := p.Coletar(form, nil)
	_, erros := p.Validar(dados, extras, nil)
	if _, ok := erros["setor"]; !ok {
		t.Fatalf("esperava erro de setor, erros: %v", erros)
	}
}

func TestValidarCPFInvalido(t *testing.T) {
	p, _, _, _, _, _ := novoProcessorTeste()

	form := formularioValido()
	form["cpf"] = "529.982.247-26"

	dados, extras := p.Coletar(form, nil)
	_, erros := p.Validar(dados, extras, nil)
	if erros["cpf"] != "CPF inválido" {
		t.Fatalf("esperava CPF inválido, erros: %v", erros)
	}
}

func TestColetarJornadaMalformada(t *testing.T) {
	p, _, _, _, _, _ := novoProcessorTeste()

	form := formularioValido()
	form["jornada"] = `{"seg":{"entrada":"25:00","saida":"14:00"}}`

	dados, extras := p.Coletar(form, nil)
	if len(dados.Jornada) != 0 {
		t.Fatalf("horário inválido deveria degradar para jornada vazia: %v", dados.Jornada)
	}

	_, erros := p.Validar(dados, extras, nil)
	if _, ok := erros["jornada"]; !ok {
		t.Fatalf("esperava erro de jornada, erros: %v", erros)
	}
}

func TestValidarCamposPersonalizados(t *testing.T) {
	p, _, _, _, _, _ := novoProcessorTeste()

	obrigatorio := campo.Campo{ID: uuid.New(), Chave: "titulacao", Rotulo: "Titulação", Tipo: campo.TipoTexto, Obrigatorio: true}
	selecao := campo.Campo{ID: uuid.New(), Chave: "turno", Rotulo: "Turno", Tipo: campo.TipoSelecao, Opcoes: []string{"MANHA", "TARDE"}}
	regexQuebrada := campo.Campo{ID: uuid.New(), Chave: "codigo", Rotulo: "Código", Tipo: campo.TipoTexto, Formato: campo.FormatoRegex, RegexPadrao: "(["}
	campos := []campo.Campo{obrigatorio, selecao, regexQuebrada}

	form := formularioValido()
	form[prefixoCampo+selecao.ID.String()] = "NOITE"
	form[prefixoCampo+regexQuebrada.ID.String()] = "qualquer coisa"

	dados, extras := p.Coletar(form, campos)
	_, erros := p.Validar(dados, extras, campos)

	if _, ok := erros[prefixoCampo+obrigatorio.ID.String()]; !ok {
		t.Errorf("campo obrigatório ausente deveria acusar erro: %v", erros)
	}
	if _, ok := erros[prefixoCampo+selecao.ID.String()]; !ok {
		t.Errorf("opção fora da lista deveria acusar erro: %v", erros)
	}
	// Regex inválida configurada degrada para sem validação.
	if _, ok := erros[prefixoCampo+regexQuebrada.ID.String()]; ok {
		t.Errorf("regex quebrada não deveria acusar erro: %v", erros)
	}
}

func TestValidarSelecaoDependente(t *testing.T) {
	p, _, _, _, _, _ := novoProcessorTeste()

	dependente := campo.Campo{
		ID:     uuid.New(),
		Chave:  "escola",
		Rotulo: "Escola",
		Tipo:   campo.TipoSelecaoDependente,
		Dependencias: map[string][]string{
			"Zona Urbana": {"Escola Centro", "Escola Bela Vista"},
			"Zona Rural":  {"Escola Sítio Novo"},
		},
	}
	campos := []campo.Campo{dependente}

	form := formularioValido()
	form[prefixoCampo+dependente.ID.String()] = `{"pai":"Zona Urbana","filho":"Escola Sítio Novo"}`

	dados, extras := p.Coletar(form, campos)
	_, erros := p.Validar(dados, extras, campos)
	if _, ok := erros[prefixoCampo+dependente.ID.String()]; !ok {
		t.Fatalf("combinação pai/filho inválida deveria acusar erro: %v", erros)
	}

	form[prefixoCampo+dependente.ID.String()] = `{"pai":"Zona Rural","filho":"Escola Sítio Novo"}`
	dados, extras = p.Coletar(form, campos)
	_, erros = p.Validar(dados, extras, campos)
	if len(erros) > 0 {
		t.Fatalf("combinação válida rejeitada: %v", erros)
	}
}

func TestValidarAcumuloIncompleto(t *testing.T) {
	p, _, _, _, _, _ := novoProcessorTeste()

	form := formularioValido()
	form["acumulo_possui"] = "true"

	dados, extras := p.Coletar(form, nil)
	_, erros := p.Validar(dados, extras, nil)
	if _, ok := erros["acumulo_orgao"]; !ok {
		t.Errorf("esperava erro de órgão do acúmulo: %v", erros)
	}
	if _, ok := erros["acumulo_cargo"]; !ok {
		t.Errorf("esperava erro de cargo do acúmulo: %v", erros)
	}
}

func TestProcessarAutoAprova(t *testing.T) {
	p, envios, perfis, correio, auditor, contador := novoProcessorTeste()

	servidorID := uuid.New()
	envio := &Envio{ID: uuid.New(), CampanhaID: uuid.New(), ServidorID: servidorID, Status: EnvioEmAndamento}
	envios.envio = envio
	campanha := &Campanha{ID: envio.CampanhaID, Titulo: "Recadastramento 2026", Status: CampanhaAtiva, AutoAprova: true, EmailConfirmacao: true}

	dados, extras := p.Coletar(formularioValido(), nil)
	validado, erros := p.Validar(dados, extras, nil)
	if len(erros) > 0 {
		t.Fatalf("formulário deveria validar: %v", erros)
	}

	final, err := p.Processar(context.Background(), envio, campanha, validado)
	if err != nil {
		t.Fatalf("Processar: %v", err)
	}

	if !envios.finalizado || envios.status != EnvioAprovado {
		t.Fatalf("esperava finalização APROVADO, got %v/%v", envios.finalizado, envios.status)
	}
	if envios.revisor == nil || *envios.revisor != servidorID {
		t.Errorf("auto-aprovação deveria registrar o próprio servidor como revisor")
	}
	if envios.codigo == "" || envios.token == "" {
		t.Error("código e token deveriam ser gerados")
	}
	if perfis.perfil == nil || perfis.perfil.Nome != "Maria José da Silva" {
		t.Errorf("perfil não espelhado: %+v", perfis.perfil)
	}
	if len(correio.enviadas) != 1 || correio.enviadas[0].Template != mailer.TemplateConfirmacao {
		t.Errorf("esperava confirmação por e-mail, got %+v", correio.enviadas)
	}
	if len(auditor.acoes) != 1 || auditor.acoes[0] != "envio_finalizado" {
		t.Errorf("auditoria ausente: %v", auditor.acoes)
	}
	if len(contador.resultados) != 1 || contador.resultados[0] != "aprovado" {
		t.Errorf("métrica errada: %v", contador.resultados)
	}
	if final.Status != EnvioAprovado {
		t.Errorf("envio devolvido com status %s", final.Status)
	}
}

func TestProcessarRevisaoManual(t *testing.T) {
	p, envios, _, correio, _, contador := novoProcessorTeste()

	envio := &Envio{ID: uuid.New(), CampanhaID: uuid.New(), ServidorID: uuid.New(), Status: EnvioEmAndamento}
	envios.envio = envio
	campanha := &Campanha{ID: envio.CampanhaID, Titulo: "Recadastramento 2026", Status: CampanhaAtiva}

	dados, extras := p.Coletar(formularioValido(), nil)
	validado, erros := p.Validar(dados, extras, nil)
	if len(erros) > 0 {
		t.Fatalf("formulário deveria validar: %v", erros)
	}

	if _, err := p.Processar(context.Background(), envio, campanha, validado); err != nil {
		t.Fatalf("Processar: %v", err)
	}

	if envios.status != EnvioEnviado {
		t.Fatalf("esperava ENVIADO, got %s", envios.status)
	}
	if envios.revisor != nil {
		t.Error("revisão manual não deveria registrar revisor")
	}
	if len(correio.enviadas) != 0 {
		t.Errorf("confirmação desligada não deveria enviar e-mail: %+v", correio.enviadas)
	}
	if len(contador.resultados) != 1 || contador.resultados[0] != "enviado" {
		t.Errorf("métrica errada: %v", contador.resultados)
	}
}
