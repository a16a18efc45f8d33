package recadastro

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gestaozabele/recadastro/internal/auth"
	"github.com/gestaozabele/recadastro/internal/campo"
	"github.com/gestaozabele/recadastro/internal/mailer"
	"github.com/gestaozabele/recadastro/internal/servidor"
	"github.com/gestaozabele/recadastro/internal/util"
)

// Formulario é o mapa plano chave/valor recebido do cliente. Todos os
// valores são tratados como não confiáveis até a sanitização.
type Formulario map[string]string

// Erros mapeia caminho do campo para mensagem legível. Mapa vazio = válido.
type Erros map[string]string

// EnvioValidado é produzido exclusivamente por Validar e é o único tipo
// aceito por Processar, tornando o contrato "validar antes de processar"
// verificável em compilação.
type EnvioValidado struct {
	dados  *DadosPadrao
	extras map[uuid.UUID]ValorCampo
}

// Dados expõe o bloco padrão validado.
func (v *EnvioValidado) Dados() *DadosPadrao { return v.dados }

// prefixoCampo precede chaves de campos personalizados no formulário.
const prefixoCampo = "campo_"

var (
	horarioRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	controlRe = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// camposObrigatorios é o conjunto fixo de campos padrão sempre exigidos.
var camposObrigatorios = []string{
	"nome", "sexo", "estado_civil", "data_nascimento",
	"divisao", "setor", "celular", "contato_emergencia", "telefone_emergencia",
}

// EnvioWriter é o recorte do repositório de envios usado pelo processor.
type EnvioWriter interface {
	Finalize(ctx context.Context, id uuid.UUID, status StatusEnvio, dados *DadosPadrao, extras map[uuid.UUID]ValorCampo, codigo, token string, revisor *uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Envio, error)
}

// PerfilWriter é o recorte do cadastro de servidores usado pelo processor.
type PerfilWriter interface {
	MirrorPerfil(ctx context.Context, id uuid.UUID, p servidor.Perfil) error
	MergeCamposExtras(ctx context.Context, id uuid.UUID, valores map[string]any) error
}

// Processor transforma dados brutos do formulário em envio estruturado,
// valida e conduz a transição terminal com seus efeitos colaterais.
type Processor struct {
	envios     EnvioWriter
	servidores PerfilWriter
	mailer     mailer.Mailer
	audit      Auditor
	metrics    Contador
	logger     zerolog.Logger
}

// Auditor registra trilha de auditoria em melhor esforço.
type Auditor interface {
	Record(ctx context.Context, atorID *uuid.UUID, acao, entidade string, entidadeID uuid.UUID, metadata map[string]any)
}

// Contador expõe os incrementos de métricas usados pelo pipeline.
type Contador interface {
	EnvioProcessado(resultado string)
}

func NewProcessor(envios EnvioWriter, servidores PerfilWriter, m mailer.Mailer, a Auditor, c Contador, logger zerolog.Logger) *Processor {
	return &Processor{
		envios:     envios,
		servidores: servidores,
		mailer:     m,
		audit:      a,
		metrics:    c,
		logger:     logger,
	}
}

// sanitizeText remove espaços nas bordas e caracteres de controle.
func sanitizeText(value string) string {
	return strings.TrimSpace(controlRe.ReplaceAllString(value, ""))
}

// Coletar lê a lista fechada de campos padrão e todos os campos
// personalizados definidos para a campanha, sanitizando por tipo.
// JSON malformado degrada para estrutura vazia em vez de falhar.
func (p *Processor) Coletar(form Formulario, campos []campo.Campo) (*DadosPadrao, map[uuid.UUID]ValorCampo) {
	get := func(key string) string { return sanitizeText(form[key]) }

	dados := &DadosPadrao{
		Nome:               get("nome"),
		Sexo:               get("sexo"),
		EstadoCivil:        get("estado_civil"),
		DataNascimento:     get("data_nascimento"),
		CPF:                util.NormalizeCPF(form["cpf"]),
		RG:                 get("rg"),
		Logradouro:         get("logradouro"),
		Numero:             get("numero"),
		Complemento:        get("complemento"),
		Bairro:             get("bairro"),
		Cidade:             get("cidade"),
		UF:                 strings.ToUpper(get("uf")),
		CEP:                get("cep"),
		Telefone:           get("telefone"),
		Celular:            get("celular"),
		ContatoEmergencia:  get("contato_emergencia"),
		TelefoneEmergencia: get("telefone_emergencia"),
		EmailInstitucional: strings.ToLower(get("email_institucional")),
		EmailPessoal:       strings.ToLower(get("email_pessoal")),
		Divisao:            get("divisao"),
		Setor:              get("setor"),
		Jornada:            decodeJornada(form["jornada"]),
		Sindicato:          get("sindicato"),
	}

	dados.Acumulo = AcumuloCargo{
		Possui:  form["acumulo_possui"] == "true" || form["acumulo_possui"] == "1",
		Orgao:   get("acumulo_orgao"),
		Cargo:   get("acumulo_cargo"),
		Jornada: decodeJornada(form["acumulo_jornada"]),
	}

	extras := make(map[uuid.UUID]ValorCampo, len(campos))
	for _, c := range campos {
		raw, ok := form[prefixoCampo+c.ID.String()]
		if !ok {
			continue
		}
		extras[c.ID] = coletaValor(c, raw)
	}

	return dados, extras
}

func coletaValor(c campo.Campo, raw string) ValorCampo {
	valor := ValorCampo{Tipo: c.Tipo}

	switch c.Tipo {
	case campo.TipoTexto, campo.TipoTextoLongo:
		valor.Texto = sanitizeText(raw)
	case campo.TipoNumero:
		// Numérico ou vazio; lixo degrada para vazio.
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
				valor.Numero = &n
			}
		}
	case campo.TipoData:
		trimmed := strings.TrimSpace(raw)
		if _, err := time.Parse("2006-01-02", trimmed); err == nil {
			valor.Data = trimmed
		}
	case campo.TipoCheckbox:
		valor.Marcado = raw == "true" || raw == "1" || raw == "on"
	case campo.TipoSelecao:
		valor.Selecao = sanitizeText(raw)
	case campo.TipoSelecaoDependente:
		var dep SelecaoDependente
		if err := json.Unmarshal([]byte(raw), &dep); err == nil {
			dep.Pai = sanitizeText(dep.Pai)
			dep.Filho = sanitizeText(dep.Filho)
			if dep.Pai != "" || dep.Filho != "" {
				valor.Dependente = &dep
			}
		}
	case campo.TipoJornada:
		valor.Jornada = decodeJornada(raw)
	}

	return valor
}

// decodeJornada decodifica e valida estruturalmente a jornada; qualquer
// malformação resulta em jornada vazia.
func decodeJornada(raw string) Jornada {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var bruta map[string]JornadaDia
	if err := json.Unmarshal([]byte(raw), &bruta); err != nil {
		return nil
	}

	jornada := make(Jornada, len(bruta))
	for dia, horario := range bruta {
		dia = strings.ToLower(strings.TrimSpace(dia))
		if !DiaJornadaValido(dia) {
			continue
		}
		if !horarioRe.MatchString(horario.Entrada) || !horarioRe.MatchString(horario.Saida) {
			continue
		}
		jornada[dia] = horario
	}
	if len(jornada) == 0 {
		return nil
	}
	return jornada
}

// Validar aplica as regras do bloco padrão e dos campos personalizados.
// Devolve EnvioValidado apenas quando o mapa de erros é vazio.
func (p *Processor) Validar(dados *DadosPadrao, extras map[uuid.UUID]ValorCampo, campos []campo.Campo) (*EnvioValidado, Erros) {
	erros := make(Erros)

	for _, chave := range camposObrigatorios {
		if valorPadrao(dados, chave) == "" {
			erros[chave] = "campo obrigatório"
		}
	}

	if dados.CPF == "" {
		erros["cpf"] = "CPF obrigatório"
	} else if !util.ValidateCPF(dados.CPF) {
		erros["cpf"] = "CPF inválido"
	}

	if dados.DataNascimento != "" {
		if _, err := time.Parse("2006-01-02", dados.DataNascimento); err != nil {
			erros["data_nascimento"] = "data de nascimento inválida"
		}
	}

	if dados.Sexo != "" && !OpcaoValida(OpcoesSexo, dados.Sexo) {
		erros["sexo"] = "opção inválida"
	}
	if dados.EstadoCivil != "" && !OpcaoValida(OpcoesEstadoCivil, dados.EstadoCivil) {
		erros["estado_civil"] = "opção inválida"
	}
	if dados.Sindicato != "" && !OpcaoValida(OpcoesSindicato, dados.Sindicato) {
		erros["sindicato"] = "opção inválida"
	}

	// Telefones são opcionais, mas quando presentes o formato é exigido.
	for chave, valor := range map[string]string{
		"telefone":            dados.Telefone,
		"celular":             dados.Celular,
		"telefone_emergencia": dados.TelefoneEmergencia,
	} {
		if valor == "" {
			continue
		}
		if err := util.ValidateTelefone(valor); err != nil {
			erros[chave] = err.Error()
		}
	}

	if dados.EmailPessoal != "" {
		if err := util.ValidateEmail(dados.EmailPessoal); err != nil {
			erros["email_pessoal"] = err.Error()
		}
	}

	if len(dados.Jornada) == 0 {
		erros["jornada"] = "jornada de trabalho obrigatória"
	}

	if dados.Divisao != "" {
		if SetoresDaDivisao(dados.Divisao) == nil {
			erros["divisao"] = "divisão desconhecida"
		} else if dados.Setor != "" && !SetorPertence(dados.Divisao, dados.Setor) {
			erros["setor"] = fmt.Sprintf("setor %q não pertence à divisão %q", dados.Setor, dados.Divisao)
		}
	}

	if dados.Acumulo.Possui {
		if dados.Acumulo.Orgao == "" {
			erros["acumulo_orgao"] = "órgão do acúmulo obrigatório"
		}
		if dados.Acumulo.Cargo == "" {
			erros["acumulo_cargo"] = "cargo do acúmulo obrigatório"
		}
	}

	for _, c := range campos {
		p.validarCampo(c, extras, erros)
	}

	if len(erros) > 0 {
		return nil, erros
	}
	return &EnvioValidado{dados: dados, extras: extras}, nil
}

func (p *Processor) validarCampo(c campo.Campo, extras map[uuid.UUID]ValorCampo, erros Erros) {
	caminho := prefixoCampo + c.ID.String()
	valor, ok := extras[c.ID]

	if c.Obrigatorio && (!ok || valor.Vazio()) {
		erros[caminho] = fmt.Sprintf("%s é obrigatório", c.Rotulo)
		return
	}
	if !ok || valor.Vazio() {
		return
	}

	switch c.Tipo {
	case campo.TipoSelecao:
		if len(c.Opcoes) > 0 && !OpcaoValida(c.Opcoes, valor.Selecao) {
			erros[caminho] = fmt.Sprintf("opção inválida para %s", c.Rotulo)
		}
	case campo.TipoSelecaoDependente:
		filhos, temPai := c.Dependencias[valor.Dependente.Pai]
		if !temPai || !OpcaoValida(filhos, valor.Dependente.Filho) {
			erros[caminho] = fmt.Sprintf("combinação inválida para %s", c.Rotulo)
		}
	case campo.TipoTexto, campo.TipoTextoLongo:
		p.validarFormato(c, valor.Texto, caminho, erros)
	}
}

func (p *Processor) validarFormato(c campo.Campo, texto, caminho string, erros Erros) {
	switch c.Formato {
	case campo.FormatoCPF:
		if !util.ValidateCPF(texto) {
			erros[caminho] = fmt.Sprintf("%s: CPF inválido", c.Rotulo)
		}
	case campo.FormatoEmail:
		if err := util.ValidateEmail(texto); err != nil {
			erros[caminho] = fmt.Sprintf("%s: %s", c.Rotulo, err.Error())
		}
	case campo.FormatoTelefone:
		if err := util.ValidateTelefone(texto); err != nil {
			erros[caminho] = fmt.Sprintf("%s: %s", c.Rotulo, err.Error())
		}
	case campo.FormatoRegex:
		re, err := regexp.Compile(c.RegexPadrao)
		if err != nil {
			// Padrão inválido configurado pela administração: degrada
			// para "sem validação" em vez de derrubar a requisição.
			p.logger.Warn().Str("campo", c.Chave).Err(err).Msg("recadastro: regex inválida ignorada")
			return
		}
		if !re.MatchString(texto) {
			msg := c.RegexMensagem
			if msg == "" {
				msg = "valor não confere com o formato esperado"
			}
			erros[caminho] = fmt.Sprintf("%s: %s", c.Rotulo, msg)
		}
	}
}

func valorPadrao(dados *DadosPadrao, chave string) string {
	switch chave {
	case "nome":
		return dados.Nome
	case "sexo":
		return dados.Sexo
	case "estado_civil":
		return dados.EstadoCivil
	case "data_nascimento":
		return dados.DataNascimento
	case "divisao":
		return dados.Divisao
	case "setor":
		return dados.Setor
	case "celular":
		return dados.Celular
	case "contato_emergencia":
		return dados.ContatoEmergencia
	case "telefone_emergencia":
		return dados.TelefoneEmergencia
	}
	return ""
}

// Processar conduz a transição terminal do envio validado. Efeitos em
// ordem fixa: persistência, espelho no cadastro, fusão dos campos extras,
// notificação e auditoria. Falha de notificação ou auditoria não desfaz
// a persistência já realizada.
func (p *Processor) Processar(ctx context.Context, envio *Envio, campanha *Campanha, v *EnvioValidado) (*Envio, error) {
	now := util.Now()

	status := EnvioEnviado
	var revisor *uuid.UUID
	if campanha.AutoAprova {
		status = EnvioAprovado
		servidorID := envio.ServidorID
		revisor = &servidorID
	}

	codigo, err := auth.GenerateAuthCode(now)
	if err != nil {
		return nil, err
	}
	token, err := auth.GenerateMagicToken()
	if err != nil {
		return nil, err
	}

	if err := p.envios.Finalize(ctx, envio.ID, status, v.dados, v.extras, codigo, token, revisor); err != nil {
		p.metrics.EnvioProcessado("erro")
		return nil, err
	}

	if err := p.servidores.MirrorPerfil(ctx, envio.ServidorID, servidor.Perfil{
		Nome:     v.dados.Nome,
		CPF:      v.dados.CPF,
		Divisao:  v.dados.Divisao,
		Setor:    v.dados.Setor,
		Telefone: v.dados.Telefone,
		Celular:  v.dados.Celular,
		Email:    v.dados.EmailPessoal,
	}); err != nil {
		p.logger.Error().Err(err).Stringer("servidor", envio.ServidorID).Msg("recadastro: espelho de perfil falhou")
	}

	if len(v.extras) > 0 {
		merge := make(map[string]any, len(v.extras))
		for id, valor := range v.extras {
			merge[id.String()] = valor
		}
		if err := p.servidores.MergeCamposExtras(ctx, envio.ServidorID, merge); err != nil {
			p.logger.Error().Err(err).Stringer("servidor", envio.ServidorID).Msg("recadastro: fusão de campos extras falhou")
		}
	}

	if campanha.EmailConfirmacao {
		destino := v.dados.EmailPessoal
		if destino == "" {
			destino = v.dados.EmailInstitucional
		}
		if destino != "" {
			msg := mailer.Mensagem{
				Destinatario: destino,
				Nome:         v.dados.Nome,
				Template:     mailer.TemplateConfirmacao,
				Vars: map[string]any{
					"campanha": campanha.Titulo,
					"codigo":   codigo,
					"status":   string(status),
				},
			}
			if err := p.mailer.Send(ctx, msg); err != nil {
				p.logger.Warn().Err(err).Msg("recadastro: confirmação não enviada")
			}
		}
	}

	atorID := envio.ServidorID
	p.audit.Record(ctx, &atorID, "envio_finalizado", "envio", envio.ID, map[string]any{
		"campanha": campanha.ID.String(),
		"status":   string(status),
	})

	p.metrics.EnvioProcessado(strings.ToLower(string(status)))

	return p.envios.GetByID(ctx, envio.ID)
}
