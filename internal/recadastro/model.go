package recadastro

import (
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/recadastro/internal/campo"
)

// StatusCampanha enumera o ciclo de vida de uma campanha.
type StatusCampanha string

const (
	CampanhaRascunho  StatusCampanha = "RASCUNHO"
	CampanhaAtiva     StatusCampanha = "ATIVA"
	CampanhaExpirada  StatusCampanha = "EXPIRADA"
	CampanhaEncerrada StatusCampanha = "ENCERRADA"
)

// Campanha representa um ciclo de recadastramento com janela de datas
// e um conjunto de grupos-alvo.
type Campanha struct {
	ID               uuid.UUID      `json:"id"`
	Titulo           string         `json:"titulo"`
	Status           StatusCampanha `json:"status"`
	Inicio           time.Time      `json:"inicio"`
	Fim              time.Time      `json:"fim"`
	AutoAprova       bool           `json:"auto_aprova"`
	EmailConvite     bool           `json:"email_convite"`
	EmailLembrete    bool           `json:"email_lembrete"`
	EmailConfirmacao bool           `json:"email_confirmacao"`
	LembreteDias     int            `json:"lembrete_dias"`
	GrupoIDs         []uuid.UUID    `json:"grupo_ids,omitempty"`
	CriadoEm         time.Time      `json:"criado_em"`
}

// StatusEnvio enumera os estados do envio de um servidor.
type StatusEnvio string

const (
	EnvioPendente    StatusEnvio = "PENDENTE"
	EnvioEmAndamento StatusEnvio = "EM_ANDAMENTO"
	EnvioEnviado     StatusEnvio = "ENVIADO"
	EnvioAprovado    StatusEnvio = "APROVADO"
	EnvioRejeitado   StatusEnvio = "REJEITADO"
	EnvioExpirado    StatusEnvio = "EXPIRADO"
)

// transicoes define o fechamento da máquina de estados do envio.
// APROVADO e EXPIRADO são terminais; REJEITADO só reabre por devolução.
var transicoes = map[StatusEnvio][]StatusEnvio{
	EnvioPendente:    {EnvioEmAndamento, EnvioExpirado},
	EnvioEmAndamento: {EnvioEmAndamento, EnvioEnviado, EnvioAprovado, EnvioExpirado},
	EnvioEnviado:     {EnvioAprovado, EnvioRejeitado, EnvioExpirado},
	EnvioRejeitado:   {EnvioEmAndamento},
	EnvioAprovado:    {},
	EnvioExpirado:    {},
}

// PodeTransicionar informa se a transição de status é permitida.
func PodeTransicionar(de, para StatusEnvio) bool {
	for _, s := range transicoes[de] {
		if s == para {
			return true
		}
	}
	return false
}

// ValidStatusEnvio informa se o status pertence ao domínio conhecido.
func ValidStatusEnvio(s StatusEnvio) bool {
	_, ok := transicoes[s]
	return ok
}

// JornadaDia descreve o expediente de um dia da semana.
type JornadaDia struct {
	Entrada string `json:"entrada"`
	Saida   string `json:"saida"`
}

// Jornada mapeia dia da semana (seg..dom) para o expediente.
type Jornada map[string]JornadaDia

// SelecaoDependente carrega um par pai/filho de seleção encadeada.
type SelecaoDependente struct {
	Pai   string `json:"pai"`
	Filho string `json:"filho"`
}

// ValorCampo é a união etiquetada dos valores de campos personalizados.
// O discriminador Tipo fecha o conjunto de variantes.
type ValorCampo struct {
	Tipo       campo.Tipo         `json:"tipo"`
	Texto      string             `json:"texto,omitempty"`
	Numero     *float64           `json:"numero,omitempty"`
	Data       string             `json:"data,omitempty"`
	Marcado    bool               `json:"marcado,omitempty"`
	Selecao    string             `json:"selecao,omitempty"`
	Dependente *SelecaoDependente `json:"dependente,omitempty"`
	Jornada    Jornada            `json:"jornada,omitempty"`
}

// Vazio informa se o valor não carrega conteúdo para o seu tipo.
func (v ValorCampo) Vazio() bool {
	switch v.Tipo {
	case campo.TipoTexto, campo.TipoTextoLongo:
		return v.Texto == ""
	case campo.TipoNumero:
		return v.Numero == nil
	case campo.TipoData:
		return v.Data == ""
	case campo.TipoCheckbox:
		return !v.Marcado
	case campo.TipoSelecao:
		return v.Selecao == ""
	case campo.TipoSelecaoDependente:
		return v.Dependente == nil || v.Dependente.Filho == ""
	case campo.TipoJornada:
		return len(v.Jornada) == 0
	}
	return true
}

// AcumuloCargo agrupa os dados de acúmulo legal de cargos.
type AcumuloCargo struct {
	Possui  bool    `json:"possui"`
	Orgao   string  `json:"orgao,omitempty"`
	Cargo   string  `json:"cargo,omitempty"`
	Jornada Jornada `json:"jornada,omitempty"`
}

// DadosPadrao é o bloco fixo do formulário de recadastramento.
type DadosPadrao struct {
	Nome               string       `json:"nome"`
	Sexo               string       `json:"sexo"`
	EstadoCivil        string       `json:"estado_civil"`
	DataNascimento     string       `json:"data_nascimento"`
	CPF                string       `json:"cpf"`
	RG                 string       `json:"rg"`
	Logradouro         string       `json:"logradouro"`
	Numero             string       `json:"numero"`
	Complemento        string       `json:"complemento"`
	Bairro             string       `json:"bairro"`
	Cidade             string       `json:"cidade"`
	UF                 string       `json:"uf"`
	CEP                string       `json:"cep"`
	Telefone           string       `json:"telefone"`
	Celular            string       `json:"celular"`
	ContatoEmergencia  string       `json:"contato_emergencia"`
	TelefoneEmergencia string       `json:"telefone_emergencia"`
	EmailInstitucional string       `json:"email_institucional"`
	EmailPessoal       string       `json:"email_pessoal"`
	Divisao            string       `json:"divisao"`
	Setor              string       `json:"setor"`
	Jornada            Jornada      `json:"jornada"`
	Sindicato          string       `json:"sindicato"`
	Acumulo            AcumuloCargo `json:"acumulo"`
}

// Envio é o registro por servidor dentro de uma campanha.
// Unicidade de (campanha_id, servidor_id) é garantida pelo banco.
type Envio struct {
	ID                 uuid.UUID                `json:"id"`
	CampanhaID         uuid.UUID                `json:"campanha_id"`
	ServidorID         uuid.UUID                `json:"servidor_id"`
	Status             StatusEnvio              `json:"status"`
	DadosPadrao        *DadosPadrao             `json:"dados_padrao,omitempty"`
	CamposExtras       map[uuid.UUID]ValorCampo `json:"campos_extras,omitempty"`
	CodigoAutenticacao *string                  `json:"codigo_autenticacao,omitempty"`
	MagicToken         *string                  `json:"-"`
	EnviadoEm          *time.Time               `json:"enviado_em,omitempty"`
	RevisadoEm         *time.Time               `json:"revisado_em,omitempty"`
	RevisadoPor        *uuid.UUID               `json:"revisado_por,omitempty"`
	Observacoes        *string                  `json:"observacoes,omitempty"`
	CriadoEm           time.Time                `json:"criado_em"`
	AtualizadoEm       time.Time                `json:"atualizado_em"`
}

// Estatisticas agrega contagem por status de uma campanha.
type Estatisticas struct {
	PorStatus map[StatusEnvio]int `json:"por_status"`
	Total     int                 `json:"total"`
}

// BulkResultado torna falha parcial observável em operações em lote.
type BulkResultado struct {
	Sucesso []uuid.UUID `json:"sucesso"`
	Falha   []uuid.UUID `json:"falha"`
}
