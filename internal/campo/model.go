package campo

import (
	"time"

	"github.com/google/uuid"
)

// Tipo enumera os tipos de campo personalizável.
type Tipo string

const (
	TipoTexto             Tipo = "TEXTO"
	TipoTextoLongo        Tipo = "TEXTO_LONGO"
	TipoSelecao           Tipo = "SELECAO"
	TipoSelecaoDependente Tipo = "SELECAO_DEPENDENTE"
	TipoCheckbox          Tipo = "CHECKBOX"
	TipoNumero            Tipo = "NUMERO"
	TipoData              Tipo = "DATA"
	TipoJornada           Tipo = "JORNADA"
)

// Formato enumera regras de formato aplicáveis a campos de texto.
type Formato string

const (
	FormatoNenhum   Formato = ""
	FormatoCPF      Formato = "CPF"
	FormatoEmail    Formato = "EMAIL"
	FormatoTelefone Formato = "TELEFONE"
	FormatoRegex    Formato = "REGEX"
)

// Campo define um campo personalizado de um grupo. Grupos filhos herdam
// os campos definidos nos ancestrais.
type Campo struct {
	ID            uuid.UUID           `json:"id"`
	GrupoID       uuid.UUID           `json:"grupo_id"`
	Chave         string              `json:"chave"`
	Rotulo        string              `json:"rotulo"`
	Tipo          Tipo                `json:"tipo"`
	Opcoes        []string            `json:"opcoes,omitempty"`
	Dependencias  map[string][]string `json:"dependencias,omitempty"`
	Formato       Formato             `json:"formato,omitempty"`
	RegexPadrao   string              `json:"regex_padrao,omitempty"`
	RegexMensagem string              `json:"regex_mensagem,omitempty"`
	Obrigatorio   bool                `json:"obrigatorio"`
	Ativo         bool                `json:"ativo"`
	Ordem         int                 `json:"ordem"`
	CriadoEm      time.Time           `json:"criado_em"`
}

// ValidTipo informa se o tipo é conhecido.
func ValidTipo(t Tipo) bool {
	switch t {
	case TipoTexto, TipoTextoLongo, TipoSelecao, TipoSelecaoDependente,
		TipoCheckbox, TipoNumero, TipoData, TipoJornada:
		return true
	}
	return false
}
