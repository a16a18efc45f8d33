package servidor

import (
	"time"

	"github.com/google/uuid"
)

// Servidor representa membro do quadro sujeito ao recadastramento.
type Servidor struct {
	ID           uuid.UUID      `json:"id"`
	Nome         string         `json:"nome"`
	CPF          string         `json:"cpf"`
	Email        *string        `json:"email"`
	EmailPessoal *string        `json:"email_pessoal"`
	Matricula    string         `json:"matricula"`
	SenhaHash    *string        `json:"-"`
	Divisao      *string        `json:"divisao"`
	Setor        *string        `json:"setor"`
	Telefone     *string        `json:"telefone"`
	Celular      *string        `json:"celular"`
	CamposExtras map[string]any `json:"campos_extras"`
	Ativo        bool           `json:"ativo"`
	CriadoEm     time.Time      `json:"criado_em"`
}

// Perfil agrega os campos padrão espelhados após um envio aprovado/enviado.
type Perfil struct {
	Nome     string
	CPF      string
	Divisao  string
	Setor    string
	Telefone string
	Celular  string
	Email    string
}
