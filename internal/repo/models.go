package repo

import (
	"time"

	"github.com/google/uuid"
)

// Usuario representa colaborador da equipe de RH no backoffice.
type Usuario struct {
	ID        uuid.UUID
	Nome      string
	Email     string
	SenhaHash string
	Papel     string
	Ativo     bool
	CriadoEm  time.Time
}

// TokenRefresh modela tabela de refresh tokens.
type TokenRefresh struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
	Revogado  bool
}

// InsertRefreshTokenParams agrupa argumentos de inserção.
type InsertRefreshTokenParams struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
}
