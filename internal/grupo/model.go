package grupo

import (
	"time"

	"github.com/google/uuid"
)

// Grupo representa um grupo hierárquico de servidores (público-alvo).
// Grupos filhos herdam campanhas e campos definidos nos ancestrais.
type Grupo struct {
	ID       uuid.UUID  `json:"id"`
	Nome     string     `json:"nome"`
	Slug     string     `json:"slug"`
	ParentID *uuid.UUID `json:"parent_id"`
	Ativo    bool       `json:"ativo"`
	CriadoEm time.Time  `json:"criado_em"`
}
