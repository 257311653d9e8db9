package models

import "time"

// Movement is a single append-only history entry of a container.
type Movement struct {
	ID               string    `json:"id"`
	ContainerID      string    `json:"bombona_id"`
	PreviousStatus   Status    `json:"status_anterior"`
	NewStatus        Status    `json:"status_novo"`
	PreviousLocation string    `json:"localizacao_anterior"`
	NewLocation      string    `json:"localizacao_nova"`
	Custodian        string    `json:"responsavel"`
	Client           string    `json:"cliente,omitempty"`
	Notes            string    `json:"observacoes,omitempty"`
	OccurredAt       time.Time `json:"data_movimentacao"`
}
