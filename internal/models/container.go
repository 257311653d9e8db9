package models

import "time"

// Container is a tracked reusable drum ("bombona").
type Container struct {
	ID                   string    `json:"id"`
	QRCode               string    `json:"codigo_qr"` // unique, immutable once issued
	IdentificationNumber string    `json:"numero_identificacao"`
	Status               Status    `json:"status"`
	Location             string    `json:"localizacao_atual"`
	Custodian            string    `json:"responsavel_atual"` // user email
	Client               string    `json:"cliente_atual,omitempty"`
	Capacity             float64   `json:"capacidade,omitempty"` // liters
	LastUpdate           time.Time `json:"data_ultima_atualizacao"`
	Notes                string    `json:"observacoes,omitempty"`
	CreatedAt            time.Time `json:"created_date"`
}

// ContainerPatch carries the mutable fields of a container update.
type ContainerPatch struct {
	Status     Status
	Location   string
	Custodian  string
	Client     string
	Notes      string
	LastUpdate time.Time
}

// Patch returns the mutable fields of c, used to restore a container.
func (c Container) Patch() ContainerPatch {
	return ContainerPatch{
		Status:     c.Status,
		Location:   c.Location,
		Custodian:  c.Custodian,
		Client:     c.Client,
		Notes:      c.Notes,
		LastUpdate: c.LastUpdate,
	}
}

// Apply copies the patch onto c.
func (c *Container) Apply(p ContainerPatch) {
	c.Status = p.Status
	c.Location = p.Location
	c.Custodian = p.Custodian
	c.Client = p.Client
	c.Notes = p.Notes
	c.LastUpdate = p.LastUpdate
}
