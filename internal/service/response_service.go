package service

import (
	"time"

	"bombona_tracker/internal/models"
	"bombona_tracker/internal/repository"
)

// ContainerQuery filters container listings. Empty fields match everything.
type ContainerQuery struct {
	Search    string // case-insensitive substring of identification number or QR code
	Status    models.Status
	Location  string  // location key: dirty_area, clean_area, truck, client
	Custodian *string // exact; pointer to "" selects unassigned containers
	OrderBy   repository.Ordering
	Limit     int
}

type CreateContainerInput struct {
	QRCode               string
	IdentificationNumber string
	Status               models.Status
	Location             string
	Custodian            string
	Client               string
	Capacity             float64
	Notes                string
}

// UpdateInput is a status update made from a scan.
type UpdateInput struct {
	Status   models.Status
	Location string
	Client   string // written as sent, empty clears it
	Notes    string
}

// StatusCount is one slice of the dashboard status chart.
type StatusCount struct {
	models.StatusMeta
	Count int `json:"count"`
}

type Summary struct {
	Location    string             `json:"location"`
	Total       int                `json:"total"`
	ByStatus    []StatusCount      `json:"by_status"`
	Mine        []models.Container `json:"mine"`
	Alerts      []models.Container `json:"alerts"`
	Recent      []models.Movement  `json:"recent"`
	GeneratedAt time.Time          `json:"generated_at"`
}
