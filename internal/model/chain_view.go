package model

import (
	"time"

	"github.com/google/uuid"
)

// VisibleLink is a chain link inside a viewer's privacy window. It carries
// only what a neighbor may learn; SeesClientAs is blank on the upstream link
// because it names the company two levels above the viewer.
type VisibleLink struct {
	Level         int       `json:"level"`
	CompanyID     uuid.UUID `json:"company_id"`
	CompanyName   string    `json:"company_name"`
	SeesClientAs  string    `json:"sees_client_as,omitempty"`
	InvoiceAmount float64   `json:"invoice_amount"`
	AutoAssigned  bool      `json:"auto_assigned"`
}

// ChainView is everything a company may learn about a job's chain: its own
// link and its immediate neighbors.
type ChainView struct {
	JobID       uuid.UUID     `json:"job_id"`
	JobNumber   string        `json:"job_number"`
	Zip         string        `json:"zip"`
	Status      JobStatus     `json:"status"`
	ViewerLevel int           `json:"viewer_level"`
	Links       []VisibleLink `json:"links"`
	GeneratedAt time.Time     `json:"generated_at"`
}
