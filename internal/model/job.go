package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusOpen       JobStatus = "open"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusServed     JobStatus = "served"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusDeclined   JobStatus = "declined"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusServed || s == JobStatusCancelled
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusOpen, JobStatusInProgress, JobStatusServed, JobStatusCancelled, JobStatusDeclined:
		return true
	}
	return false
}

// ChainEncoding tells which physical layout holds the job's chain of custody.
type ChainEncoding string

const (
	ChainEncodingNone       ChainEncoding = ""
	ChainEncodingEmbedded   ChainEncoding = "embedded"
	ChainEncodingCarbonCopy ChainEncoding = "carbon_copy"
)

type Job struct {
	ID                uuid.UUID                           `gorm:"column:id;type:uuid;primaryKey"`
	CompanyID         uuid.UUID                           `gorm:"column:company_id;type:uuid;not null;index"`
	JobNumber         string                              `gorm:"column:job_number;not null"`
	Zip               string                              `gorm:"column:zip;not null"`
	Status            JobStatus                           `gorm:"column:status;not null"`
	AssignedCompanyID uuid.UUID                           `gorm:"column:assigned_company_id;type:uuid;not null;index"`
	AssignedServerID  *uuid.UUID                          `gorm:"column:assigned_server_id;type:uuid"`
	IsClosed          bool                                `gorm:"column:is_closed;not null;default:false"`
	ServiceDate       *time.Time                          `gorm:"column:service_date"`
	AffidavitRefs     datatypes.JSONSlice[string]         `gorm:"column:affidavit_refs;not null"`
	DeclineReason     *string                             `gorm:"column:decline_reason"`
	ChainEncoding     ChainEncoding                       `gorm:"column:chain_encoding;not null"`
	JobShareChain     datatypes.JSONType[JobShareChain]   `gorm:"column:job_share_chain;not null"`
	ShareChain        datatypes.JSONType[CarbonCopyChain] `gorm:"column:share_chain;not null"`
	Version           int                                 `gorm:"column:version;not null;default:1"`
	CreatedAt         time.Time                           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Job) TableName() string { return "jobs" }

// ChainLink is one hop in the chain of custody.
type ChainLink struct {
	Level         int        `json:"level"`
	CompanyID     uuid.UUID  `json:"company_id"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	InvoiceAmount float64    `json:"invoice_amount"`
	SeesClientAs  string     `json:"sees_client_as"`
	AutoAssigned  bool       `json:"auto_assigned"`
}

// JobShareChain is the embedded encoding: the whole chain on one job document.
type JobShareChain struct {
	Links                        []ChainLink `json:"links"`
	CurrentlyAssignedToCompanyID uuid.UUID   `json:"currently_assigned_to_company_id"`
	TotalLevels                  int         `json:"total_levels"`
}

// CarbonCopyChain is the per-document pointer record of the carbon copy
// encoding. Every hop is a separate job in the holder's namespace.
type CarbonCopyChain struct {
	ParentJobID     *uuid.UUID  `json:"parent_job_id,omitempty"`
	ChildJobID      *uuid.UUID  `json:"child_job_id,omitempty"`
	SharedJobNumber string      `json:"shared_job_number"`
	Level           int         `json:"level"`
	SyncEnabled     bool        `json:"sync_enabled"`
	AllJobIDs       []uuid.UUID `json:"all_job_ids"`
	UserID          *uuid.UUID  `json:"user_id,omitempty"`
	InvoiceAmount   float64     `json:"invoice_amount"`
	SeesClientAs    string      `json:"sees_client_as"`
	AutoAssigned    bool        `json:"auto_assigned"`
}

// Link renders this document's hop as a ChainLink.
func (c CarbonCopyChain) Link(companyID uuid.UUID) ChainLink {
	return ChainLink{
		Level:         c.Level,
		CompanyID:     companyID,
		UserID:        c.UserID,
		InvoiceAmount: c.InvoiceAmount,
		SeesClientAs:  c.SeesClientAs,
		AutoAssigned:  c.AutoAssigned,
	}
}
