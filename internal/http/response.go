package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/service"
)

type partnershipRequestResponse struct {
	ID                 uuid.UUID                      `json:"id"`
	RequesterCompanyID uuid.UUID                      `json:"requester_company_id"`
	TargetCompanyID    uuid.UUID                      `json:"target_company_id"`
	Message            string                         `json:"message"`
	Status             model.PartnershipRequestStatus `json:"status"`
	CreatedAt          time.Time                      `json:"created_at"`
	RespondedAt        *time.Time                     `json:"responded_at,omitempty"`
}

func toPartnershipRequestResponse(r model.PartnershipRequest) partnershipRequestResponse {
	return partnershipRequestResponse{
		ID:                 r.ID,
		RequesterCompanyID: r.RequesterCompanyID,
		TargetCompanyID:    r.TargetCompanyID,
		Message:            r.Message,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
		RespondedAt:        r.RespondedAt,
	}
}

type directoryEntryResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Zip  string    `json:"zip"`
}

type shareRequestResponse struct {
	ID              uuid.UUID                `json:"id"`
	JobID           uuid.UUID                `json:"job_id"`
	SourceCompanyID uuid.UUID                `json:"source_company_id"`
	TargetCompanyID uuid.UUID                `json:"target_company_id"`
	TargetUserID    uuid.UUID                `json:"target_user_id"`
	ProposedFee     float64                  `json:"proposed_fee"`
	AcceptedFee     *float64                 `json:"accepted_fee,omitempty"`
	Status          model.ShareRequestStatus `json:"status"`
	AutoAssigned    bool                     `json:"auto_assigned"`
	ExpiresAt       *time.Time               `json:"expires_at,omitempty"`
	DeclineReason   *string                  `json:"decline_reason,omitempty"`
	RespondedAt     *time.Time               `json:"responded_at,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

func toShareRequestResponse(r model.ShareRequest) shareRequestResponse {
	return shareRequestResponse{
		ID:              r.ID,
		JobID:           r.JobID,
		SourceCompanyID: r.SourceCompanyID,
		TargetCompanyID: r.TargetCompanyID,
		TargetUserID:    r.TargetUserID,
		ProposedFee:     r.ProposedFee,
		AcceptedFee:     r.AcceptedFee,
		Status:          r.Status,
		AutoAssigned:    r.AutoAssigned,
		ExpiresAt:       r.ExpiresAt,
		DeclineReason:   r.DeclineReason,
		RespondedAt:     r.RespondedAt,
		CreatedAt:       r.CreatedAt,
	}
}

// jobResponse omits the chain documents. The chain is read through the
// filtered view only.
type jobResponse struct {
	ID                uuid.UUID           `json:"id"`
	CompanyID         uuid.UUID           `json:"company_id"`
	JobNumber         string              `json:"job_number"`
	Zip               string              `json:"zip"`
	Status            model.JobStatus     `json:"status"`
	AssignedCompanyID uuid.UUID           `json:"assigned_company_id"`
	AssignedServerID  *uuid.UUID          `json:"assigned_server_id,omitempty"`
	IsClosed          bool                `json:"is_closed"`
	ServiceDate       *time.Time          `json:"service_date,omitempty"`
	AffidavitRefs     []string            `json:"affidavit_refs"`
	DeclineReason     *string             `json:"decline_reason,omitempty"`
	ChainEncoding     model.ChainEncoding `json:"chain_encoding,omitempty"`
	Version           int                 `json:"version"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func toJobResponse(j *model.Job) jobResponse {
	refs := []string(j.AffidavitRefs)
	if refs == nil {
		refs = []string{}
	}
	return jobResponse{
		ID:                j.ID,
		CompanyID:         j.CompanyID,
		JobNumber:         j.JobNumber,
		Zip:               j.Zip,
		Status:            j.Status,
		AssignedCompanyID: j.AssignedCompanyID,
		AssignedServerID:  j.AssignedServerID,
		IsClosed:          j.IsClosed,
		ServiceDate:       j.ServiceDate,
		AffidavitRefs:     refs,
		DeclineReason:     j.DeclineReason,
		ChainEncoding:     j.ChainEncoding,
		Version:           j.Version,
		UpdatedAt:         j.UpdatedAt,
	}
}

type propagationFailureResponse struct {
	JobID uuid.UUID `json:"job_id"`
	Error string    `json:"error"`
}

type propagationResponse struct {
	Updated []uuid.UUID                  `json:"updated"`
	Skipped []uuid.UUID                  `json:"skipped"`
	Failed  []propagationFailureResponse `json:"failed"`
}

func toPropagationResponse(r *service.PropagationResult) propagationResponse {
	out := propagationResponse{
		Updated: []uuid.UUID{},
		Skipped: []uuid.UUID{},
		Failed:  []propagationFailureResponse{},
	}
	if r == nil {
		return out
	}
	out.Updated = append(out.Updated, r.Updated...)
	out.Skipped = append(out.Skipped, r.Skipped...)
	for _, f := range r.Failed {
		out.Failed = append(out.Failed, propagationFailureResponse{JobID: f.JobID, Error: f.Error})
	}
	return out
}
