package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/repository"
)

type JobService struct {
	store      *repository.Store
	shares     *ShareService
	propagator *Propagator
	notifier   Notifier
	log        zerolog.Logger
	now        func() time.Time
}

func NewJobService(
	store *repository.Store,
	shares *ShareService,
	propagator *Propagator,
	notifier Notifier,
	log zerolog.Logger,
	now func() time.Time,
) *JobService {
	if now == nil {
		now = time.Now
	}
	return &JobService{
		store:      store,
		shares:     shares,
		propagator: propagator,
		notifier:   notifier,
		log:        log,
		now:        now,
	}
}

type CreateJobInput struct {
	JobNumber string
	Zip       string
}

// CreateJob stores a new job in the caller's namespace and runs
// auto-assignment for it.
func (s *JobService) CreateJob(ctx context.Context, principal model.Principal, input CreateJobInput) (*model.Job, error) {
	jobNumber := strings.TrimSpace(input.JobNumber)
	zip := strings.TrimSpace(input.Zip)
	if jobNumber == "" {
		return nil, fmt.Errorf("%w: job_number is required", ErrInvalidInput)
	}
	if zip == "" {
		return nil, fmt.Errorf("%w: zip is required", ErrInvalidInput)
	}

	op := newOperation(s.now().UTC())
	var jobID uuid.UUID
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Companies.Get(ctx, principal.CompanyID); err != nil {
			return notFound(err, "company")
		}
		server := principal.UserID
		job := &model.Job{
			CompanyID:         principal.CompanyID,
			JobNumber:         jobNumber,
			Zip:               zip,
			Status:            model.JobStatusOpen,
			AssignedCompanyID: principal.CompanyID,
			AssignedServerID:  &server,
			AffidavitRefs:     datatypes.JSONSlice[string]{},
		}
		if err := tx.Jobs.Create(ctx, job); err != nil {
			return err
		}
		jobID = job.ID
		return s.shares.autoAssign(ctx, tx, op, job, cascade{visited: companySet{}})
	})
	if err != nil {
		return nil, err
	}
	op.flush(ctx, s.notifier, s.store.Companies)
	return s.store.Jobs.Get(ctx, jobID)
}

// UpdateJobZip changes the zip of a job the caller holds and re-runs
// auto-assignment when the zip actually changed.
func (s *JobService) UpdateJobZip(ctx context.Context, principal model.Principal, jobID uuid.UUID, zip string) (*model.Job, error) {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		return nil, fmt.Errorf("%w: zip is required", ErrInvalidInput)
	}

	op := newOperation(s.now().UTC())
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		job, err := tx.Jobs.GetForUpdate(ctx, jobID)
		if err != nil {
			return notFound(err, "job")
		}
		if !s.shares.chains.Holds(job, principal.CompanyID) {
			return fmt.Errorf("%w: only the current holder can change the zip", ErrPermissionDenied)
		}
		if job.Zip == zip {
			return nil
		}
		job.Zip = zip
		if err := tx.Jobs.Update(ctx, job); err != nil {
			return versionErr(err)
		}
		return s.shares.autoAssign(ctx, tx, op, job, cascade{visited: companySet{}})
	})
	if err != nil {
		return nil, err
	}
	op.flush(ctx, s.notifier, s.store.Companies)
	return s.store.Jobs.Get(ctx, jobID)
}

type UpdateStatusInput struct {
	JobID         uuid.UUID
	Status        model.JobStatus
	DeclineReason string
	ServiceDate   *time.Time
	AffidavitRefs []string
}

// UpdateSharedJobStatus sets the status of one job document. A terminal
// status on the level-0 carbon copy then fans out to the descendants.
func (s *JobService) UpdateSharedJobStatus(
	ctx context.Context,
	principal model.Principal,
	input UpdateStatusInput,
) (*model.Job, *PropagationResult, error) {
	if !input.Status.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, input.Status)
	}
	reason := strings.TrimSpace(input.DeclineReason)
	if input.Status == model.JobStatusDeclined && reason == "" {
		return nil, nil, fmt.Errorf("%w: decline_reason is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(reason) > s.shares.cfg.MessageMaxLength {
		return nil, nil, fmt.Errorf("%w: decline_reason exceeds %d characters", ErrInvalidInput, s.shares.cfg.MessageMaxLength)
	}

	op := newOperation(s.now().UTC())
	var updated *model.Job
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		job, err := tx.Jobs.GetForUpdate(ctx, input.JobID)
		if err != nil {
			return notFound(err, "job")
		}
		if job.CompanyID != principal.CompanyID && job.AssignedCompanyID != principal.CompanyID {
			return ErrPermissionDenied
		}
		if job.Status.Terminal() {
			return fmt.Errorf("%w: job is already %s", ErrConflict, job.Status)
		}

		job.Status = input.Status
		job.IsClosed = input.Status.Terminal()
		if reason != "" {
			job.DeclineReason = &reason
		}
		if input.ServiceDate != nil {
			serviceDate := input.ServiceDate.UTC()
			job.ServiceDate = &serviceDate
		}
		if input.AffidavitRefs != nil {
			job.AffidavitRefs = datatypes.JSONSlice[string](input.AffidavitRefs)
		}
		if err := tx.Jobs.Update(ctx, job); err != nil {
			return versionErr(err)
		}
		op.emit(Event{
			Type:            EventJobStatusChanged,
			SubjectID:       job.ID,
			JobID:           job.ID,
			SourceCompanyID: principal.CompanyID,
			TargetCompanyID: job.CompanyID,
		})
		updated = job
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	op.flush(ctx, s.notifier, s.store.Companies)

	result := &PropagationResult{}
	if s.propagator != nil && s.propagator.Applies(updated) {
		result = s.propagator.Propagate(ctx, updated)
	}
	return updated, result, nil
}

func (s *JobService) GetJob(ctx context.Context, principal model.Principal, jobID uuid.UUID) (*model.Job, error) {
	job, err := s.store.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, notFound(err, "job")
	}
	if job.CompanyID != principal.CompanyID && job.AssignedCompanyID != principal.CompanyID {
		return nil, ErrPermissionDenied
	}
	return job, nil
}

func versionErr(err error) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return fmt.Errorf("%w: job was modified concurrently", ErrConflict)
	}
	return err
}
