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

	"github.com/nurpe/jobshare/internal/config"
	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/repository"
)

type ShareService struct {
	store     *repository.Store
	chains    *ChainBuilder
	matcher   *Matcher
	resolvers []UserResolver
	notifier  Notifier
	cfg       config.JobShareConfig
	log       zerolog.Logger
	now       func() time.Time
}

func NewShareService(
	store *repository.Store,
	chains *ChainBuilder,
	matcher *Matcher,
	notifier Notifier,
	cfg config.JobShareConfig,
	log zerolog.Logger,
	now func() time.Time,
) *ShareService {
	if now == nil {
		now = time.Now
	}
	return &ShareService{
		store:     store,
		chains:    chains,
		matcher:   matcher,
		resolvers: DefaultUserResolvers(),
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
		now:       now,
	}
}

type CreateShareRequestInput struct {
	JobID           uuid.UUID
	TargetCompanyID uuid.UUID
	TargetUserID    *uuid.UUID
	ProposedFee     float64
	ExpiresInHours  *int
}

func (s *ShareService) CreateShareRequest(
	ctx context.Context,
	principal model.Principal,
	input CreateShareRequestInput,
) (*model.ShareRequest, error) {
	if input.JobID == uuid.Nil {
		return nil, fmt.Errorf("%w: job_id is required", ErrInvalidInput)
	}
	if input.TargetCompanyID == uuid.Nil {
		return nil, fmt.Errorf("%w: target_company_id is required", ErrInvalidInput)
	}
	if input.TargetCompanyID == principal.CompanyID {
		return nil, fmt.Errorf("%w: cannot share a job with your own company", ErrInvalidInput)
	}
	if input.ProposedFee <= 0 {
		return nil, fmt.Errorf("%w: proposed_fee must be positive", ErrInvalidInput)
	}
	if input.ExpiresInHours != nil && *input.ExpiresInHours < 0 {
		return nil, fmt.Errorf("%w: expires_in_hours must not be negative", ErrInvalidInput)
	}

	op := newOperation(s.now().UTC())
	var created *model.ShareRequest
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		job, err := tx.Jobs.GetForUpdate(ctx, input.JobID)
		if err != nil {
			return notFound(err, "job")
		}
		if !s.chains.Holds(job, principal.CompanyID) {
			return fmt.Errorf("%w: only the current holder can share this job", ErrPermissionDenied)
		}
		if job.IsClosed || job.Status.Terminal() {
			return fmt.Errorf("%w: job is closed", ErrConflict)
		}

		source, err := tx.Companies.Get(ctx, principal.CompanyID)
		if err != nil {
			return notFound(err, "company")
		}
		target, err := tx.Companies.Get(ctx, input.TargetCompanyID)
		if err != nil {
			return notFound(err, "target company")
		}
		if !target.IsActive {
			return fmt.Errorf("%w: target company", ErrNotFound)
		}

		chain, err := s.chains.BuildChain(ctx, tx.Jobs, job)
		if err != nil {
			return err
		}
		if chainContains(chain, target.ID) {
			return fmt.Errorf("%w: target company is already part of this job's chain", ErrConflict)
		}

		var targetUser uuid.UUID
		if input.TargetUserID != nil {
			targetUser, err = explicitUser(target, *input.TargetUserID)
		} else {
			targetUser, err = ResolveResponsibleUser(target, s.resolvers)
		}
		if err != nil {
			return err
		}

		if existing, err := s.outstanding(ctx, tx, job.ID, target.ID, op); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("%w: a share request to this company is already pending", ErrConflict)
		}

		expiresIn := 0
		if input.ExpiresInHours != nil {
			expiresIn = *input.ExpiresInHours
		}
		req := s.newShareRequest(op, job.ID, source.ID, principal.UserID, target.ID, targetUser,
			input.ProposedFee, expiresIn, false)
		if err := tx.ShareRequests.Create(ctx, req); err != nil {
			return err
		}
		op.emit(createdEvent(req))
		created = req

		if _, entry := source.Partner(target.ID); entry != nil && !entry.RequiresAcceptance {
			if _, ok := entry.MatchZone(job.Zip); ok {
				child := op.fork()
				accepted := *req
				err := tx.Transaction(ctx, func(inner *repository.Store) error {
					return s.accept(ctx, inner, child, &accepted, accepted.ProposedFee,
						cascade{visited: companySet{}.with(chainCompanies(chain)...)})
				})
				if err != nil {
					s.log.Warn().Err(err).Str("share_request_id", req.ID.String()).Msg("immediate acceptance failed, request left pending")
					return nil
				}
				op.merge(child)
				created = &accepted
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	op.flush(ctx, s.notifier, s.store.Companies)
	return created, nil
}

type RespondInput struct {
	Accept        bool
	CounterFee    *float64
	DeclineReason string
}

// RespondToShareRequest resolves a pending request exactly once. The status
// check-and-set, the expiry comparison and the chain write share one
// transaction and one timestamp.
func (s *ShareService) RespondToShareRequest(
	ctx context.Context,
	principal model.Principal,
	requestID uuid.UUID,
	input RespondInput,
) (*model.ShareRequest, error) {
	if input.CounterFee != nil && *input.CounterFee <= 0 {
		return nil, fmt.Errorf("%w: counter_fee must be positive", ErrInvalidInput)
	}
	reason := strings.TrimSpace(input.DeclineReason)
	if utf8.RuneCountInString(reason) > s.cfg.MessageMaxLength {
		return nil, fmt.Errorf("%w: decline_reason exceeds %d characters", ErrInvalidInput, s.cfg.MessageMaxLength)
	}

	var (
		op       *operation
		resolved *model.ShareRequest
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		op = newOperation(s.now().UTC())

		req, err := tx.ShareRequests.GetForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, "share request")
		}
		if req.TargetCompanyID != principal.CompanyID {
			return ErrPermissionDenied
		}
		switch req.Status {
		case model.ShareRequestPending:
		case model.ShareRequestExpired:
			return ErrExpired
		default:
			return fmt.Errorf("%w: share request already %s", ErrConflict, req.Status)
		}
		if req.ExpiredAt(op.now) {
			return ErrExpired
		}

		if !input.Accept {
			var declineReason *string
			if reason != "" {
				declineReason = &reason
			}
			if err := tx.ShareRequests.Resolve(ctx, req.ID, model.ShareRequestDeclined, nil, declineReason, op.now); err != nil {
				return resolveErr(err)
			}
			req.Status = model.ShareRequestDeclined
			req.DeclineReason = declineReason
			req.RespondedAt = &op.now
			op.emit(Event{
				Type:            EventShareRequestDeclined,
				SubjectID:       req.ID,
				JobID:           req.JobID,
				SourceCompanyID: req.SourceCompanyID,
				TargetCompanyID: req.TargetCompanyID,
				AutoAssigned:    req.AutoAssigned,
			})
			resolved = req
			return nil
		}

		fee := req.ProposedFee
		if input.CounterFee != nil {
			fee = *input.CounterFee
		}
		if err := s.accept(ctx, tx, op, req, fee, cascade{visited: companySet{}}); err != nil {
			return err
		}
		resolved = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	op.flush(ctx, s.notifier, s.store.Companies)
	return resolved, nil
}

// accept is the single acceptance path shared by human responses, immediate
// acceptance and the auto-assignment cascade.
func (s *ShareService) accept(
	ctx context.Context,
	tx *repository.Store,
	op *operation,
	req *model.ShareRequest,
	fee float64,
	path cascade,
) error {
	if req.Status != model.ShareRequestPending {
		return fmt.Errorf("%w: share request already %s", ErrConflict, req.Status)
	}
	if req.ExpiredAt(op.now) {
		return ErrExpired
	}

	holder, err := tx.Jobs.GetForUpdate(ctx, req.JobID)
	if err != nil {
		return notFound(err, "job")
	}
	if !s.chains.Holds(holder, req.SourceCompanyID) {
		return fmt.Errorf("%w: job is no longer held by the requesting company", ErrConflict)
	}
	if holder.IsClosed || holder.Status.Terminal() {
		return fmt.Errorf("%w: job is closed", ErrConflict)
	}
	chain, err := s.chains.BuildChain(ctx, tx.Jobs, holder)
	if err != nil {
		return err
	}
	if chainContains(chain, req.TargetCompanyID) || path.visited.has(req.TargetCompanyID) {
		return fmt.Errorf("%w: target company is already part of this job's chain", ErrConflict)
	}

	if err := tx.ShareRequests.Resolve(ctx, req.ID, model.ShareRequestAccepted, &fee, nil, op.now); err != nil {
		return resolveErr(err)
	}
	req.Status = model.ShareRequestAccepted
	req.AcceptedFee = &fee
	req.RespondedAt = &op.now

	source, err := tx.Companies.Get(ctx, req.SourceCompanyID)
	if err != nil {
		return notFound(err, "source company")
	}
	targetUser := req.TargetUserID
	next, err := s.chains.Append(ctx, tx, holder, model.ChainLink{
		CompanyID:     req.TargetCompanyID,
		UserID:        &targetUser,
		InvoiceAmount: fee,
		SeesClientAs:  source.Name,
		AutoAssigned:  req.AutoAssigned,
	})
	if err != nil {
		return err
	}
	if err := ensurePartnership(ctx, tx, req.SourceCompanyID, req.TargetCompanyID, op.now); err != nil {
		return err
	}

	op.emit(Event{
		Type:            EventShareRequestAccepted,
		SubjectID:       req.ID,
		JobID:           req.JobID,
		SourceCompanyID: req.SourceCompanyID,
		TargetCompanyID: req.TargetCompanyID,
		AutoAssigned:    req.AutoAssigned,
	})
	s.log.Info().
		Str("share_request_id", req.ID.String()).
		Str("job_id", req.JobID.String()).
		Str("target_company_id", req.TargetCompanyID.String()).
		Bool("auto_assigned", req.AutoAssigned).
		Int("hop", path.hop).
		Msg("share request accepted")

	visited := path.visited.with(chainCompanies(chain)...)
	return s.autoAssign(ctx, tx, op, next, cascade{visited: visited, hop: path.hop}.next(req.TargetCompanyID))
}

// outstanding returns the live pending request for (jobID, targetID). A
// pending request already past its expiry is marked expired on the way.
func (s *ShareService) outstanding(ctx context.Context, tx *repository.Store, jobID, targetID uuid.UUID, op *operation) (*model.ShareRequest, error) {
	existing, err := tx.ShareRequests.FindPending(ctx, jobID, targetID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if existing.ExpiredAt(op.now) {
		if err := tx.ShareRequests.MarkExpired(ctx, existing.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return existing, nil
}

type ShareRequestDirection string

const (
	DirectionIncoming ShareRequestDirection = "incoming"
	DirectionOutgoing ShareRequestDirection = "outgoing"
)

func (s *ShareService) ListShareRequests(
	ctx context.Context,
	principal model.Principal,
	direction ShareRequestDirection,
) ([]model.ShareRequest, error) {
	var (
		reqs []model.ShareRequest
		err  error
	)
	switch direction {
	case DirectionIncoming, "":
		reqs, err = s.store.ShareRequests.ListByTarget(ctx, principal.CompanyID)
	case DirectionOutgoing:
		reqs, err = s.store.ShareRequests.ListBySource(ctx, principal.CompanyID)
	default:
		return nil, fmt.Errorf("%w: direction must be incoming or outgoing", ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	for i := range reqs {
		reqs[i].Status = reqs[i].EffectiveStatus(now)
	}
	return reqs, nil
}

// ListJobShareRequests returns the requests on one job document that the
// caller sent or received. Requests between other hops stay hidden.
func (s *ShareService) ListJobShareRequests(ctx context.Context, principal model.Principal, jobID uuid.UUID) ([]model.ShareRequest, error) {
	job, err := s.store.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, notFound(err, "job")
	}
	chain, err := s.chains.BuildChain(ctx, s.store.Jobs, job)
	if err != nil {
		return nil, err
	}
	if !chainContains(chain, principal.CompanyID) {
		return nil, ErrPermissionDenied
	}
	all, err := s.store.ShareRequests.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	reqs := make([]model.ShareRequest, 0, len(all))
	for _, req := range all {
		if req.SourceCompanyID != principal.CompanyID && req.TargetCompanyID != principal.CompanyID {
			continue
		}
		req.Status = req.EffectiveStatus(now)
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (s *ShareService) newShareRequest(
	op *operation,
	jobID, sourceCompanyID, sourceUserID, targetCompanyID, targetUserID uuid.UUID,
	fee float64,
	expiresInHours int,
	autoAssigned bool,
) *model.ShareRequest {
	var expiresAt *time.Time
	if expiresInHours > 0 {
		at := op.now.Add(time.Duration(expiresInHours) * time.Hour)
		expiresAt = &at
	}
	return &model.ShareRequest{
		ID:              uuid.New(),
		JobID:           jobID,
		SourceCompanyID: sourceCompanyID,
		SourceUserID:    sourceUserID,
		TargetCompanyID: targetCompanyID,
		TargetUserID:    targetUserID,
		ProposedFee:     fee,
		Status:          model.ShareRequestPending,
		ExpiresAt:       expiresAt,
		AutoAssigned:    autoAssigned,
		CreatedAt:       op.now,
	}
}

func (s *ShareService) defaultExpiry() int {
	return s.cfg.DefaultExpiryHours
}

func createdEvent(req *model.ShareRequest) Event {
	return Event{
		Type:            EventShareRequestCreated,
		SubjectID:       req.ID,
		JobID:           req.JobID,
		SourceCompanyID: req.SourceCompanyID,
		TargetCompanyID: req.TargetCompanyID,
		AutoAssigned:    req.AutoAssigned,
	}
}

func resolveErr(err error) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return fmt.Errorf("%w: share request already responded", ErrConflict)
	}
	return err
}
