package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/jobshare/internal/config"
	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/repository"
)

// maxPartnerWriteAttempts bounds the match-and-replace retry loop on a
// company document that keeps changing underneath us.
const maxPartnerWriteAttempts = 5

type PartnershipService struct {
	store    *repository.Store
	notifier Notifier
	cfg      config.JobShareConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewPartnershipService(
	store *repository.Store,
	notifier Notifier,
	cfg config.JobShareConfig,
	log zerolog.Logger,
	now func() time.Time,
) *PartnershipService {
	if now == nil {
		now = time.Now
	}
	return &PartnershipService{store: store, notifier: notifier, cfg: cfg, log: log, now: now}
}

func (s *PartnershipService) RequestPartnership(
	ctx context.Context,
	principal model.Principal,
	targetCompanyID uuid.UUID,
	message string,
) (*model.PartnershipRequest, error) {
	message = strings.TrimSpace(message)
	if targetCompanyID == uuid.Nil {
		return nil, fmt.Errorf("%w: target_company_id is required", ErrInvalidInput)
	}
	if targetCompanyID == principal.CompanyID {
		return nil, fmt.Errorf("%w: a company cannot partner with itself", ErrInvalidInput)
	}
	if utf8.RuneCountInString(message) > s.cfg.MessageMaxLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, s.cfg.MessageMaxLength)
	}

	op := newOperation(s.now().UTC())
	var created *model.PartnershipRequest
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		requester, err := tx.Companies.Get(ctx, principal.CompanyID)
		if err != nil {
			return notFound(err, "company")
		}
		target, err := tx.Companies.Get(ctx, targetCompanyID)
		if err != nil {
			return notFound(err, "target company")
		}
		if !target.IsActive {
			return fmt.Errorf("%w: target company", ErrNotFound)
		}

		if _, entry := requester.Partner(target.ID); entry != nil && entry.IsActive() {
			return fmt.Errorf("%w: companies are already partners", ErrConflict)
		}
		if _, err := tx.PartnershipRequests.FindPendingBetween(ctx, requester.ID, target.ID); err == nil {
			return fmt.Errorf("%w: a partnership request is already pending", ErrConflict)
		} else if !repository.IsNotFound(err) {
			return err
		}

		req := &model.PartnershipRequest{
			RequesterCompanyID: requester.ID,
			RequesterUserID:    principal.UserID,
			TargetCompanyID:    target.ID,
			Message:            message,
			Status:             model.PartnershipRequestPending,
			CreatedAt:          op.now,
		}
		if err := tx.PartnershipRequests.Create(ctx, req); err != nil {
			return err
		}
		created = req
		op.emit(Event{
			Type:            EventPartnershipRequested,
			SubjectID:       req.ID,
			SourceCompanyID: requester.ID,
			TargetCompanyID: target.ID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	op.flush(ctx, s.notifier, s.store.Companies)
	return created, nil
}

func (s *PartnershipService) RespondToPartnershipRequest(
	ctx context.Context,
	principal model.Principal,
	requestID uuid.UUID,
	accept bool,
) error {
	if !principal.IsAdmin() {
		return ErrPermissionDenied
	}

	op := newOperation(s.now().UTC())
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		req, err := tx.PartnershipRequests.GetForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, "partnership request")
		}
		if req.TargetCompanyID != principal.CompanyID {
			return ErrPermissionDenied
		}
		if req.Status != model.PartnershipRequestPending {
			return fmt.Errorf("%w: partnership request already %s", ErrConflict, req.Status)
		}

		status := model.PartnershipRequestDeclined
		eventType := EventPartnershipDeclined
		if accept {
			status = model.PartnershipRequestAccepted
			eventType = EventPartnershipAccepted
		}
		if err := tx.PartnershipRequests.Resolve(ctx, req.ID, status, principal.UserID, op.now); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return fmt.Errorf("%w: partnership request already responded", ErrConflict)
			}
			return err
		}
		if accept {
			if err := ensurePartnership(ctx, tx, req.RequesterCompanyID, req.TargetCompanyID, op.now); err != nil {
				return err
			}
		}
		op.emit(Event{
			Type:            eventType,
			SubjectID:       req.ID,
			SourceCompanyID: req.RequesterCompanyID,
			TargetCompanyID: req.TargetCompanyID,
		})
		return nil
	})
	if err != nil {
		return err
	}
	op.flush(ctx, s.notifier, s.store.Companies)
	return nil
}

type PartnerSettingsInput struct {
	AutoAssignmentEnabled bool
	Zones                 []model.AutoAssignmentZone
	RequiresAcceptance    bool
	NotifyOnShare         bool
	NotifyOnStatusChange  bool
}

// UpdatePartnerSettings replaces the caller's entry for partnerID, leaving
// every other element of the partner array as stored.
func (s *PartnershipService) UpdatePartnerSettings(
	ctx context.Context,
	principal model.Principal,
	partnerID uuid.UUID,
	input PartnerSettingsInput,
) (*model.PartnerEntry, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	zones, err := normalizeZones(input.AutoAssignmentEnabled, input.Zones)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	entry, err := mutatePartnerEntry(ctx, s.store.Companies, principal.CompanyID, partnerID,
		func(current *model.PartnerEntry) (model.PartnerEntry, error) {
			if current == nil || !current.IsActive() {
				return model.PartnerEntry{}, fmt.Errorf("%w: partnership", ErrNotFound)
			}
			next := *current
			next.AutoAssignmentEnabled = input.AutoAssignmentEnabled
			next.Zones = zones
			next.RequiresAcceptance = input.RequiresAcceptance
			next.NotifyOnShare = input.NotifyOnShare
			next.NotifyOnStatusChange = input.NotifyOnStatusChange
			next.UpdatedAt = now
			return next, nil
		})
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("company_id", principal.CompanyID.String()).
		Str("partner_id", partnerID.String()).
		Bool("auto_assignment", entry.AutoAssignmentEnabled).
		Int("zones", len(entry.Zones)).
		Msg("partner settings updated")
	return &entry, nil
}

func (s *PartnershipService) ListPartners(ctx context.Context, principal model.Principal) ([]model.PartnerEntry, error) {
	company, err := s.store.Companies.Get(ctx, principal.CompanyID)
	if err != nil {
		return nil, notFound(err, "company")
	}
	return append([]model.PartnerEntry{}, company.JobSharePartners...), nil
}

func (s *PartnershipService) ListPendingRequests(ctx context.Context, principal model.Principal) ([]model.PartnershipRequest, error) {
	return s.store.PartnershipRequests.ListPendingForTarget(ctx, principal.CompanyID)
}

// SearchDirectory proxies the read-only directory lookup.
func (s *PartnershipService) SearchDirectory(ctx context.Context, zip string) ([]model.Company, error) {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		return nil, fmt.Errorf("%w: zip is required", ErrInvalidInput)
	}
	return s.store.Companies.SearchDirectory(ctx, zip)
}

// ensurePartnership creates or re-activates the entries on both sides.
func ensurePartnership(ctx context.Context, tx *repository.Store, a, b uuid.UUID, now time.Time) error {
	for _, pair := range [][2]uuid.UUID{{a, b}, {b, a}} {
		_, err := mutatePartnerEntry(ctx, tx.Companies, pair[0], pair[1],
			func(current *model.PartnerEntry) (model.PartnerEntry, error) {
				if current == nil {
					return model.PartnerEntry{
						PartnerCompanyID:     pair[1],
						Status:               model.PartnershipStatusActive,
						RequiresAcceptance:   true,
						NotifyOnShare:        true,
						NotifyOnStatusChange: true,
						Zones:                []model.AutoAssignmentZone{},
						CreatedAt:            now,
						UpdatedAt:            now,
					}, nil
				}
				next := *current
				if next.Status != model.PartnershipStatusActive {
					next.Status = model.PartnershipStatusActive
					next.UpdatedAt = now
				}
				return next, nil
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// mutatePartnerEntry reads ownerID's document, computes the replacement for
// the partnerID element once, and writes the array back with that single
// element swapped. A lost version race re-reads the document and retries as
// long as the element still equals the snapshot the change was computed
// from, so a concurrent edit of a different element is preserved and a
// concurrent edit of the same element surfaces as ErrConflict.
func mutatePartnerEntry(
	ctx context.Context,
	companies *repository.CompanyRepository,
	ownerID, partnerID uuid.UUID,
	change func(current *model.PartnerEntry) (model.PartnerEntry, error),
) (model.PartnerEntry, error) {
	var (
		snapshot *model.PartnerEntry
		next     model.PartnerEntry
	)
	for attempt := 0; attempt < maxPartnerWriteAttempts; attempt++ {
		company, err := companies.Get(ctx, ownerID)
		if err != nil {
			return model.PartnerEntry{}, notFound(err, "company")
		}
		idx, current := company.Partner(partnerID)

		if attempt == 0 {
			if current != nil {
				copied := *current
				snapshot = &copied
			}
			next, err = change(current)
			if err != nil {
				return model.PartnerEntry{}, err
			}
			if current != nil && current.Equal(next) {
				return next, nil
			}
		} else if !sameEntry(snapshot, current) {
			return model.PartnerEntry{}, fmt.Errorf("%w: partner entry changed concurrently", ErrConflict)
		}

		partners := slices.Clone([]model.PartnerEntry(company.JobSharePartners))
		if idx >= 0 {
			partners[idx] = next
		} else {
			partners = append(partners, next)
		}

		err = companies.ReplacePartners(ctx, ownerID, company.Version, partners)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return model.PartnerEntry{}, err
		}
		return next, nil
	}
	return model.PartnerEntry{}, fmt.Errorf("%w: partner entry is being modified", ErrConflict)
}

func sameEntry(a, b *model.PartnerEntry) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func normalizeZones(enabled bool, zones []model.AutoAssignmentZone) ([]model.AutoAssignmentZone, error) {
	if !enabled {
		return []model.AutoAssignmentZone{}, nil
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("%w: auto-assignment requires at least one zone", ErrInvalidInput)
	}

	result := make([]model.AutoAssignmentZone, 0, len(zones))
	anyEnabled := false
	for i, zone := range zones {
		zips := normalizeZips(zone.ZipCodes)
		if len(zips) == 0 {
			return nil, fmt.Errorf("%w: zone %d has no zip codes", ErrInvalidInput, i+1)
		}
		if zone.DefaultFee <= 0 {
			return nil, fmt.Errorf("%w: zone %d default_fee must be positive", ErrInvalidInput, i+1)
		}
		if zone.Priority < 0 {
			return nil, fmt.Errorf("%w: zone %d priority must not be negative", ErrInvalidInput, i+1)
		}
		anyEnabled = anyEnabled || zone.Enabled
		result = append(result, model.AutoAssignmentZone{
			ZipCodes:   zips,
			DefaultFee: zone.DefaultFee,
			Priority:   zone.Priority,
			Enabled:    zone.Enabled,
		})
	}
	if !anyEnabled {
		return nil, fmt.Errorf("%w: auto-assignment requires an enabled zone", ErrInvalidInput)
	}
	return result, nil
}

func normalizeZips(raw []string) []string {
	result := make([]string, 0, len(raw))
	for _, zip := range raw {
		zip = strings.TrimSpace(zip)
		if zip == "" || slices.Contains(result, zip) {
			continue
		}
		result = append(result, zip)
	}
	return result
}

func notFound(err error, what string) error {
	if repository.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
