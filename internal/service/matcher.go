package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/repository"
)

// Candidate is the partner and zone an auto-assignment would hand a job to.
type Candidate struct {
	PartnerID uuid.UUID
	Entry     model.PartnerEntry
	Zone      model.AutoAssignmentZone
}

type Matcher struct {
	maxDepth int
}

func NewMatcher(maxDepth int) *Matcher {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &Matcher{maxDepth: maxDepth}
}

func (m *Matcher) MaxDepth() int { return m.maxDepth }

// Match picks the winning zone among holder's active, auto-assigning
// partners for zip. Lowest priority wins, then the oldest partnership, then
// the partner id so that equal inputs always give the same answer.
func (m *Matcher) Match(holder *model.Company, zip string, exclude companySet) (Candidate, bool) {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		return Candidate{}, false
	}

	candidates := make([]Candidate, 0, len(holder.JobSharePartners))
	for _, entry := range holder.JobSharePartners {
		if entry.PartnerCompanyID == holder.ID || exclude.has(entry.PartnerCompanyID) {
			continue
		}
		zone, ok := entry.MatchZone(zip)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{PartnerID: entry.PartnerCompanyID, Entry: entry, Zone: zone})
	}
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	slices.SortFunc(candidates, func(a, b Candidate) int {
		if a.Zone.Priority != b.Zone.Priority {
			return a.Zone.Priority - b.Zone.Priority
		}
		if c := a.Entry.CreatedAt.Compare(b.Entry.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.PartnerID.String(), b.PartnerID.String())
	})
	return candidates[0], true
}

// cascade is the state threaded through one chain of automatic hand-offs.
type cascade struct {
	visited companySet
	hop     int
}

func (c cascade) next(companyID uuid.UUID) cascade {
	return cascade{visited: c.visited.with(companyID), hop: c.hop + 1}
}

// autoAssign runs the matcher for job's current holder and, on a match,
// originates the next hop. Failures of the optional hop are rolled back to
// a savepoint and logged; they never undo the hand-off that triggered them.
func (s *ShareService) autoAssign(ctx context.Context, tx *repository.Store, op *operation, job *model.Job, path cascade) error {
	if path.hop >= s.matcher.MaxDepth() {
		s.log.Warn().
			Str("job_id", job.ID.String()).
			Int("max_depth", s.matcher.MaxDepth()).
			Msg("auto-assignment cascade stopped at max depth")
		return nil
	}
	if job.IsClosed || job.Status.Terminal() {
		return nil
	}

	holder, err := tx.Companies.Get(ctx, job.AssignedCompanyID)
	if err != nil {
		return notFound(err, "holder company")
	}
	chain, err := s.chains.BuildChain(ctx, tx.Jobs, job)
	if err != nil {
		return err
	}
	exclude := path.visited.with(chainCompanies(chain)...)

	candidate, ok := s.matcher.Match(holder, job.Zip, exclude)
	if !ok {
		return nil
	}
	if outstanding, err := s.outstanding(ctx, tx, job.ID, candidate.PartnerID, op); err != nil {
		return err
	} else if outstanding != nil {
		return nil
	}

	child := op.fork()
	working := *job
	err = tx.Transaction(ctx, func(inner *repository.Store) error {
		return s.originate(ctx, inner, child, &working, holder, candidate, cascade{visited: exclude, hop: path.hop})
	})
	if err != nil {
		s.log.Warn().Err(err).
			Str("job_id", job.ID.String()).
			Str("partner_id", candidate.PartnerID.String()).
			Msg("auto-assignment skipped")
		return nil
	}
	op.merge(child)
	return nil
}

func (s *ShareService) originate(
	ctx context.Context,
	tx *repository.Store,
	op *operation,
	job *model.Job,
	holder *model.Company,
	candidate Candidate,
	path cascade,
) error {
	target, err := tx.Companies.Get(ctx, candidate.PartnerID)
	if err != nil {
		return notFound(err, "partner company")
	}
	if !target.IsActive {
		return fmt.Errorf("%w: partner company is inactive", ErrNotFound)
	}
	targetUser, err := ResolveResponsibleUser(target, s.resolvers)
	if err != nil {
		return err
	}
	sourceUser, _ := ResolveResponsibleUser(holder, s.resolvers)

	req := s.newShareRequest(op, job.ID, holder.ID, sourceUser, target.ID, targetUser,
		candidate.Zone.DefaultFee, s.defaultExpiry(), true)
	if err := tx.ShareRequests.Create(ctx, req); err != nil {
		return err
	}
	op.emit(createdEvent(req))

	if candidate.Entry.RequiresAcceptance {
		return nil
	}
	return s.accept(ctx, tx, op, req, req.ProposedFee, path)
}
