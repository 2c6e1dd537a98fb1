package service

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/repository"
)

const propagationConcurrency = 4

type PropagationFailure struct {
	JobID uuid.UUID
	Error string
}

type PropagationResult struct {
	Updated []uuid.UUID
	Skipped []uuid.UUID
	Failed  []PropagationFailure
}

// Propagator copies a terminal status from the level-0 carbon copy job down
// to its descendants. Every descendant is written in its own transaction.
type Propagator struct {
	store    *repository.Store
	attempts int
	backoff  time.Duration
	log      zerolog.Logger
	syncJob  func(ctx context.Context, jobID uuid.UUID, source *model.Job) (bool, error)
}

func NewPropagator(store *repository.Store, attempts int, backoff time.Duration, log zerolog.Logger) *Propagator {
	if attempts <= 0 {
		attempts = 1
	}
	p := &Propagator{store: store, attempts: attempts, backoff: backoff, log: log}
	p.syncJob = p.syncOne
	return p
}

// Applies reports whether a status change on job fans out.
func (p *Propagator) Applies(job *model.Job) bool {
	if job.ChainEncoding != model.ChainEncodingCarbonCopy || !job.Status.Terminal() {
		return false
	}
	chain := job.ShareChain.Data()
	return chain.SyncEnabled && chain.Level == 0 && chain.ParentJobID == nil
}

// Propagate never returns an error: a failing descendant is retried and then
// reported in the result without affecting its siblings.
func (p *Propagator) Propagate(ctx context.Context, source *model.Job) *PropagationResult {
	result := &PropagationResult{}
	if !p.Applies(source) {
		return result
	}

	chain := source.ShareChain.Data()
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(propagationConcurrency)

	for _, id := range chain.AllJobIDs {
		if id == source.ID {
			continue
		}
		g.Go(func() error {
			skipped, err := p.syncWithRetry(ctx, id, source)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed = append(result.Failed, PropagationFailure{JobID: id, Error: err.Error()})
				p.log.Error().Err(err).
					Str("source_job_id", source.ID.String()).
					Str("job_id", id.String()).
					Msg("status propagation failed")
			case skipped:
				result.Skipped = append(result.Skipped, id)
			default:
				result.Updated = append(result.Updated, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	byID := func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) }
	slices.SortFunc(result.Updated, byID)
	slices.SortFunc(result.Skipped, byID)
	slices.SortFunc(result.Failed, func(a, b PropagationFailure) int { return byID(a.JobID, b.JobID) })

	p.log.Info().
		Str("source_job_id", source.ID.String()).
		Int("updated", len(result.Updated)).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failed)).
		Msg("status propagated")
	return result
}

func (p *Propagator) syncWithRetry(ctx context.Context, jobID uuid.UUID, source *model.Job) (bool, error) {
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		var skipped bool
		skipped, err = p.syncJob(ctx, jobID, source)
		if err == nil {
			return skipped, nil
		}
		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(p.backoff * time.Duration(attempt)):
		}
	}
	return false, err
}

func (p *Propagator) syncOne(ctx context.Context, jobID uuid.UUID, source *model.Job) (bool, error) {
	sourceChain := source.ShareChain.Data()
	skipped := false
	err := p.store.Transaction(ctx, func(tx *repository.Store) error {
		job, err := tx.Jobs.GetForUpdate(ctx, jobID)
		if err != nil {
			return notFound(err, "chain job")
		}
		data := job.ShareChain.Data()
		if job.ChainEncoding != model.ChainEncodingCarbonCopy ||
			data.SharedJobNumber != sourceChain.SharedJobNumber ||
			data.Level <= sourceChain.Level ||
			job.Status.Terminal() {
			skipped = true
			return nil
		}

		job.Status = source.Status
		job.IsClosed = true
		if source.ServiceDate != nil {
			serviceDate := *source.ServiceDate
			job.ServiceDate = &serviceDate
		}
		if len(source.AffidavitRefs) > 0 {
			job.AffidavitRefs = datatypes.JSONSlice[string](slices.Clone([]string(source.AffidavitRefs)))
		}
		return tx.Jobs.Update(ctx, job)
	})
	return skipped, err
}
