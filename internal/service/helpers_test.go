package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nurpe/jobshare/internal/config"
	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/repository"
	"github.com/nurpe/jobshare/internal/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Types() []EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]EventType, 0, len(n.events))
	for _, e := range n.events {
		types = append(types, e.Type)
	}
	return types
}

type stubGenerator struct {
	content []byte
	views   []model.ChainView
}

func (g *stubGenerator) Generate(view model.ChainView) ([]byte, error) {
	g.views = append(g.views, view)
	return g.content, nil
}

type env struct {
	db           *gorm.DB
	store        *repository.Store
	clock        *fakeClock
	notifier     *recordingNotifier
	chains       *ChainBuilder
	partnerships *PartnershipService
	shares       *ShareService
	jobs         *JobService
	chainSvc     *ChainService
	excel        *stubGenerator
	pdf          *stubGenerator
}

type envOption func(*config.JobShareConfig)

func withEncoding(encoding model.ChainEncoding) envOption {
	return func(cfg *config.JobShareConfig) { cfg.ChainEncoding = string(encoding) }
}

func withMaxDepth(depth int) envOption {
	return func(cfg *config.JobShareConfig) { cfg.MaxCascadeDepth = depth }
}

func withDefaultExpiry(hours int) envOption {
	return func(cfg *config.JobShareConfig) { cfg.DefaultExpiryHours = hours }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	cfg := config.JobShareConfig{
		MaxCascadeDepth:   10,
		ChainEncoding:     string(model.ChainEncodingCarbonCopy),
		SyncEnabled:       true,
		SyncRetryAttempts: 2,
		SyncRetryBackoff:  time.Millisecond,
		MessageMaxLength:  500,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	log := zerolog.Nop()
	clock := newFakeClock()
	notifier := &recordingNotifier{}
	chains := NewChainBuilder(model.ChainEncoding(cfg.ChainEncoding), cfg.SyncEnabled)
	matcher := NewMatcher(cfg.MaxCascadeDepth)
	propagator := NewPropagator(store, cfg.SyncRetryAttempts, cfg.SyncRetryBackoff, log)
	shares := NewShareService(store, chains, matcher, notifier, cfg, log, clock.Now)
	excel := &stubGenerator{content: []byte("xlsx")}
	pdf := &stubGenerator{content: []byte("%PDF")}

	return &env{
		db:           db,
		store:        store,
		clock:        clock,
		notifier:     notifier,
		chains:       chains,
		partnerships: NewPartnershipService(store, notifier, cfg, log, clock.Now),
		shares:       shares,
		jobs:         NewJobService(store, shares, propagator, notifier, log, clock.Now),
		chainSvc:     NewChainService(store, chains, excel, pdf, log, clock.Now),
		excel:        excel,
		pdf:          pdf,
	}
}

// autoEntry is an active partner entry with one enabled zone.
func autoEntry(partnerID uuid.UUID, zip string, fee float64, priority int, requiresAcceptance bool) model.PartnerEntry {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return model.PartnerEntry{
		PartnerCompanyID:      partnerID,
		Status:                model.PartnershipStatusActive,
		AutoAssignmentEnabled: true,
		Zones: []model.AutoAssignmentZone{
			{ZipCodes: []string{zip}, DefaultFee: fee, Priority: priority, Enabled: true},
		},
		RequiresAcceptance:   requiresAcceptance,
		NotifyOnShare:        true,
		NotifyOnStatusChange: true,
		CreatedAt:            created,
		UpdatedAt:            created,
	}
}

// manualEntry is an active partner entry with auto-assignment off.
func manualEntry(partnerID uuid.UUID) model.PartnerEntry {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return model.PartnerEntry{
		PartnerCompanyID:     partnerID,
		Status:               model.PartnershipStatusActive,
		Zones:                []model.AutoAssignmentZone{},
		RequiresAcceptance:   true,
		NotifyOnShare:        true,
		NotifyOnStatusChange: true,
		CreatedAt:            created,
		UpdatedAt:            created,
	}
}

func (e *env) setPartners(t *testing.T, company *model.Company, entries ...model.PartnerEntry) {
	t.Helper()
	current, err := e.store.Companies.Get(context.Background(), company.ID)
	require.NoError(t, err)
	require.NoError(t, e.store.Companies.ReplacePartners(context.Background(), company.ID, current.Version, entries))
}

// seedJob stores an open job held by company without running auto-assignment.
func (e *env) seedJob(t *testing.T, company *model.Company, number, zip string) *model.Job {
	t.Helper()
	server := *company.OwnerID
	job := &model.Job{
		CompanyID:         company.ID,
		JobNumber:         number,
		Zip:               zip,
		Status:            model.JobStatusOpen,
		AssignedCompanyID: company.ID,
		AssignedServerID:  &server,
		AffidavitRefs:     datatypes.JSONSlice[string]{},
	}
	require.NoError(t, e.store.Jobs.Create(context.Background(), job))
	return job
}

func (e *env) chainOf(t *testing.T, jobID uuid.UUID) []model.ChainLink {
	t.Helper()
	job, err := e.store.Jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	chain, err := e.chains.BuildChain(context.Background(), e.store.Jobs, job)
	require.NoError(t, err)
	return chain
}

// holderJob returns the document the current holder of jobID's lineage works on.
func (e *env) holderJob(t *testing.T, jobID uuid.UUID) *model.Job {
	t.Helper()
	job, err := e.store.Jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	if job.ChainEncoding != model.ChainEncodingCarbonCopy {
		return job
	}
	for job.ShareChain.Data().ChildJobID != nil {
		job, err = e.store.Jobs.Get(context.Background(), *job.ShareChain.Data().ChildJobID)
		require.NoError(t, err)
	}
	return job
}

func companyIDs(chain []model.ChainLink) []uuid.UUID {
	return chainCompanies(chain)
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
