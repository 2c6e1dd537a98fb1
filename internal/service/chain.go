package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/repository"
)

// chainCodec maps one physical chain encoding onto the logical []ChainLink.
// load normalizes on read; append and setInvoiceAmount denormalize on write.
type chainCodec interface {
	encoding() model.ChainEncoding
	holds(job *model.Job, companyID uuid.UUID) bool
	load(ctx context.Context, jobs *repository.JobRepository, job *model.Job) ([]model.ChainLink, error)
	// append hands holder over to link.CompanyID and returns the job
	// document the new holder works on.
	append(ctx context.Context, tx *repository.Store, holder *model.Job, link model.ChainLink) (*model.Job, error)
	setInvoiceAmount(ctx context.Context, tx *repository.Store, job *model.Job, level int, amount float64) error
}

type ChainBuilder struct {
	codecs          map[model.ChainEncoding]chainCodec
	defaultEncoding model.ChainEncoding
}

func NewChainBuilder(defaultEncoding model.ChainEncoding, syncEnabled bool) *ChainBuilder {
	codecs := map[model.ChainEncoding]chainCodec{
		model.ChainEncodingEmbedded:   embeddedCodec{},
		model.ChainEncodingCarbonCopy: carbonCopyCodec{syncEnabled: syncEnabled},
	}
	if _, ok := codecs[defaultEncoding]; !ok {
		defaultEncoding = model.ChainEncodingCarbonCopy
	}
	return &ChainBuilder{codecs: codecs, defaultEncoding: defaultEncoding}
}

// codecFor returns the codec that owns job's chain. Unshared jobs get the
// default encoding, which is fixed on their first hand-off.
func (b *ChainBuilder) codecFor(job *model.Job) (chainCodec, error) {
	encoding := job.ChainEncoding
	if encoding == model.ChainEncodingNone {
		encoding = b.defaultEncoding
	}
	codec, ok := b.codecs[encoding]
	if !ok {
		return nil, fmt.Errorf("%w: unknown encoding %q on job %s", errBrokenChain, job.ChainEncoding, job.ID)
	}
	return codec, nil
}

// Holds reports whether companyID currently holds job and may hand it on.
func (b *ChainBuilder) Holds(job *model.Job, companyID uuid.UUID) bool {
	if job.ChainEncoding == model.ChainEncodingNone {
		return job.AssignedCompanyID == companyID
	}
	codec, err := b.codecFor(job)
	if err != nil {
		return false
	}
	return codec.holds(job, companyID)
}

// BuildChain returns the ordered chain of custody for job's full lineage.
func (b *ChainBuilder) BuildChain(ctx context.Context, jobs *repository.JobRepository, job *model.Job) ([]model.ChainLink, error) {
	if job.ChainEncoding == model.ChainEncodingNone {
		return []model.ChainLink{originLink(job)}, nil
	}
	codec, err := b.codecFor(job)
	if err != nil {
		return nil, err
	}
	return codec.load(ctx, jobs, job)
}

// Append records the next hop. Level is always assigned here as max + 1.
func (b *ChainBuilder) Append(ctx context.Context, tx *repository.Store, holder *model.Job, link model.ChainLink) (*model.Job, error) {
	codec, err := b.codecFor(holder)
	if err != nil {
		return nil, err
	}
	next, err := codec.append(ctx, tx, holder, link)
	if errors.Is(err, repository.ErrVersionConflict) {
		return nil, fmt.Errorf("%w: job was modified concurrently", ErrConflict)
	}
	return next, err
}

func (b *ChainBuilder) SetInvoiceAmount(ctx context.Context, tx *repository.Store, job *model.Job, level int, amount float64) error {
	codec, err := b.codecFor(job)
	if err != nil {
		return err
	}
	err = codec.setInvoiceAmount(ctx, tx, job, level, amount)
	if errors.Is(err, repository.ErrVersionConflict) {
		return fmt.Errorf("%w: job was modified concurrently", ErrConflict)
	}
	return err
}

// VisibleChain returns the privacy window of viewer: its own link and its
// immediate neighbors, never anything further away.
func VisibleChain(chain []model.ChainLink, viewer uuid.UUID) ([]model.ChainLink, error) {
	idx := slices.IndexFunc(chain, func(link model.ChainLink) bool {
		return link.CompanyID == viewer
	})
	if idx < 0 {
		return nil, fmt.Errorf("%w: company is not part of this chain", ErrPermissionDenied)
	}
	from := max(idx-1, 0)
	to := min(idx+2, len(chain))
	return slices.Clone(chain[from:to]), nil
}

func chainCompanies(chain []model.ChainLink) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(chain))
	for _, link := range chain {
		ids = append(ids, link.CompanyID)
	}
	return ids
}

func chainContains(chain []model.ChainLink, companyID uuid.UUID) bool {
	return slices.ContainsFunc(chain, func(link model.ChainLink) bool {
		return link.CompanyID == companyID
	})
}

func originLink(job *model.Job) model.ChainLink {
	return model.ChainLink{
		Level:     0,
		CompanyID: job.CompanyID,
		UserID:    job.AssignedServerID,
	}
}

func checkLevels(chain []model.ChainLink, jobID uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{}, len(chain))
	for i, link := range chain {
		if link.Level != i {
			return fmt.Errorf("%w: job %s has level %d at position %d", errBrokenChain, jobID, link.Level, i)
		}
		if _, dup := seen[link.CompanyID]; dup {
			return fmt.Errorf("%w: job %s repeats company %s", errBrokenChain, jobID, link.CompanyID)
		}
		seen[link.CompanyID] = struct{}{}
	}
	return nil
}

// embeddedCodec keeps the whole chain as an array on a single job document.
type embeddedCodec struct{}

func (embeddedCodec) encoding() model.ChainEncoding { return model.ChainEncodingEmbedded }

func (embeddedCodec) holds(job *model.Job, companyID uuid.UUID) bool {
	return job.AssignedCompanyID == companyID
}

func (embeddedCodec) load(_ context.Context, _ *repository.JobRepository, job *model.Job) ([]model.ChainLink, error) {
	links := slices.Clone(job.JobShareChain.Data().Links)
	if len(links) == 0 {
		return []model.ChainLink{originLink(job)}, nil
	}
	slices.SortStableFunc(links, func(a, b model.ChainLink) int { return a.Level - b.Level })
	if err := checkLevels(links, job.ID); err != nil {
		return nil, err
	}
	return links, nil
}

func (c embeddedCodec) append(ctx context.Context, tx *repository.Store, holder *model.Job, link model.ChainLink) (*model.Job, error) {
	links, err := c.load(ctx, tx.Jobs, holder)
	if err != nil {
		return nil, err
	}
	link.Level = links[len(links)-1].Level + 1
	links = append(links, link)

	holder.ChainEncoding = model.ChainEncodingEmbedded
	holder.JobShareChain = datatypes.NewJSONType(model.JobShareChain{
		Links:                        links,
		CurrentlyAssignedToCompanyID: link.CompanyID,
		TotalLevels:                  len(links),
	})
	holder.AssignedCompanyID = link.CompanyID
	holder.AssignedServerID = link.UserID
	if err := tx.Jobs.Update(ctx, holder); err != nil {
		return nil, err
	}
	return holder, nil
}

func (c embeddedCodec) setInvoiceAmount(ctx context.Context, tx *repository.Store, job *model.Job, level int, amount float64) error {
	chain := job.JobShareChain.Data()
	for i := range chain.Links {
		if chain.Links[i].Level == level {
			chain.Links[i].InvoiceAmount = amount
			job.JobShareChain = datatypes.NewJSONType(chain)
			return tx.Jobs.Update(ctx, job)
		}
	}
	return fmt.Errorf("%w: chain level %d", ErrNotFound, level)
}

// carbonCopyCodec stores every hop as its own job document in the holder's
// namespace, linked through parent/child pointers and a shared job number.
type carbonCopyCodec struct {
	syncEnabled bool
}

func (carbonCopyCodec) encoding() model.ChainEncoding { return model.ChainEncodingCarbonCopy }

func (carbonCopyCodec) holds(job *model.Job, companyID uuid.UUID) bool {
	return job.CompanyID == companyID &&
		job.AssignedCompanyID == companyID &&
		job.ShareChain.Data().ChildJobID == nil
}

func (c carbonCopyCodec) load(ctx context.Context, jobs *repository.JobRepository, job *model.Job) ([]model.ChainLink, error) {
	docs, err := c.documents(ctx, jobs, job)
	if err != nil {
		return nil, err
	}
	links := make([]model.ChainLink, 0, len(docs))
	for _, doc := range docs {
		links = append(links, doc.ShareChain.Data().Link(doc.CompanyID))
	}
	if err := checkLevels(links, job.ID); err != nil {
		return nil, err
	}
	return links, nil
}

// documents walks parent pointers to the root and then child pointers to the
// tail. all_job_ids only seeds a batch read; order comes from the pointers.
func (c carbonCopyCodec) documents(ctx context.Context, jobs *repository.JobRepository, job *model.Job) ([]*model.Job, error) {
	start := job.ShareChain.Data()
	cache := map[uuid.UUID]*model.Job{job.ID: job}
	if len(start.AllJobIDs) > 0 {
		siblings, err := jobs.ListByIDs(ctx, start.AllJobIDs)
		if err != nil {
			return nil, err
		}
		for i := range siblings {
			if siblings[i].ID != job.ID {
				cache[siblings[i].ID] = &siblings[i]
			}
		}
	}
	fetch := func(id uuid.UUID) (*model.Job, error) {
		if doc, ok := cache[id]; ok {
			return doc, nil
		}
		doc, err := jobs.Get(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, fmt.Errorf("%w: missing job %s", errBrokenChain, id)
			}
			return nil, err
		}
		cache[id] = doc
		return doc, nil
	}

	limit := len(start.AllJobIDs) + 1
	root := job
	for steps := 0; root.ShareChain.Data().ParentJobID != nil; steps++ {
		if steps > limit {
			return nil, fmt.Errorf("%w: parent pointers of job %s do not terminate", errBrokenChain, job.ID)
		}
		parent, err := fetch(*root.ShareChain.Data().ParentJobID)
		if err != nil {
			return nil, err
		}
		root = parent
	}

	number := root.ShareChain.Data().SharedJobNumber
	docs := []*model.Job{root}
	for cur := root; cur.ShareChain.Data().ChildJobID != nil; {
		if len(docs) > limit {
			return nil, fmt.Errorf("%w: child pointers of job %s do not terminate", errBrokenChain, job.ID)
		}
		child, err := fetch(*cur.ShareChain.Data().ChildJobID)
		if err != nil {
			return nil, err
		}
		data := child.ShareChain.Data()
		if data.SharedJobNumber != number || data.ParentJobID == nil || *data.ParentJobID != cur.ID {
			return nil, fmt.Errorf("%w: job %s does not link back to %s", errBrokenChain, child.ID, cur.ID)
		}
		docs = append(docs, child)
		cur = child
	}
	return docs, nil
}

func (c carbonCopyCodec) append(ctx context.Context, tx *repository.Store, holder *model.Job, link model.ChainLink) (*model.Job, error) {
	if holder.ChainEncoding == model.ChainEncodingNone {
		holder.ChainEncoding = model.ChainEncodingCarbonCopy
		holder.ShareChain = datatypes.NewJSONType(model.CarbonCopyChain{
			SharedJobNumber: holder.JobNumber,
			Level:           0,
			SyncEnabled:     c.syncEnabled,
			AllJobIDs:       []uuid.UUID{holder.ID},
			UserID:          holder.AssignedServerID,
		})
	}
	parent := holder.ShareChain.Data()
	if parent.ChildJobID != nil {
		return nil, fmt.Errorf("%w: job %s was already handed off", ErrConflict, holder.ID)
	}

	childID := uuid.New()
	allJobIDs := append(slices.Clone(parent.AllJobIDs), childID)
	link.Level = parent.Level + 1

	child := &model.Job{
		ID:                childID,
		CompanyID:         link.CompanyID,
		JobNumber:         parent.SharedJobNumber,
		Zip:               holder.Zip,
		Status:            model.JobStatusOpen,
		AssignedCompanyID: link.CompanyID,
		AssignedServerID:  link.UserID,
		AffidavitRefs:     datatypes.JSONSlice[string]{},
		ChainEncoding:     model.ChainEncodingCarbonCopy,
		ShareChain: datatypes.NewJSONType(model.CarbonCopyChain{
			ParentJobID:     &holder.ID,
			SharedJobNumber: parent.SharedJobNumber,
			Level:           link.Level,
			SyncEnabled:     parent.SyncEnabled,
			AllJobIDs:       allJobIDs,
			UserID:          link.UserID,
			InvoiceAmount:   link.InvoiceAmount,
			SeesClientAs:    link.SeesClientAs,
			AutoAssigned:    link.AutoAssigned,
		}),
	}
	if err := tx.Jobs.Create(ctx, child); err != nil {
		return nil, err
	}

	parent.ChildJobID = &childID
	parent.AllJobIDs = allJobIDs
	holder.ShareChain = datatypes.NewJSONType(parent)
	holder.AssignedCompanyID = link.CompanyID
	holder.AssignedServerID = link.UserID
	if err := tx.Jobs.Update(ctx, holder); err != nil {
		return nil, err
	}

	for _, id := range parent.AllJobIDs {
		if id == holder.ID || id == childID {
			continue
		}
		sibling, err := tx.Jobs.GetForUpdate(ctx, id)
		if err != nil {
			return nil, notFound(err, "chain job")
		}
		data := sibling.ShareChain.Data()
		data.AllJobIDs = allJobIDs
		sibling.ShareChain = datatypes.NewJSONType(data)
		if err := tx.Jobs.Update(ctx, sibling); err != nil {
			return nil, err
		}
	}
	return child, nil
}

func (c carbonCopyCodec) setInvoiceAmount(ctx context.Context, tx *repository.Store, job *model.Job, level int, amount float64) error {
	docs, err := c.documents(ctx, tx.Jobs, job)
	if err != nil {
		return err
	}
	if level < 0 || level >= len(docs) {
		return fmt.Errorf("%w: chain level %d", ErrNotFound, level)
	}
	doc := docs[level]
	data := doc.ShareChain.Data()
	data.InvoiceAmount = amount
	doc.ShareChain = datatypes.NewJSONType(data)
	return tx.Jobs.Update(ctx, doc)
}

// companySet is an immutable set of company ids; with returns a copy.
type companySet map[uuid.UUID]struct{}

func (s companySet) with(ids ...uuid.UUID) companySet {
	next := make(companySet, len(s)+len(ids))
	for id := range s {
		next[id] = struct{}{}
	}
	for _, id := range ids {
		next[id] = struct{}{}
	}
	return next
}

func (s companySet) has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}
