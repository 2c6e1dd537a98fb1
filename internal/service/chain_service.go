package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/repository"
)

type ExcelGenerator interface {
	Generate(view model.ChainView) ([]byte, error)
}

type PDFGenerator interface {
	Generate(view model.ChainView) ([]byte, error)
}

type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatPDF  ExportFormat = "pdf"
)

type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ChainService serves privacy-filtered chain views. Links outside the
// viewer's window are dropped before anything leaves this package.
type ChainService struct {
	store  *repository.Store
	chains *ChainBuilder
	excel  ExcelGenerator
	pdf    PDFGenerator
	log    zerolog.Logger
	now    func() time.Time
}

func NewChainService(
	store *repository.Store,
	chains *ChainBuilder,
	excel ExcelGenerator,
	pdf PDFGenerator,
	log zerolog.Logger,
	now func() time.Time,
) *ChainService {
	if now == nil {
		now = time.Now
	}
	return &ChainService{store: store, chains: chains, excel: excel, pdf: pdf, log: log, now: now}
}

func (s *ChainService) GetVisibleChain(ctx context.Context, principal model.Principal, jobID uuid.UUID) (*model.ChainView, error) {
	job, err := s.store.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, notFound(err, "job")
	}
	return s.view(ctx, s.store, job, principal.CompanyID)
}

// CorrectInvoiceAmount rewrites the invoice amount of the last link. Once the
// job has been shared further the link is frozen.
func (s *ChainService) CorrectInvoiceAmount(
	ctx context.Context,
	principal model.Principal,
	jobID uuid.UUID,
	level int,
	amount float64,
) (*model.ChainView, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if level <= 0 {
		return nil, fmt.Errorf("%w: the originator link carries no invoice", ErrInvalidInput)
	}

	var view *model.ChainView
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		job, err := tx.Jobs.GetForUpdate(ctx, jobID)
		if err != nil {
			return notFound(err, "job")
		}
		chain, err := s.chains.BuildChain(ctx, tx.Jobs, job)
		if err != nil {
			return err
		}
		if level >= len(chain) {
			return fmt.Errorf("%w: chain level %d", ErrNotFound, level)
		}
		link, upstream := chain[level], chain[level-1]
		if principal.CompanyID != link.CompanyID && principal.CompanyID != upstream.CompanyID {
			return ErrPermissionDenied
		}
		if level != len(chain)-1 {
			return fmt.Errorf("%w: link is frozen once the job is shared further", ErrConflict)
		}
		if err := s.chains.SetInvoiceAmount(ctx, tx, job, level, amount); err != nil {
			return err
		}
		view, err = s.view(ctx, tx, job, principal.CompanyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *ChainService) ExportVisibleChain(
	ctx context.Context,
	principal model.Principal,
	jobID uuid.UUID,
	format ExportFormat,
) (*ExportResult, error) {
	view, err := s.GetVisibleChain(ctx, principal, jobID)
	if err != nil {
		return nil, err
	}

	var (
		content     []byte
		contentType string
	)
	switch format {
	case ExportFormatXLSX:
		content, err = s.excel.Generate(*view)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportFormatPDF:
		content, err = s.pdf.Generate(*view)
		contentType = "application/pdf"
	default:
		return nil, fmt.Errorf("%w: format must be xlsx or pdf", ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		FileName:    buildFileName(*view, format),
		ContentType: contentType,
		Content:     content,
	}, nil
}

func (s *ChainService) view(ctx context.Context, store *repository.Store, job *model.Job, viewer uuid.UUID) (*model.ChainView, error) {
	chain, err := s.chains.BuildChain(ctx, store.Jobs, job)
	if err != nil {
		return nil, err
	}
	visible, err := VisibleChain(chain, viewer)
	if err != nil {
		return nil, err
	}

	companies, err := store.Companies.ListByIDs(ctx, chainCompanies(visible))
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(companies))
	for _, company := range companies {
		names[company.ID] = company.Name
	}

	view := &model.ChainView{
		JobID:       job.ID,
		JobNumber:   job.JobNumber,
		Zip:         job.Zip,
		Status:      job.Status,
		Links:       make([]model.VisibleLink, 0, len(visible)),
		GeneratedAt: s.now().UTC(),
	}
	for _, link := range visible {
		if link.CompanyID == viewer {
			view.ViewerLevel = link.Level
		}
	}
	for _, link := range visible {
		view.Links = append(view.Links, visibleLink(link, names[link.CompanyID], view.ViewerLevel))
	}
	return view, nil
}

// visibleLink copies the fields a viewer at viewerLevel may see. A link's
// SeesClientAs names the company one level above it, so it is kept only on
// the viewer's own link and the link below it.
func visibleLink(link model.ChainLink, name string, viewerLevel int) model.VisibleLink {
	out := model.VisibleLink{
		Level:         link.Level,
		CompanyID:     link.CompanyID,
		CompanyName:   name,
		InvoiceAmount: link.InvoiceAmount,
		AutoAssigned:  link.AutoAssigned,
	}
	if link.Level >= viewerLevel {
		out.SeesClientAs = link.SeesClientAs
	}
	return out
}

func buildFileName(view model.ChainView, format ExportFormat) string {
	number := sanitizeFileName(view.JobNumber)
	if number == "" {
		number = view.JobID.String()
	}
	return fmt.Sprintf("chain-%s-%s.%s", number, view.GeneratedAt.Format("20060102"), format)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
