package service

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/nurpe/jobshare/internal/model"
	"github.com/nurpe/jobshare/internal/testutil"
)

func lineOfLinks(n int) []model.ChainLink {
	chain := make([]model.ChainLink, n)
	for i := range chain {
		chain[i] = model.ChainLink{Level: i, CompanyID: uuid.New(), InvoiceAmount: float64(i * 10)}
	}
	return chain
}

func TestVisibleChainWindow(t *testing.T) {
	chain := lineOfLinks(5)

	cases := []struct {
		name   string
		viewer int
		want   []int
	}{
		{name: "originator", viewer: 0, want: []int{0, 1}},
		{name: "middle", viewer: 2, want: []int{1, 2, 3}},
		{name: "tail", viewer: 4, want: []int{3, 4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := VisibleChain(chain, chain[tc.viewer].CompanyID)
			require.NoError(t, err)
			want := make([]model.ChainLink, 0, len(tc.want))
			for _, i := range tc.want {
				want = append(want, chain[i])
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("visible chain mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err := VisibleChain(chain, uuid.New())
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestVisibleChainReturnsCopy(t *testing.T) {
	chain := lineOfLinks(3)
	got, err := VisibleChain(chain, chain[1].CompanyID)
	require.NoError(t, err)
	got[0].InvoiceAmount = 999
	assert.Equal(t, 0.0, chain[0].InvoiceAmount)
}

func TestBuildChainRejectsBrokenEmbeddedChain(t *testing.T) {
	e := newEnv(t)
	a := testutil.SeedCompany(t, e.db, "A")
	job := e.seedJob(t, a, "J-1", "10001")
	job.ChainEncoding = model.ChainEncodingEmbedded
	job.JobShareChain = datatypes.NewJSONType(model.JobShareChain{
		Links: []model.ChainLink{
			{Level: 0, CompanyID: a.ID},
			{Level: 2, CompanyID: uuid.New()},
		},
	})

	_, err := e.chains.BuildChain(context.Background(), e.store.Jobs, job)
	require.ErrorIs(t, err, errBrokenChain)
}

// handLine shares a fresh job along companies by manual acceptance and
// returns the origin job id.
func handLine(t *testing.T, e *env, companies []*model.Company, fees ...float64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	root := e.seedJob(t, companies[0], "JOB 42/A", "10001").ID
	current := root
	for i := 1; i < len(companies); i++ {
		req, err := e.shares.CreateShareRequest(ctx, testutil.Principal(companies[i-1]), CreateShareRequestInput{
			JobID: current, TargetCompanyID: companies[i].ID, ProposedFee: fees[i-1],
		})
		require.NoError(t, err)
		_, err = e.shares.RespondToShareRequest(ctx, testutil.Principal(companies[i]), req.ID, RespondInput{Accept: true})
		require.NoError(t, err)
		current = e.holderJob(t, root).ID
	}
	return root
}

func TestGetVisibleChainShowsOnlyNeighbors(t *testing.T) {
	for _, encoding := range encodings {
		t.Run(string(encoding), func(t *testing.T) {
			e := newEnv(t, withEncoding(encoding))
			ctx := context.Background()
			names := []string{"Alpha", "Bravo", "Charlie", "Delta"}
			companies := make([]*model.Company, len(names))
			for i, name := range names {
				companies[i] = testutil.SeedCompany(t, e.db, name)
			}
			outsider := testutil.SeedCompany(t, e.db, "Echo")
			root := handLine(t, e, companies, 100, 80, 60)

			visibleNames := func(view *model.ChainView) []string {
				out := make([]string, 0, len(view.Links))
				for _, link := range view.Links {
					out = append(out, link.CompanyName)
				}
				return out
			}

			view, err := e.chainSvc.GetVisibleChain(ctx, testutil.Principal(companies[1]), root)
			require.NoError(t, err)
			assert.Equal(t, 1, view.ViewerLevel)
			if diff := cmp.Diff([]string{"Alpha", "Bravo", "Charlie"}, visibleNames(view)); diff != "" {
				t.Fatalf("names mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, "Alpha", view.Links[1].SeesClientAs)
			assert.Equal(t, 100.0, view.Links[1].InvoiceAmount)

			view, err = e.chainSvc.GetVisibleChain(ctx, testutil.Principal(companies[3]), root)
			require.NoError(t, err)
			assert.Equal(t, []string{"Charlie", "Delta"}, visibleNames(view))
			assert.Equal(t, 3, view.ViewerLevel)
			assert.Empty(t, view.Links[0].SeesClientAs, "the upstream link must not name its own client")
			assert.Equal(t, "Charlie", view.Links[1].SeesClientAs)

			view, err = e.chainSvc.GetVisibleChain(ctx, testutil.Principal(companies[2]), root)
			require.NoError(t, err)
			assert.Equal(t, []string{"", "Bravo", "Charlie"}, []string{
				view.Links[0].SeesClientAs, view.Links[1].SeesClientAs, view.Links[2].SeesClientAs,
			})

			for level, viewer := range companies {
				view, err := e.chainSvc.GetVisibleChain(ctx, testutil.Principal(viewer), root)
				require.NoError(t, err)
				assertNamesWithinOneHop(t, view, names, level)
			}

			view, err = e.chainSvc.GetVisibleChain(ctx, testutil.Principal(companies[0]), root)
			require.NoError(t, err)
			assert.Equal(t, []string{"Alpha", "Bravo"}, visibleNames(view))

			_, err = e.chainSvc.GetVisibleChain(ctx, testutil.Principal(outsider), root)
			require.ErrorIs(t, err, ErrPermissionDenied)

			_, err = e.chainSvc.GetVisibleChain(ctx, testutil.Principal(companies[0]), uuid.New())
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// assertNamesWithinOneHop fails when the view mentions a company more than
// one level away from the viewer.
func assertNamesWithinOneHop(t *testing.T, view *model.ChainView, names []string, level int) {
	t.Helper()
	allowed := map[string]bool{"": true}
	for l := level - 1; l <= level+1; l++ {
		if l >= 0 && l < len(names) {
			allowed[names[l]] = true
		}
	}
	for _, link := range view.Links {
		assert.True(t, allowed[link.CompanyName], "level %d viewer sees company %q", level, link.CompanyName)
		assert.True(t, allowed[link.SeesClientAs], "level %d viewer learns client %q", level, link.SeesClientAs)
	}
}

func TestCorrectInvoiceAmount(t *testing.T) {
	for _, encoding := range encodings {
		t.Run(string(encoding), func(t *testing.T) {
			e := newEnv(t, withEncoding(encoding))
			ctx := context.Background()
			companies := []*model.Company{
				testutil.SeedCompany(t, e.db, "A"),
				testutil.SeedCompany(t, e.db, "B"),
				testutil.SeedCompany(t, e.db, "C"),
			}
			root := handLine(t, e, companies, 100, 70)

			_, err := e.chainSvc.CorrectInvoiceAmount(ctx, testutil.Principal(companies[0]), root, 2, 75)
			require.ErrorIs(t, err, ErrPermissionDenied, "only the link's company or its upstream may correct it")

			_, err = e.chainSvc.CorrectInvoiceAmount(ctx, testutil.Principal(companies[1]), root, 1, 90)
			require.ErrorIs(t, err, ErrConflict, "links are frozen once shared further")

			_, err = e.chainSvc.CorrectInvoiceAmount(ctx, testutil.Principal(companies[1]), root, 2, 0)
			require.ErrorIs(t, err, ErrInvalidInput)

			_, err = e.chainSvc.CorrectInvoiceAmount(ctx, testutil.Principal(companies[1]), root, 0, 10)
			require.ErrorIs(t, err, ErrInvalidInput)

			_, err = e.chainSvc.CorrectInvoiceAmount(ctx, testutil.Principal(companies[1]), root, 5, 10)
			require.ErrorIs(t, err, ErrNotFound)

			view, err := e.chainSvc.CorrectInvoiceAmount(ctx, testutil.Principal(companies[1]), root, 2, 75)
			require.NoError(t, err)
			require.Len(t, view.Links, 3)
			assert.Equal(t, 75.0, view.Links[2].InvoiceAmount)

			chain := e.chainOf(t, root)
			assert.Equal(t, []float64{0, 100, 75}, []float64{
				chain[0].InvoiceAmount, chain[1].InvoiceAmount, chain[2].InvoiceAmount,
			})
		})
	}
}

func TestExportVisibleChain(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	companies := []*model.Company{
		testutil.SeedCompany(t, e.db, "A"),
		testutil.SeedCompany(t, e.db, "B"),
		testutil.SeedCompany(t, e.db, "C"),
	}
	root := handLine(t, e, companies, 100, 70)

	result, err := e.chainSvc.ExportVisibleChain(ctx, testutil.Principal(companies[2]), root, ExportFormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), result.Content)
	assert.Equal(t, "chain-JOB-42-A-20260302.xlsx", result.FileName)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.ContentType)
	require.Len(t, e.excel.views, 1)
	assert.Len(t, e.excel.views[0].Links, 2, "the export carries the same window as the view")
	assert.Empty(t, e.excel.views[0].Links[0].SeesClientAs)
	assert.Equal(t, "B", e.excel.views[0].Links[1].SeesClientAs)
	assertNamesWithinOneHop(t, &e.excel.views[0], []string{"A", "B", "C"}, 2)

	result, err = e.chainSvc.ExportVisibleChain(ctx, testutil.Principal(companies[2]), root, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "chain-JOB-42-A-20260302.pdf", result.FileName)

	_, err = e.chainSvc.ExportVisibleChain(ctx, testutil.Principal(companies[2]), root, "csv")
	require.ErrorIs(t, err, ErrInvalidInput)
}
