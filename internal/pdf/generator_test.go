package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/jobshare/internal/model"
)

func TestGenerateProducesPDF(t *testing.T) {
	view := model.ChainView{
		JobID:       uuid.New(),
		JobNumber:   "J-42",
		Zip:         "10001",
		Status:      model.JobStatusServed,
		ViewerLevel: 0,
		GeneratedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Links: []model.VisibleLink{
			{Level: 0, CompanyID: uuid.New(), CompanyName: "Société Alpha"},
			{Level: 1, CompanyID: uuid.New(), InvoiceAmount: 75, SeesClientAs: "Société Alpha", CompanyName: "Bravo"},
		},
	}

	content, err := NewGenerator().Generate(view)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "-", safeValue("  "))
	assert.Equal(t, "-", formatAmount(0, 2))
	assert.Equal(t, "75.50", formatAmount(75.5, 2))
	assert.Equal(t, "-", formatDate(time.Time{}))
	assert.Equal(t, "yes", formatBool(true))
}
