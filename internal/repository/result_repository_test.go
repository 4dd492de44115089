package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

func exerciseResultStore(t *testing.T, store ResultStore) {
	ctx := context.Background()
	code := NewBatchCode()

	_, err := store.Report(ctx, code)
	assert.ErrorIs(t, err, ErrReportNotFound)
	_, err = store.Progress(ctx, code)
	assert.ErrorIs(t, err, ErrReportNotFound)

	require.NoError(t, store.SetProgress(ctx, models.BatchProgress{BatchCode: code, Status: "processing", Total: 4, Done: 1, Percent: 25}))
	progress, err := store.Progress(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "processing", progress.Status)
	assert.Equal(t, 1, progress.Done)

	report := &models.BatchReport{
		BatchCode: code,
		Provider:  "gemini",
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		Failures:  []models.FailureReason{{ID: "f2", Reason: "malformed"}},
		Outcomes: []models.ExtractionOutcome{
			{ID: "f1", Success: true, Receipt: &models.ReceiptRecord{Payee: "店", Amount: 100}},
			{ID: "f2", Error: "malformed"},
		},
	}
	require.NoError(t, store.SaveReport(ctx, report))

	got, err := store.Report(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Total)
	require.Len(t, got.Outcomes, 2)
	assert.Equal(t, 100.0, got.Outcomes[0].Receipt.Amount)
	assert.Equal(t, "malformed", got.Failures[0].Reason)
}

func TestMemoryResultRepository(t *testing.T) {
	exerciseResultStore(t, NewMemoryResultRepository())
}

func TestRedisResultRepository(t *testing.T) {
	client := redisForTest(t)
	exerciseResultStore(t, NewRedisResultRepository(client, time.Minute))
}

func TestHistoryFromReport_SkipsFailures(t *testing.T) {
	tax := 10.0
	report := &models.BatchReport{
		BatchCode: "BATCH-1",
		Provider:  "claude",
		Outcomes: []models.ExtractionOutcome{
			{ID: "f1", FileName: "a.jpg", Success: true, Receipt: &models.ReceiptRecord{Payee: "書店", Amount: 110, Tax: &tax, Date: "2024/05/01"}},
			{ID: "f2", FileName: "b.jpg", Error: "network"},
		},
	}

	rows := HistoryFromReport(report, func(models.ExtractionOutcome) models.ClassificationResult {
		return models.ClassificationResult{AccountCode: "74510", AccountName: "新聞図書費"}
	})

	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "BATCH-1", row.BatchCode)
	assert.Equal(t, "a.jpg", row.FileName)
	assert.Equal(t, 110.0, row.Subtotal)
	assert.Equal(t, 10.0, row.Tax)
	assert.Equal(t, 0.0, row.ReducedTax)
	assert.Equal(t, "74510", row.AccountCode)
	assert.Equal(t, "claude", row.Provider)
	assert.Contains(t, row.RawJSON, "書店")
}
