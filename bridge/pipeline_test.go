package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsightlab/mlbridge/models"
)

// countingAnalyzer records every call it receives and answers with a
// minimal contract-valid result, or with err when set.
type countingAnalyzer struct {
	calls        int
	batchSizes   []int
	processingMs int64
	err          error
}

func (c *countingAnalyzer) Analyze(_ context.Context, input *models.AnalysisInput) (*models.AnalysisResult, error) {
	c.calls++
	c.batchSizes = append(c.batchSizes, len(input.Transactions))
	if c.err != nil {
		return nil, c.err
	}
	n := len(input.Transactions)
	return &models.AnalysisResult{
		Summary: models.Summary{
			RiskScore:  0.4,
			Trend:      models.TrendStable,
			Confidence: 0.9,
		},
		Metrics: models.Metrics{
			TotalTransactions: n,
			PositiveCount:     n,
			Merchants:         []string{"acme"},
			UniqueMerchants:   1,
			Categories:        []string{"supplies"},
			UniqueCategories:  1,
		},
		Meta: models.Meta{
			RecordCount:      n,
			Timestamp:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			ProcessingTimeMs: c.processingMs,
			ModelVersion:     "fake-1.0",
		},
	}, nil
}

func validRecords(n int) []models.TransactionRecord {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	records := make([]models.TransactionRecord, n)
	for i := range records {
		records[i] = models.TransactionRecord{
			TransactionID: fmt.Sprintf("tx-%06d", i),
			Amount:        decimal.NewFromInt(int64(i + 1)),
			Date:          base.Add(time.Duration(i) * time.Minute),
			Merchant:      fmt.Sprintf("merchant-%d", i%7),
			Category:      fmt.Sprintf("category-%d", i%5),
			Status:        models.StatusCompleted,
		}
	}
	return records
}

func TestPipelineAnalyzeBatchEndToEnd(t *testing.T) {
	fake := &countingAnalyzer{processingMs: 40}
	p := NewPipeline(fake, Options{BatchDelay: time.Millisecond, BaseDelay: time.Millisecond})

	input := &models.AnalysisInput{Transactions: validRecords(25000)}
	got, err := p.AnalyzeBatch(context.Background(), input, &Options{BatchSize: 10000})
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}

	if fake.calls != 3 {
		t.Fatalf("analyzer calls = %d, want 3", fake.calls)
	}
	wantSizes := []int{10000, 10000, 5000}
	for i, want := range wantSizes {
		if fake.batchSizes[i] != want {
			t.Errorf("batch %d size = %d, want %d", i, fake.batchSizes[i], want)
		}
	}
	if got.Meta.RecordCount != 25000 {
		t.Errorf("aggregate recordCount = %d, want 25000", got.Meta.RecordCount)
	}
	if got.Meta.ProcessingTimeMs != 120 {
		t.Errorf("aggregate processingTimeMs = %d, want 120", got.Meta.ProcessingTimeMs)
	}
	if got.Metrics.TotalTransactions != 25000 {
		t.Errorf("aggregate totalTransactions = %d, want 25000", got.Metrics.TotalTransactions)
	}
}

func TestPipelineInvalidInputSkipsAnalyzer(t *testing.T) {
	fake := &countingAnalyzer{}
	p := NewPipeline(fake, Options{})

	tests := []struct {
		name  string
		input *models.AnalysisInput
	}{
		{"empty dataset", &models.AnalysisInput{}},
		{
			"missing merchant",
			&models.AnalysisInput{Transactions: []models.TransactionRecord{{
				TransactionID: "tx-1",
				Amount:        decimal.NewFromInt(10),
				Date:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				Category:      "supplies",
				Status:        models.StatusCompleted,
			}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.AnalyzeBatch(context.Background(), tt.input, nil)
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("error = %v, want *InputError", err)
			}
		})
	}
	if fake.calls != 0 {
		t.Fatalf("analyzer calls = %d, want 0 for invalid input", fake.calls)
	}
}

func TestPipelineSingleBatchSkipsAggregation(t *testing.T) {
	fake := &countingAnalyzer{processingMs: 7}
	p := NewPipeline(fake, Options{})

	input := &models.AnalysisInput{Transactions: validRecords(10)}
	got, err := p.AnalyzeBatch(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("analyzer calls = %d, want 1", fake.calls)
	}
	if got.Meta.RecordCount != 10 || got.Meta.ProcessingTimeMs != 7 {
		t.Errorf("result meta = %+v, want untouched single-batch result", got.Meta)
	}
}

func TestPipelinePerCallBatchSizeOverride(t *testing.T) {
	fake := &countingAnalyzer{}
	p := NewPipeline(fake, Options{BatchDelay: time.Millisecond, BaseDelay: time.Millisecond})

	input := &models.AnalysisInput{Transactions: validRecords(100)}
	if _, err := p.AnalyzeBatch(context.Background(), input, &Options{BatchSize: 50}); err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("analyzer calls = %d, want 2 with overridden batch size", fake.calls)
	}
}

func TestPipelineFailingBatchAbortsRemainder(t *testing.T) {
	fake := &countingAnalyzer{err: &TimeoutError{Command: "python3", Elapsed: time.Second}}
	p := NewPipeline(fake, Options{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		BatchDelay:  time.Millisecond,
	})

	input := &models.AnalysisInput{Transactions: validRecords(100)}
	_, err := p.AnalyzeBatch(context.Background(), input, &Options{BatchSize: 50})
	if err == nil {
		t.Fatal("expected error from failing batch")
	}
	if !strings.Contains(err.Error(), "batch 1/2") {
		t.Errorf("error = %q, want batch position prefix", err)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want wrapped *ExhaustedError", err)
	}
	if fake.calls != 2 {
		t.Errorf("analyzer calls = %d, want 2 (both attempts of batch 1, none of batch 2)", fake.calls)
	}
}

func TestPipelineThrottlesBetweenBatches(t *testing.T) {
	fake := &countingAnalyzer{}
	p := NewPipeline(fake, Options{BaseDelay: time.Millisecond})

	input := &models.AnalysisInput{Transactions: validRecords(3)}
	start := time.Now()
	_, err := p.AnalyzeBatch(context.Background(), input, &Options{
		BatchSize:  1,
		BatchDelay: 30 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if fake.calls != 3 {
		t.Fatalf("analyzer calls = %d, want 3", fake.calls)
	}
	// First batch starts immediately, the next two wait one period each.
	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Errorf("elapsed = %v, want at least two 30ms inter-batch delays", elapsed)
	}
}

func TestPipelineAnalyzeStream(t *testing.T) {
	fake := &countingAnalyzer{}
	p := NewPipeline(fake, Options{BatchDelay: time.Millisecond, BaseDelay: time.Millisecond})

	records := validRecords(100)
	chunks := make(chan Chunk)
	go func() {
		defer close(chunks)
		chunks <- Chunk{Records: records[:60]}
		chunks <- Chunk{Records: records[60:]}
	}()

	got, err := p.AnalyzeStream(context.Background(), chunks, &Options{BatchSize: 50})
	if err != nil {
		t.Fatalf("AnalyzeStream: %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("analyzer calls = %d, want 2", fake.calls)
	}
	if got.Meta.RecordCount != 100 {
		t.Errorf("aggregate recordCount = %d, want 100", got.Meta.RecordCount)
	}
}

func TestPipelineAnalyzeStreamPropagatesStreamError(t *testing.T) {
	fake := &countingAnalyzer{}
	p := NewPipeline(fake, Options{})

	chunks := make(chan Chunk)
	cause := errors.New("upstream connection reset")
	go func() {
		defer close(chunks)
		chunks <- Chunk{Records: validRecords(10)}
		chunks <- Chunk{Err: cause}
	}()

	_, err := p.AnalyzeStream(context.Background(), chunks, nil)
	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("error = %v, want *StreamError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error chain should carry the stream cause")
	}
	if fake.calls != 0 {
		t.Errorf("analyzer calls = %d, want 0 after broken stream", fake.calls)
	}
}

func TestPipelineAnalyzeDoesNotSplit(t *testing.T) {
	fake := &countingAnalyzer{}
	p := NewPipeline(fake, Options{BaseDelay: time.Millisecond})

	input := &models.AnalysisInput{Transactions: validRecords(300)}
	if _, err := p.Analyze(context.Background(), input, &Options{BatchSize: 100}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("analyzer calls = %d, want 1 (Analyze never batches)", fake.calls)
	}
	if fake.batchSizes[0] != 300 {
		t.Errorf("invocation size = %d, want full dataset", fake.batchSizes[0])
	}
}
