package bridge

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsightlab/mlbridge/models"
)

func validRecord() models.TransactionRecord {
	return models.TransactionRecord{
		Amount:   decimal.NewFromFloat(-42.50),
		Date:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Merchant: "Acme Office Supply",
		Category: "supplies",
		Status:   models.StatusCompleted,
	}
}

func TestValidateInput(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name       string
		input      *models.AnalysisInput
		wantErr    bool
		wantReason string
	}{
		{
			name:    "nil input",
			input:   nil,
			wantErr: true,
		},
		{
			name:       "empty sequence",
			input:      &models.AnalysisInput{},
			wantErr:    true,
			wantReason: "sequence is empty",
		},
		{
			name: "valid records",
			input: &models.AnalysisInput{
				Transactions: []models.TransactionRecord{validRecord(), validRecord()},
			},
		},
		{
			name: "missing merchant named with index",
			input: &models.AnalysisInput{
				Transactions: func() []models.TransactionRecord {
					recs := []models.TransactionRecord{validRecord(), validRecord(), validRecord(), validRecord()}
					recs[3].Merchant = ""
					return recs
				}(),
			},
			wantErr:    true,
			wantReason: "transactions[3]: missing merchant",
		},
		{
			name: "zero amount rejected",
			input: &models.AnalysisInput{
				Transactions: func() []models.TransactionRecord {
					rec := validRecord()
					rec.Amount = decimal.Zero
					return []models.TransactionRecord{rec}
				}(),
			},
			wantErr:    true,
			wantReason: "missing or zero amount",
		},
		{
			name: "unknown status rejected",
			input: &models.AnalysisInput{
				Transactions: func() []models.TransactionRecord {
					rec := validRecord()
					rec.Status = "refunded"
					return []models.TransactionRecord{rec}
				}(),
			},
			wantErr:    true,
			wantReason: `unknown status "refunded"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateInput(tt.input)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("ValidateInput() unexpected error: %v", err)
				}
				return
			}
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("ValidateInput() error = %v, want *InputError", err)
			}
			if tt.wantReason != "" && !strings.Contains(err.Error(), tt.wantReason) {
				t.Errorf("error %q does not name %q", err.Error(), tt.wantReason)
			}
		})
	}
}

func TestValidateInputFailsOnFirstBadRecord(t *testing.T) {
	v := NewValidator()

	recs := []models.TransactionRecord{validRecord(), validRecord(), validRecord()}
	recs[1].Merchant = ""
	recs[1].Category = ""
	recs[2].Merchant = "" // later record must not be reported

	err := v.ValidateInput(&models.AnalysisInput{Transactions: recs})
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("ValidateInput() error = %v, want *InputError", err)
	}
	if len(inputErr.Reasons) != 2 {
		t.Fatalf("reasons = %v, want both fields of the first bad record", inputErr.Reasons)
	}
	for _, reason := range inputErr.Reasons {
		if !strings.Contains(reason, "transactions[1]") {
			t.Errorf("reason %q reports the wrong record", reason)
		}
	}
}

func validResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Summary: models.Summary{
			NetCashFlow:    -120.5,
			AvgTransaction: 60.25,
			RiskScore:      0.4,
			FraudScore:     0.1,
			Confidence:     0.9,
			Volatility:     0.3,
			Trend:          models.TrendStable,
			LiquidityRatio: 1.2,
			VelocityScore:  0.5,
			AnomalyCount:   1,
		},
		Metrics: models.Metrics{
			TotalTransactions:   2,
			TotalVolume:         120.5,
			PositiveCount:       1,
			NegativeCount:       1,
			LargestTransaction:  80,
			SmallestTransaction: -40.5,
			UniqueMerchants:     2,
			UniqueCategories:    1,
			Merchants:           []string{"acme", "globex"},
			Categories:          []string{"supplies"},
		},
		Anomalies: []models.Anomaly{
			{Type: "AMOUNT_SPIKE", Severity: models.SeverityHigh, Description: "amount far above the window mean", Score: 0.8, RecordID: "tx-1"},
		},
		Recommendations: []models.Recommendation{
			{Category: "risk", Priority: models.PriorityMedium, Action: "review flagged merchants"},
		},
		Meta: models.Meta{
			RecordCount:      2,
			Timestamp:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			ProcessingTimeMs: 35,
			ModelVersion:     "2.1.0",
		},
	}
}

func TestValidateOutput(t *testing.T) {
	v := NewValidator()

	if err := v.ValidateOutput(validResult()); err != nil {
		t.Fatalf("ValidateOutput() rejected a valid result: %v", err)
	}

	if err := v.ValidateOutput(nil); err == nil {
		t.Fatal("ValidateOutput(nil) expected error")
	}
}

func TestValidateOutputAggregatesViolations(t *testing.T) {
	v := NewValidator()

	// Break the contract in five places at once.
	bad := validResult()
	bad.Summary.RiskScore = 1.5
	bad.Summary.Trend = "SIDEWAYS"
	bad.Meta.ModelVersion = ""
	bad.Anomalies[0].Severity = "catastrophic"
	bad.Metrics.TotalTransactions = 5

	err := v.ValidateOutput(bad)
	var outputErr *OutputError
	if !errors.As(err, &outputErr) {
		t.Fatalf("ValidateOutput() error = %v, want *OutputError", err)
	}
	if len(outputErr.Reasons) < 5 {
		t.Errorf("reasons = %d, want all five violations reported together:\n%v", len(outputErr.Reasons), outputErr.Reasons)
	}

	wantFragments := []string{"RiskScore", "Trend", "ModelVersion", "Severity", "totalTransactions"}
	for _, fragment := range wantFragments {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error does not mention %s violation:\n%s", fragment, err.Error())
		}
	}
}

func TestValidateOutputCountInvariant(t *testing.T) {
	v := NewValidator()

	bad := validResult()
	bad.Metrics.PositiveCount = 2 // 2+1 != 2

	err := v.ValidateOutput(bad)
	var outputErr *OutputError
	if !errors.As(err, &outputErr) {
		t.Fatalf("ValidateOutput() error = %v, want *OutputError", err)
	}
	if !strings.Contains(err.Error(), "positiveCount+negativeCount") {
		t.Errorf("error %q does not explain the count invariant", err.Error())
	}
}
