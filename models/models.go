package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state reported for a transaction.
type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusPending   TransactionStatus = "pending"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// IsValid reports whether s is one of the known statuses.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusCompleted, StatusPending, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Trend classifies the overall direction of a transaction window.
type Trend string

const (
	TrendImproving Trend = "IMPROVING"
	TrendStable    Trend = "STABLE"
	TrendDeclining Trend = "DECLINING"
	TrendVolatile  Trend = "VOLATILE"
)

// Anomaly severity levels.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Recommendation priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// TransactionRecord is a single financial transaction as uploaded by a
// client. Amount, Date, Merchant and Category are mandatory for the record
// to pass input validation; the rest is optional enrichment.
type TransactionRecord struct {
	Amount        decimal.Decimal   `json:"amount"`
	Date          time.Time         `json:"date"`
	Merchant      string            `json:"merchant"`
	Category      string            `json:"category"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Description   string            `json:"description,omitempty"`
	Location      string            `json:"location,omitempty"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Status        TransactionStatus `json:"status,omitempty"`
}

type transactionRecordWire struct {
	Amount        decimal.Decimal   `json:"amount"`
	Date          json.RawMessage   `json:"date"`
	Merchant      string            `json:"merchant"`
	Category      string            `json:"category"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Description   string            `json:"description,omitempty"`
	Location      string            `json:"location,omitempty"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Status        TransactionStatus `json:"status,omitempty"`
}

// UnmarshalJSON keeps the date field flexible: uploads originate in
// JavaScript and send either ISO strings or epoch milliseconds.
func (r *TransactionRecord) UnmarshalJSON(data []byte) error {
	var wire transactionRecordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	date, err := parseWireTime(wire.Date)
	if err != nil {
		return err
	}

	*r = TransactionRecord{
		Amount:        wire.Amount,
		Date:          date,
		Merchant:      wire.Merchant,
		Category:      wire.Category,
		TransactionID: wire.TransactionID,
		Description:   wire.Description,
		Location:      wire.Location,
		PaymentMethod: wire.PaymentMethod,
		Status:        wire.Status,
	}
	return nil
}

// AnalysisMetadata carries optional context about where the transactions
// came from.
type AnalysisMetadata struct {
	Source   string `json:"source,omitempty"`
	Format   string `json:"format,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// AnalysisInput is the document handed to the analyzer: an ordered,
// non-empty sequence of transactions plus optional metadata.
type AnalysisInput struct {
	Transactions []TransactionRecord `json:"transactions"`
	Metadata     *AnalysisMetadata   `json:"metadata,omitempty"`
}

// Summary holds the aggregate scalar metrics of one analysis.
type Summary struct {
	NetCashFlow    float64 `json:"netCashFlow"`
	AvgTransaction float64 `json:"avgTransaction"`
	RiskScore      float64 `json:"riskScore" validate:"gte=0,lte=1"`   // 0-1 score
	FraudScore     float64 `json:"fraudScore" validate:"gte=0,lte=1"`  // 0-1 score
	Confidence     float64 `json:"confidence" validate:"gte=0,lte=1"`  // 0-1 score
	Volatility     float64 `json:"volatility" validate:"gte=0"`
	Trend          Trend   `json:"trend" validate:"required,oneof=IMPROVING STABLE DECLINING VOLATILE"`
	LiquidityRatio float64 `json:"liquidityRatio"`
	VelocityScore  float64 `json:"velocityScore" validate:"gte=0"`
	AnomalyCount   int     `json:"anomalyCount" validate:"gte=0"`
}

// Flags are the named boolean alerts raised by the model.
type Flags struct {
	HighRisk           bool `json:"highRisk"`
	FraudSuspected     bool `json:"fraudSuspected"`
	VelocitySpike      bool `json:"velocitySpike"`
	LargeCashMovements bool `json:"largeCashMovements"`
	IrregularPattern   bool `json:"irregularPattern"`
	NegativeCashFlow   bool `json:"negativeCashFlow"`
}

// Metrics holds counting and extremal statistics. Merchants and Categories
// are the explicit sets behind the unique counts; the model always emits
// them so that cross-batch unions stay exact.
type Metrics struct {
	TotalTransactions   int      `json:"totalTransactions" validate:"gte=0"`
	TotalVolume         float64  `json:"totalVolume" validate:"gte=0"`
	PositiveCount       int      `json:"positiveCount" validate:"gte=0"`
	NegativeCount       int      `json:"negativeCount" validate:"gte=0"`
	LargestTransaction  float64  `json:"largestTransaction"`
	SmallestTransaction float64  `json:"smallestTransaction"`
	UniqueMerchants     int      `json:"uniqueMerchants" validate:"gte=0"`
	UniqueCategories    int      `json:"uniqueCategories" validate:"gte=0"`
	Merchants           []string `json:"merchants,omitempty"`
	Categories          []string `json:"categories,omitempty"`
}

// Anomaly describes one suspicious observation in the window.
type Anomaly struct {
	Type        string  `json:"type" validate:"required"` // AMOUNT_SPIKE, DUPLICATE_CHARGE, ...
	Severity    string  `json:"severity" validate:"required,oneof=low medium high critical"`
	Description string  `json:"description" validate:"required"`
	Score       float64 `json:"score" validate:"gte=0,lte=1"` // 0-1 score
	RecordID    string  `json:"recordId,omitempty"`
}

// Recommendation is an actionable suggestion derived from the analysis.
type Recommendation struct {
	Category  string `json:"category" validate:"required"`
	Priority  string `json:"priority" validate:"required,oneof=low medium high"`
	Action    string `json:"action" validate:"required"`
	Rationale string `json:"rationale,omitempty"`
	Impact    string `json:"impact,omitempty"`
}

// Meta describes the analysis run itself. RecordCount doubles as the
// statistical weight of the batch during aggregation.
type Meta struct {
	RecordCount      int       `json:"recordCount" validate:"gt=0"`
	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMs int64     `json:"processingTimeMs" validate:"gte=0"`
	ModelVersion     string    `json:"modelVersion" validate:"required"`
}

// AnalysisResult is the output contract of the external model, returned
// per batch and again after aggregation.
type AnalysisResult struct {
	Summary         Summary          `json:"summary"`
	Flags           Flags            `json:"flags"`
	Metrics         Metrics          `json:"metrics"`
	Anomalies       []Anomaly        `json:"anomalies" validate:"omitempty,dive"`
	Recommendations []Recommendation `json:"recommendations" validate:"omitempty,dive"`
	Meta            Meta             `json:"meta"`
}
