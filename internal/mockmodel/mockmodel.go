// Package mockmodel is a deterministic, in-memory stand-in for the
// production model: it computes the full analysis contract from a
// transaction window without leaving the process. It backs the builtin
// analyzer mode and the subprocess fixture in cmd/mockmodel, so every
// result it emits must satisfy the output contract.
package mockmodel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsightlab/mlbridge/models"
)

// ModelVersion tags every result so aggregates can be traced back to the
// analyzer build that produced them.
const ModelVersion = "mock-1.4.2"

const (
	amountSpikeRatio   = 4.0
	duplicateWindow    = 24 * time.Hour
	velocityThreshold  = 50.0 // transactions per day
	largeCashThreshold = 10000.0
	volatileCV         = 1.5
	trendBand          = 0.05
)

// Analyzer implements models.Analyzer over an in-memory rule set.
type Analyzer struct{}

func New() *Analyzer { return &Analyzer{} }

// Analyze scores one transaction window. The input is expected to be
// non-empty; an empty window is a caller bug, not a degenerate analysis.
func (a *Analyzer) Analyze(ctx context.Context, input *models.AnalysisInput) (*models.AnalysisResult, error) {
	started := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input == nil || len(input.Transactions) == 0 {
		return nil, errors.New("mockmodel: empty transaction window")
	}

	records := input.Transactions
	stats := scanWindow(records)
	anomalies := detectAnomalies(records, stats)

	velocity := float64(len(records)) / stats.spanDays
	velocitySpike := velocity > velocityThreshold
	if velocitySpike {
		anomalies = append(anomalies, models.Anomaly{
			Type:        "VELOCITY_SPIKE",
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("%.0f transactions per day against a %.0f/day baseline", velocity, velocityThreshold),
			Score:       math.Min(velocity/(4*velocityThreshold), 1.0),
		})
	}

	largeCash := false
	duplicates := 0
	for _, an := range anomalies {
		switch an.Type {
		case "LARGE_CASH_MOVEMENT":
			largeCash = true
		case "DUPLICATE_CHARGE":
			duplicates++
		}
	}

	cv := coefficientOfVariation(stats)
	net, _ := stats.net.Float64()

	risk := 0.1
	if stats.net.IsNegative() {
		risk += 0.3
	}
	if cv > volatileCV {
		risk += 0.2
	}
	if largeCash {
		risk += 0.2
	}
	risk = math.Min(risk+0.05*float64(len(anomalies)), 1.0)

	fraud := 0.05
	fraud = math.Min(fraud+0.3*float64(duplicates), 1.0)
	if largeCash {
		fraud = math.Min(fraud+0.15, 1.0)
	}

	flags := models.Flags{
		HighRisk:           risk > 0.7,
		FraudSuspected:     fraud > 0.6,
		VelocitySpike:      velocitySpike,
		LargeCashMovements: largeCash,
		IrregularPattern:   cv > volatileCV,
		NegativeCashFlow:   stats.net.IsNegative(),
	}

	inflow, _ := stats.inflow.Float64()
	outflow, _ := stats.outflow.Float64()
	liquidity := inflow
	if outflow > 0 {
		liquidity = inflow / outflow
	}

	result := &models.AnalysisResult{
		Summary: models.Summary{
			NetCashFlow:    net,
			AvgTransaction: net / float64(len(records)),
			RiskScore:      risk,
			FraudScore:     fraud,
			Confidence:     math.Min(0.55+float64(len(records))/200.0, 0.95),
			Volatility:     stats.stddev,
			Trend:          classifyTrend(records, stats, cv),
			LiquidityRatio: liquidity,
			VelocityScore:  velocity,
			AnomalyCount:   len(anomalies),
		},
		Flags:           flags,
		Metrics:         buildMetrics(records, stats),
		Anomalies:       anomalies,
		Recommendations: buildRecommendations(flags),
		Meta: models.Meta{
			RecordCount:      len(records),
			Timestamp:        time.Now().UTC(),
			ProcessingTimeMs: time.Since(started).Milliseconds(),
			ModelVersion:     ModelVersion,
		},
	}
	return result, nil
}

// windowStats carries the single-pass aggregates the rules share.
type windowStats struct {
	net      decimal.Decimal
	inflow   decimal.Decimal
	outflow  decimal.Decimal // absolute value of the negative side
	amounts  []float64
	meanAbs  float64
	stddev   float64
	spanDays float64
}

func scanWindow(records []models.TransactionRecord) windowStats {
	stats := windowStats{
		net:     decimal.Zero,
		inflow:  decimal.Zero,
		outflow: decimal.Zero,
		amounts: make([]float64, len(records)),
	}

	var first, last time.Time
	totalAbs := 0.0
	for i, rec := range records {
		stats.net = stats.net.Add(rec.Amount)
		if rec.Amount.IsNegative() {
			stats.outflow = stats.outflow.Add(rec.Amount.Neg())
		} else {
			stats.inflow = stats.inflow.Add(rec.Amount)
		}

		amount, _ := rec.Amount.Float64()
		stats.amounts[i] = amount
		totalAbs += math.Abs(amount)

		if !rec.Date.IsZero() {
			if first.IsZero() || rec.Date.Before(first) {
				first = rec.Date
			}
			if rec.Date.After(last) {
				last = rec.Date
			}
		}
	}

	n := float64(len(records))
	stats.meanAbs = totalAbs / n

	mean := 0.0
	for _, v := range stats.amounts {
		mean += v
	}
	mean /= n
	variance := 0.0
	for _, v := range stats.amounts {
		variance += (v - mean) * (v - mean)
	}
	stats.stddev = math.Sqrt(variance / n)

	stats.spanDays = last.Sub(first).Hours() / 24
	if stats.spanDays < 1 {
		stats.spanDays = 1
	}
	return stats
}

func buildMetrics(records []models.TransactionRecord, stats windowStats) models.Metrics {
	merchants := make([]string, 0, 8)
	merchantSeen := make(map[string]bool)
	categories := make([]string, 0, 8)
	categorySeen := make(map[string]bool)

	positive := 0
	largest := 0.0
	smallest := math.Abs(stats.amounts[0])
	for i, rec := range records {
		if !rec.Amount.IsNegative() {
			positive++
		}
		abs := math.Abs(stats.amounts[i])
		if abs > largest {
			largest = abs
		}
		if abs < smallest {
			smallest = abs
		}
		if rec.Merchant != "" && !merchantSeen[rec.Merchant] {
			merchantSeen[rec.Merchant] = true
			merchants = append(merchants, rec.Merchant)
		}
		if rec.Category != "" && !categorySeen[rec.Category] {
			categorySeen[rec.Category] = true
			categories = append(categories, rec.Category)
		}
	}

	totalVolume, _ := stats.inflow.Add(stats.outflow).Float64()
	return models.Metrics{
		TotalTransactions:   len(records),
		TotalVolume:         totalVolume,
		PositiveCount:       positive,
		NegativeCount:       len(records) - positive,
		LargestTransaction:  largest,
		SmallestTransaction: smallest,
		UniqueMerchants:     len(merchants),
		UniqueCategories:    len(categories),
		Merchants:           merchants,
		Categories:          categories,
	}
}

// detectAnomalies walks the rule set over the window. Rules append rather
// than overwrite, so one record can raise several anomalies.
func detectAnomalies(records []models.TransactionRecord, stats windowStats) []models.Anomaly {
	anomalies := []models.Anomaly{}

	// 1. Check for amount spikes against the window baseline
	for i, rec := range records {
		abs := math.Abs(stats.amounts[i])
		if stats.meanAbs > 0 && abs > amountSpikeRatio*stats.meanAbs {
			ratio := abs / stats.meanAbs
			severity := models.SeverityMedium
			if ratio >= 2*amountSpikeRatio {
				severity = models.SeverityHigh
			}
			anomalies = append(anomalies, models.Anomaly{
				Type:        "AMOUNT_SPIKE",
				Severity:    severity,
				Description: fmt.Sprintf("Amount %.1f times the window average at %s", ratio, rec.Merchant),
				Score:       math.Min(ratio/(2*amountSpikeRatio), 1.0),
				RecordID:    rec.TransactionID,
			})
		}
	}

	// 2. Check for duplicate charges: same merchant and amount inside the
	// duplicate window
	lastSeen := make(map[string]time.Time)
	for _, rec := range records {
		key := rec.Merchant + "|" + rec.Amount.String()
		if prev, ok := lastSeen[key]; ok && !rec.Date.IsZero() && rec.Date.Sub(prev) <= duplicateWindow {
			anomalies = append(anomalies, models.Anomaly{
				Type:        "DUPLICATE_CHARGE",
				Severity:    models.SeverityHigh,
				Description: fmt.Sprintf("Repeated %s charge at %s within 24h", rec.Amount.String(), rec.Merchant),
				Score:       0.8,
				RecordID:    rec.TransactionID,
			})
		}
		lastSeen[key] = rec.Date
	}

	// 3. Check for large cash movements
	for i, rec := range records {
		abs := math.Abs(stats.amounts[i])
		if abs >= largeCashThreshold {
			severity := models.SeverityHigh
			if abs >= 5*largeCashThreshold {
				severity = models.SeverityCritical
			}
			anomalies = append(anomalies, models.Anomaly{
				Type:        "LARGE_CASH_MOVEMENT",
				Severity:    severity,
				Description: fmt.Sprintf("Single movement of %.2f at %s", abs, rec.Merchant),
				Score:       math.Min(abs/(5*largeCashThreshold), 1.0),
				RecordID:    rec.TransactionID,
			})
		}
	}

	return anomalies
}

// classifyTrend compares the cash flow of the two window halves. Highly
// dispersed windows are volatile regardless of direction; tiny windows
// carry no signal and read as stable.
func classifyTrend(records []models.TransactionRecord, stats windowStats, cv float64) models.Trend {
	if len(records) < 4 {
		return models.TrendStable
	}
	if cv > volatileCV {
		return models.TrendVolatile
	}

	half := len(records) / 2
	firstNet, secondNet := 0.0, 0.0
	for i, v := range stats.amounts {
		if i < half {
			firstNet += v
		} else {
			secondNet += v
		}
	}

	totalVolume := 0.0
	for _, v := range stats.amounts {
		totalVolume += math.Abs(v)
	}
	diff := secondNet - firstNet
	band := trendBand * totalVolume
	switch {
	case diff > band:
		return models.TrendImproving
	case diff < -band:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

func buildRecommendations(flags models.Flags) []models.Recommendation {
	recs := []models.Recommendation{}
	if flags.NegativeCashFlow {
		recs = append(recs, models.Recommendation{
			Category:  "cashflow",
			Priority:  models.PriorityHigh,
			Action:    "Reduce discretionary spending",
			Rationale: "Outflows exceed inflows over the analyzed window",
			Impact:    "Restores a positive net position",
		})
	}
	if flags.FraudSuspected {
		recs = append(recs, models.Recommendation{
			Category:  "fraud",
			Priority:  models.PriorityHigh,
			Action:    "Review flagged charges with the issuing bank",
			Rationale: "Duplicate or oversized charges detected",
		})
	}
	if flags.LargeCashMovements {
		recs = append(recs, models.Recommendation{
			Category:  "compliance",
			Priority:  models.PriorityMedium,
			Action:    "Verify documentation for large transfers",
			Rationale: "Movements above the reporting threshold",
		})
	}
	if flags.VelocitySpike || flags.IrregularPattern {
		recs = append(recs, models.Recommendation{
			Category:  "monitoring",
			Priority:  models.PriorityMedium,
			Action:    "Tighten alerting on this account",
			Rationale: "Transaction pattern deviates from its baseline",
		})
	}
	if len(recs) == 0 {
		recs = append(recs, models.Recommendation{
			Category:  "general",
			Priority:  models.PriorityLow,
			Action:    "Maintain current controls",
			Rationale: "No adverse signals in the analyzed window",
		})
	}
	return recs
}

func coefficientOfVariation(stats windowStats) float64 {
	if stats.meanAbs == 0 {
		return 0
	}
	return stats.stddev / stats.meanAbs
}
