package bridge

import (
	"math"

	"github.com/finsightlab/mlbridge/models"
)

// Aggregate folds per-batch results into one result logically equivalent to
// analyzing the whole dataset in a single call. Each batch weighs in with
// its meta.recordCount, so scalar scores stay unbiased regardless of how
// unevenly the splitter cut the data. The fold is commutative apart from
// floating-point summation order.
func Aggregate(results []*models.AnalysisResult) (*models.AnalysisResult, error) {
	if len(results) == 0 {
		return nil, ErrEmptyBatchList
	}
	// A lone batch is returned untouched so a no-op fold cannot introduce
	// floating-point drift.
	if len(results) == 1 {
		return results[0], nil
	}

	weights := make([]float64, len(results))
	var totalWeight float64
	for i, r := range results {
		weights[i] = float64(r.Meta.RecordCount)
		totalWeight += weights[i]
	}
	// Degenerate weights collapse to an unweighted mean.
	if totalWeight <= 0 {
		for i := range weights {
			weights[i] = 1
		}
		totalWeight = float64(len(results))
	}

	return &models.AnalysisResult{
		Summary:         foldSummary(results, weights, totalWeight),
		Flags:           foldFlags(results),
		Metrics:         foldMetrics(results),
		Anomalies:       dedupAnomalies(results),
		Recommendations: dedupRecommendations(results),
		Meta:            foldMeta(results),
	}, nil
}

// foldSummary applies the per-field treatment: record-weighted means for
// the score-like scalars, plain sums for the flow counters, and a weighted
// vote for the trend.
func foldSummary(results []*models.AnalysisResult, weights []float64, totalWeight float64) models.Summary {
	var (
		risk, fraud, confidence   float64
		volatility, velocity      float64
		avgTransaction, liquidity float64
		netCashFlow               float64
		anomalyCount              int
	)
	for i, r := range results {
		w := weights[i]
		risk += r.Summary.RiskScore * w
		fraud += r.Summary.FraudScore * w
		confidence += r.Summary.Confidence * w
		volatility += r.Summary.Volatility * w
		velocity += r.Summary.VelocityScore * w
		avgTransaction += r.Summary.AvgTransaction * w
		liquidity += r.Summary.LiquidityRatio * w

		netCashFlow += r.Summary.NetCashFlow
		anomalyCount += r.Summary.AnomalyCount
	}

	return models.Summary{
		NetCashFlow:    netCashFlow,
		AvgTransaction: avgTransaction / totalWeight,
		RiskScore:      clamp01(risk / totalWeight),
		FraudScore:     clamp01(fraud / totalWeight),
		Confidence:     clamp01(confidence / totalWeight),
		Volatility:     volatility / totalWeight,
		Trend:          foldTrend(results, weights),
		LiquidityRatio: liquidity / totalWeight,
		VelocityScore:  velocity / totalWeight,
		AnomalyCount:   anomalyCount,
	}
}

// foldTrend picks the trend with the largest combined record weight; ties
// resolve to the trend seen first in batch order.
func foldTrend(results []*models.AnalysisResult, weights []float64) models.Trend {
	votes := make(map[models.Trend]float64, 4)
	order := make([]models.Trend, 0, 4)
	for i, r := range results {
		trend := r.Summary.Trend
		if _, seen := votes[trend]; !seen {
			order = append(order, trend)
		}
		votes[trend] += weights[i]
	}

	winner := order[0]
	for _, trend := range order[1:] {
		if votes[trend] > votes[winner] {
			winner = trend
		}
	}
	return winner
}

// foldFlags ORs every flag: raised in any batch means raised overall.
func foldFlags(results []*models.AnalysisResult) models.Flags {
	var f models.Flags
	for _, r := range results {
		f.HighRisk = f.HighRisk || r.Flags.HighRisk
		f.FraudSuspected = f.FraudSuspected || r.Flags.FraudSuspected
		f.VelocitySpike = f.VelocitySpike || r.Flags.VelocitySpike
		f.LargeCashMovements = f.LargeCashMovements || r.Flags.LargeCashMovements
		f.IrregularPattern = f.IrregularPattern || r.Flags.IrregularPattern
		f.NegativeCashFlow = f.NegativeCashFlow || r.Flags.NegativeCashFlow
	}
	return f
}

func foldMetrics(results []*models.AnalysisResult) models.Metrics {
	m := models.Metrics{
		LargestTransaction:  math.Inf(-1),
		SmallestTransaction: math.Inf(1),
	}
	for _, r := range results {
		m.TotalTransactions += r.Metrics.TotalTransactions
		m.TotalVolume += r.Metrics.TotalVolume
		m.PositiveCount += r.Metrics.PositiveCount
		m.NegativeCount += r.Metrics.NegativeCount
		m.LargestTransaction = math.Max(m.LargestTransaction, r.Metrics.LargestTransaction)
		m.SmallestTransaction = math.Min(m.SmallestTransaction, r.Metrics.SmallestTransaction)
	}

	m.Merchants, m.UniqueMerchants = unionOrBound(results,
		func(r *models.AnalysisResult) []string { return r.Metrics.Merchants },
		func(r *models.AnalysisResult) int { return r.Metrics.UniqueMerchants })
	m.Categories, m.UniqueCategories = unionOrBound(results,
		func(r *models.AnalysisResult) []string { return r.Metrics.Categories },
		func(r *models.AnalysisResult) int { return r.Metrics.UniqueCategories })
	return m
}

// unionOrBound merges the explicit value sets when every batch carries one,
// reporting the exact union and its cardinality. If any batch brought only
// a count, the union is unknowable; summing the counts would double-count
// values spanning batches, so the largest per-batch count is reported
// instead as the best provable lower bound.
func unionOrBound(results []*models.AnalysisResult, set func(*models.AnalysisResult) []string, count func(*models.AnalysisResult) int) ([]string, int) {
	for _, r := range results {
		if len(set(r)) == 0 {
			highest := 0
			for _, r := range results {
				if c := count(r); c > highest {
					highest = c
				}
			}
			return nil, highest
		}
	}

	seen := make(map[string]struct{})
	var union []string
	for _, r := range results {
		for _, v := range set(r) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			union = append(union, v)
		}
	}
	return union, len(union)
}

// dedupAnomalies concatenates in batch order and keeps the first occurrence
// of every (type, description) pair.
func dedupAnomalies(results []*models.AnalysisResult) []models.Anomaly {
	type anomalyKey struct {
		anomalyType string
		description string
	}
	seen := make(map[anomalyKey]struct{})
	var out []models.Anomaly
	for _, r := range results {
		for _, a := range r.Anomalies {
			k := anomalyKey{a.Type, a.Description}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// dedupRecommendations keeps the first recommendation per action.
func dedupRecommendations(results []*models.AnalysisResult) []models.Recommendation {
	seen := make(map[string]struct{})
	var out []models.Recommendation
	for _, r := range results {
		for _, rec := range r.Recommendations {
			if _, ok := seen[rec.Action]; ok {
				continue
			}
			seen[rec.Action] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

// foldMeta sums counts and wall-clock times (batches run sequentially),
// stamps the latest batch timestamp and keeps the first batch's model
// version; mixed versions within one call are a caller contract violation.
func foldMeta(results []*models.AnalysisResult) models.Meta {
	meta := models.Meta{
		ModelVersion: results[0].Meta.ModelVersion,
		Timestamp:    results[0].Meta.Timestamp,
	}
	for _, r := range results {
		meta.RecordCount += r.Meta.RecordCount
		meta.ProcessingTimeMs += r.Meta.ProcessingTimeMs
		if r.Meta.Timestamp.After(meta.Timestamp) {
			meta.Timestamp = r.Meta.Timestamp
		}
	}
	return meta
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
