package models

import "context"

// Analyzer is the black-box computation over one batch of transactions.
// The production implementation runs the external model as a subprocess;
// tests and local runs use an in-memory implementation.
type Analyzer interface {
	Analyze(ctx context.Context, input *AnalysisInput) (*AnalysisResult, error)
}
