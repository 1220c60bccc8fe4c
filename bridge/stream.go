package bridge

import (
	"context"

	"github.com/finsightlab/mlbridge/models"
)

// Chunk is one push-based delivery from a record source. A non-nil Err
// means the source failed; no further chunks follow it.
type Chunk struct {
	Records []models.TransactionRecord
	Err     error
}

// Materialize drains a push-based chunk stream into one AnalysisInput,
// concatenating records in arrival order. The channel closing signals
// completion. A chunk carrying an error aborts with StreamError and
// discards everything accumulated so far; there is no partial delivery.
func Materialize(ctx context.Context, chunks <-chan Chunk) (*models.AnalysisInput, error) {
	var records []models.TransactionRecord
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return &models.AnalysisInput{Transactions: records}, nil
			}
			if chunk.Err != nil {
				return nil, &StreamError{Err: chunk.Err}
			}
			records = append(records, chunk.Records...)
		}
	}
}
