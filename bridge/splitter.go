package bridge

import "github.com/finsightlab/mlbridge/models"

// Split partitions records into contiguous chunks of at most batchSize,
// preserving order; the last chunk may be shorter. Chunks are subslices of
// the original backing array, so no records are copied. A non-positive
// batchSize falls back to DefaultBatchSize.
func Split(records []models.TransactionRecord, batchSize int) [][]models.TransactionRecord {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if len(records) == 0 {
		return nil
	}

	chunks := make([][]models.TransactionRecord, 0, (len(records)+batchSize-1)/batchSize)
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
