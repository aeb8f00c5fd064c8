package poller

import "fmt"

// Partition splits an ordered tag list into contiguous batches of at most
// maxBatchSize tags, preserving order.
//
// Every batch except possibly the last has exactly maxBatchSize tags; the
// concatenation of the batches reconstructs the input exactly. Batches
// share the input's backing array; callers must not mutate them.
//
// Parameters:
//   - tags: Ordered tag list (may be empty)
//   - maxBatchSize: Maximum tags per batch
//
// Returns:
//   - [][]string: ceil(len(tags)/maxBatchSize) batches, nil for no tags
//   - error: ErrInvalidBatchSize if maxBatchSize is not positive
func Partition(tags []string, maxBatchSize int) ([][]string, error) {
	if maxBatchSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, maxBatchSize)
	}
	if len(tags) == 0 {
		return nil, nil
	}

	batches := make([][]string, 0, (len(tags)+maxBatchSize-1)/maxBatchSize)
	for start := 0; start < len(tags); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(tags) {
			end = len(tags)
		}
		batches = append(batches, tags[start:end])
	}
	return batches, nil
}
