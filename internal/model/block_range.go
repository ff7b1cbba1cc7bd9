package model

import (
	"fmt"
	"math"
)

// UnboundedBlock marks an open-ended range end.
const UnboundedBlock = math.MaxUint64

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Contains reports whether block lies inside the range.
func (r BlockRange) Contains(block uint64) bool {
	return block >= r.From && block <= r.To
}

// Split cuts the range into consecutive batches of at most batchSize blocks.
func (r BlockRange) Split(batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if r.To < r.From {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	batches := make([]BlockRange, 0, (r.To-r.From)/batchSize+1)
	for start := r.From; ; {
		end := r.To
		if r.To-start >= batchSize {
			end = start + batchSize - 1
		}
		batches = append(batches, BlockRange{From: start, To: end})
		if end == r.To {
			return batches, nil
		}
		start = end + 1
	}
}
