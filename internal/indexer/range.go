package indexer

import "fmt"

// BlockRange is an inclusive span of blocks requested in one getLogs call.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len is the number of blocks in the range.
func (r BlockRange) Len() uint64 { return r.To - r.From + 1 }

func (r BlockRange) String() string { return fmt.Sprintf("%d-%d", r.From, r.To) }

// SplitRange cuts [from, to] into consecutive ranges of at most size blocks,
// in ascending order. The last range may be shorter.
func SplitRange(from, to, size uint64) ([]BlockRange, error) {
	switch {
	case size == 0:
		return nil, fmt.Errorf("max range must be greater than zero")
	case to < from:
		return nil, fmt.Errorf("invalid block range %d-%d", from, to)
	}

	ranges := make([]BlockRange, 0, (to-from)/size+1)
	for start := from; ; start += size {
		end := to
		if to-start >= size {
			end = start + size - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
	}
}
