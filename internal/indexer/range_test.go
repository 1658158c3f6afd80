package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		from, to uint64
		size     uint64
		want     []BlockRange
	}{
		{
			name: "even batches",
			from: 100, to: 105, size: 2,
			want: []BlockRange{{100, 101}, {102, 103}, {104, 105}},
		},
		{
			name: "single block",
			from: 5, to: 5, size: 10,
			want: []BlockRange{{5, 5}},
		},
		{
			name: "provider limit",
			from: 1, to: 1001, size: DefaultMaxRange,
			want: []BlockRange{{1, 500}, {501, 1000}, {1001, 1001}},
		},
		{
			name: "top of uint64",
			from: ^uint64(0) - 1, to: ^uint64(0), size: 500,
			want: []BlockRange{{^uint64(0) - 1, ^uint64(0)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitRange(tt.from, tt.to, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			var blocks uint64
			for _, r := range got {
				blocks += r.Len()
			}
			assert.Equal(t, tt.to-tt.from+1, blocks)
		})
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	t.Parallel()

	_, err := SplitRange(10, 9, 1)
	assert.Error(t, err)

	_, err = SplitRange(1, 10, 0)
	assert.Error(t, err)
}

func TestBlockRangeString(t *testing.T) {
	assert.Equal(t, "501-1000", BlockRange{From: 501, To: 1000}.String())
}
