package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"checksummed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", false},
		{"lowercase", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
		{"uppercase", "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED", false},
		{"bad checksum", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD", true},
		{"short", "0x1234", true},
		{"not hex", "vault", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", addr.Hex())
		})
	}
}

func TestParseContractDefaultsEvents(t *testing.T) {
	spec, err := ParseContract(" vault ", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", []string{" ", ""})
	require.NoError(t, err)
	assert.Equal(t, "vault", spec.Name)
	assert.Equal(t, []string{"Deposited", "Withdrawn", "ProfitAdded"}, spec.Events)

	_, err = ParseContract("", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", nil)
	assert.Error(t, err)
}
