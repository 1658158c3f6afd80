package indexer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/contract"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

var (
	vaultAddress = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	testUser     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type recordingQueue struct {
	mu     sync.Mutex
	events []model.ContractEvent
	err    error
	// failures makes the next n calls fail with a broker error.
	failures int
}

func (q *recordingQueue) Enqueue(_ context.Context, _ string, event model.ContractEvent) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	if q.failures > 0 {
		q.failures--
		return "", errors.New("redis: connection refused")
	}
	q.events = append(q.events, event)
	return "job", nil
}

func (q *recordingQueue) snapshot() []model.ContractEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.ContractEvent(nil), q.events...)
}

func newTestIngestor(t *testing.T, q *recordingQueue) *Ingestor {
	t.Helper()
	decoder, err := contract.NewDecoder()
	require.NoError(t, err)
	ing, err := NewIngestor([]ContractSpec{{Name: "vault", Address: vaultAddress, Events: DefaultEvents()}}, decoder, q, nil)
	require.NoError(t, err)
	return ing.WithEnqueueRetry(0, 0)
}

func depositLog(t *testing.T, block uint64, index uint, amountUSDT int64) types.Log {
	t.Helper()
	vaultABI, err := contract.VaultABI()
	require.NoError(t, err)
	event := vaultABI.Events["Deposited"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(amountUSDT), big.NewInt(amountUSDT))
	require.NoError(t, err)

	return types.Log{
		Address:     vaultAddress,
		Topics:      []common.Hash{event.ID, common.BytesToHash(testUser.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
		Index:       index,
	}
}

type rangeCall struct {
	From uint64
	To   uint64
}

// fakeSource serves logs from a fixed set by block range.
type fakeSource struct {
	logs   []types.Log
	head   uint64
	calls  []rangeCall
	failAt map[uint64]int
}

func (s *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	s.calls = append(s.calls, rangeCall{From: from, To: to})
	if s.failAt[from] > 0 {
		s.failAt[from]--
		return nil, context.DeadlineExceeded
	}
	var out []types.Log
	for _, l := range s.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *fakeSource) LatestBlockNumber(context.Context) (uint64, error) {
	return s.head, nil
}
