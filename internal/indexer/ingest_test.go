package indexer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/contract"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

func TestHandleEnqueuesDecodedEvent(t *testing.T) {
	q := &recordingQueue{}
	ing := newTestIngestor(t, q)

	require.NoError(t, ing.handle(context.Background(), depositLog(t, 42, 3, 1000)))

	events := q.snapshot()
	require.Len(t, events, 1)
	got := events[0]
	assert.Equal(t, "vault", got.Contract)
	assert.Equal(t, model.EventDeposited, got.Name)
	assert.Equal(t, uint64(42), got.BlockNumber)
	assert.Equal(t, uint(3), got.LogIndex)
	require.NotNil(t, got.Deposited)
	assert.Equal(t, testUser, got.Deposited.User)
	assert.Equal(t, "1000", got.Deposited.AmountUSDT.String())
}

func TestHandleSkipsRemovedForeignAndUnwatched(t *testing.T) {
	q := &recordingQueue{}
	decoder, err := contract.NewDecoder()
	require.NoError(t, err)
	ing, err := NewIngestor([]ContractSpec{{Name: "vault", Address: vaultAddress, Events: []string{"withdrawn"}}}, decoder, q, nil)
	require.NoError(t, err)

	removed := depositLog(t, 1, 0, 1)
	removed.Removed = true
	foreign := depositLog(t, 1, 1, 1)
	foreign.Address = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	unwatched := depositLog(t, 1, 2, 1)
	garbage := depositLog(t, 1, 3, 1)
	garbage.Data = []byte{0x01}

	ctx := context.Background()
	require.NoError(t, ing.handle(ctx, removed))
	require.NoError(t, ing.handle(ctx, foreign))
	require.NoError(t, ing.handle(ctx, unwatched))
	require.NoError(t, ing.handle(ctx, garbage))
	assert.Empty(t, q.snapshot())
}

func TestNewIngestorValidates(t *testing.T) {
	decoder, err := contract.NewDecoder()
	require.NoError(t, err)
	q := &recordingQueue{}

	_, err = NewIngestor(nil, decoder, q, nil)
	assert.Error(t, err)

	_, err = NewIngestor([]ContractSpec{{Name: "vault", Address: vaultAddress, Events: []string{"Transfer"}}}, decoder, q, nil)
	assert.Error(t, err)

	dup := ContractSpec{Name: "vault", Address: vaultAddress, Events: DefaultEvents()}
	_, err = NewIngestor([]ContractSpec{dup, dup}, decoder, q, nil)
	assert.Error(t, err)
}

func TestIngestorTopicsAreUnique(t *testing.T) {
	decoder, err := contract.NewDecoder()
	require.NoError(t, err)
	ing, err := NewIngestor([]ContractSpec{
		{Name: "a", Address: vaultAddress, Events: DefaultEvents()},
		{Name: "b", Address: common.HexToAddress("0x00000000000000000000000000000000000000f2"), Events: []string{"Deposited"}},
	}, decoder, &recordingQueue{}, nil)
	require.NoError(t, err)

	topics, err := ing.Topics()
	require.NoError(t, err)
	assert.Len(t, topics, 3)
	assert.Len(t, ing.Addresses(), 2)
}
