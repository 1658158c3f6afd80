package contract

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

func TestDecoderDeposited(t *testing.T) {
	vaultABI, err := VaultABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	user := common.HexToAddress("0x2222222222222222222222222222222222222222")
	amountUSDT, _ := new(big.Int).SetString("1000000000000000000000", 10)
	data, err := vaultABI.Events["Deposited"].Inputs.NonIndexed().Pack(big.NewInt(10), amountUSDT)
	if err != nil {
		t.Fatalf("pack deposited: %v", err)
	}

	log := buildLog(vaultABI.Events["Deposited"].ID, data, topicFromAddress(user))
	event, err := decoder.Decode("Token1", log)
	if err != nil {
		t.Fatalf("decode deposited: %v", err)
	}

	if event.Name != model.EventDeposited || event.Deposited == nil {
		t.Fatalf("unexpected variant: %+v", event)
	}
	if event.Deposited.User != user {
		t.Fatalf("user mismatch: %s", event.Deposited.User.Hex())
	}
	if event.Deposited.AmountMMM.Int64() != 10 || event.Deposited.AmountUSDT.Cmp(amountUSDT) != 0 {
		t.Fatalf("amount mismatch: %+v", event.Deposited)
	}
	if event.BlockNumber != 123 || event.LogIndex != 4 || event.Contract != "Token1" {
		t.Fatalf("metadata mismatch: %+v", event)
	}
}

func TestDecoderWithdrawnAndProfit(t *testing.T) {
	vaultABI, err := VaultABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	user := common.HexToAddress("0x4444444444444444444444444444444444444444")
	data, err := vaultABI.Events["Withdrawn"].Inputs.NonIndexed().Pack(big.NewInt(100), big.NewInt(55))
	if err != nil {
		t.Fatalf("pack withdrawn: %v", err)
	}
	withdrawn, err := decoder.Decode("Token1", buildLog(vaultABI.Events["Withdrawn"].ID, data, topicFromAddress(user)))
	if err != nil {
		t.Fatalf("decode withdrawn: %v", err)
	}
	if withdrawn.Withdrawn == nil || withdrawn.Withdrawn.AmountMMM.Int64() != 100 || withdrawn.Withdrawn.User != user {
		t.Fatalf("withdrawn mismatch: %+v", withdrawn.Withdrawn)
	}

	data, err = vaultABI.Events["ProfitAdded"].Inputs.NonIndexed().Pack(big.NewInt(77))
	if err != nil {
		t.Fatalf("pack profit: %v", err)
	}
	profit, err := decoder.Decode("Token1", buildLog(vaultABI.Events["ProfitAdded"].ID, data))
	if err != nil {
		t.Fatalf("decode profit: %v", err)
	}
	if profit.ProfitAdded == nil || profit.ProfitAdded.AmountUSDT.Int64() != 77 {
		t.Fatalf("profit mismatch: %+v", profit.ProfitAdded)
	}
}

func TestDecoderRejectsUnknownTopic(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	log := buildLog(common.HexToHash("0x01"), nil)
	if decoder.CanDecode(log.Topics[0]) {
		t.Fatalf("unknown topic reported as decodable")
	}
	if _, err := decoder.Decode("Token1", log); err == nil {
		t.Fatalf("expected error for unknown topic")
	}
}

func TestDecoderTopics(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	topics, err := decoder.Topics([]string{"deposited", "Withdrawn", " ProfitAdded "})
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if len(topics) != 3 {
		t.Fatalf("expected 3 topics, got %d", len(topics))
	}
	for _, topic := range topics {
		if !decoder.CanDecode(topic) {
			t.Fatalf("topic %s not decodable", topic.Hex())
		}
	}
	if _, err := decoder.Topics([]string{"Swap"}); err == nil {
		t.Fatalf("expected error for unsupported event")
	}
}

func buildLog(topic0 common.Hash, data []byte, indexed ...common.Hash) types.Log {
	topics := append([]common.Hash{topic0}, indexed...)
	return types.Log{
		Address:     common.HexToAddress("0xc9Cf4D74BF240B26ae1b613f85696eE8DA0aD549"),
		Topics:      topics,
		Data:        data,
		BlockNumber: 123,
		TxHash:      common.HexToHash("0xdef456"),
		Index:       4,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
