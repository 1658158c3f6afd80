package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

// Decoder turns vault logs into typed contract events.
type Decoder struct {
	vaultABI    abi.ABI
	topicToName map[common.Hash]model.EventName
}

// NewDecoder builds a decoder for the vault events.
func NewDecoder() (*Decoder, error) {
	vaultABI, err := VaultABI()
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}

	topicToName := make(map[common.Hash]model.EventName, len(model.KnownEvents))
	for _, name := range model.KnownEvents {
		event, ok := vaultABI.Events[string(name)]
		if !ok {
			return nil, fmt.Errorf("event %s missing from abi", name)
		}
		topicToName[event.ID] = name
	}

	return &Decoder{vaultABI: vaultABI, topicToName: topicToName}, nil
}

// Topics returns topic0 hashes for the given event names.
func (d *Decoder) Topics(names []string) ([]common.Hash, error) {
	topics := make([]common.Hash, 0, len(names))
	for _, name := range names {
		name = NormalizeEventName(name)
		event, ok := d.vaultABI.Events[name]
		if !ok {
			return nil, fmt.Errorf("unsupported event name: %s", name)
		}
		topics = append(topics, event.ID)
	}
	return topics, nil
}

// CanDecode checks if the topic0 belongs to a known event.
func (d *Decoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.topicToName[topic0]
	return ok
}

// Decode converts a raw log emitted by the named contract.
func (d *Decoder) Decode(contractName string, log types.Log) (model.ContractEvent, error) {
	if len(log.Topics) == 0 {
		return model.ContractEvent{}, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[log.Topics[0]]
	if !ok {
		return model.ContractEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	out := model.ContractEvent{
		Contract:    contractName,
		Name:        name,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    log.Index,
	}

	switch name {
	case model.EventDeposited:
		user, mmm, usdt, err := d.decodeUserAmounts(name, log)
		if err != nil {
			return model.ContractEvent{}, err
		}
		out.Deposited = &model.DepositedEvent{User: user, AmountMMM: mmm, AmountUSDT: usdt}
	case model.EventWithdrawn:
		user, mmm, usdt, err := d.decodeUserAmounts(name, log)
		if err != nil {
			return model.ContractEvent{}, err
		}
		out.Withdrawn = &model.WithdrawnEvent{User: user, AmountMMM: mmm, AmountUSDT: usdt}
	case model.EventProfitAdded:
		amount, err := d.decodeProfit(log)
		if err != nil {
			return model.ContractEvent{}, err
		}
		out.ProfitAdded = &model.ProfitAddedEvent{AmountUSDT: amount}
	default:
		return model.ContractEvent{}, fmt.Errorf("unsupported event name: %s", name)
	}

	return out, nil
}

func (d *Decoder) decodeUserAmounts(name model.EventName, log types.Log) (common.Address, *big.Int, *big.Int, error) {
	event := d.vaultABI.Events[string(name)]
	indexedTopics, err := indexedTopics(event, log.Topics)
	if err != nil {
		return common.Address{}, nil, nil, err
	}

	var indexed struct {
		User common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	if len(values) != 2 {
		return common.Address{}, nil, nil, fmt.Errorf("unexpected %s values: %d", name, len(values))
	}

	mmm, err := asBigInt(values[0])
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	usdt, err := asBigInt(values[1])
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	return indexed.User, mmm, usdt, nil
}

func (d *Decoder) decodeProfit(log types.Log) (*big.Int, error) {
	event := d.vaultABI.Events[string(model.EventProfitAdded)]
	if _, err := indexedTopics(event, log.Topics); err != nil {
		return nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected profit values: %d", len(values))
	}
	return asBigInt(values[0])
}

// NormalizeEventName maps case-insensitive input to the ABI event name.
func NormalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "deposited":
		return string(model.EventDeposited)
	case "withdrawn":
		return string(model.EventWithdrawn)
	case "profitadded":
		return string(model.EventProfitAdded)
	default:
		return strings.TrimSpace(name)
	}
}

func indexedTopics(event abi.Event, topics []common.Hash) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return topics[1:], nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
