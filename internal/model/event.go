package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EventName identifies a vault contract event.
type EventName string

const (
	EventDeposited   EventName = "Deposited"
	EventWithdrawn   EventName = "Withdrawn"
	EventProfitAdded EventName = "ProfitAdded"
)

// KnownEvents are the events with a typed payload.
var KnownEvents = []EventName{EventDeposited, EventWithdrawn, EventProfitAdded}

// DepositedEvent is emitted when a user deposits into the vault.
type DepositedEvent struct {
	User       common.Address
	AmountMMM  *big.Int
	AmountUSDT *big.Int
}

// WithdrawnEvent is emitted when a user requests a withdrawal.
type WithdrawnEvent struct {
	User       common.Address
	AmountMMM  *big.Int
	AmountUSDT *big.Int
}

// ProfitAddedEvent is emitted when strategy profit is reported on chain.
type ProfitAddedEvent struct {
	AmountUSDT *big.Int
}

// ContractEvent is a decoded contract log. Exactly one of the typed payloads
// is set for a known event name; other names carry RawArgs only.
type ContractEvent struct {
	Contract    string
	Name        EventName
	BlockNumber uint64
	TxHash      string
	LogIndex    uint

	Deposited   *DepositedEvent
	Withdrawn   *WithdrawnEvent
	ProfitAdded *ProfitAddedEvent

	RawArgs []string
}

type contractEventWire struct {
	Contract    string   `json:"contract"`
	Event       string   `json:"event"`
	Args        []string `json:"args"`
	BlockNumber uint64   `json:"blockNumber"`
	TxHash      string   `json:"txHash,omitempty"`
	LogIndex    uint     `json:"logIndex"`
}

// Validate checks that the typed payload matches the event name.
func (e ContractEvent) Validate() error {
	if e.Contract == "" {
		return fmt.Errorf("contract name is required")
	}
	switch e.Name {
	case EventDeposited:
		if e.Deposited == nil || e.Deposited.AmountMMM == nil || e.Deposited.AmountUSDT == nil {
			return fmt.Errorf("deposited payload is incomplete")
		}
	case EventWithdrawn:
		if e.Withdrawn == nil || e.Withdrawn.AmountMMM == nil || e.Withdrawn.AmountUSDT == nil {
			return fmt.Errorf("withdrawn payload is incomplete")
		}
	case EventProfitAdded:
		if e.ProfitAdded == nil || e.ProfitAdded.AmountUSDT == nil {
			return fmt.Errorf("profit payload is incomplete")
		}
	case "":
		return fmt.Errorf("event name is required")
	}
	return nil
}

// Args returns the ordered event arguments with integers as decimal strings.
func (e ContractEvent) Args() []string {
	switch {
	case e.Name == EventDeposited && e.Deposited != nil:
		return []string{e.Deposited.User.Hex(), decimalString(e.Deposited.AmountMMM), decimalString(e.Deposited.AmountUSDT)}
	case e.Name == EventWithdrawn && e.Withdrawn != nil:
		return []string{e.Withdrawn.User.Hex(), decimalString(e.Withdrawn.AmountMMM), decimalString(e.Withdrawn.AmountUSDT)}
	case e.Name == EventProfitAdded && e.ProfitAdded != nil:
		return []string{decimalString(e.ProfitAdded.AmountUSDT)}
	default:
		out := make([]string, len(e.RawArgs))
		copy(out, e.RawArgs)
		return out
	}
}

// CorrelationID is stable for a given log, so a redelivered or replayed
// event maps to the same id.
func (e ContractEvent) CorrelationID() string {
	key := fmt.Sprintf("%s|%s|%d|%s|%d", e.Contract, e.Name, e.BlockNumber, strings.ToLower(e.TxHash), e.LogIndex)
	return crypto.Keccak256Hash([]byte(key)).Hex()
}

// MarshalJSON encodes the queue payload shape.
func (e ContractEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(contractEventWire{
		Contract:    e.Contract,
		Event:       string(e.Name),
		Args:        e.Args(),
		BlockNumber: e.BlockNumber,
		TxHash:      e.TxHash,
		LogIndex:    e.LogIndex,
	})
}

// UnmarshalJSON decodes the queue payload and rebuilds the typed variant.
func (e *ContractEvent) UnmarshalJSON(data []byte) error {
	var w contractEventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := ContractEvent{
		Contract:    w.Contract,
		Name:        EventName(w.Event),
		BlockNumber: w.BlockNumber,
		TxHash:      w.TxHash,
		LogIndex:    w.LogIndex,
	}

	switch out.Name {
	case EventDeposited:
		user, mmm, usdt, err := parseUserAmounts(w.Args)
		if err != nil {
			return fmt.Errorf("decode %s args: %w", out.Name, err)
		}
		out.Deposited = &DepositedEvent{User: user, AmountMMM: mmm, AmountUSDT: usdt}
	case EventWithdrawn:
		user, mmm, usdt, err := parseUserAmounts(w.Args)
		if err != nil {
			return fmt.Errorf("decode %s args: %w", out.Name, err)
		}
		out.Withdrawn = &WithdrawnEvent{User: user, AmountMMM: mmm, AmountUSDT: usdt}
	case EventProfitAdded:
		if len(w.Args) != 1 {
			return fmt.Errorf("decode %s args: expected 1 arg, got %d", out.Name, len(w.Args))
		}
		amount, err := parseDecimal(w.Args[0])
		if err != nil {
			return fmt.Errorf("decode %s args: %w", out.Name, err)
		}
		out.ProfitAdded = &ProfitAddedEvent{AmountUSDT: amount}
	default:
		out.RawArgs = w.Args
	}

	*e = out
	return nil
}

func parseUserAmounts(args []string) (common.Address, *big.Int, *big.Int, error) {
	if len(args) != 3 {
		return common.Address{}, nil, nil, fmt.Errorf("expected 3 args, got %d", len(args))
	}
	if !common.IsHexAddress(args[0]) {
		return common.Address{}, nil, nil, fmt.Errorf("invalid user address: %s", args[0])
	}
	mmm, err := parseDecimal(args[1])
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	usdt, err := parseDecimal(args[2])
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	return common.HexToAddress(args[0]), mmm, usdt, nil
}

func parseDecimal(value string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount: %q", value)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", value)
	}
	return n, nil
}

func decimalString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
