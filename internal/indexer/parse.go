package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

// ContractSpec is one watched contract.
type ContractSpec struct {
	Name    string
	Address common.Address
	Events  []string
}

// DefaultEvents are subscribed when a contract lists none.
func DefaultEvents() []string {
	events := make([]string, 0, len(model.KnownEvents))
	for _, name := range model.KnownEvents {
		events = append(events, string(name))
	}
	return events
}

// ParseAddress validates a hex address. Mixed-case input must carry a valid
// EIP-55 checksum.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	addr := common.HexToAddress(input)

	body := strings.TrimPrefix(strings.TrimPrefix(input, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if addr.Hex() != "0x"+body {
			return common.Address{}, fmt.Errorf("bad checksum for address: %s", input)
		}
	}
	return addr, nil
}

// ParseContract builds a ContractSpec from config values.
func ParseContract(name, address string, events []string) (ContractSpec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ContractSpec{}, fmt.Errorf("contract name is required")
	}
	addr, err := ParseAddress(address)
	if err != nil {
		return ContractSpec{}, fmt.Errorf("contract %s: %w", name, err)
	}

	cleaned := make([]string, 0, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			cleaned = append(cleaned, e)
		}
	}
	if len(cleaned) == 0 {
		cleaned = DefaultEvents()
	}

	return ContractSpec{Name: name, Address: addr, Events: cleaned}, nil
}
