package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const stakingABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "user", "type": "address"}], "name": "getStakingAmount", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

var (
	stakingABI     abi.ABI
	stakingABIOnce sync.Once
	stakingABIErr  error
)

func getStakingABI() (abi.ABI, error) {
	stakingABIOnce.Do(func() {
		stakingABI, stakingABIErr = abi.JSON(strings.NewReader(stakingABIJSON))
	})
	return stakingABI, stakingABIErr
}

// ContractCaller is the eth_call subset of Client.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// StakeReader reads staked balances from the staking contract.
type StakeReader struct {
	caller  ContractCaller
	staking common.Address
}

func NewStakeReader(caller ContractCaller, staking common.Address) *StakeReader {
	return &StakeReader{caller: caller, staking: staking}
}

// StakedAmount returns the amount staked by account at the latest block.
func (r *StakeReader) StakedAmount(ctx context.Context, account common.Address) (*big.Int, error) {
	if r.caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	stakeABI, err := getStakingABI()
	if err != nil {
		return nil, err
	}

	data, err := stakeABI.Pack("getStakingAmount", account)
	if err != nil {
		return nil, fmt.Errorf("pack getStakingAmount: %w", err)
	}

	msg := ethereum.CallMsg{To: &r.staking, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call getStakingAmount: %w", err)
	}

	values, err := stakeABI.Unpack("getStakingAmount", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack getStakingAmount: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getStakingAmount return size %d", len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("getStakingAmount unexpected type %T", values[0])
	}
	return amount, nil
}
