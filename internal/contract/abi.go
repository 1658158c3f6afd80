package contract

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const vaultABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountMMM", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountUSDT", "type": "uint256"}
    ],
    "name": "Deposited",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountMMM", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountUSDT", "type": "uint256"}
    ],
    "name": "Withdrawn",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "amountUSDT", "type": "uint256"}
    ],
    "name": "ProfitAdded",
    "type": "event"
  }
]`

var (
	vaultABIOnce sync.Once
	vaultABI     abi.ABI
	vaultABIErr  error
)

// VaultABI returns the parsed event ABI of the vault contract.
func VaultABI() (abi.ABI, error) {
	vaultABIOnce.Do(func() {
		vaultABI, vaultABIErr = abi.JSON(strings.NewReader(vaultABIJSON))
	})
	return vaultABI, vaultABIErr
}
