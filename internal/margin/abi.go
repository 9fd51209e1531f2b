package margin

import "marginScope/internal/dex"

const borrowerABIJSON = `[
  {
    "inputs": [],
    "name": "getUniswapPositions",
    "outputs": [{"internalType": "int24[]", "name": "", "type": "int24[]"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const lenderABIJSON = `[
  {
    "inputs": [{"internalType": "address", "name": "account", "type": "address"}],
    "name": "borrowBalanceStored",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "account", "type": "address"}],
    "name": "underlyingBalanceStored",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	borrowerABI = dex.NewLazyABI(borrowerABIJSON)
	lenderABI   = dex.NewLazyABI(lenderABIJSON)
)
