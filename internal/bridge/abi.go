package bridge

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const bridgeAdminABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "chainId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "l1Token", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "l2Token", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "bridgePool", "type": "address"}
    ],
    "name": "WhitelistToken",
    "type": "event"
  }
]`

const relayDataComponents = `[
  {"internalType": "enum BridgePool.RelayState", "name": "relayState", "type": "uint8"},
  {"internalType": "address", "name": "slowRelayer", "type": "address"},
  {"internalType": "uint32", "name": "relayId", "type": "uint32"},
  {"internalType": "uint64", "name": "realizedLpFeePct", "type": "uint64"},
  {"internalType": "uint32", "name": "priceRequestTime", "type": "uint32"},
  {"internalType": "uint256", "name": "proposerBond", "type": "uint256"},
  {"internalType": "uint256", "name": "finalFee", "type": "uint256"}
]`

const bridgePoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "depositHash", "type": "bytes32"},
      {
        "indexed": false, "internalType": "struct BridgePool.DepositData", "name": "depositData", "type": "tuple",
        "components": [
          {"internalType": "uint256", "name": "chainId", "type": "uint256"},
          {"internalType": "uint64", "name": "depositId", "type": "uint64"},
          {"internalType": "address payable", "name": "l1Recipient", "type": "address"},
          {"internalType": "address", "name": "l2Sender", "type": "address"},
          {"internalType": "uint256", "name": "amount", "type": "uint256"},
          {"internalType": "uint64", "name": "slowRelayFeePct", "type": "uint64"},
          {"internalType": "uint64", "name": "instantRelayFeePct", "type": "uint64"},
          {"internalType": "uint32", "name": "quoteTimestamp", "type": "uint32"}
        ]
      },
      {"indexed": false, "internalType": "struct BridgePool.RelayData", "name": "relay", "type": "tuple", "components": ` + relayDataComponents + `},
      {"indexed": false, "internalType": "bytes32", "name": "relayAncillaryDataHash", "type": "bytes32"}
    ],
    "name": "DepositRelayed",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "depositHash", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "instantRelayer", "type": "address"},
      {"indexed": false, "internalType": "struct BridgePool.RelayData", "name": "relay", "type": "tuple", "components": ` + relayDataComponents + `}
    ],
    "name": "RelaySpedUp",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "depositHash", "type": "bytes32"},
      {"indexed": true, "internalType": "bytes32", "name": "relayHash", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "disputer", "type": "address"}
    ],
    "name": "RelayDisputed",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "depositHash", "type": "bytes32"},
      {"indexed": true, "internalType": "bytes32", "name": "relayHash", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "disputer", "type": "address"}
    ],
    "name": "RelayCanceled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "depositHash", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "caller", "type": "address"},
      {"indexed": false, "internalType": "struct BridgePool.RelayData", "name": "relay", "type": "tuple", "components": ` + relayDataComponents + `}
    ],
    "name": "RelaySettled",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "liquidityUtilizationCurrent",
    "outputs": [{"internalType": "uint256", "name": "utilizationCurrent", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	bridgeAdminABI     abi.ABI
	bridgeAdminABIOnce sync.Once
	bridgeAdminABIErr  error

	bridgePoolABI     abi.ABI
	bridgePoolABIOnce sync.Once
	bridgePoolABIErr  error

	erc20ABIString      abi.ABI
	erc20ABIStringOnce  sync.Once
	erc20ABIStringErr   error
	erc20ABIBytes32     abi.ABI
	erc20ABIBytes32Once sync.Once
	erc20ABIBytes32Err  error
)

// BridgeAdminABI returns the parsed bridge admin ABI.
func BridgeAdminABI() (abi.ABI, error) {
	bridgeAdminABIOnce.Do(func() {
		bridgeAdminABI, bridgeAdminABIErr = abi.JSON(strings.NewReader(bridgeAdminABIJSON))
	})
	return bridgeAdminABI, bridgeAdminABIErr
}

// BridgePoolABI returns the parsed bridge pool ABI.
func BridgePoolABI() (abi.ABI, error) {
	bridgePoolABIOnce.Do(func() {
		bridgePoolABI, bridgePoolABIErr = abi.JSON(strings.NewReader(bridgePoolABIJSON))
	})
	return bridgePoolABI, bridgePoolABIErr
}

func erc20ABIStringInstance() (abi.ABI, error) {
	erc20ABIStringOnce.Do(func() {
		erc20ABIString, erc20ABIStringErr = abi.JSON(strings.NewReader(erc20ABIStringJSON))
	})
	return erc20ABIString, erc20ABIStringErr
}

func erc20ABIBytes32Instance() (abi.ABI, error) {
	erc20ABIBytes32Once.Do(func() {
		erc20ABIBytes32, erc20ABIBytes32Err = abi.JSON(strings.NewReader(erc20ABIBytes32JSON))
	})
	return erc20ABIBytes32, erc20ABIBytes32Err
}
