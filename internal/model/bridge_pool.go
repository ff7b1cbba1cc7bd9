package model

import "github.com/ethereum/go-ethereum/common"

// BridgePool is a per-collateral bridge pool discovered from the bridge admin.
type BridgePool struct {
	Address            common.Address `json:"address"`
	L1Token            common.Address `json:"l1_token"`
	L2Token            common.Address `json:"l2_token"`
	ChainID            uint64         `json:"chain_id"`
	CollateralSymbol   string         `json:"collateral_symbol"`
	CollateralDecimals uint8          `json:"collateral_decimals"`
}
