package model

import "github.com/ethereum/go-ethereum/common"

// Action labels reported for relay events.
const (
	ActionSlowRelayed    = "slow relayed"
	ActionSpedUp         = "sped up"
	ActionInstantRelayed = "instant relayed"
	ActionSettled        = "settled"
	ActionDisputed       = "disputed"
	ActionCanceled       = "canceled"
)

// EventInfo joins a relay event with its relay and pool metadata.
type EventInfo struct {
	Pool               common.Address `json:"pool"`
	L1Token            common.Address `json:"l1_token"`
	CollateralSymbol   string         `json:"collateral_symbol"`
	CollateralDecimals uint8          `json:"collateral_decimals"`
	Relay              Relay          `json:"relay"`
	Caller             common.Address `json:"caller"`
	Action             string         `json:"action"`
	TxHash             common.Hash    `json:"tx_hash"`
	BlockNumber        uint64         `json:"block_number"`
	LogIndex           uint           `json:"log_index"`
}
