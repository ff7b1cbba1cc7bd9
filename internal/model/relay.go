package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RelayState mirrors the on-chain relay state enum of a bridge pool.
type RelayState uint8

const (
	RelayStateUninitialized RelayState = iota
	RelayStatePending
	RelayStateFinalized
)

func (s RelayState) String() string {
	switch s {
	case RelayStateUninitialized:
		return "uninitialized"
	case RelayStatePending:
		return "pending"
	case RelayStateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Relay describes a deposit once a relay has been proposed for it. Fee
// percentages are fixed point with 1e18 meaning 100%.
type Relay struct {
	ChainID            uint64         `json:"chain_id"`
	DepositID          uint64         `json:"deposit_id"`
	L2Sender           common.Address `json:"l2_sender"`
	L1Recipient        common.Address `json:"l1_recipient"`
	Amount             *big.Int       `json:"amount"`
	SlowRelayFeePct    *big.Int       `json:"slow_relay_fee_pct"`
	InstantRelayFeePct *big.Int       `json:"instant_relay_fee_pct"`
	RealizedLpFeePct   *big.Int       `json:"realized_lp_fee_pct"`
	QuoteTimestamp     uint32         `json:"quote_timestamp"`
	DepositHash        common.Hash    `json:"deposit_hash"`
	RelayState         RelayState     `json:"relay_state"`
	SlowRelayer        common.Address `json:"slow_relayer"`
	PriceRequestTime   uint32         `json:"price_request_time"`
}
