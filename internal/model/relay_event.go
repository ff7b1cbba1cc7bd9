package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// RelayEventKind enumerates the relay lifecycle events emitted by a bridge pool.
type RelayEventKind uint8

const (
	KindDepositRelayed RelayEventKind = iota + 1
	KindRelaySpedUp
	KindRelaySettled
	KindRelayDisputed
	KindRelayCanceled
)

func (k RelayEventKind) String() string {
	switch k {
	case KindDepositRelayed:
		return "DepositRelayed"
	case KindRelaySpedUp:
		return "RelaySpedUp"
	case KindRelaySettled:
		return "RelaySettled"
	case KindRelayDisputed:
		return "RelayDisputed"
	case KindRelayCanceled:
		return "RelayCanceled"
	default:
		return fmt.Sprintf("RelayEventKind(%d)", uint8(k))
	}
}

// RelayEventPayload is the kind-specific part of a RelayEvent. The set of
// implementations is closed to this package.
type RelayEventPayload interface {
	Kind() RelayEventKind
	isRelayEventPayload()
}

// DepositRelayedPayload is emitted when a slow relay is proposed.
type DepositRelayedPayload struct {
	SlowRelayer common.Address `json:"slow_relayer"`
	Relay       Relay          `json:"relay"`
}

// RelaySpedUpPayload is emitted when an instant relayer fronts the funds.
type RelaySpedUpPayload struct {
	InstantRelayer common.Address `json:"instant_relayer"`
}

// RelaySettledPayload is emitted when a relay is settled.
type RelaySettledPayload struct {
	Settler common.Address `json:"settler"`
}

// RelayDisputedPayload is emitted when a relay proposal is disputed.
type RelayDisputedPayload struct {
	Disputer  common.Address `json:"disputer"`
	RelayHash common.Hash    `json:"relay_hash"`
}

// RelayCanceledPayload is emitted when a disputed relay is canceled.
type RelayCanceledPayload struct {
	Disputer  common.Address `json:"disputer"`
	RelayHash common.Hash    `json:"relay_hash"`
}

func (DepositRelayedPayload) Kind() RelayEventKind { return KindDepositRelayed }
func (RelaySpedUpPayload) Kind() RelayEventKind    { return KindRelaySpedUp }
func (RelaySettledPayload) Kind() RelayEventKind   { return KindRelaySettled }
func (RelayDisputedPayload) Kind() RelayEventKind  { return KindRelayDisputed }
func (RelayCanceledPayload) Kind() RelayEventKind  { return KindRelayCanceled }

func (DepositRelayedPayload) isRelayEventPayload() {}
func (RelaySpedUpPayload) isRelayEventPayload()    {}
func (RelaySettledPayload) isRelayEventPayload()   {}
func (RelayDisputedPayload) isRelayEventPayload()  {}
func (RelayCanceledPayload) isRelayEventPayload()  {}

// RelayEvent is one decoded bridge pool log.
type RelayEvent struct {
	TxHash      common.Hash       `json:"tx_hash"`
	BlockNumber uint64            `json:"block_number"`
	LogIndex    uint              `json:"log_index"`
	DepositHash common.Hash       `json:"deposit_hash"`
	Payload     RelayEventPayload `json:"payload"`
}

// Kind returns the event kind, or zero when the payload is missing.
func (e RelayEvent) Kind() RelayEventKind {
	if e.Payload == nil {
		return 0
	}
	return e.Payload.Kind()
}
