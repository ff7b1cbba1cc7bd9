package bridge

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"bridgemon/internal/model"
)

// Field order matches the ABI tuple components: unpacking copies tuples by
// position, packing matches them by name.
type depositDataTuple struct {
	ChainID            *big.Int `abi:"chainId"`
	DepositID          uint64   `abi:"depositId"`
	L1Recipient        common.Address
	L2Sender           common.Address
	Amount             *big.Int
	SlowRelayFeePct    uint64
	InstantRelayFeePct uint64
	QuoteTimestamp     uint32
}

type relayDataTuple struct {
	RelayState       uint8
	SlowRelayer      common.Address
	RelayID          uint32 `abi:"relayId"`
	RealizedLpFeePct uint64
	PriceRequestTime uint32
	ProposerBond     *big.Int
	FinalFee         *big.Int
}

// whitelistedPool is a decoded WhitelistToken log.
type whitelistedPool struct {
	ChainID uint64
	L1Token common.Address
	L2Token common.Address
	Pool    common.Address
}

// relayDecoder turns bridge pool logs into typed relay events.
type relayDecoder struct {
	poolABI    abi.ABI
	adminABI   abi.ABI
	topicKinds map[common.Hash]model.RelayEventKind
}

func newRelayDecoder() (*relayDecoder, error) {
	poolABI, err := BridgePoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse bridge pool abi: %w", err)
	}
	adminABI, err := BridgeAdminABI()
	if err != nil {
		return nil, fmt.Errorf("parse bridge admin abi: %w", err)
	}

	return &relayDecoder{
		poolABI:  poolABI,
		adminABI: adminABI,
		topicKinds: map[common.Hash]model.RelayEventKind{
			poolABI.Events["DepositRelayed"].ID: model.KindDepositRelayed,
			poolABI.Events["RelaySpedUp"].ID:    model.KindRelaySpedUp,
			poolABI.Events["RelaySettled"].ID:   model.KindRelaySettled,
			poolABI.Events["RelayDisputed"].ID:  model.KindRelayDisputed,
			poolABI.Events["RelayCanceled"].ID:  model.KindRelayCanceled,
		},
	}, nil
}

func (d *relayDecoder) whitelistTopic() common.Hash {
	return d.adminABI.Events["WhitelistToken"].ID
}

func (d *relayDecoder) relayTopics() []common.Hash {
	topics := make([]common.Hash, 0, len(d.topicKinds))
	for _, name := range []string{"DepositRelayed", "RelaySpedUp", "RelaySettled", "RelayDisputed", "RelayCanceled"} {
		topics = append(topics, d.poolABI.Events[name].ID)
	}
	return topics
}

func (d *relayDecoder) decodeWhitelist(log types.Log) (whitelistedPool, error) {
	if len(log.Topics) != 4 {
		return whitelistedPool{}, fmt.Errorf("expected 4 topics, got %d", len(log.Topics))
	}

	var out struct {
		ChainID *big.Int `abi:"chainId"`
	}
	if err := d.adminABI.UnpackIntoInterface(&out, "WhitelistToken", log.Data); err != nil {
		return whitelistedPool{}, fmt.Errorf("unpack WhitelistToken: %w", err)
	}
	if out.ChainID == nil || !out.ChainID.IsUint64() {
		return whitelistedPool{}, fmt.Errorf("chain id out of range: %v", out.ChainID)
	}

	return whitelistedPool{
		ChainID: out.ChainID.Uint64(),
		L1Token: common.BytesToAddress(log.Topics[1].Bytes()),
		L2Token: common.BytesToAddress(log.Topics[2].Bytes()),
		Pool:    common.BytesToAddress(log.Topics[3].Bytes()),
	}, nil
}

func (d *relayDecoder) decodeRelay(log types.Log) (model.RelayEvent, error) {
	if len(log.Topics) < 2 {
		return model.RelayEvent{}, fmt.Errorf("expected at least 2 topics, got %d", len(log.Topics))
	}
	kind, ok := d.topicKinds[log.Topics[0]]
	if !ok {
		return model.RelayEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	event := model.RelayEvent{
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
		DepositHash: log.Topics[1],
	}

	switch kind {
	case model.KindDepositRelayed:
		var out struct {
			DepositData            depositDataTuple
			Relay                  relayDataTuple
			RelayAncillaryDataHash [32]byte
		}
		if err := d.poolABI.UnpackIntoInterface(&out, "DepositRelayed", log.Data); err != nil {
			return model.RelayEvent{}, fmt.Errorf("unpack DepositRelayed: %w", err)
		}
		relay, err := buildRelay(event.DepositHash, out.DepositData, out.Relay)
		if err != nil {
			return model.RelayEvent{}, err
		}
		event.Payload = model.DepositRelayedPayload{SlowRelayer: out.Relay.SlowRelayer, Relay: relay}
	case model.KindRelaySpedUp:
		if err := requireTopics(log, 3); err != nil {
			return model.RelayEvent{}, err
		}
		event.Payload = model.RelaySpedUpPayload{InstantRelayer: common.BytesToAddress(log.Topics[2].Bytes())}
	case model.KindRelaySettled:
		if err := requireTopics(log, 3); err != nil {
			return model.RelayEvent{}, err
		}
		event.Payload = model.RelaySettledPayload{Settler: common.BytesToAddress(log.Topics[2].Bytes())}
	case model.KindRelayDisputed:
		if err := requireTopics(log, 4); err != nil {
			return model.RelayEvent{}, err
		}
		event.Payload = model.RelayDisputedPayload{
			RelayHash: log.Topics[2],
			Disputer:  common.BytesToAddress(log.Topics[3].Bytes()),
		}
	case model.KindRelayCanceled:
		if err := requireTopics(log, 4); err != nil {
			return model.RelayEvent{}, err
		}
		event.Payload = model.RelayCanceledPayload{
			RelayHash: log.Topics[2],
			Disputer:  common.BytesToAddress(log.Topics[3].Bytes()),
		}
	default:
		return model.RelayEvent{}, fmt.Errorf("unsupported event kind: %s", kind)
	}

	return event, nil
}

func buildRelay(depositHash common.Hash, deposit depositDataTuple, relay relayDataTuple) (model.Relay, error) {
	if deposit.ChainID == nil || !deposit.ChainID.IsUint64() {
		return model.Relay{}, fmt.Errorf("deposit chain id out of range: %v", deposit.ChainID)
	}
	amount := deposit.Amount
	if amount == nil {
		amount = new(big.Int)
	}

	return model.Relay{
		ChainID:            deposit.ChainID.Uint64(),
		DepositID:          deposit.DepositID,
		L2Sender:           deposit.L2Sender,
		L1Recipient:        deposit.L1Recipient,
		Amount:             new(big.Int).Set(amount),
		SlowRelayFeePct:    new(big.Int).SetUint64(deposit.SlowRelayFeePct),
		InstantRelayFeePct: new(big.Int).SetUint64(deposit.InstantRelayFeePct),
		RealizedLpFeePct:   new(big.Int).SetUint64(relay.RealizedLpFeePct),
		QuoteTimestamp:     deposit.QuoteTimestamp,
		DepositHash:        depositHash,
		RelayState:         model.RelayState(relay.RelayState),
		SlowRelayer:        relay.SlowRelayer,
		PriceRequestTime:   relay.PriceRequestTime,
	}, nil
}

func requireTopics(log types.Log, n int) error {
	if len(log.Topics) != n {
		return fmt.Errorf("expected %d topics, got %d", n, len(log.Topics))
	}
	return nil
}
