package relay

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"bridgemon/internal/model"
)

var (
	// ErrMissingRelay means an event references a deposit the cache has not
	// seen, i.e. Update has not covered the block that relayed it.
	ErrMissingRelay = errors.New("missing relay")
	// ErrUnknownEventKind means an event carries no recognised payload.
	ErrUnknownEventKind = errors.New("unknown relay event kind")
)

// Unbounded can be passed as an ending block to leave the range open.
const Unbounded = model.UnboundedBlock

// Source is the view of the L1 client the processor reads from.
type Source interface {
	BridgePools() []model.BridgePool
	Relays(l1Token common.Address) []model.Relay
	RelayEvents(l1Token common.Address) []model.RelayEvent
}

// Processor owns the deposit cache and turns raw relay events into ordered,
// merged EventInfo records.
type Processor struct {
	source          Source
	logger          *zap.Logger
	deposits        map[common.Address]map[common.Hash]model.Relay
	lastRelayUpdate uint64
}

// NewProcessor builds a Processor over the given source.
func NewProcessor(source Source, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		source:   source,
		logger:   logger,
		deposits: make(map[common.Address]map[common.Hash]model.Relay),
	}
}

// LastRelayUpdate returns the block through which the deposit cache is complete.
func (p *Processor) LastRelayUpdate() uint64 {
	return p.lastRelayUpdate
}

// Update refreshes the deposit cache from the source and advances the
// checkpoint to endingBlock. Blocks at or behind the checkpoint are a no-op.
func (p *Processor) Update(endingBlock uint64) {
	if endingBlock < p.lastRelayUpdate+1 {
		return
	}

	var upserted int
	for _, pool := range p.source.BridgePools() {
		cache, ok := p.deposits[pool.L1Token]
		if !ok {
			cache = make(map[common.Hash]model.Relay)
			p.deposits[pool.L1Token] = cache
		}
		for _, relay := range p.source.Relays(pool.L1Token) {
			cache[relay.DepositHash] = relay
			upserted++
		}
	}

	p.logger.Debug("deposit cache updated",
		zap.Uint64("from", p.lastRelayUpdate+1),
		zap.Uint64("to", endingBlock),
		zap.Int("relays", upserted),
	)
	p.lastRelayUpdate = endingBlock
}

// Relay returns the cached relay for a deposit of the pool holding l1Token.
func (p *Processor) Relay(l1Token common.Address, depositHash common.Hash) (model.Relay, bool) {
	relay, ok := p.deposits[l1Token][depositHash]
	return relay, ok
}

// RelayEventInfo returns the relay actions observed in the inclusive block
// range, ordered by block number then log index. A slow relay immediately
// sped up by the same caller in the same transaction is reported once as an
// instant relay.
func (p *Processor) RelayEventInfo(startingBlock, endingBlock uint64) ([]model.EventInfo, error) {
	blocks := model.BlockRange{From: startingBlock, To: endingBlock}

	var infos []model.EventInfo
	for _, pool := range p.source.BridgePools() {
		for _, event := range p.source.RelayEvents(pool.L1Token) {
			if !blocks.Contains(event.BlockNumber) {
				continue
			}

			caller, action, err := describe(event)
			if err != nil {
				return nil, fmt.Errorf("pool %s tx %s: %w", pool.Address.Hex(), event.TxHash.Hex(), err)
			}

			relay, ok := p.deposits[pool.L1Token][event.DepositHash]
			if !ok {
				return nil, fmt.Errorf("%w: pool %s deposit %s at block %d (cache complete through %d)",
					ErrMissingRelay, pool.Address.Hex(), event.DepositHash.Hex(), event.BlockNumber, p.lastRelayUpdate)
			}

			infos = append(infos, model.EventInfo{
				Pool:               pool.Address,
				L1Token:            pool.L1Token,
				CollateralSymbol:   pool.CollateralSymbol,
				CollateralDecimals: pool.CollateralDecimals,
				Relay:              relay,
				Caller:             caller,
				Action:             action,
				TxHash:             event.TxHash,
				BlockNumber:        event.BlockNumber,
				LogIndex:           event.LogIndex,
			})
		}
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].BlockNumber != infos[j].BlockNumber {
			return infos[i].BlockNumber < infos[j].BlockNumber
		}
		return infos[i].LogIndex < infos[j].LogIndex
	})

	return mergeInstantRelays(infos), nil
}

// describe resolves the acting caller and the action label of an event.
func describe(event model.RelayEvent) (common.Address, string, error) {
	switch payload := event.Payload.(type) {
	case model.DepositRelayedPayload:
		return payload.SlowRelayer, model.ActionSlowRelayed, nil
	case model.RelaySpedUpPayload:
		return payload.InstantRelayer, model.ActionSpedUp, nil
	case model.RelaySettledPayload:
		return payload.Settler, model.ActionSettled, nil
	case model.RelayDisputedPayload:
		return payload.Disputer, model.ActionDisputed, nil
	case model.RelayCanceledPayload:
		return payload.Disputer, model.ActionCanceled, nil
	default:
		return common.Address{}, "", fmt.Errorf("%w: %T", ErrUnknownEventKind, event.Payload)
	}
}

func mergeInstantRelays(infos []model.EventInfo) []model.EventInfo {
	out := make([]model.EventInfo, 0, len(infos))
	for _, info := range infos {
		if n := len(out); n > 0 && isSpeedUpOf(out[n-1], info) {
			info.Action = model.ActionInstantRelayed
			out[n-1] = info
			continue
		}
		out = append(out, info)
	}
	return out
}

func isSpeedUpOf(prev, next model.EventInfo) bool {
	return prev.Action == model.ActionSlowRelayed &&
		next.Action == model.ActionSpedUp &&
		prev.Relay.DepositHash == next.Relay.DepositHash &&
		prev.TxHash == next.TxHash &&
		prev.Caller == next.Caller
}
