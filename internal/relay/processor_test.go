package relay

import (
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"bridgemon/internal/model"
)

var (
	poolA    = model.BridgePool{Address: common.HexToAddress("0x1000000000000000000000000000000000000001"), L1Token: common.HexToAddress("0xa000000000000000000000000000000000000001"), CollateralSymbol: "WETH", CollateralDecimals: 18}
	poolB    = model.BridgePool{Address: common.HexToAddress("0x1000000000000000000000000000000000000002"), L1Token: common.HexToAddress("0xa000000000000000000000000000000000000002"), CollateralSymbol: "USDC", CollateralDecimals: 6}
	relayer1 = common.HexToAddress("0xb000000000000000000000000000000000000001")
	relayer2 = common.HexToAddress("0xb000000000000000000000000000000000000002")
)

type fakeSource struct {
	pools  []model.BridgePool
	relays map[common.Address][]model.Relay
	events map[common.Address][]model.RelayEvent
}

func newFakeSource(pools ...model.BridgePool) *fakeSource {
	return &fakeSource{
		pools:  pools,
		relays: make(map[common.Address][]model.Relay),
		events: make(map[common.Address][]model.RelayEvent),
	}
}

func (f *fakeSource) BridgePools() []model.BridgePool { return f.pools }

func (f *fakeSource) Relays(l1Token common.Address) []model.Relay { return f.relays[l1Token] }

func (f *fakeSource) RelayEvents(l1Token common.Address) []model.RelayEvent { return f.events[l1Token] }

func (f *fakeSource) addRelay(pool model.BridgePool, depositHash common.Hash, depositID uint64) {
	f.relays[pool.L1Token] = append(f.relays[pool.L1Token], model.Relay{
		ChainID:            10,
		DepositID:          depositID,
		Amount:             big.NewInt(1000),
		SlowRelayFeePct:    big.NewInt(0),
		InstantRelayFeePct: big.NewInt(0),
		RealizedLpFeePct:   big.NewInt(0),
		DepositHash:        depositHash,
	})
}

func (f *fakeSource) addEvent(pool model.BridgePool, event model.RelayEvent) {
	f.events[pool.L1Token] = append(f.events[pool.L1Token], event)
}

func relayed(depositHash, tx common.Hash, block uint64, logIndex uint, caller common.Address) model.RelayEvent {
	return model.RelayEvent{TxHash: tx, BlockNumber: block, LogIndex: logIndex, DepositHash: depositHash,
		Payload: model.DepositRelayedPayload{SlowRelayer: caller}}
}

func spedUp(depositHash, tx common.Hash, block uint64, logIndex uint, caller common.Address) model.RelayEvent {
	return model.RelayEvent{TxHash: tx, BlockNumber: block, LogIndex: logIndex, DepositHash: depositHash,
		Payload: model.RelaySpedUpPayload{InstantRelayer: caller}}
}

func settled(depositHash, tx common.Hash, block uint64, logIndex uint, caller common.Address) model.RelayEvent {
	return model.RelayEvent{TxHash: tx, BlockNumber: block, LogIndex: logIndex, DepositHash: depositHash,
		Payload: model.RelaySettledPayload{Settler: caller}}
}

func actions(infos []model.EventInfo) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.Action)
	}
	return out
}

func TestUpdateIsIdempotentAndMonotonic(t *testing.T) {
	src := newFakeSource(poolA)
	src.addRelay(poolA, common.HexToHash("0x01"), 1)
	p := NewProcessor(src, nil)

	p.Update(10)
	src.addRelay(poolA, common.HexToHash("0x02"), 2)
	p.Update(20)
	want := map[common.Hash]model.Relay{}
	for k, v := range p.deposits[poolA.L1Token] {
		want[k] = v
	}

	src.addRelay(poolA, common.HexToHash("0x03"), 3)
	p.Update(10)

	if !reflect.DeepEqual(p.deposits[poolA.L1Token], want) {
		t.Fatalf("stale update changed the cache: %d entries, want %d", len(p.deposits[poolA.L1Token]), len(want))
	}
	if p.LastRelayUpdate() != 20 {
		t.Fatalf("checkpoint = %d, want 20", p.LastRelayUpdate())
	}

	p.Update(20)
	if _, ok := p.Relay(poolA.L1Token, common.HexToHash("0x03")); ok {
		t.Fatalf("update at the checkpoint must be a no-op")
	}
	p.Update(21)
	if _, ok := p.Relay(poolA.L1Token, common.HexToHash("0x03")); !ok {
		t.Fatalf("expected relay upserted after checkpoint advanced")
	}
}

func TestUpdateBootstrapsNewPools(t *testing.T) {
	src := newFakeSource(poolA)
	p := NewProcessor(src, nil)
	p.Update(5)

	src.pools = append(src.pools, poolB)
	p.Update(6)

	if _, ok := p.deposits[poolB.L1Token]; !ok {
		t.Fatalf("expected empty cache entry for newly seen pool")
	}
}

func TestRelayEventInfoMergesInstantRelay(t *testing.T) {
	deposit := common.HexToHash("0xd1")
	tx := common.HexToHash("0xf1")
	src := newFakeSource(poolA)
	src.addRelay(poolA, deposit, 7)
	src.addEvent(poolA, spedUp(deposit, tx, 10, 3, relayer1))
	src.addEvent(poolA, relayed(deposit, tx, 10, 2, relayer1))

	p := NewProcessor(src, nil)
	p.Update(10)

	infos, err := p.RelayEventInfo(0, Unbounded)
	if err != nil {
		t.Fatalf("relay event info: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 merged record, got %d: %v", len(infos), actions(infos))
	}
	got := infos[0]
	if got.Action != model.ActionInstantRelayed {
		t.Fatalf("action = %q, want %q", got.Action, model.ActionInstantRelayed)
	}
	if got.LogIndex != 3 || got.Caller != relayer1 || got.Relay.DepositID != 7 {
		t.Fatalf("merged record should keep the later event: %+v", got)
	}
	if got.CollateralSymbol != "WETH" || got.Pool != poolA.Address {
		t.Fatalf("pool metadata missing: %+v", got)
	}
}

func TestRelayEventInfoDoesNotMergeDifferentCallers(t *testing.T) {
	deposit := common.HexToHash("0xd1")
	tx := common.HexToHash("0xf1")
	src := newFakeSource(poolA)
	src.addRelay(poolA, deposit, 7)
	src.addEvent(poolA, relayed(deposit, tx, 10, 2, relayer1))
	src.addEvent(poolA, spedUp(deposit, tx, 10, 3, relayer2))

	p := NewProcessor(src, nil)
	p.Update(10)

	infos, err := p.RelayEventInfo(0, Unbounded)
	if err != nil {
		t.Fatalf("relay event info: %v", err)
	}
	want := []string{model.ActionSlowRelayed, model.ActionSpedUp}
	if !reflect.DeepEqual(actions(infos), want) {
		t.Fatalf("actions = %v, want %v", actions(infos), want)
	}
}

func TestRelayEventInfoDoesNotMergeAcrossTransactions(t *testing.T) {
	deposit := common.HexToHash("0xd1")
	src := newFakeSource(poolA)
	src.addRelay(poolA, deposit, 7)
	src.addEvent(poolA, relayed(deposit, common.HexToHash("0xf1"), 10, 2, relayer1))
	src.addEvent(poolA, spedUp(deposit, common.HexToHash("0xf2"), 11, 0, relayer1))

	p := NewProcessor(src, nil)
	p.Update(11)

	infos, err := p.RelayEventInfo(0, Unbounded)
	if err != nil {
		t.Fatalf("relay event info: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 records, got %v", actions(infos))
	}
}

func TestRelayEventInfoOrderingIsDeterministic(t *testing.T) {
	d1, d2 := common.HexToHash("0xd1"), common.HexToHash("0xd2")
	src := newFakeSource(poolA, poolB)
	src.addRelay(poolA, d1, 1)
	src.addRelay(poolB, d2, 2)
	src.addEvent(poolA, settled(d1, common.HexToHash("0xf3"), 30, 1, relayer2))
	src.addEvent(poolB, relayed(d2, common.HexToHash("0xf2"), 20, 5, relayer1))
	src.addEvent(poolA, relayed(d1, common.HexToHash("0xf1"), 20, 4, relayer1))
	src.addEvent(poolB, settled(d2, common.HexToHash("0xf4"), 30, 0, relayer2))

	p := NewProcessor(src, nil)
	p.Update(30)

	first, err := p.RelayEventInfo(0, Unbounded)
	if err != nil {
		t.Fatalf("relay event info: %v", err)
	}

	// Reverse the raw input order; the output must not change.
	for token, events := range src.events {
		reversed := make([]model.RelayEvent, len(events))
		for i := range events {
			reversed[len(events)-1-i] = events[i]
		}
		src.events[token] = reversed
	}
	src.pools = []model.BridgePool{poolB, poolA}

	second, err := p.RelayEventInfo(0, Unbounded)
	if err != nil {
		t.Fatalf("relay event info: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ordering changed with input order:\n%+v\n%+v", first, second)
	}

	type position struct {
		block uint64
		log   uint
	}
	var got []position
	for _, info := range first {
		got = append(got, position{info.BlockNumber, info.LogIndex})
	}
	want := []position{{20, 4}, {20, 5}, {30, 0}, {30, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("positions = %v, want %v", got, want)
	}
}

func TestRelayEventInfoFiltersByRange(t *testing.T) {
	deposit := common.HexToHash("0xd1")
	src := newFakeSource(poolA)
	src.addRelay(poolA, deposit, 1)
	src.addEvent(poolA, relayed(deposit, common.HexToHash("0xf1"), 10, 0, relayer1))
	src.addEvent(poolA, settled(deposit, common.HexToHash("0xf2"), 20, 0, relayer2))
	src.addEvent(poolA, settled(deposit, common.HexToHash("0xf3"), 30, 0, relayer2))

	p := NewProcessor(src, nil)
	p.Update(30)

	infos, err := p.RelayEventInfo(11, 20)
	if err != nil {
		t.Fatalf("relay event info: %v", err)
	}
	if len(infos) != 1 || infos[0].BlockNumber != 20 {
		t.Fatalf("expected only block 20, got %+v", infos)
	}

	infos, err = p.RelayEventInfo(20, Unbounded)
	if err != nil {
		t.Fatalf("relay event info: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 records in open range, got %d", len(infos))
	}
}

func TestRelayEventInfoMissingRelayIsFatal(t *testing.T) {
	src := newFakeSource(poolA)
	src.addEvent(poolA, relayed(common.HexToHash("0xd9"), common.HexToHash("0xf1"), 10, 0, relayer1))

	p := NewProcessor(src, nil)
	p.Update(10)

	infos, err := p.RelayEventInfo(0, Unbounded)
	if !errors.Is(err, ErrMissingRelay) {
		t.Fatalf("expected ErrMissingRelay, got %v", err)
	}
	if infos != nil {
		t.Fatalf("expected no records on error, got %d", len(infos))
	}
}

func TestRelayEventInfoUnknownKindIsFatal(t *testing.T) {
	deposit := common.HexToHash("0xd1")
	src := newFakeSource(poolA)
	src.addRelay(poolA, deposit, 1)
	src.addEvent(poolA, model.RelayEvent{TxHash: common.HexToHash("0xf1"), BlockNumber: 10, DepositHash: deposit})

	p := NewProcessor(src, nil)
	p.Update(10)

	if _, err := p.RelayEventInfo(0, Unbounded); !errors.Is(err, ErrUnknownEventKind) {
		t.Fatalf("expected ErrUnknownEventKind, got %v", err)
	}
}

func TestDescribeCallerMapping(t *testing.T) {
	caller := common.HexToAddress("0xc000000000000000000000000000000000000001")
	cases := []struct {
		payload model.RelayEventPayload
		action  string
	}{
		{model.DepositRelayedPayload{SlowRelayer: caller}, model.ActionSlowRelayed},
		{model.RelaySpedUpPayload{InstantRelayer: caller}, model.ActionSpedUp},
		{model.RelaySettledPayload{Settler: caller}, model.ActionSettled},
		{model.RelayDisputedPayload{Disputer: caller}, model.ActionDisputed},
		{model.RelayCanceledPayload{Disputer: caller}, model.ActionCanceled},
	}

	for _, tc := range cases {
		gotCaller, gotAction, err := describe(model.RelayEvent{Payload: tc.payload})
		if err != nil {
			t.Fatalf("%s: %v", tc.payload.Kind(), err)
		}
		if gotCaller != caller || gotAction != tc.action {
			t.Fatalf("%s: got (%s, %q), want (%s, %q)", tc.payload.Kind(), gotCaller.Hex(), gotAction, caller.Hex(), tc.action)
		}
	}
}
