package bridge

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"bridgemon/internal/model"
)

var (
	testAdmin          = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testPool           = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testL1Token        = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testL2Token        = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testRelayer        = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testDisputer       = common.HexToAddress("0x5555555555555555555555555555555555555555")
	testDepositHash    = common.HexToHash("0xd1")
	testRelayTxHash    = common.HexToHash("0xf1")
	testDisputeTxHash  = common.HexToHash("0xf2")
	testCancelTxHash   = common.HexToHash("0xf3")
	testWhitelistTx    = common.HexToHash("0xf0")
	testUtilizationVal = new(big.Int).Mul(big.NewInt(95), big.NewInt(1e16))
)

type fakeChain struct {
	head        uint64
	logs        []types.Log
	calls       map[common.Address]map[[4]byte][]byte
	filterCalls []model.BlockRange
	filterErr   error
}

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) FilterLogs(_ context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.filterCalls = append(f.filterCalls, model.BlockRange{From: fromBlock, To: toBlock})
	if f.filterErr != nil {
		return nil, f.filterErr
	}

	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber < fromBlock || log.BlockNumber > toBlock {
			continue
		}
		if !containsAddress(addresses, log.Address) || !containsHash(topic0, log.Topics[0]) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("bad call")
	}
	var selector [4]byte
	copy(selector[:], msg.Data[:4])
	resp, ok := f.calls[*msg.To][selector]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, item := range list {
		if item == addr {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, hash common.Hash) bool {
	for _, item := range list {
		if item == hash {
			return true
		}
	}
	return false
}

func newFakeChain(t *testing.T) *fakeChain {
	t.Helper()

	adminABI, err := BridgeAdminABI()
	if err != nil {
		t.Fatalf("admin abi: %v", err)
	}
	poolABI, err := BridgePoolABI()
	if err != nil {
		t.Fatalf("pool abi: %v", err)
	}
	erc20, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}

	whitelistData, err := adminABI.Events["WhitelistToken"].Inputs.NonIndexed().Pack(big.NewInt(10))
	if err != nil {
		t.Fatalf("pack whitelist: %v", err)
	}

	relayData := relayDataTuple{
		RelayState:       1,
		SlowRelayer:      testRelayer,
		RelayID:          7,
		RealizedLpFeePct: 1e15,
		PriceRequestTime: 1700000000,
		ProposerBond:     big.NewInt(0),
		FinalFee:         big.NewInt(0),
	}
	depositData := depositDataTuple{
		ChainID:            big.NewInt(10),
		DepositID:          42,
		L1Recipient:        common.HexToAddress("0x6666666666666666666666666666666666666666"),
		L2Sender:           common.HexToAddress("0x7777777777777777777777777777777777777777"),
		Amount:             big.NewInt(2_500_000),
		SlowRelayFeePct:    1e15,
		InstantRelayFeePct: 2e15,
		QuoteTimestamp:     1699999990,
	}
	relayedData, err := poolABI.Events["DepositRelayed"].Inputs.NonIndexed().Pack(depositData, relayData, [32]byte{})
	if err != nil {
		t.Fatalf("pack DepositRelayed: %v", err)
	}
	spedUpData, err := poolABI.Events["RelaySpedUp"].Inputs.NonIndexed().Pack(relayData)
	if err != nil {
		t.Fatalf("pack RelaySpedUp: %v", err)
	}

	decimals, err := erc20.Methods["decimals"].Outputs.Pack(uint8(6))
	if err != nil {
		t.Fatalf("pack decimals: %v", err)
	}
	symbol, err := erc20.Methods["symbol"].Outputs.Pack("USDC")
	if err != nil {
		t.Fatalf("pack symbol: %v", err)
	}
	utilization, err := poolABI.Methods["liquidityUtilizationCurrent"].Outputs.Pack(testUtilizationVal)
	if err != nil {
		t.Fatalf("pack utilization: %v", err)
	}

	return &fakeChain{
		head: 20,
		logs: []types.Log{
			{
				Address:     testAdmin,
				Topics:      []common.Hash{adminABI.Events["WhitelistToken"].ID, addressTopic(testL1Token), addressTopic(testL2Token), addressTopic(testPool)},
				Data:        whitelistData,
				BlockNumber: 5,
				TxHash:      testWhitelistTx,
			},
			{
				Address:     testPool,
				Topics:      []common.Hash{poolABI.Events["RelaySpedUp"].ID, testDepositHash, addressTopic(testRelayer)},
				Data:        spedUpData,
				BlockNumber: 10,
				Index:       3,
				TxHash:      testRelayTxHash,
			},
			{
				Address:     testPool,
				Topics:      []common.Hash{poolABI.Events["DepositRelayed"].ID, testDepositHash},
				Data:        relayedData,
				BlockNumber: 10,
				Index:       2,
				TxHash:      testRelayTxHash,
			},
			{
				Address:     testPool,
				Topics:      []common.Hash{poolABI.Events["RelayDisputed"].ID, testDepositHash, common.HexToHash("0xee"), addressTopic(testDisputer)},
				BlockNumber: 15,
				Index:       0,
				TxHash:      testDisputeTxHash,
			},
			{
				Address:     testPool,
				Topics:      []common.Hash{poolABI.Events["RelayCanceled"].ID, testDepositHash, common.HexToHash("0xee"), addressTopic(testDisputer)},
				BlockNumber: 18,
				Index:       1,
				TxHash:      testCancelTxHash,
			},
		},
		calls: map[common.Address]map[[4]byte][]byte{
			testL1Token: {
				selector(erc20.Methods["decimals"].ID): decimals,
				selector(erc20.Methods["symbol"].ID):   symbol,
			},
			testPool: {
				selector(poolABI.Methods["liquidityUtilizationCurrent"].ID): utilization,
			},
		},
	}
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func selector(id []byte) [4]byte {
	var out [4]byte
	copy(out[:], id)
	return out
}

func newTestClient(t *testing.T, chain *fakeChain, batchSize uint64) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{BridgeAdmin: testAdmin, DeployBlock: 1, BatchSize: batchSize}, chain, zap.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientUpdateDiscoversPoolsAndRelays(t *testing.T) {
	chain := newFakeChain(t)
	client := newTestClient(t, chain, 4)

	if err := client.Update(context.Background(), 20); err != nil {
		t.Fatalf("update: %v", err)
	}

	pools := client.BridgePools()
	if len(pools) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(pools))
	}
	if pools[0].Address != testPool || pools[0].L1Token != testL1Token {
		t.Fatalf("pool mismatch: %+v", pools[0])
	}
	if pools[0].L2Token != testL2Token || pools[0].ChainID != 10 {
		t.Fatalf("whitelist mismatch: %+v", pools[0])
	}
	if pools[0].CollateralSymbol != "USDC" || pools[0].CollateralDecimals != 6 {
		t.Fatalf("collateral meta mismatch: %+v", pools[0])
	}

	relays := client.Relays(testL1Token)
	if len(relays) != 1 {
		t.Fatalf("expected 1 relay, got %d", len(relays))
	}
	relay := relays[0]
	if relay.DepositID != 42 || relay.ChainID != 10 || relay.DepositHash != testDepositHash {
		t.Fatalf("relay identity mismatch: %+v", relay)
	}
	if relay.Amount.Cmp(big.NewInt(2_500_000)) != 0 {
		t.Fatalf("amount mismatch: %s", relay.Amount)
	}
	if relay.InstantRelayFeePct.Cmp(big.NewInt(2e15)) != 0 || relay.RealizedLpFeePct.Cmp(big.NewInt(1e15)) != 0 {
		t.Fatalf("fee mismatch: %+v", relay)
	}
	if relay.SlowRelayer != testRelayer || relay.RelayState != model.RelayStatePending {
		t.Fatalf("relay data mismatch: %+v", relay)
	}

	events := client.RelayEvents(testL1Token)
	wantKinds := []model.RelayEventKind{model.KindDepositRelayed, model.KindRelaySpedUp, model.KindRelayDisputed, model.KindRelayCanceled}
	if len(events) != len(wantKinds) {
		t.Fatalf("expected %d events, got %d", len(wantKinds), len(events))
	}
	for i, kind := range wantKinds {
		if events[i].Kind() != kind {
			t.Fatalf("event %d kind %s, want %s", i, events[i].Kind(), kind)
		}
	}

	spedUp, ok := events[1].Payload.(model.RelaySpedUpPayload)
	if !ok || spedUp.InstantRelayer != testRelayer {
		t.Fatalf("sped up payload mismatch: %+v", events[1].Payload)
	}
	disputed, ok := events[2].Payload.(model.RelayDisputedPayload)
	if !ok || disputed.Disputer != testDisputer || disputed.RelayHash != common.HexToHash("0xee") {
		t.Fatalf("disputed payload mismatch: %+v", events[2].Payload)
	}

	last, scanned := client.LastScannedBlock()
	if !scanned || last != 20 {
		t.Fatalf("last scanned = %d (%v), want 20", last, scanned)
	}
}

func TestClientUpdateIsIncremental(t *testing.T) {
	chain := newFakeChain(t)
	client := newTestClient(t, chain, 100)

	if err := client.Update(context.Background(), 12); err != nil {
		t.Fatalf("update: %v", err)
	}
	calls := len(chain.filterCalls)

	if err := client.Update(context.Background(), 12); err != nil {
		t.Fatalf("repeat update: %v", err)
	}
	if err := client.Update(context.Background(), 8); err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if len(chain.filterCalls) != calls {
		t.Fatalf("expected no new scans, got %d more", len(chain.filterCalls)-calls)
	}

	if err := client.Update(context.Background(), 20); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := chain.filterCalls[len(chain.filterCalls)-1]; got.From != 13 || got.To != 20 {
		t.Fatalf("expected scan of 13-20, got %+v", got)
	}
	if got := len(client.RelayEvents(testL1Token)); got != 4 {
		t.Fatalf("expected 4 events after second scan, got %d", got)
	}
}

func TestClientUpdateFailureKeepsProgress(t *testing.T) {
	chain := newFakeChain(t)
	client := newTestClient(t, chain, 100)

	chain.filterErr = errors.New("rpc down")
	if err := client.Update(context.Background(), 20); err == nil {
		t.Fatalf("expected error")
	}
	if _, scanned := client.LastScannedBlock(); scanned {
		t.Fatalf("failed scan must not advance progress")
	}

	chain.filterErr = nil
	if err := client.Update(context.Background(), 20); err != nil {
		t.Fatalf("retry update: %v", err)
	}
	if got := len(client.RelayEvents(testL1Token)); got != 4 {
		t.Fatalf("expected 4 events, got %d", got)
	}
}

func TestClientUtilization(t *testing.T) {
	chain := newFakeChain(t)
	client := newTestClient(t, chain, 100)

	got, err := client.Utilization(context.Background(), testPool)
	if err != nil {
		t.Fatalf("utilization: %v", err)
	}
	if got.Cmp(testUtilizationVal) != 0 {
		t.Fatalf("utilization = %s, want %s", got, testUtilizationVal)
	}

	if _, err := client.Utilization(context.Background(), testL2Token); err == nil {
		t.Fatalf("expected error for reverted call")
	}
}
