package bridge

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"bridgemon/internal/model"
)

// ChainReader is the subset of chain RPC the bridge client needs.
type ChainReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ClientConfig holds the bridge deployment the client follows.
type ClientConfig struct {
	BridgeAdmin common.Address
	DeployBlock uint64
	BatchSize   uint64
}

// Client keeps an in-memory view of bridge pools, relays and relay events,
// built incrementally from bridge admin and bridge pool logs.
type Client struct {
	cfg     ClientConfig
	chain   ChainReader
	logger  *zap.Logger
	decoder *relayDecoder

	scanned     bool
	lastScanned uint64

	pools     []model.BridgePool
	poolIndex map[common.Address]int
	byPool    map[common.Address]common.Address
	relays    map[common.Address]map[common.Hash]model.Relay
	events    map[common.Address][]model.RelayEvent
	seen      map[string]struct{}
}

// NewClient builds a bridge client over a chain reader.
func NewClient(cfg ClientConfig, chainClient ChainReader, logger *zap.Logger) (*Client, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	decoder, err := newRelayDecoder()
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:       cfg,
		chain:     chainClient,
		logger:    logger,
		decoder:   decoder,
		poolIndex: make(map[common.Address]int),
		byPool:    make(map[common.Address]common.Address),
		relays:    make(map[common.Address]map[common.Hash]model.Relay),
		events:    make(map[common.Address][]model.RelayEvent),
		seen:      make(map[string]struct{}),
	}, nil
}

// LatestBlockNumber returns the current chain head.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.chain.LatestBlockNumber(ctx)
}

// LastScannedBlock returns the last block folded into the view and whether any
// scan has completed yet.
func (c *Client) LastScannedBlock() (uint64, bool) {
	return c.lastScanned, c.scanned
}

// Update scans admin and pool logs up to toBlock. Progress is kept per batch,
// so a failed call resumes from the last completed batch.
func (c *Client) Update(ctx context.Context, toBlock uint64) error {
	from := c.cfg.DeployBlock
	if c.scanned {
		if toBlock <= c.lastScanned {
			return nil
		}
		from = c.lastScanned + 1
	}
	if from > toBlock {
		return nil
	}

	batches, err := model.BlockRange{From: from, To: toBlock}.Split(c.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, batch := range batches {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.scanAdmin(ctx, batch); err != nil {
			return err
		}
		if err := c.scanPools(ctx, batch); err != nil {
			return err
		}

		c.lastScanned = batch.To
		c.scanned = true
		c.logger.Debug("bridge scan batch complete", zap.Uint64("from", batch.From), zap.Uint64("to", batch.To), zap.Int("pools", len(c.pools)))
	}

	return nil
}

func (c *Client) scanAdmin(ctx context.Context, batch model.BlockRange) error {
	logs, err := c.chain.FilterLogs(ctx, batch.From, batch.To, []common.Address{c.cfg.BridgeAdmin}, []common.Hash{c.decoder.whitelistTopic()})
	if err != nil {
		return fmt.Errorf("filter admin logs %d-%d: %w", batch.From, batch.To, err)
	}

	for _, log := range logs {
		if log.Removed {
			continue
		}
		whitelisted, err := c.decoder.decodeWhitelist(log)
		if err != nil {
			return fmt.Errorf("decode WhitelistToken tx %s: %w", log.TxHash.Hex(), err)
		}
		if _, ok := c.poolIndex[whitelisted.Pool]; ok {
			continue
		}

		meta, err := fetchCollateral(ctx, c.chain, whitelisted.L1Token, c.logger)
		if err != nil {
			return fmt.Errorf("collateral metadata %s: %w", whitelisted.L1Token.Hex(), err)
		}

		c.poolIndex[whitelisted.Pool] = len(c.pools)
		c.byPool[whitelisted.Pool] = whitelisted.L1Token
		c.pools = append(c.pools, model.BridgePool{
			Address:            whitelisted.Pool,
			L1Token:            whitelisted.L1Token,
			L2Token:            whitelisted.L2Token,
			ChainID:            whitelisted.ChainID,
			CollateralSymbol:   meta.Symbol,
			CollateralDecimals: meta.Decimals,
		})
		c.logger.Info("bridge pool discovered",
			zap.String("pool", whitelisted.Pool.Hex()),
			zap.String("l1_token", whitelisted.L1Token.Hex()),
			zap.String("symbol", meta.Symbol),
			zap.Uint64("block_number", log.BlockNumber),
		)
	}
	return nil
}

func (c *Client) scanPools(ctx context.Context, batch model.BlockRange) error {
	if len(c.pools) == 0 {
		return nil
	}
	addresses := make([]common.Address, 0, len(c.pools))
	for _, pool := range c.pools {
		addresses = append(addresses, pool.Address)
	}

	logs, err := c.chain.FilterLogs(ctx, batch.From, batch.To, addresses, c.decoder.relayTopics())
	if err != nil {
		return fmt.Errorf("filter pool logs %d-%d: %w", batch.From, batch.To, err)
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	for _, log := range logs {
		if log.Removed || c.isDuplicate(log) {
			continue
		}
		l1Token, ok := c.byPool[log.Address]
		if !ok {
			continue
		}

		event, err := c.decoder.decodeRelay(log)
		if err != nil {
			return fmt.Errorf("decode relay log tx %s index %d: %w", log.TxHash.Hex(), log.Index, err)
		}

		if payload, ok := event.Payload.(model.DepositRelayedPayload); ok {
			if c.relays[l1Token] == nil {
				c.relays[l1Token] = make(map[common.Hash]model.Relay)
			}
			c.relays[l1Token][event.DepositHash] = payload.Relay
		}
		c.events[l1Token] = append(c.events[l1Token], event)
	}
	return nil
}

func (c *Client) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := c.seen[id]; ok {
		return true
	}
	c.seen[id] = struct{}{}
	return false
}

// BridgePools returns the pools discovered so far in discovery order.
func (c *Client) BridgePools() []model.BridgePool {
	out := make([]model.BridgePool, len(c.pools))
	copy(out, c.pools)
	return out
}

// Relays returns every relay known for the pool of l1Token.
func (c *Client) Relays(l1Token common.Address) []model.Relay {
	relays := c.relays[l1Token]
	out := make([]model.Relay, 0, len(relays))
	for _, relay := range relays {
		out = append(out, relay)
	}
	return out
}

// RelayEvents returns the relay events seen for the pool of l1Token.
func (c *Client) RelayEvents(l1Token common.Address) []model.RelayEvent {
	events := c.events[l1Token]
	out := make([]model.RelayEvent, len(events))
	copy(out, events)
	return out
}

// Utilization reads a pool's current liquidity utilization, fixed point 1e18.
func (c *Client) Utilization(ctx context.Context, pool common.Address) (*big.Int, error) {
	values, err := callMethod(ctx, c.chain, pool, c.decoder.poolABI, "liquidityUtilizationCurrent")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}
