package monitor

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bridgemon/internal/alert"
	"bridgemon/internal/metrics"
	"bridgemon/internal/model"
	"bridgemon/internal/relay"
)

const component = "bridge-monitor"

// L1Client is the bridge view the monitor drives.
type L1Client interface {
	relay.Source
	LatestBlockNumber(ctx context.Context) (uint64, error)
	Update(ctx context.Context, toBlock uint64) error
	Utilization(ctx context.Context, pool common.Address) (*big.Int, error)
}

// Config holds the monitor settings.
type Config struct {
	// ChainID is the chain the bridge admin and pools live on.
	ChainID uint64
	// PollInterval of zero selects serverless mode.
	PollInterval time.Duration
	// StartingBlock and EndingBlock override the window in serverless mode.
	StartingBlock *uint64
	EndingBlock   *uint64
	// UtilizationThreshold is an integer percent in [0,100].
	UtilizationThreshold uint64
	WhitelistedAddresses []common.Address
}

// Monitor owns the block window and evaluates the alerting rules over it.
type Monitor struct {
	cfg       Config
	l1        L1Client
	processor *relay.Processor
	sink      alert.Sink
	logger    *zap.Logger

	threshold *big.Int
	allowed   map[common.Address]struct{}

	window    model.BlockRange
	hasWindow bool
	// replay is set when a check fails so the retried iteration covers the
	// same window again instead of skipping ahead.
	replay bool
}

// New builds a Monitor.
func New(cfg Config, l1 L1Client, sink alert.Sink, logger *zap.Logger) (*Monitor, error) {
	if l1 == nil {
		return nil, fmt.Errorf("l1 client is nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("alert sink is nil")
	}
	if cfg.UtilizationThreshold > 100 {
		return nil, fmt.Errorf("utilization threshold must be within [0,100], got %d", cfg.UtilizationThreshold)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowed := make(map[common.Address]struct{}, len(cfg.WhitelistedAddresses))
	for _, addr := range cfg.WhitelistedAddresses {
		allowed[addr] = struct{}{}
	}

	return &Monitor{
		cfg:       cfg,
		l1:        l1,
		processor: relay.NewProcessor(l1, logger),
		sink:      sink,
		logger:    logger,
		threshold: thresholdFixedPoint(cfg.UtilizationThreshold),
		allowed:   allowed,
	}, nil
}

// Serverless reports whether the monitor covers a single window per process.
func (m *Monitor) Serverless() bool {
	return m.cfg.PollInterval == 0
}

// Window returns the current block window and whether Update has set one.
func (m *Monitor) Window() (model.BlockRange, bool) {
	return m.window, m.hasWindow
}

// Update advances the block window to the chain head, then brings the L1
// client and the deposit cache up to the window's end.
func (m *Monitor) Update(ctx context.Context) error {
	head, err := m.l1.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}

	var start, end uint64
	if m.Serverless() {
		start, end = head, head
		if m.cfg.StartingBlock != nil {
			start = *m.cfg.StartingBlock
		}
		if m.cfg.EndingBlock != nil {
			end = *m.cfg.EndingBlock
		}
		if end > head {
			m.logger.Warn("ending block is ahead of the chain head, clamping",
				zap.Uint64("ending_block", end),
				zap.Uint64("head", head),
			)
			end = head
		}
	} else {
		start, end = head, head
		switch {
		case m.hasWindow && m.replay:
			start = m.window.From
		case m.hasWindow:
			start = m.window.To + 1
		}
	}
	start = min(start, end)

	if err := m.l1.Update(ctx, end); err != nil {
		return fmt.Errorf("update l1 client to %d: %w", end, err)
	}
	m.processor.Update(end)

	m.window = model.BlockRange{From: start, To: end}
	m.hasWindow = true
	m.replay = false

	pools := m.l1.BridgePools()
	metrics.WindowStartBlock.Set(float64(start))
	metrics.WindowEndBlock.Set(float64(end))
	metrics.BridgePools.Set(float64(len(pools)))

	m.logger.Info("monitor window updated",
		zap.Uint64("from", start),
		zap.Uint64("to", end),
		zap.Uint64("head", head),
		zap.Int("pools", len(pools)),
	)
	return nil
}

// CheckUtilization alerts on every pool whose current liquidity utilization
// is strictly above the configured threshold.
func (m *Monitor) CheckUtilization(ctx context.Context) error {
	pools := m.l1.BridgePools()
	utilizations := make([]*big.Int, len(pools))

	g, gctx := errgroup.WithContext(ctx)
	for i, pool := range pools {
		i, pool := i, pool
		g.Go(func() error {
			value, err := m.l1.Utilization(gctx, pool.Address)
			if err != nil {
				return fmt.Errorf("utilization of pool %s: %w", pool.Address.Hex(), err)
			}
			utilizations[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.replay = true
		return err
	}

	for i, pool := range pools {
		utilization := utilizations[i]
		metrics.PoolUtilization.WithLabelValues(pool.Address.Hex(), pool.CollateralSymbol).Set(ratioFloat(utilization))

		if utilization.Cmp(m.threshold) <= 0 {
			continue
		}
		m.emit(ctx, alert.Alert{
			Severity:  alert.SeverityWarn,
			Component: component,
			Message: fmt.Sprintf("%s bridge pool utilization at %s on %s (threshold %d%%)",
				pool.CollateralSymbol, formatPercent(utilization), chainName(m.cfg.ChainID), m.cfg.UtilizationThreshold),
			Metadata: map[string]string{
				"kind":        alert.KindUtilization,
				"pool":        pool.Address.Hex(),
				"chain":       chainName(m.cfg.ChainID),
				"l2_chain":    chainName(pool.ChainID),
				"symbol":      pool.CollateralSymbol,
				"utilization": formatPercent(utilization),
				"threshold":   strconv.FormatUint(m.cfg.UtilizationThreshold, 10) + "%",
			},
		})
	}
	return nil
}

// CheckUnknownRelayers alerts once per relay action in the window whose
// caller is not allow-listed.
func (m *Monitor) CheckUnknownRelayers(ctx context.Context) error {
	infos, err := m.EventInfo()
	if err != nil {
		m.replay = true
		return err
	}

	for _, info := range infos {
		if _, ok := m.allowed[info.Caller]; ok {
			continue
		}
		m.emit(ctx, m.unknownRelayerAlert(info))
	}
	return nil
}

// EventInfo returns the relay actions in the current window.
func (m *Monitor) EventInfo() ([]model.EventInfo, error) {
	if !m.hasWindow {
		return nil, fmt.Errorf("monitor window not initialised, call Update first")
	}
	infos, err := m.processor.RelayEventInfo(m.window.From, m.window.To)
	if err != nil {
		return nil, fmt.Errorf("relay events %d-%d: %w", m.window.From, m.window.To, err)
	}
	return infos, nil
}

func (m *Monitor) unknownRelayerAlert(info model.EventInfo) alert.Alert {
	r := info.Relay
	amount := formatTokenAmount(r.Amount, info.CollateralDecimals) + " " + info.CollateralSymbol
	from := chainName(r.ChainID)
	to := chainName(m.cfg.ChainID)

	return alert.Alert{
		Severity:  alert.SeverityWarn,
		Component: component,
		Message: fmt.Sprintf("unknown relayer %s %s deposit #%d of %s from %s to %s",
			info.Caller.Hex(), info.Action, r.DepositID, amount, from, to),
		Metadata: map[string]string{
			"kind":                  alert.KindUnknownRelayer,
			"caller":                info.Caller.Hex(),
			"action":                info.Action,
			"deposit_id":            strconv.FormatUint(r.DepositID, 10),
			"deposit_hash":          r.DepositHash.Hex(),
			"from_chain":            from,
			"to_chain":              to,
			"amount":                amount,
			"slow_relay_fee_pct":    formatPercent(r.SlowRelayFeePct),
			"instant_relay_fee_pct": formatPercent(r.InstantRelayFeePct),
			"realized_lp_fee_pct":   formatPercent(r.RealizedLpFeePct),
			"pool":                  info.Pool.Hex(),
			"tx_hash":               info.TxHash.Hex(),
			"block_number":          strconv.FormatUint(info.BlockNumber, 10),
		},
	}
}

// emit delivers an alert. Delivery failures are logged and do not fail the
// check; remaining pools and events are still evaluated.
func (m *Monitor) emit(ctx context.Context, a alert.Alert) {
	metrics.AlertsTotal.WithLabelValues(a.Kind()).Inc()
	if err := m.sink.Send(ctx, a); err != nil {
		m.logger.Warn("alert delivery failed", zap.String("kind", a.Kind()), zap.Error(err))
	}
}
