// Package orchestrator implements the Bot Orchestrator (component C6): the
// persistent state machine over a single active position, reconciling
// saved state against live exchange truth and rotating on schedule.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/djienne/deltaarb/internal/apperrors"
	"github.com/djienne/deltaarb/internal/config"
	"github.com/djienne/deltaarb/internal/core"
	"github.com/djienne/deltaarb/internal/executor"
	"github.com/djienne/deltaarb/internal/scanner"
	"github.com/djienne/deltaarb/internal/state"
	"github.com/djienne/deltaarb/internal/telemetry"
	"github.com/djienne/deltaarb/internal/venue"
)

const (
	rotationGap        = 5 * time.Second
	imbalanceRetrySleep = 5 * time.Second
	reconcileRetrySleep = 60 * time.Second
)

// Orchestrator runs the main cycle loop described in SPEC_FULL.md §4.5.
type Orchestrator struct {
	extended venue.Client
	pacifica venue.Client
	scanner  *scanner.Scanner
	executor *executor.Executor
	store    *state.Store
	cfg      *config.Config
	logger   core.ILogger
	metrics  *telemetry.Metrics
}

// New builds an Orchestrator over its collaborators.
func New(extended, pacifica venue.Client, sc *scanner.Scanner, ex *executor.Executor, store *state.Store, cfg *config.Config, logger core.ILogger, metrics *telemetry.Metrics) *Orchestrator {
	return &Orchestrator{
		extended: extended,
		pacifica: pacifica,
		scanner:  sc,
		executor: ex,
		store:    store,
		cfg:      cfg,
		logger:   logger.WithField("component", "orchestrator"),
		metrics:  metrics,
	}
}

// Run implements the bootstrap.Runner contract: it loops cycles until ctx
// is cancelled (step 1's shutdown probe), sleeping MONITORING_INTERVAL
// minutes between cycles (step 8).
func (o *Orchestrator) Run(ctx context.Context) error {
	monitoringInterval := 15 * time.Minute

	for {
		if ctx.Err() != nil {
			o.logger.Info("shutdown signal received, exiting cleanly")
			return nil
		}

		sleep, err := o.runCycle(ctx)
		if err != nil {
			o.logger.Error("cycle failed", "error", err.Error())
		}
		if sleep == 0 {
			sleep = monitoringInterval
		}

		select {
		case <-ctx.Done():
			o.logger.Info("shutdown signal received during sleep, exiting cleanly")
			return nil
		case <-time.After(sleep):
		}
	}
}

// runCycle executes steps 2-7 of SPEC_FULL.md §4.5 once. It returns a
// non-zero sleep override when the cycle wants a shorter retry delay than
// the normal monitoring interval (steps 2 and 4's skip/retry sleeps).
func (o *Orchestrator) runCycle(ctx context.Context) (time.Duration, error) {
	if o.metrics != nil {
		defer o.metrics.CyclesTotal.Add(ctx, 1)
	}

	st, err := o.store.Load()
	if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}

	// Step 2: reconciliation.
	if st.CurrentPosition != nil {
		reconciled, skipSleep, err := o.reconcile(ctx, st.CurrentPosition)
		if err != nil {
			return 0, err
		}
		if skipSleep > 0 {
			return skipSleep, nil
		}
		st.CurrentPosition = reconciled
		if err := o.store.Save(st); err != nil {
			return 0, fmt.Errorf("persist after reconciliation: %w", err)
		}
	}

	blockOpen := false

	// Step 3: recovery probe.
	if st.CurrentPosition == nil {
		adopted, blocked, err := o.recover(ctx)
		if err != nil {
			o.logger.Warn("recovery probe failed", "error", err.Error())
		}
		blockOpen = blocked
		if adopted != nil {
			st.CurrentPosition = adopted
			if err := o.store.Save(st); err != nil {
				return 0, fmt.Errorf("persist after adoption: %w", err)
			}
		}
	}

	// Step 4: imbalance response takes precedence over opening/rotating.
	if st.CurrentPosition.IsImbalanced() {
		if err := o.executor.Close(ctx, st.CurrentPosition); err != nil {
			o.logger.Warn("imbalance close failed, retrying next cycle", "symbol", st.CurrentPosition.Symbol, "error", err.Error())
			return imbalanceRetrySleep, nil
		}
		if o.metrics != nil {
			o.metrics.ClosesTotal.Add(ctx, 1)
		}
		st.CurrentPosition = nil
		if err := o.store.Save(st); err != nil {
			return 0, fmt.Errorf("persist after imbalance close: %w", err)
		}
		return 0, nil
	}

	if o.metrics != nil && st.CurrentPosition != nil {
		o.metrics.SetPositionAge(time.Since(time.Unix(st.CurrentPosition.OpenedAt, 0)).Seconds())
	} else if o.metrics != nil {
		o.metrics.SetPositionAge(0)
	}

	// Step 6: scan regardless of current state, for visibility.
	scanStart := time.Now()
	result, err := o.scanner.Scan(ctx)
	if o.metrics != nil {
		o.metrics.ScanDuration.Record(ctx, time.Since(scanStart).Seconds())
	}
	if err != nil {
		o.logger.Warn("scan failed", "error", err.Error())
	} else {
		o.logger.Info("scan complete", "passed", result.Stats.Passed, "total_common_symbols", result.Stats.TotalCommonSymbols)
	}

	holdTime := time.Duration(o.cfg.Trading.HoldTimeHours) * time.Hour

	// Step 7: decision.
	switch {
	case st.CurrentPosition != nil && st.CurrentPosition.ShouldRotate(time.Now(), holdTime):
		if err := o.executor.Close(ctx, st.CurrentPosition); err != nil {
			o.logger.Error("rotation close failed", "symbol", st.CurrentPosition.Symbol, "error", err.Error())
			return 0, nil
		}
		if o.metrics != nil {
			o.metrics.ClosesTotal.Add(ctx, 1)
		}
		st.CurrentPosition = nil
		if err := o.store.Save(st); err != nil {
			return 0, fmt.Errorf("persist after rotation close: %w", err)
		}

		select {
		case <-ctx.Done():
			return 0, nil
		case <-time.After(rotationGap):
		}

		if err == nil && len(result.Opportunities) > 0 {
			if err := o.open(ctx, &st, result.Opportunities[0]); err != nil {
				o.logger.Error("rotation open failed", "error", err.Error())
			} else {
				st.TotalRotations++
				if o.metrics != nil {
					o.metrics.RotationsTotal.Add(ctx, 1)
				}
			}
		}
		now := time.Now().Unix()
		st.LastRotationTime = &now
		if err := o.store.Save(st); err != nil {
			return 0, fmt.Errorf("persist after rotation: %w", err)
		}

	case st.CurrentPosition == nil && !blockOpen:
		if err == nil && len(result.Opportunities) > 0 {
			if err := o.open(ctx, &st, result.Opportunities[0]); err != nil {
				o.logger.Error("open failed", "error", err.Error())
			} else {
				now := time.Now().Unix()
				st.LastRotationTime = &now
				st.TotalRotations++
			}
			if err := o.store.Save(st); err != nil {
				return 0, fmt.Errorf("persist after open: %w", err)
			}
		}

	default:
		if st.CurrentPosition != nil {
			remaining := holdTime - time.Since(time.Unix(st.CurrentPosition.OpenedAt, 0))
			o.logger.Info("idle, holding position", "symbol", st.CurrentPosition.Symbol, "time_until_rotation", remaining.String())
		}
	}

	return 0, nil
}

// reconcile implements step 2: fetch live positions for the saved symbol on
// both venues and reconcile against saved state. A transport failure here
// causes the caller to skip the cycle (return reconcileRetrySleep), since an
// absent-position read cannot be distinguished from a transport error any
// other way.
func (o *Orchestrator) reconcile(ctx context.Context, pos *executor.DeltaNeutralPosition) (*executor.DeltaNeutralPosition, time.Duration, error) {
	extPositions, err := o.extended.GetPositions(ctx, pos.Symbol)
	if err != nil {
		o.logger.Warn("reconciliation transport failure, skipping cycle", "venue", "extended", "error", err.Error())
		return pos, reconcileRetrySleep, nil
	}
	pacPositions, err := o.pacifica.GetPositions(ctx, pos.Symbol)
	if err != nil {
		o.logger.Warn("reconciliation transport failure, skipping cycle", "venue", "pacifica", "error", err.Error())
		return pos, reconcileRetrySleep, nil
	}

	var extLeg, pacLeg *executor.LegSnapshot
	if p := firstPosition(extPositions); p != nil {
		extLeg = legFromPosition(p)
	}
	if p := firstPosition(pacPositions); p != nil {
		pacLeg = legFromPosition(p)
	}

	if extLeg == nil && pacLeg == nil {
		o.logger.Info("reconciliation found no live legs, clearing stale state", "symbol", pos.Symbol, "reason", apperrors.StalePersistedState.Error())
		return nil, 0, nil
	}

	return &executor.DeltaNeutralPosition{
		Symbol:            pos.Symbol,
		ExtendedPosition:  extLeg,
		PacificaPosition:  pacLeg,
		OpenedAt:          pos.OpenedAt,
		TargetNotionalUSD: pos.TargetNotionalUSD,
	}, 0, nil
}

func firstPosition(positions []venue.Position) *venue.Position {
	if len(positions) == 0 {
		return nil
	}
	return &positions[0]
}

func legFromPosition(p *venue.Position) *executor.LegSnapshot {
	return &executor.LegSnapshot{
		Side:          p.Side,
		Size:          p.Size,
		EntryPrice:    p.EntryPrice,
		MarketID:      p.MarketID,
		UnrealizedPnL: p.UnrealizedPnL,
		FundingPaid:   p.FundingPaid,
	}
}

// recover implements step 3: adopt an unknown live position into state when
// the mapping is unambiguous, otherwise block new opens this cycle.
func (o *Orchestrator) recover(ctx context.Context) (adopted *executor.DeltaNeutralPosition, blocked bool, err error) {
	extPositions, err := o.extended.GetPositions(ctx, "")
	if err != nil {
		return nil, false, fmt.Errorf("recovery probe: extended: %w", err)
	}
	pacPositions, err := o.pacifica.GetPositions(ctx, "")
	if err != nil {
		return nil, false, fmt.Errorf("recovery probe: pacifica: %w", err)
	}

	if len(extPositions) == 0 && len(pacPositions) == 0 {
		return nil, false, nil
	}

	extSymbols := symbolSet(extPositions)
	pacSymbols := symbolSet(pacPositions)

	if len(extPositions) > 0 && len(pacPositions) > 0 {
		common := intersect(extSymbols, pacSymbols)
		if len(common) == 1 {
			symbol := common[0]
			return &executor.DeltaNeutralPosition{
				Symbol:           symbol,
				ExtendedPosition: legFromPosition(findBySymbol(extPositions, symbol)),
				PacificaPosition: legFromPosition(findBySymbol(pacPositions, symbol)),
				OpenedAt:         time.Now().Unix(),
			}, false, nil
		}
		o.logger.Warn("recovery probe: ambiguous overlap across venues", "extended_symbols", extSymbols, "pacifica_symbols", pacSymbols, "reason", apperrors.UntrackedLivePositions.Error())
		return nil, true, apperrors.UntrackedLivePositions
	}

	// Exactly one venue reports positions.
	if len(extPositions) > 0 && len(extSymbols) == 1 {
		return &executor.DeltaNeutralPosition{
			Symbol:           extSymbols[0],
			ExtendedPosition: legFromPosition(findBySymbol(extPositions, extSymbols[0])),
			OpenedAt:         time.Now().Unix(),
		}, false, nil
	}
	if len(pacPositions) > 0 && len(pacSymbols) == 1 {
		return &executor.DeltaNeutralPosition{
			Symbol:           pacSymbols[0],
			PacificaPosition: legFromPosition(findBySymbol(pacPositions, pacSymbols[0])),
			OpenedAt:         time.Now().Unix(),
		}, false, nil
	}

	o.logger.Warn("recovery probe: multiple symbols on one venue cannot be uniquely adopted", "reason", apperrors.UntrackedLivePositions.Error())
	return nil, true, apperrors.UntrackedLivePositions
}

func symbolSet(positions []venue.Position) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, p := range positions {
		if !seen[p.Symbol] {
			seen[p.Symbol] = true
			symbols = append(symbols, p.Symbol)
		}
	}
	return symbols
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	var out []string
	for _, s := range a {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

func findBySymbol(positions []venue.Position, symbol string) *venue.Position {
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i]
		}
	}
	return nil
}

// open fetches balances, market configs, and current price immediately
// before invoking the executor, per SPEC_FULL.md §4.5's final paragraph.
func (o *Orchestrator) open(ctx context.Context, st *state.BotState, opp scanner.Opportunity) error {
	extBalance, err := o.extended.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetch extended balance: %w", err)
	}
	pacBalance, err := o.pacifica.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetch pacifica balance: %w", err)
	}
	extConfig, err := o.extended.GetMarketConfig(ctx, opp.Symbol)
	if err != nil {
		return fmt.Errorf("fetch extended market config: %w", err)
	}
	pacConfig, err := o.pacifica.GetMarketConfig(ctx, opp.Symbol)
	if err != nil {
		return fmt.Errorf("fetch pacifica market config: %w", err)
	}

	req := executor.OpenRequest{
		Symbol:         opp.Symbol,
		Direction:      opp.BestDirection,
		FreeExtended:   extBalance.AvailableForTrade,
		FreePacifica:   pacBalance.AvailableForTrade,
		LotExtended:    extConfig.LotSize,
		LotPacifica:    pacConfig.LotSize,
		Price:          opp.ExtendedMid,
		MaxPositionUSD: o.cfg.Trading.MaxPositionSizeUSD,
	}

	pos, err := o.executor.Open(ctx, req)
	if err != nil {
		return err
	}
	if o.metrics != nil {
		o.metrics.OpensTotal.Add(ctx, 1)
	}
	st.CurrentPosition = pos
	return nil
}
