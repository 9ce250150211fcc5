package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/djienne/deltaarb/internal/apperrors"
	"github.com/djienne/deltaarb/internal/core"
	"github.com/djienne/deltaarb/internal/scanner"
	"github.com/djienne/deltaarb/internal/telemetry"
	"github.com/djienne/deltaarb/internal/venue"
	"github.com/djienne/deltaarb/pkg/retry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// slippagePct bounds the market order's acceptable execution price drift;
// this is a placement parameter, not a sizing one, so it lives here rather
// than in config.
const slippagePct = 0.5

// Executor places and closes delta-neutral positions across both venues
// (SPEC_FULL.md §4.3).
type Executor struct {
	extended venue.Client
	pacifica venue.Client
	logger   core.ILogger
	metrics  *telemetry.Metrics
}

// New builds an Executor over the two venue clients. metrics may be nil in
// tests that don't exercise rollback counters.
func New(extended, pacifica venue.Client, logger core.ILogger, metrics *telemetry.Metrics) *Executor {
	return &Executor{extended: extended, pacifica: pacifica, logger: logger.WithField("component", "executor"), metrics: metrics}
}

// Open implements the full executor state machine from SPEC_FULL.md §4.3:
// size computation, leverage preflight, leg A then leg B placement with
// retry, compensating rollback of leg A on leg-B exhaustion, and the final
// position snapshot.
func (e *Executor) Open(ctx context.Context, req OpenRequest) (*DeltaNeutralPosition, error) {
	size := CalculatePositionSize(req.FreeExtended, req.FreePacifica, req.LotExtended, req.LotPacifica, req.Price, req.MaxPositionUSD)
	if size.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%s: %w", req.Symbol, apperrors.InsufficientCapital)
	}

	// Leverage preflight is advisory (SPEC_FULL.md §9): failures are logged
	// and non-fatal because sizing already constrains notional.
	if err := e.extended.UpdateLeverage(ctx, req.Symbol, 1); err != nil {
		e.logger.Warn("leverage preflight failed, continuing", "venue", "extended", "symbol", req.Symbol, "error", err.Error())
	}
	if err := e.pacifica.UpdateLeverage(ctx, req.Symbol, 1); err != nil {
		e.logger.Warn("leverage preflight failed, continuing", "venue", "pacifica", "symbol", req.Symbol, "error", err.Error())
	}

	extendedSide, pacificaSide := legSides(req.Direction)

	extendedReceipt, err := e.placeWithRetry(ctx, e.extended, req.Symbol, extendedSide, size)
	if err != nil {
		return nil, fmt.Errorf("%s: leg A placement exhausted: %w", req.Symbol, err)
	}

	pacificaReceipt, err := e.placeWithRetry(ctx, e.pacifica, req.Symbol, pacificaSide, size)
	if err != nil {
		// Leg B exhausted after leg A succeeded: roll back leg A.
		if e.metrics != nil {
			e.metrics.RollbackInvokedTotal.Add(ctx, 1)
		}
		rollbackErr := e.rollbackLegA(ctx, req.Symbol, extendedSide, size)
		if rollbackErr != nil {
			if e.metrics != nil {
				e.metrics.RollbackFailedTotal.Add(ctx, 1)
			}
			return nil, fmt.Errorf("%s: leg A exposed (order %s) after leg B and rollback both failed: %w", req.Symbol, extendedReceipt.OrderID, apperrors.CriticalImbalance)
		}
		return nil, fmt.Errorf("%s: leg B placement exhausted, leg A rolled back cleanly: %w", req.Symbol, err)
	}

	return e.snapshot(ctx, req, extendedReceipt, pacificaReceipt)
}

func legSides(direction scanner.Direction) (extendedSide, pacificaSide venue.Side) {
	if direction == scanner.LongExtendedShortPacifica {
		return venue.SideLong, venue.SideShort
	}
	return venue.SideShort, venue.SideLong
}

// placeWithRetry generates one client order ID up front and reuses it across
// every retry attempt, so a venue that deduplicates on it never double-fills
// when a response is lost after the order actually lands (SPEC_FULL.md §4.3).
func (e *Executor) placeWithRetry(ctx context.Context, c venue.Client, symbol string, side venue.Side, size decimal.Decimal) (venue.OrderReceipt, error) {
	clientOrderID := uuid.NewString()
	var receipt venue.OrderReceipt
	err := retry.Do(ctx, retry.OrderPolicy, fmt.Sprintf("place %s %s %s", c.Name(), symbol, side), func(ctx context.Context) error {
		r, err := c.PlaceMarketOrder(ctx, symbol, side, size, decimal.NewFromFloat(slippagePct), false, clientOrderID)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		e.logger.Warn("order placement retrying", "venue", c.Name(), "symbol", symbol, "side", side, "attempt", attempt, "delay", delay.String(), "error", err.Error())
	})
	return receipt, err
}

// rollbackLegA closes the leg-A exposure with the same retry discipline,
// but unbounded while the venue reports rate limiting: a rollback must
// eventually succeed, since giving up leaves a live exposed position
// (SPEC_FULL.md §4.3 step 5).
func (e *Executor) rollbackLegA(ctx context.Context, symbol string, extendedSide venue.Side, size decimal.Decimal) error {
	closeSide := extendedSide.Opposite()
	clientOrderID := uuid.NewString()
	return retry.DoUnboundedOnRateLimit(ctx, retry.OrderPolicy, fmt.Sprintf("rollback %s %s", symbol, closeSide), func(ctx context.Context) error {
		_, err := e.extended.PlaceMarketOrder(ctx, symbol, closeSide, size, decimal.NewFromFloat(slippagePct), true, clientOrderID)
		return err
	}, func(attempt int, err error, delay time.Duration) {
		e.logger.Warn("leg A rollback retrying", "symbol", symbol, "attempt", attempt, "delay", delay.String(), "error", err.Error())
	})
}

func (e *Executor) snapshot(ctx context.Context, req OpenRequest, extendedReceipt, pacificaReceipt venue.OrderReceipt) (*DeltaNeutralPosition, error) {
	extendedPositions, err := e.extended.GetPositions(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: snapshot extended positions: %w", req.Symbol, err)
	}
	pacificaPositions, err := e.pacifica.GetPositions(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: snapshot pacifica positions: %w", req.Symbol, err)
	}

	pos := &DeltaNeutralPosition{
		Symbol:            req.Symbol,
		OpenedAt:          time.Now().Unix(),
		TargetNotionalUSD: req.MaxPositionUSD,
	}
	if leg := findPosition(extendedPositions, req.Symbol); leg != nil {
		leg.OpenOrderID = extendedReceipt.OrderID
		pos.ExtendedPosition = leg
	}
	if leg := findPosition(pacificaPositions, req.Symbol); leg != nil {
		leg.OpenOrderID = pacificaReceipt.OrderID
		pos.PacificaPosition = leg
	}
	return pos, nil
}

func findPosition(positions []venue.Position, symbol string) *LegSnapshot {
	for _, p := range positions {
		if p.Symbol != symbol {
			continue
		}
		return &LegSnapshot{
			Side:          p.Side,
			Size:          p.Size,
			EntryPrice:    p.EntryPrice,
			MarketID:      p.MarketID,
			UnrealizedPnL: p.UnrealizedPnL,
			FundingPaid:   p.FundingPaid,
		}
	}
	return nil
}

// Close closes both legs of an active position (or the single leg of an
// imbalanced one), retrying each independently. Close never rolls back: a
// close failure on one leg simply leaves that leg open for the next cycle
// to retry, since there is nothing to compensate for.
func (e *Executor) Close(ctx context.Context, pos *DeltaNeutralPosition) error {
	if pos == nil {
		return nil
	}

	var errs []error
	if pos.ExtendedPosition != nil {
		if err := e.closeLeg(ctx, e.extended, pos.Symbol, pos.ExtendedPosition); err != nil {
			errs = append(errs, fmt.Errorf("extended leg: %w", err))
		}
	}
	if pos.PacificaPosition != nil {
		if err := e.closeLeg(ctx, e.pacifica, pos.Symbol, pos.PacificaPosition); err != nil {
			errs = append(errs, fmt.Errorf("pacifica leg: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) closeLeg(ctx context.Context, c venue.Client, symbol string, leg *LegSnapshot) error {
	return retry.Do(ctx, retry.OrderPolicy, fmt.Sprintf("close %s %s", c.Name(), symbol), func(ctx context.Context) error {
		_, err := c.ClosePosition(ctx, venue.Position{Symbol: symbol, Side: leg.Side, Size: leg.Size})
		return err
	}, func(attempt int, err error, delay time.Duration) {
		e.logger.Warn("close retrying", "venue", c.Name(), "symbol", symbol, "attempt", attempt, "delay", delay.String(), "error", err.Error())
	})
}
