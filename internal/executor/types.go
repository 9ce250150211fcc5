// Package executor implements the Delta-Neutral Executor (component C4):
// two-leg atomic order placement with per-leg retry, rate-limit-aware
// backoff, and compensating rollback on partial failure.
package executor

import (
	"time"

	"github.com/djienne/deltaarb/internal/scanner"
	"github.com/djienne/deltaarb/internal/venue"

	"github.com/shopspring/decimal"
)

// LegSnapshot is one venue's half of a delta-neutral position, captured
// immediately after both legs are confirmed open.
type LegSnapshot struct {
	Side          venue.Side      `json:"side"`
	Size          decimal.Decimal `json:"size"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	MarketID      string          `json:"market_id"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	FundingPaid   decimal.Decimal `json:"funding_paid"`
	OpenOrderID   string          `json:"open_order_id"`
}

// DeltaNeutralPosition is the active position record. Both leg fields are
// independently optional so that a post-reconciliation one-legged state
// (the imbalanced state) is representable as data rather than an error.
// Field tags match the persisted document's wire contract (SPEC_FULL.md
// §6, grounded on original_source/src/trading.rs's DeltaNeutralPosition).
type DeltaNeutralPosition struct {
	Symbol            string          `json:"symbol"`
	ExtendedPosition  *LegSnapshot    `json:"extended_position"`
	PacificaPosition  *LegSnapshot    `json:"pacifica_position"`
	OpenedAt          int64           `json:"opened_at"` // epoch seconds
	TargetNotionalUSD decimal.Decimal `json:"target_notional_usd"`
}

// HasBothLegs reports whether both venue legs are populated — a healthy
// neutral position.
func (p *DeltaNeutralPosition) HasBothLegs() bool {
	return p != nil && p.ExtendedPosition != nil && p.PacificaPosition != nil
}

// IsImbalanced reports whether exactly one leg is populated.
func (p *DeltaNeutralPosition) IsImbalanced() bool {
	if p == nil {
		return false
	}
	return (p.ExtendedPosition == nil) != (p.PacificaPosition == nil)
}

// ShouldRotate reports whether the position has been held at least
// holdTime, evaluated against now.
func (p *DeltaNeutralPosition) ShouldRotate(now time.Time, holdTime time.Duration) bool {
	if p == nil {
		return false
	}
	openedAt := time.Unix(p.OpenedAt, 0)
	return now.Sub(openedAt) >= holdTime
}

// OpenRequest names the symbol, direction, and pre-fetched sizing inputs
// the orchestrator gathers immediately before invoking Open.
type OpenRequest struct {
	Symbol         string
	Direction      scanner.Direction
	FreeExtended   decimal.Decimal
	FreePacifica   decimal.Decimal
	LotExtended    decimal.Decimal
	LotPacifica    decimal.Decimal
	Price          decimal.Decimal
	MaxPositionUSD decimal.Decimal
}

// CalculatePositionSize implements SPEC_FULL.md §4.3 step 1: size is a
// mechanical function of available collateral and a hard cap, floored to
// the coarser of the two venues' lot sizes (the safer of the two executor
// variants named in SPEC_FULL.md §9 — it guarantees equal base size on both
// legs at the cost of looser lot alignment on the finer-lot venue).
//
// Monotonically non-decreasing in min(freeA, freeB), and never exceeds
// cap/price after flooring.
func CalculatePositionSize(freeA, freeB, lotA, lotB, price, cap decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}

	minCapital := freeA
	if freeB.LessThan(minCapital) {
		minCapital = freeB
	}

	targetNotional := minCapital.Mul(decimal.NewFromFloat(0.95))
	if cap.LessThan(targetNotional) {
		targetNotional = cap
	}

	baseSize := targetNotional.Div(price)

	lot := lotA
	if lotB.GreaterThan(lot) {
		lot = lotB
	}
	if lot.IsZero() {
		return decimal.Zero
	}

	return baseSize.Div(lot).Floor().Mul(lot)
}
