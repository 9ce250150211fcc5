// Package venue defines the capability contract shared by both venue
// clients (components C1/C2) and the plain data types that cross that
// boundary. Concrete venues live in the extended and pacifica subpackages.
package venue

import (
	"github.com/shopspring/decimal"
)

// Side is the direction of an order or position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the other side, used when computing a reduce-only
// rollback or close order.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// MarketInfo describes one tradable instrument as returned by
// get_all_markets.
type MarketInfo struct {
	Symbol string
}

// OrderBookLevel is one top-of-book side.
type OrderBookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook is the top-of-book snapshot consumed by the scanner; only the
// best bid/ask is used anywhere in this codebase.
type OrderBook struct {
	Symbol string
	Bid    OrderBookLevel
	Ask    OrderBookLevel
}

// Mid returns the midpoint of the top of book.
func (ob OrderBook) Mid() decimal.Decimal {
	return ob.Bid.Price.Add(ob.Ask.Price).Div(decimal.NewFromInt(2))
}

// FundingRate is one venue's current funding rate for a symbol, expressed as
// a decimal rate per IntervalHours (e.g. 0.0001 per 1 hour).
type FundingRate struct {
	Symbol        string
	Rate          decimal.Decimal
	IntervalHours decimal.Decimal
}

// AnnualizedAPRPercent converts the periodic rate to an annualized
// percentage, resolving the "which magic number" open question in
// SPEC_FULL.md §9 by deriving periods-per-year from IntervalHours rather
// than hard-coding a venue-specific constant.
func (f FundingRate) AnnualizedAPRPercent() decimal.Decimal {
	if f.IntervalHours.IsZero() {
		return decimal.Zero
	}
	periodsPerYear := decimal.NewFromInt(24 * 365).Div(f.IntervalHours)
	return f.Rate.Mul(periodsPerYear).Mul(decimal.NewFromInt(100))
}

// Position is a live on-venue position snapshot.
type Position struct {
	Symbol        string
	Side          Side
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	MarketID      string
	UnrealizedPnL decimal.Decimal
	FundingPaid   decimal.Decimal
	CreatedAt     int64 // epoch seconds, zero if unknown
}

// Balance is account-level collateral availability.
type Balance struct {
	AvailableForTrade decimal.Decimal
}

// MarketConfig is the set of sizing constraints for one symbol.
type MarketConfig struct {
	Symbol      string
	LotSize     decimal.Decimal
	TickSize    decimal.Decimal
	MinNotional decimal.Decimal
}

// OrderReceipt is the acknowledgement returned once a venue accepts an
// order for matching; it does not imply the order has filled.
type OrderReceipt struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          Side
	RequestedQty  decimal.Decimal
	ReduceOnly    bool
}

// Volume24h is the 24h USD-denominated traded volume for one symbol.
type Volume24h struct {
	Symbol   string
	USDValue decimal.Decimal
}
