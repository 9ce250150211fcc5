// Package scanner implements the Opportunity Scanner (component C3): a
// three-stage parallel fan-out over the common instrument universe,
// filtering, and ranking by projected net funding APR.
package scanner

import (
	"github.com/shopspring/decimal"
)

// Direction names which venue carries the long leg.
type Direction string

const (
	LongExtendedShortPacifica Direction = "long_extended_short_pacifica"
	LongPacificaShortExtended Direction = "long_pacifica_short_extended"
)

// FilterResult tags why a candidate did or didn't make the final ranking.
// Evaluation order is fixed: volume, then intra-spread, then cross-spread,
// then APR (SPEC_FULL.md §3/§4.2) — a candidate failing an earlier check
// never receives a later tag even when it would also fail it.
type FilterResult string

const (
	FilterPassed            FilterResult = "passed"
	FilterFailedVolume       FilterResult = "failed_volume"
	FilterFailedIntraSpread FilterResult = "failed_intra_spread"
	FilterFailedCrossSpread FilterResult = "failed_cross_spread"
	FilterFailedAPR          FilterResult = "failed_apr"
)

// Opportunity is one ranked candidate symbol.
type Opportunity struct {
	Symbol string

	ExtendedMid decimal.Decimal
	PacificaMid decimal.Decimal

	ExtendedIntraSpreadPct decimal.Decimal
	PacificaIntraSpreadPct decimal.Decimal
	CrossSpreadPct         decimal.Decimal

	ExtendedVolume24hUSD decimal.Decimal
	PacificaVolume24hUSD decimal.Decimal
	TotalVolume24hUSD    decimal.Decimal

	ExtendedFundingAPRPercent decimal.Decimal
	PacificaFundingAPRPercent decimal.Decimal

	BestDirection Direction
	BestNetAPRPercent decimal.Decimal
}

// Candidate pairs an Opportunity (fully computed, even when it fails a
// filter) with its FilterResult tag.
type Candidate struct {
	Opportunity Opportunity
	Filter      FilterResult
}

// FilterStats aggregates pass/fail counts across one scan.
type FilterStats struct {
	TotalCommonSymbols int
	FilteredByVolume      int
	FilteredByIntraSpread int
	FilteredByCrossSpread int
	FilteredByAPR         int
	Passed                int
}

// Result is the complete output of one scan: ranked passing opportunities,
// every candidate tagged with its filter result, and aggregate counts.
type Result struct {
	Opportunities []Opportunity
	AllCandidates []Candidate
	Stats         FilterStats
}
