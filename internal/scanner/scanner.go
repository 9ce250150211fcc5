package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/djienne/deltaarb/internal/config"
	"github.com/djienne/deltaarb/internal/core"
	"github.com/djienne/deltaarb/internal/venue"
	"github.com/djienne/deltaarb/pkg/concurrency"

	"github.com/shopspring/decimal"
)

// Scanner runs the three-stage fan-out pipeline described in
// SPEC_FULL.md §4.2. The two per-symbol stages (volume, orderbook+funding)
// run on a bounded worker pool so a universe of hundreds of symbols never
// opens hundreds of connections at once; stage 1's two market-list fetches
// run on plain goroutines.
type Scanner struct {
	extended venue.Client
	pacifica venue.Client
	cfg      *config.Config
	logger   core.ILogger
	pool     *concurrency.WorkerPool
}

// New builds a Scanner over the given venue clients and policy config.
func New(extended, pacifica venue.Client, cfg *config.Config, logger core.ILogger) *Scanner {
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "scanner",
		MaxWorkers:  16,
		MaxCapacity: 1000,
	}, logger)
	return &Scanner{extended: extended, pacifica: pacifica, cfg: cfg, logger: logger.WithField("component", "scanner"), pool: pool}
}

// Close releases the scanner's worker pool. Safe to call once, after the
// orchestrator loop has stopped issuing Scan calls.
func (s *Scanner) Close() {
	s.pool.Stop()
}

// Scan runs the full pipeline: universe intersection, volume fan-out,
// orderbook+funding fan-out, filtering, and ranking.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	timeout := time.Duration(s.cfg.Performance.FetchTimeoutSeconds) * time.Second

	symbols, err := s.commonSymbols(ctx, timeout)
	if err != nil {
		return Result{}, err
	}

	volumes := s.fetchVolumes(ctx, timeout, symbols)

	var liquidSymbols []string
	var volumeFailed []Candidate
	stats := FilterStats{TotalCommonSymbols: len(symbols)}
	for _, sym := range symbols {
		v, ok := volumes[sym]
		if !ok {
			continue // absorbed fetch failure, not counted as a filter failure (§4.2)
		}
		if v.Total.LessThan(s.cfg.Filters.MinCombinedVolumeUSD) {
			stats.FilteredByVolume++
			volumeFailed = append(volumeFailed, Candidate{
				Opportunity: Opportunity{
					Symbol:               sym,
					ExtendedVolume24hUSD: v.Extended,
					PacificaVolume24hUSD: v.Pacifica,
					TotalVolume24hUSD:    v.Total,
				},
				Filter: FilterFailedVolume,
			})
			continue
		}
		liquidSymbols = append(liquidSymbols, sym)
	}

	candidates := s.buildCandidates(ctx, timeout, liquidSymbols, volumes)

	var opportunities []Opportunity
	for _, c := range candidates {
		switch c.Filter {
		case FilterPassed:
			stats.Passed++
			opportunities = append(opportunities, c.Opportunity)
		case FilterFailedIntraSpread:
			stats.FilteredByIntraSpread++
		case FilterFailedCrossSpread:
			stats.FilteredByCrossSpread++
		case FilterFailedAPR:
			stats.FilteredByAPR++
		}
	}

	rankOpportunities(opportunities)

	all := make([]Candidate, 0, len(candidates)+len(volumeFailed))
	all = append(all, candidates...)
	all = append(all, volumeFailed...)

	return Result{
		Opportunities: opportunities,
		AllCandidates: all,
		Stats:         stats,
	}, nil
}

// commonSymbols is stage 1: fetch both venues' market lists in parallel and
// intersect, after each client has already normalized away venue-specific
// suffixes.
func (s *Scanner) commonSymbols(ctx context.Context, timeout time.Duration) ([]string, error) {
	type fetchResult struct {
		markets []venue.MarketInfo
		err     error
	}

	fetch := func(c venue.Client) <-chan fetchResult {
		out := make(chan fetchResult, 1)
		go func() {
			fctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			markets, err := c.GetAllMarkets(fctx)
			out <- fetchResult{markets: markets, err: err}
		}()
		return out
	}

	extCh := fetch(s.extended)
	pacCh := fetch(s.pacifica)

	extResult := <-extCh
	if extResult.err != nil {
		return nil, extResult.err
	}
	pacResult := <-pacCh
	if pacResult.err != nil {
		return nil, pacResult.err
	}

	pacificaSet := make(map[string]bool, len(pacResult.markets))
	for _, m := range pacResult.markets {
		pacificaSet[m.Symbol] = true
	}

	var common []string
	for _, m := range extResult.markets {
		if pacificaSet[m.Symbol] {
			common = append(common, m.Symbol)
		}
	}
	sort.Strings(common)
	return common, nil
}

// volumePair holds per-venue and combined 24h USD volume for one symbol.
type volumePair struct {
	Extended decimal.Decimal
	Pacifica decimal.Decimal
	Total    decimal.Decimal
}

// fetchVolumes is stage 2: concurrently fetch combined 24h USD volume per
// symbol, absorbing individual fetch failures by omitting the symbol.
func (s *Scanner) fetchVolumes(ctx context.Context, timeout time.Duration, symbols []string) map[string]volumePair {
	volumes := make(map[string]volumePair, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, sym := range symbols {
		sym := sym
		wg.Add(1)
		_ = s.pool.Submit(func() {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			extVol, err := s.extended.GetVolume24h(fctx, sym)
			if err != nil {
				return
			}
			pacVol, err := s.pacifica.GetVolume24h(fctx, sym)
			if err != nil {
				return
			}

			mu.Lock()
			volumes[sym] = volumePair{
				Extended: extVol.USDValue,
				Pacifica: pacVol.USDValue,
				Total:    extVol.USDValue.Add(pacVol.USDValue),
			}
			mu.Unlock()
		})
	}
	wg.Wait()
	return volumes
}

// buildCandidates is stage 3: for each surviving symbol concurrently fetch
// orderbook and funding rate from both venues, compute spreads and net APR,
// and tag the fixed-order filter result.
func (s *Scanner) buildCandidates(ctx context.Context, timeout time.Duration, symbols []string, volumes map[string]volumePair) []Candidate {
	results := make([]Candidate, 0, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, sym := range symbols {
		sym := sym
		wg.Add(1)
		_ = s.pool.Submit(func() {
			defer wg.Done()
			cand, ok := s.analyze(ctx, timeout, sym, volumes[sym])
			if !ok {
				return // absorbed fetch failure (§4.2)
			}
			mu.Lock()
			results = append(results, cand)
			mu.Unlock()
		})
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Opportunity.Symbol < results[j].Opportunity.Symbol })
	return results
}

func (s *Scanner) analyze(ctx context.Context, timeout time.Duration, symbol string, vol volumePair) (Candidate, bool) {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	extBook, err := s.extended.GetOrderBook(fctx, symbol)
	if err != nil {
		return Candidate{}, false
	}
	pacBook, err := s.pacifica.GetOrderBook(fctx, symbol)
	if err != nil {
		return Candidate{}, false
	}
	extFunding, err := s.extended.GetFundingRate(fctx, symbol)
	if err != nil {
		return Candidate{}, false
	}
	pacFunding, err := s.pacifica.GetFundingRate(fctx, symbol)
	if err != nil {
		return Candidate{}, false
	}

	extMid := extBook.Mid()
	pacMid := pacBook.Mid()

	extIntra := spreadPct(extBook.Bid.Price, extBook.Ask.Price, extMid)
	pacIntra := spreadPct(pacBook.Bid.Price, pacBook.Ask.Price, pacMid)
	var crossSpread decimal.Decimal
	if !extMid.IsZero() {
		crossSpread = pacMid.Sub(extMid).Abs().Div(extMid).Mul(decimal.NewFromInt(100))
	}

	extAPR := extFunding.AnnualizedAPRPercent()
	pacAPR := pacFunding.AnnualizedAPRPercent()

	netLongExtended := extAPR.Neg().Add(pacAPR)
	netLongPacifica := pacAPR.Neg().Add(extAPR)

	direction := LongExtendedShortPacifica
	bestNet := netLongExtended
	if netLongPacifica.GreaterThan(netLongExtended) {
		direction = LongPacificaShortExtended
		bestNet = netLongPacifica
	}

	opp := Opportunity{
		Symbol:                    symbol,
		ExtendedMid:               extMid,
		PacificaMid:               pacMid,
		ExtendedIntraSpreadPct:    extIntra,
		PacificaIntraSpreadPct:    pacIntra,
		CrossSpreadPct:            crossSpread,
		ExtendedVolume24hUSD:      vol.Extended,
		PacificaVolume24hUSD:      vol.Pacifica,
		TotalVolume24hUSD:         vol.Total,
		ExtendedFundingAPRPercent: extAPR,
		PacificaFundingAPRPercent: pacAPR,
		BestDirection:             direction,
		BestNetAPRPercent:         bestNet,
	}

	filter := s.classify(opp)
	return Candidate{Opportunity: opp, Filter: filter}, true
}

// rankOpportunities sorts in place by net APR descending, breaking ties by
// total 24h volume descending (SPEC_FULL.md §3).
func rankOpportunities(opportunities []Opportunity) {
	sort.SliceStable(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		if !a.BestNetAPRPercent.Equal(b.BestNetAPRPercent) {
			return a.BestNetAPRPercent.GreaterThan(b.BestNetAPRPercent)
		}
		return a.TotalVolume24hUSD.GreaterThan(b.TotalVolume24hUSD)
	})
}

func spreadPct(bid, ask, mid decimal.Decimal) decimal.Decimal {
	if mid.IsZero() {
		return decimal.Zero
	}
	return ask.Sub(bid).Div(mid).Mul(decimal.NewFromInt(100))
}

// classify evaluates the fixed filter order from SPEC_FULL.md §3/§4.2:
// volume is checked by the caller before analyze ever runs (stage 2 already
// dropped illiquid symbols), so classify only evaluates spread and APR,
// in that order, and short-circuits on the first failure.
func (s *Scanner) classify(o Opportunity) FilterResult {
	if o.ExtendedIntraSpreadPct.GreaterThan(s.cfg.Filters.MaxIntraExchangeSpreadPct) ||
		o.PacificaIntraSpreadPct.GreaterThan(s.cfg.Filters.MaxIntraExchangeSpreadPct) {
		return FilterFailedIntraSpread
	}
	if o.CrossSpreadPct.GreaterThan(s.cfg.Filters.MaxCrossExchangeSpreadPct) {
		return FilterFailedCrossSpread
	}
	if o.BestNetAPRPercent.LessThan(s.cfg.Filters.MinNetAPRPercent) {
		return FilterFailedAPR
	}
	return FilterPassed
}
