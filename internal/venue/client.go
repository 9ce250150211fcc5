package venue

import (
	"context"

	"github.com/shopspring/decimal"
)

// Client is the capability set both venue clients (C1, C2) expose. Concrete
// semantics (funding cadence, signing, account-info transport) differ per
// venue; this interface is the common contract the scanner, executor, and
// orchestrator program against.
type Client interface {
	// Name identifies the venue in logs and metrics labels.
	Name() string

	// CheckHealth is a lightweight credential/connectivity probe used at
	// startup; it is not part of the distilled scanner/executor contract
	// but is required by the bootstrap flow in SPEC_FULL.md §10.
	CheckHealth(ctx context.Context) error

	GetAllMarkets(ctx context.Context) ([]MarketInfo, error)
	GetOrderBook(ctx context.Context, symbol string) (OrderBook, error)
	GetFundingRate(ctx context.Context, symbol string) (FundingRate, error)
	GetVolume24h(ctx context.Context, symbol string) (Volume24h, error)
	// GetPositions returns all open positions, or only the given symbol's
	// if symbol is non-empty.
	GetPositions(ctx context.Context, symbol string) ([]Position, error)
	GetBalance(ctx context.Context) (Balance, error)
	GetMarketConfig(ctx context.Context, symbol string) (MarketConfig, error)

	// PlaceMarketOrder submits a market order. clientOrderID is caller-
	// generated and stable across retries of the same logical placement, so
	// a venue that deduplicates on it treats a retried request as a no-op
	// instead of a second fill.
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, sizeBase decimal.Decimal, slippagePct decimal.Decimal, reduceOnly bool, clientOrderID string) (OrderReceipt, error)
	// ClosePosition is a convenience wrapper that computes the opposite
	// side of pos and places a reduce-only market order for pos.Size.
	ClosePosition(ctx context.Context, pos Position) (OrderReceipt, error)
	UpdateLeverage(ctx context.Context, symbol string, leverage int) error
}
