// Package pacifica implements venue.Client for Venue B. Order-payload
// signing (canonical JSON of {header, data}, Ed25519 over a 32-byte seed) is
// the external collaborator named in SPEC_FULL.md §1/§6/§9.
package pacifica

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/djienne/deltaarb/internal/apperrors"
	"github.com/djienne/deltaarb/internal/core"
	"github.com/djienne/deltaarb/internal/venue"
	"github.com/djienne/deltaarb/internal/venue/base"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundingIntervalHours is Venue B's settlement cadence (SPEC_FULL.md §9).
const FundingIntervalHours = 1

// Signer is the pure signing function boundary for Venue B's canonical
// {header, data} envelope.
type Signer interface {
	Sign(header, data map[string]interface{}) (signature string, err error)
}

// AccountInfoFetcher is the streaming collaborator used for balance lookups
// (SPEC_FULL.md §4.1/§6): Venue B's balance is only reliably available over
// its WebSocket channel, not the REST surface, per the original
// implementation this spec was distilled from.
type AccountInfoFetcher interface {
	GetAccountInfo(ctx context.Context) (venue.Balance, error)
}

// Client implements venue.Client against Venue B's REST API.
type Client struct {
	adapter   *base.Adapter
	wallet    string
	signer    Signer
	accountWS AccountInfoFetcher
}

// NewClient builds a Venue B client. accountWS may be nil in tests that
// don't exercise GetBalance.
func NewClient(baseURL, wallet string, signer Signer, accountWS AccountInfoFetcher, logger core.ILogger) *Client {
	c := &Client{wallet: wallet, signer: signer, accountWS: accountWS}
	c.adapter = base.NewAdapter("pacifica", baseURL, logger, c.sign, c.parseError)
	return c
}

func (c *Client) Name() string { return "pacifica" }

func (c *Client) sign(method, path string, payload map[string]interface{}) (base.SignedPayload, error) {
	header := map[string]interface{}{
		"wallet":    c.wallet,
		"timestamp": time.Now().UnixMilli(),
	}
	sig, err := c.signer.Sign(header, payload)
	if err != nil {
		return base.SignedPayload{}, err
	}
	envelope := map[string]interface{}{
		"header":    header,
		"data":      payload,
		"signature": sig,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return base.SignedPayload{}, err
	}
	return base.SignedPayload{Body: body}, nil
}

func (c *Client) parseError(statusCode int, body []byte) error {
	msg := string(body)
	switch {
	case statusCode == 401 || statusCode == 403:
		return fmt.Errorf("pacifica: %w: %s", apperrors.Authentication, msg)
	case statusCode == 429:
		return fmt.Errorf("pacifica: %w: %s", apperrors.RateLimited, msg)
	case statusCode == 400 || statusCode == 422:
		return fmt.Errorf("pacifica: %w: %s", apperrors.OrderRejected, msg)
	case statusCode >= 500:
		return fmt.Errorf("pacifica: %w: status %d: %s", apperrors.Transport, statusCode, msg)
	default:
		return fmt.Errorf("pacifica: unexpected status %d: %s", statusCode, msg)
	}
}

func (c *Client) CheckHealth(ctx context.Context) error {
	return c.adapter.ExecuteSigned(ctx, "GET", "/info", nil, nil)
}

type marketDTO struct {
	Symbol      string `json:"symbol"`
	LotSize     string `json:"lot_size"`
	TickSize    string `json:"tick_size"`
	MinNotional string `json:"min_notional"`
}

func (c *Client) GetAllMarkets(ctx context.Context) ([]venue.MarketInfo, error) {
	var out []marketDTO
	if err := c.adapter.ExecuteSigned(ctx, "GET", "/info/markets", nil, &out); err != nil {
		return nil, err
	}
	markets := make([]venue.MarketInfo, 0, len(out))
	for _, m := range out {
		markets = append(markets, venue.MarketInfo{Symbol: normalizeSymbol(m.Symbol)})
	}
	return markets, nil
}

func normalizeSymbol(raw string) string {
	return strings.TrimSuffix(raw, "-USD")
}

func (c *Client) GetOrderBook(ctx context.Context, symbol string) (venue.OrderBook, error) {
	var out struct {
		Bid string `json:"bid"`
		Ask string `json:"ask"`
	}
	path := fmt.Sprintf("/info/orderbook?symbol=%s", symbol)
	if err := c.adapter.ExecuteSigned(ctx, "GET", path, nil, &out); err != nil {
		return venue.OrderBook{}, err
	}
	bid, err := decimal.NewFromString(out.Bid)
	if err != nil {
		return venue.OrderBook{}, fmt.Errorf("pacifica: parse bid: %w", err)
	}
	ask, err := decimal.NewFromString(out.Ask)
	if err != nil {
		return venue.OrderBook{}, fmt.Errorf("pacifica: parse ask: %w", err)
	}
	return venue.OrderBook{
		Symbol: symbol,
		Bid:    venue.OrderBookLevel{Price: bid},
		Ask:    venue.OrderBookLevel{Price: ask},
	}, nil
}

func (c *Client) GetFundingRate(ctx context.Context, symbol string) (venue.FundingRate, error) {
	var out struct {
		Rate string `json:"funding_rate"`
	}
	path := fmt.Sprintf("/info/funding?symbol=%s", symbol)
	if err := c.adapter.ExecuteSigned(ctx, "GET", path, nil, &out); err != nil {
		return venue.FundingRate{}, err
	}
	rate, err := decimal.NewFromString(out.Rate)
	if err != nil {
		return venue.FundingRate{}, fmt.Errorf("pacifica: parse funding rate: %w", err)
	}
	return venue.FundingRate{
		Symbol:        symbol,
		Rate:          rate,
		IntervalHours: decimal.NewFromInt(FundingIntervalHours),
	}, nil
}

// GetVolume24h computes USD volume as base-currency volume times the most
// recent daily close (SPEC_FULL.md §4.2 stage 2: "venue B's is a
// base-currency volume × close price from a one-day kline").
func (c *Client) GetVolume24h(ctx context.Context, symbol string) (venue.Volume24h, error) {
	var kline struct {
		Close  string `json:"close"`
		Volume string `json:"volume"`
	}
	path := fmt.Sprintf("/info/kline?symbol=%s&interval=1d&limit=1", symbol)
	if err := c.adapter.ExecuteSigned(ctx, "GET", path, nil, &kline); err != nil {
		return venue.Volume24h{}, err
	}
	closePrice, err := decimal.NewFromString(kline.Close)
	if err != nil {
		return venue.Volume24h{}, fmt.Errorf("pacifica: parse close: %w", err)
	}
	baseVolume, err := decimal.NewFromString(kline.Volume)
	if err != nil {
		return venue.Volume24h{}, fmt.Errorf("pacifica: parse volume: %w", err)
	}
	return venue.Volume24h{Symbol: symbol, USDValue: baseVolume.Mul(closePrice)}, nil
}

func (c *Client) GetPositions(ctx context.Context, symbol string) ([]venue.Position, error) {
	var out []struct {
		Symbol      string `json:"symbol"`
		Side        string `json:"side"`
		Size        string `json:"size"`
		EntryPrice  string `json:"entry_price"`
		FundingPaid string `json:"funding_paid"`
		CreatedAt   int64  `json:"created_at"`
	}
	if err := c.adapter.ExecuteSigned(ctx, "GET", "/account/positions", nil, &out); err != nil {
		return nil, err
	}
	var result []venue.Position
	for _, p := range out {
		sym := normalizeSymbol(p.Symbol)
		if symbol != "" && sym != symbol {
			continue
		}
		size, _ := decimal.NewFromString(p.Size)
		entry, _ := decimal.NewFromString(p.EntryPrice)
		funding, _ := decimal.NewFromString(p.FundingPaid)
		side := venue.SideLong
		if p.Side == "short" {
			side = venue.SideShort
		}
		result = append(result, venue.Position{
			Symbol:      sym,
			Side:        side,
			Size:        size,
			EntryPrice:  entry,
			FundingPaid: funding,
			CreatedAt:   p.CreatedAt,
		})
	}
	return result, nil
}

// GetBalance fetches account balance over the WebSocket account-info
// channel rather than REST, matching the original implementation's
// out-of-band approach for this one call (SPEC_FULL.md §4.1/§6).
func (c *Client) GetBalance(ctx context.Context) (venue.Balance, error) {
	if c.accountWS == nil {
		return venue.Balance{}, fmt.Errorf("pacifica: account info websocket not configured")
	}
	return c.accountWS.GetAccountInfo(ctx)
}

func (c *Client) GetMarketConfig(ctx context.Context, symbol string) (venue.MarketConfig, error) {
	var out marketDTO
	path := fmt.Sprintf("/info/markets/%s", symbol)
	if err := c.adapter.ExecuteSigned(ctx, "GET", path, nil, &out); err != nil {
		return venue.MarketConfig{}, err
	}
	lot, _ := decimal.NewFromString(out.LotSize)
	tick, _ := decimal.NewFromString(out.TickSize)
	minNotional, _ := decimal.NewFromString(out.MinNotional)
	return venue.MarketConfig{
		Symbol:      symbol,
		LotSize:     lot,
		TickSize:    tick,
		MinNotional: minNotional,
	}, nil
}

func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side venue.Side, sizeBase decimal.Decimal, slippagePct decimal.Decimal, reduceOnly bool, clientOrderID string) (venue.OrderReceipt, error) {
	payload := map[string]interface{}{
		"symbol":          symbol,
		"side":            string(side),
		"type":            "market",
		"size":            sizeBase.String(),
		"slippage":        slippagePct.String(),
		"reduce_only":     reduceOnly,
		"client_order_id": clientOrderID,
	}
	var out struct {
		OrderID string `json:"order_id"`
	}
	if err := c.adapter.ExecuteSigned(ctx, "POST", "/orders", payload, &out); err != nil {
		return venue.OrderReceipt{}, err
	}
	return venue.OrderReceipt{
		OrderID:       out.OrderID,
		ClientOrderID: clientOrderID,
		Symbol:        symbol,
		Side:          side,
		RequestedQty:  sizeBase,
		ReduceOnly:    reduceOnly,
	}, nil
}

func (c *Client) ClosePosition(ctx context.Context, pos venue.Position) (venue.OrderReceipt, error) {
	return c.PlaceMarketOrder(ctx, pos.Symbol, pos.Side.Opposite(), pos.Size, decimal.NewFromFloat(0.5), true, uuid.NewString())
}

func (c *Client) UpdateLeverage(ctx context.Context, symbol string, leverage int) error {
	payload := map[string]interface{}{
		"symbol":   symbol,
		"leverage": leverage,
	}
	return c.adapter.ExecuteSigned(ctx, "POST", "/account/leverage", payload, nil)
}
