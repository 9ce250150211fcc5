// Package extended implements venue.Client for Venue A, a Starknet-based
// perpetuals exchange. Order-payload signing (SNIP-12 domain-separated hash,
// ECDSA over the Starknet curve) is the external collaborator named in
// SPEC_FULL.md §1/§6/§9: this package calls out to a Signer and never
// constructs or verifies a signature itself.
package extended

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/djienne/deltaarb/internal/apperrors"
	"github.com/djienne/deltaarb/internal/core"
	"github.com/djienne/deltaarb/internal/venue"
	"github.com/djienne/deltaarb/internal/venue/base"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundingIntervalHours is Venue A's settlement cadence (SPEC_FULL.md §9's
// resolved open question: both venues settle hourly here).
const FundingIntervalHours = 1

// Signer is the pure signing function boundary: given the order fields
// already assembled into a map, it returns the signature and any auxiliary
// fields (vault id, public key) the wire payload needs alongside it.
type Signer interface {
	Sign(orderFields map[string]interface{}) (signature string, extra map[string]interface{}, err error)
}

// Client implements venue.Client against Venue A's REST API.
type Client struct {
	adapter *base.Adapter
	apiKey  string
	signer  Signer
}

// NewClient builds a Venue A client. baseURL and apiKey come from config;
// signer is injected so this package never sees the Starknet private key.
func NewClient(baseURL, apiKey string, signer Signer, logger core.ILogger) *Client {
	c := &Client{apiKey: apiKey, signer: signer}
	c.adapter = base.NewAdapter("extended", baseURL, logger, c.sign, c.parseError)
	return c
}

func (c *Client) Name() string { return "extended" }

func (c *Client) sign(method, path string, payload map[string]interface{}) (base.SignedPayload, error) {
	sig, extra, err := c.signer.Sign(payload)
	if err != nil {
		return base.SignedPayload{}, err
	}
	merged := map[string]interface{}{}
	for k, v := range payload {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	merged["signature"] = sig

	body, err := json.Marshal(merged)
	if err != nil {
		return base.SignedPayload{}, err
	}
	return base.SignedPayload{
		Body: body,
		Headers: map[string]string{
			"X-Api-Key": c.apiKey,
		},
	}, nil
}

func (c *Client) parseError(statusCode int, body []byte) error {
	msg := string(body)
	switch {
	case statusCode == 401 || statusCode == 403:
		return fmt.Errorf("extended: %w: %s", apperrors.Authentication, msg)
	case statusCode == 429:
		return fmt.Errorf("extended: %w: %s", apperrors.RateLimited, msg)
	case statusCode == 400 || statusCode == 422:
		return fmt.Errorf("extended: %w: %s", apperrors.OrderRejected, msg)
	case statusCode >= 500:
		return fmt.Errorf("extended: %w: status %d: %s", apperrors.Transport, statusCode, msg)
	default:
		return fmt.Errorf("extended: unexpected status %d: %s", statusCode, msg)
	}
}

func (c *Client) CheckHealth(ctx context.Context) error {
	var out struct {
		Markets []marketDTO `json:"markets"`
	}
	return c.adapter.ExecuteSigned(ctx, "GET", "/info/markets", nil, &out)
}

type marketDTO struct {
	Symbol          string `json:"symbol"`
	LotSize         string `json:"lot_size"`
	TickSize        string `json:"tick_size"`
	MinNotional     string `json:"min_notional"`
	DailyVolumeBase string `json:"daily_volume_base"`
	DailyVolumeUSD  string `json:"daily_volume_usd"`
}

func (c *Client) GetAllMarkets(ctx context.Context) ([]venue.MarketInfo, error) {
	var out struct {
		Markets []marketDTO `json:"markets"`
	}
	if err := c.adapter.ExecuteSigned(ctx, "GET", "/info/markets", nil, &out); err != nil {
		return nil, err
	}
	markets := make([]venue.MarketInfo, 0, len(out.Markets))
	for _, m := range out.Markets {
		markets = append(markets, venue.MarketInfo{Symbol: normalizeSymbol(m.Symbol)})
	}
	return markets, nil
}

// normalizeSymbol strips the venue-specific "-USD" suffix so symbols can be
// intersected across venues (SPEC_FULL.md §4.2 stage 1).
func normalizeSymbol(raw string) string {
	return strings.TrimSuffix(raw, "-USD")
}

func (c *Client) GetOrderBook(ctx context.Context, symbol string) (venue.OrderBook, error) {
	var out struct {
		Bid string `json:"best_bid"`
		Ask string `json:"best_ask"`
	}
	path := fmt.Sprintf("/info/orderbook/%s-USD", symbol)
	if err := c.adapter.ExecuteSigned(ctx, "GET", path, nil, &out); err != nil {
		return venue.OrderBook{}, err
	}
	bid, err := decimal.NewFromString(out.Bid)
	if err != nil {
		return venue.OrderBook{}, fmt.Errorf("extended: parse bid: %w", err)
	}
	ask, err := decimal.NewFromString(out.Ask)
	if err != nil {
		return venue.OrderBook{}, fmt.Errorf("extended: parse ask: %w", err)
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
	path := fmt.Sprintf("/info/funding/%s-USD", symbol)
	if err := c.adapter.ExecuteSigned(ctx, "GET", path, nil, &out); err != nil {
		return venue.FundingRate{}, err
	}
	rate, err := decimal.NewFromString(out.Rate)
	if err != nil {
		return venue.FundingRate{}, fmt.Errorf("extended: parse funding rate: %w", err)
	}
	return venue.FundingRate{
		Symbol:        symbol,
		Rate:          rate,
		IntervalHours: decimal.NewFromInt(FundingIntervalHours),
	}, nil
}

func (c *Client) GetVolume24h(ctx context.Context, symbol string) (venue.Volume24h, error) {
	var out struct {
		DailyVolumeUSD string `json:"daily_volume_usd"`
	}
	path := fmt.Sprintf("/info/markets/%s-USD", symbol)
	if err := c.adapter.ExecuteSigned(ctx, "GET", path, nil, &out); err != nil {
		return venue.Volume24h{}, err
	}
	vol, err := decimal.NewFromString(out.DailyVolumeUSD)
	if err != nil {
		return venue.Volume24h{}, fmt.Errorf("extended: parse volume: %w", err)
	}
	return venue.Volume24h{Symbol: symbol, USDValue: vol}, nil
}

func (c *Client) GetPositions(ctx context.Context, symbol string) ([]venue.Position, error) {
	var out struct {
		Positions []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			EntryPrice    string `json:"entry_price"`
			MarketID      string `json:"market_id"`
			UnrealizedPnL string `json:"unrealized_pnl"`
		} `json:"positions"`
	}
	if err := c.adapter.ExecuteSigned(ctx, "GET", "/account/positions", nil, &out); err != nil {
		return nil, err
	}
	var result []venue.Position
	for _, p := range out.Positions {
		sym := normalizeSymbol(p.Symbol)
		if symbol != "" && sym != symbol {
			continue
		}
		size, _ := decimal.NewFromString(p.Size)
		entry, _ := decimal.NewFromString(p.EntryPrice)
		pnl, _ := decimal.NewFromString(p.UnrealizedPnL)
		side := venue.SideLong
		if p.Side == "short" {
			side = venue.SideShort
		}
		result = append(result, venue.Position{
			Symbol:        sym,
			Side:          side,
			Size:          size,
			EntryPrice:    entry,
			MarketID:      p.MarketID,
			UnrealizedPnL: pnl,
		})
	}
	return result, nil
}

func (c *Client) GetBalance(ctx context.Context) (venue.Balance, error) {
	var out struct {
		AvailableForTrade string `json:"available_for_trade"`
	}
	if err := c.adapter.ExecuteSigned(ctx, "GET", "/account/balance", nil, &out); err != nil {
		return venue.Balance{}, err
	}
	avail, err := decimal.NewFromString(out.AvailableForTrade)
	if err != nil {
		return venue.Balance{}, fmt.Errorf("extended: parse balance: %w", err)
	}
	return venue.Balance{AvailableForTrade: avail}, nil
}

func (c *Client) GetMarketConfig(ctx context.Context, symbol string) (venue.MarketConfig, error) {
	var out marketDTO
	path := fmt.Sprintf("/info/markets/%s-USD", symbol)
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
		"symbol":          symbol + "-USD",
		"side":            string(side),
		"type":            "market",
		"size":            sizeBase.String(),
		"slippage":        slippagePct.String(),
		"reduce_only":     reduceOnly,
		"client_order_id": clientOrderID,
		"timestamp":       time.Now().UnixMilli(),
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
		"symbol":   symbol + "-USD",
		"leverage": strconv.Itoa(leverage),
	}
	return c.adapter.ExecuteSigned(ctx, "POST", "/account/leverage", payload, nil)
}
