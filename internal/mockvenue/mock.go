// Package mockvenue provides a scriptable fake implementing venue.Client,
// used by executor and orchestrator tests in place of a real
// network-backed client.
package mockvenue

import (
	"context"
	"fmt"
	"sync"

	"github.com/djienne/deltaarb/internal/venue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client is a scriptable venue.Client: PlaceMarketOrder first checks the
// optional PlaceOrderFunc override; every other call reads the corresponding
// exported field. Tests configure only what they need.
type Client struct {
	NameValue string

	mu sync.Mutex

	Markets      []venue.MarketInfo
	OrderBooks   map[string]venue.OrderBook
	FundingRates map[string]venue.FundingRate
	Volumes      map[string]venue.Volume24h
	Positions    []venue.Position
	Balance      venue.Balance
	MarketConfig map[string]venue.MarketConfig

	HealthErr error

	// PlaceOrderFunc, when set, is invoked for every PlaceMarketOrder call
	// instead of the default canned-success behavior. Use it to script
	// per-attempt failures (rate limits, transport errors) for retry tests.
	PlaceOrderFunc func(ctx context.Context, symbol string, side venue.Side, size decimal.Decimal) (venue.OrderReceipt, error)

	orderCounter int
	PlacedOrders []venue.OrderReceipt
}

// New builds a Client with empty maps, ready for a test to populate.
func New(name string) *Client {
	return &Client{
		NameValue:    name,
		OrderBooks:   make(map[string]venue.OrderBook),
		FundingRates: make(map[string]venue.FundingRate),
		Volumes:      make(map[string]venue.Volume24h),
		MarketConfig: make(map[string]venue.MarketConfig),
	}
}

func (c *Client) Name() string { return c.NameValue }

func (c *Client) CheckHealth(ctx context.Context) error { return c.HealthErr }

func (c *Client) GetAllMarkets(ctx context.Context) ([]venue.MarketInfo, error) {
	return c.Markets, nil
}

func (c *Client) GetOrderBook(ctx context.Context, symbol string) (venue.OrderBook, error) {
	ob, ok := c.OrderBooks[symbol]
	if !ok {
		return venue.OrderBook{}, fmt.Errorf("mockvenue: no orderbook configured for %s", symbol)
	}
	return ob, nil
}

func (c *Client) GetFundingRate(ctx context.Context, symbol string) (venue.FundingRate, error) {
	fr, ok := c.FundingRates[symbol]
	if !ok {
		return venue.FundingRate{}, fmt.Errorf("mockvenue: no funding rate configured for %s", symbol)
	}
	return fr, nil
}

func (c *Client) GetVolume24h(ctx context.Context, symbol string) (venue.Volume24h, error) {
	v, ok := c.Volumes[symbol]
	if !ok {
		return venue.Volume24h{}, fmt.Errorf("mockvenue: no volume configured for %s", symbol)
	}
	return v, nil
}

func (c *Client) GetPositions(ctx context.Context, symbol string) ([]venue.Position, error) {
	if symbol == "" {
		return c.Positions, nil
	}
	var out []venue.Position
	for _, p := range c.Positions {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Client) GetBalance(ctx context.Context) (venue.Balance, error) {
	return c.Balance, nil
}

func (c *Client) GetMarketConfig(ctx context.Context, symbol string) (venue.MarketConfig, error) {
	mc, ok := c.MarketConfig[symbol]
	if !ok {
		return venue.MarketConfig{}, fmt.Errorf("mockvenue: no market config configured for %s", symbol)
	}
	return mc, nil
}

func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side venue.Side, sizeBase decimal.Decimal, slippagePct decimal.Decimal, reduceOnly bool, clientOrderID string) (venue.OrderReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.PlaceOrderFunc != nil {
		receipt, err := c.PlaceOrderFunc(ctx, symbol, side, sizeBase)
		if err == nil {
			receipt.ClientOrderID = clientOrderID
			c.PlacedOrders = append(c.PlacedOrders, receipt)
		}
		return receipt, err
	}

	c.orderCounter++
	receipt := venue.OrderReceipt{
		OrderID:       fmt.Sprintf("%s-%d", c.NameValue, c.orderCounter),
		ClientOrderID: clientOrderID,
		Symbol:        symbol,
		Side:          side,
		RequestedQty:  sizeBase,
		ReduceOnly:    reduceOnly,
	}
	c.PlacedOrders = append(c.PlacedOrders, receipt)
	return receipt, nil
}

func (c *Client) ClosePosition(ctx context.Context, pos venue.Position) (venue.OrderReceipt, error) {
	return c.PlaceMarketOrder(ctx, pos.Symbol, pos.Side.Opposite(), pos.Size, decimal.NewFromFloat(0.5), true, uuid.NewString())
}

func (c *Client) UpdateLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
