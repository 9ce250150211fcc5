package pacifica

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/djienne/deltaarb/internal/apperrors"
	"github.com/djienne/deltaarb/internal/venue"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// WSAccountInfo implements AccountInfoFetcher by dialing Venue B's
// streaming endpoint, subscribing to the account-info channel, and reading
// a single snapshot message. Reconnection policy for long-lived market-data
// streams is explicitly out of scope (SPEC_FULL.md §1); this is a bounded
// one-shot request/response built on top of the streaming transport, not a
// persistent subscription.
type WSAccountInfo struct {
	url    string
	wallet string
	signer Signer
	dial   time.Duration
}

// NewWSAccountInfo builds a one-shot account-info fetcher over a WebSocket
// connection to url.
func NewWSAccountInfo(url, wallet string, signer Signer) *WSAccountInfo {
	return &WSAccountInfo{url: url, wallet: wallet, signer: signer, dial: 10 * time.Second}
}

type accountInfoRequest struct {
	Header    map[string]interface{} `json:"header"`
	Data      map[string]interface{} `json:"data"`
	Signature string                  `json:"signature"`
}

type accountInfoResponse struct {
	Channel           string `json:"channel"`
	AvailableToTrade string `json:"available_to_trade"`
}

// GetAccountInfo dials, requests, and parses a single account-info snapshot,
// returning it as a venue.Balance.
func (w *WSAccountInfo) GetAccountInfo(ctx context.Context) (venue.Balance, error) {
	dialCtx, cancel := context.WithTimeout(ctx, w.dial)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, w.url, nil)
	if err != nil {
		return venue.Balance{}, fmt.Errorf("pacifica: %w: dial account-info stream: %v", apperrors.Transport, err)
	}
	defer conn.Close()

	header := map[string]interface{}{
		"wallet":    w.wallet,
		"timestamp": time.Now().UnixMilli(),
	}
	data := map[string]interface{}{
		"channel": "account_info",
	}
	sig, err := w.signer.Sign(header, data)
	if err != nil {
		return venue.Balance{}, fmt.Errorf("pacifica: sign account-info request: %w", err)
	}

	req := accountInfoRequest{Header: header, Data: data, Signature: sig}
	if err := conn.WriteJSON(req); err != nil {
		return venue.Balance{}, fmt.Errorf("pacifica: %w: write account-info request: %v", apperrors.Transport, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(w.dial))
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return venue.Balance{}, fmt.Errorf("pacifica: %w: read account-info response: %v", apperrors.Transport, err)
	}

	var resp accountInfoResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return venue.Balance{}, fmt.Errorf("pacifica: decode account-info response: %w", err)
	}

	avail, err := decimal.NewFromString(resp.AvailableToTrade)
	if err != nil {
		return venue.Balance{}, fmt.Errorf("pacifica: parse available_to_trade: %w", err)
	}
	return venue.Balance{AvailableForTrade: avail}, nil
}
