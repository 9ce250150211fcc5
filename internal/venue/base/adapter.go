// Package base provides the composition root both venue clients embed:
// an HTTP client, a pluggable signing hook, and a generic signed-request
// helper. Concrete venues wire their own SignFunc/ParseErrorFunc and get
// transport plumbing for free, mirroring the base-adapter pattern this
// module's ambient HTTP stack already uses elsewhere.
package base

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/djienne/deltaarb/internal/apperrors"
	"github.com/djienne/deltaarb/internal/core"

	"golang.org/x/time/rate"
)

var errTransport = apperrors.Transport

// SignedPayload is what SignFunc returns: the canonical request body plus
// whatever headers the venue's signature scheme requires.
type SignedPayload struct {
	Body    []byte
	Headers map[string]string
}

// SignFunc is the pure-function signing boundary named in SPEC_FULL.md §1/§9.
// It never performs I/O; it only transforms a payload plus a key into a
// signed wire payload.
type SignFunc func(method, path string, payload map[string]interface{}) (SignedPayload, error)

// ParseErrorFunc classifies a non-2xx response into a sentinel-wrapped error.
type ParseErrorFunc func(statusCode int, body []byte) error

// defaultRateLimit throttles outbound calls to a venue's REST API so a scan
// fanning out across hundreds of symbols never trips the venue's own limit.
// Venue-specific limits are tighter than this in practice; this is a safe
// floor shared by both venues until per-venue limits are configured.
const defaultRateLimit = 15 // requests per second
const defaultRateBurst = 20

// Adapter is the shared HTTP plumbing embedded by each venue's client.
type Adapter struct {
	Name       string
	BaseURL    string
	HTTPClient *http.Client
	Logger     core.ILogger
	Limiter    *rate.Limiter

	Sign     SignFunc
	ParseErr ParseErrorFunc
}

// NewAdapter builds an Adapter with sane connection-pool defaults.
func NewAdapter(name, baseURL string, logger core.ILogger, sign SignFunc, parseErr ParseErrorFunc) *Adapter {
	return &Adapter{
		Name:    name,
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Logger:   logger.WithField("venue", name),
		Limiter:  rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateBurst),
		Sign:     sign,
		ParseErr: parseErr,
	}
}

// ExecuteSigned signs payload, issues the HTTP call, and unmarshals a JSON
// response into out (skipped when out is nil). A non-2xx response is routed
// through ParseErr so callers receive a sentinel-wrapped error.
func (a *Adapter) ExecuteSigned(ctx context.Context, method, path string, payload map[string]interface{}, out interface{}) error {
	if err := a.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w: rate limiter: %v", a.Name, errTransport, err)
	}

	signed, err := a.Sign(method, path, payload)
	if err != nil {
		return fmt.Errorf("%s: sign request: %w", a.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, bytes.NewReader(signed.Body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", a.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range signed.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", a.Name, errTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w: read body: %v", a.Name, errTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return a.ParseErr(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", a.Name, err)
	}
	return nil
}
