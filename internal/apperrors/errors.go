// Package apperrors holds the sentinel errors venue clients and the
// executor classify against with errors.Is, rather than matching message
// text (the one deliberate exception is the rate-limit string classifier in
// pkg/retry, which exists precisely because venues don't give us a sentinel
// to wrap there).
package apperrors

import "errors"

var (
	// Transport covers network failures, timeouts, and 5xx responses.
	Transport = errors.New("transport error")
	// RateLimited is the distinguished transient kind with longer backoff.
	RateLimited = errors.New("rate limit exceeded")
	// Authentication covers signature/credential rejection by a venue.
	Authentication = errors.New("authentication failed")
	// OrderRejected covers a venue refusing an order on business grounds
	// (minimum size, margin, invalid symbol). Not retried.
	OrderRejected = errors.New("order rejected")
	// MarketClosed covers a venue reporting the instrument is not tradable.
	MarketClosed = errors.New("market closed")

	// InsufficientCapital is returned by the executor's size computation
	// when available collateral rounds down to less than one lot.
	InsufficientCapital = errors.New("insufficient capital to size position")
	// CriticalImbalance is returned when leg-B placement failed and the
	// leg-A rollback itself also failed: leg A is left open on-venue.
	CriticalImbalance = errors.New("critical imbalance: leg exposed after failed rollback")
	// StalePersistedState marks state cleared because reconciliation found
	// no live legs despite a saved position. Recovered silently.
	StalePersistedState = errors.New("stale persisted state cleared by reconciliation")
	// UntrackedLivePositions marks a recovery probe that found live legs it
	// could not uniquely adopt into state. Blocks opening.
	UntrackedLivePositions = errors.New("untracked live positions cannot be unambiguously adopted")
)
