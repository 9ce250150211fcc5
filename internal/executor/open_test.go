package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/djienne/deltaarb/internal/apperrors"
	"github.com/djienne/deltaarb/internal/mockvenue"
	"github.com/djienne/deltaarb/internal/scanner"
	"github.com/djienne/deltaarb/internal/venue"
	"github.com/djienne/deltaarb/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logging.ZapLogger {
	t.Helper()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	return logger
}

func baseRequest() OpenRequest {
	return OpenRequest{
		Symbol:         "BTC",
		Direction:      scanner.LongExtendedShortPacifica,
		FreeExtended:   decimal.NewFromInt(100000),
		FreePacifica:   decimal.NewFromInt(100000),
		LotExtended:    decimal.NewFromFloat(0.001),
		LotPacifica:    decimal.NewFromFloat(0.001),
		Price:          decimal.NewFromInt(50000),
		MaxPositionUSD: decimal.NewFromInt(1000),
	}
}

// TestOpen_RollbackOnLegBExhaustion is the literal rollback scenario from
// SPEC_FULL.md §8: leg A places, leg B fails 5 times with a transport
// error, and the rollback succeeds on its first attempt.
func TestOpen_RollbackOnLegBExhaustion(t *testing.T) {
	ext := mockvenue.New("extended")
	pac := mockvenue.New("pacifica")

	pac.PlaceOrderFunc = func(ctx context.Context, symbol string, side venue.Side, size decimal.Decimal) (venue.OrderReceipt, error) {
		return venue.OrderReceipt{}, errors.New("transport error: connection reset")
	}

	rollbackAttempts := 0
	ext.PlaceOrderFunc = func(ctx context.Context, symbol string, side venue.Side, size decimal.Decimal) (venue.OrderReceipt, error) {
		if side == venue.SideShort {
			rollbackAttempts++
			return venue.OrderReceipt{OrderID: "rollback-1", Symbol: symbol, Side: side, RequestedQty: size}, nil
		}
		return venue.OrderReceipt{OrderID: "legA-1", Symbol: symbol, Side: side, RequestedQty: size}, nil
	}

	ex := New(ext, pac, newTestLogger(t), nil)
	pos, err := ex.Open(context.Background(), baseRequest())

	require.Nil(t, pos)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leg A rolled back cleanly")
	assert.Equal(t, 1, rollbackAttempts)
}

func TestOpen_Success(t *testing.T) {
	ext := mockvenue.New("extended")
	pac := mockvenue.New("pacifica")
	ext.Positions = []venue.Position{{Symbol: "BTC", Side: venue.SideLong, Size: decimal.NewFromFloat(0.02)}}
	pac.Positions = []venue.Position{{Symbol: "BTC", Side: venue.SideShort, Size: decimal.NewFromFloat(0.02)}}

	ex := New(ext, pac, newTestLogger(t), nil)
	pos, err := ex.Open(context.Background(), baseRequest())

	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.HasBothLegs())
	assert.Equal(t, "BTC", pos.Symbol)
}

func TestOpen_InsufficientCapital(t *testing.T) {
	ext := mockvenue.New("extended")
	pac := mockvenue.New("pacifica")
	ex := New(ext, pac, newTestLogger(t), nil)

	req := baseRequest()
	req.FreeExtended = decimal.NewFromInt(100)
	req.FreePacifica = decimal.NewFromInt(100)
	req.LotExtended = decimal.NewFromFloat(0.01)
	req.LotPacifica = decimal.NewFromFloat(0.01)

	pos, err := ex.Open(context.Background(), req)
	require.Nil(t, pos)
	assert.ErrorIs(t, err, apperrors.InsufficientCapital)
}
