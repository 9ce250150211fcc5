package executor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalculatePositionSize_CappedByConfig(t *testing.T) {
	size := CalculatePositionSize(dec("100000"), dec("100000"), dec("0.001"), dec("0.001"), dec("50000"), dec("1000"))
	assert.True(t, size.Equal(dec("0.02")), "got %s", size)
}

func TestCalculatePositionSize_LimitedByCapital(t *testing.T) {
	size := CalculatePositionSize(dec("10000"), dec("10000"), dec("0.001"), dec("0.01"), dec("50000"), dec("10000"))
	assert.True(t, size.Equal(dec("0.19")), "got %s", size)
}

func TestCalculatePositionSize_BelowOneLot(t *testing.T) {
	size := CalculatePositionSize(dec("100"), dec("100"), dec("0.01"), dec("0.01"), dec("50000"), dec("1000"))
	assert.True(t, size.IsZero(), "got %s", size)
}

func TestCalculatePositionSize_MonotonicInMinCapital(t *testing.T) {
	small := CalculatePositionSize(dec("1000"), dec("1000"), dec("0.001"), dec("0.001"), dec("50000"), dec("1000000"))
	large := CalculatePositionSize(dec("5000"), dec("5000"), dec("0.001"), dec("0.001"), dec("50000"), dec("1000000"))
	assert.True(t, large.GreaterThanOrEqual(small))
}

func TestCalculatePositionSize_NeverExceedsCapOverPrice(t *testing.T) {
	size := CalculatePositionSize(dec("1000000"), dec("1000000"), dec("0.001"), dec("0.001"), dec("50000"), dec("1000"))
	maxAllowed := dec("1000").Div(dec("50000"))
	assert.True(t, size.LessThanOrEqual(maxAllowed))
}

func TestDeltaNeutralPosition_IsImbalanced(t *testing.T) {
	pos := &DeltaNeutralPosition{ExtendedPosition: &LegSnapshot{}}
	assert.True(t, pos.IsImbalanced())

	pos.PacificaPosition = &LegSnapshot{}
	assert.False(t, pos.IsImbalanced())

	pos.ExtendedPosition = nil
	pos.PacificaPosition = nil
	assert.False(t, pos.IsImbalanced())
}
