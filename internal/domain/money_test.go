package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundMoney_HalfUp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "10.13", RoundMoney(decimal.RequireFromString("10.125")).StringFixed(2))
	assert.Equal(t, "10.12", RoundMoney(decimal.RequireFromString("10.124")).StringFixed(2))
}

func TestLineSubtotal(t *testing.T) {
	t.Parallel()

	got := LineSubtotal(decimal.RequireFromString("10.00"), 2)
	assert.True(t, got.Equal(decimal.RequireFromString("20.00")))

	got = LineSubtotal(decimal.RequireFromString("0.335"), 3)
	assert.Equal(t, "1.01", got.StringFixed(2))
}

func TestToCents(t *testing.T) {
	t.Parallel()

	assert.EqualValues(t, 3000, ToCents(decimal.RequireFromString("30")))
	assert.EqualValues(t, 1999, ToCents(decimal.RequireFromString("19.99")))
}
