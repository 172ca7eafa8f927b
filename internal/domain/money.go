package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places every stored amount carries.
const MoneyPlaces = 2

// RoundMoney rounds half away from zero; amounts here are never negative, so
// this is half-up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

func LineSubtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return RoundMoney(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// ToCents converts an amount to the integer minor units gateways expect.
func ToCents(d decimal.Decimal) int64 {
	return RoundMoney(d).Shift(MoneyPlaces).IntPart()
}
