// Package money содержит единственный примитив округления денежных сумм.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round округляет сумму до целых единиц валюты, половина от нуля.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// RoundTo округляет сумму до указанного числа знаков после запятой, половина от нуля.
func RoundTo(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// FromFloat переводит float64 в decimal. Для NaN и бесконечностей возвращает false.
func FromFloat(v float64) (decimal.Decimal, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(v), true
}

// Percent возвращает округлённую долю rate процентов от base.
func Percent(base, rate decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(rate).Shift(-2))
}

// Line возвращает сумму строки документа: количество на цену с округлением.
func Line(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return Round(quantity.Mul(unitPrice))
}

// Sum складывает суммы без промежуточного округления.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
