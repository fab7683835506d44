// Package pricing форматирует денежные суммы для отображения: ставки, диапазоны, депозиты и итоги.
//
// Все функции чистые и тотальные: некорректный ввод превращается в фразу-заглушку локали.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/mmeshcher/artist-booking/internal/locale"
	"github.com/mmeshcher/artist-booking/internal/money"
)

// Unit задаёт необязательный суффикс единицы тарификации.
type Unit int

const (
	NoUnit Unit = iota
	PerHour
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
)

// FormatPrice форматирует сумму в целых единицах валюты. Ноль допустим.
func FormatPrice(amount float64, loc locale.Code) string {
	p := locale.For(loc)
	d, ok := validAmount(amount, true)
	if !ok {
		return p.PriceNotSet
	}
	return wrap(p, digits(p, money.Round(d), 0))
}

// FormatPriceDecimals форматирует сумму с фиксированным числом знаков после запятой.
func FormatPriceDecimals(amount float64, places int, loc locale.Code) string {
	p := locale.For(loc)
	d, ok := validAmount(amount, true)
	if !ok || places < 0 {
		return p.PriceNotSet
	}
	return wrap(p, digits(p, money.RoundTo(d, int32(places)), places))
}

// FormatAmount форматирует уже посчитанную сумму документа.
func FormatAmount(d decimal.Decimal, loc locale.Code) string {
	p := locale.For(loc)
	if d.IsNegative() {
		return p.PriceNotSet
	}
	return wrap(p, digits(p, money.Round(d), 0))
}

// FormatHourlyRate форматирует почасовую ставку. Пометка о минимуме часов добавляется только при minimumHours > 1.
func FormatHourlyRate(rate *float64, minimumHours int, loc locale.Code) string {
	p := locale.For(loc)
	if rate == nil {
		return p.ContactForPricing
	}
	d, ok := validAmount(*rate, false)
	if !ok {
		return p.ContactForPricing
	}

	s := wrap(p, digits(p, money.Round(d), 0)) + p.PerHour
	if minimumHours > 1 {
		s += fmt.Sprintf(p.MinimumHours, minimumHours)
	}
	return s
}

// FormatPriceRange форматирует диапазон цен. Равные после округления границы схлопываются в одно значение.
func FormatPriceRange(minPrice, maxPrice float64, unit Unit, loc locale.Code) string {
	p := locale.For(loc)
	lo, okLo := validAmount(minPrice, true)
	hi, okHi := validAmount(maxPrice, true)
	if !okLo || !okHi {
		return p.PriceNotSet
	}

	lo, hi = money.Round(lo), money.Round(hi)
	if lo.GreaterThan(hi) {
		return p.PriceNotSet
	}

	var s string
	switch {
	case lo.Equal(hi):
		s = wrap(p, digits(p, lo, 0))
	case p.Placement == locale.UnitSuffix:
		s = wrap(p, digits(p, lo, 0)+p.RangeSeparator+digits(p, hi, 0))
	default:
		s = wrap(p, digits(p, lo, 0)) + p.RangeSeparator + wrap(p, digits(p, hi, 0))
	}
	return s + unitSuffix(p, unit)
}

// FormatDeposit форматирует условия депозита: сумма, процент, оба значения или отсутствие депозита.
func FormatDeposit(amount, percentage *float64, loc locale.Code) string {
	p := locale.For(loc)

	var amountText, percentText string
	if amount != nil {
		if d, ok := validAmount(*amount, false); ok {
			amountText = wrap(p, digits(p, money.Round(d), 0))
		}
	}
	if percentage != nil {
		if d, ok := validAmount(*percentage, false); ok && d.LessThanOrEqual(decimal.NewFromInt(100)) {
			percentText = FormatPercent(d)
		}
	}

	switch {
	case amountText != "" && percentText != "":
		return fmt.Sprintf(p.DepositBoth, amountText, percentText)
	case amountText != "":
		return fmt.Sprintf(p.DepositAmount, amountText)
	case percentText != "":
		return fmt.Sprintf(p.DepositPercent, percentText)
	default:
		return p.NoDeposit
	}
}

// FormatFromPrice форматирует стартовую цену ("от").
func FormatFromPrice(amount float64, loc locale.Code) string {
	p := locale.For(loc)
	d, ok := validAmount(amount, false)
	if !ok {
		return p.ContactForPricing
	}
	return fmt.Sprintf(p.FromPrice, wrap(p, digits(p, money.Round(d), 0)))
}

// EstimatedTotal считает ставку, умноженную на часы, с округлением. false, если один из множителей не положителен.
func EstimatedTotal(rate, hours decimal.Decimal) (decimal.Decimal, bool) {
	if !rate.IsPositive() || !hours.IsPositive() {
		return decimal.Zero, false
	}
	return money.Round(rate.Mul(hours)), true
}

// CalculateEstimatedTotal форматирует ориентировочную стоимость выступления.
func CalculateEstimatedTotal(rate, hours float64, loc locale.Code) string {
	p := locale.For(loc)
	r, okR := money.FromFloat(rate)
	h, okH := money.FromFloat(hours)
	if !okR || !okH {
		return p.ContactForPricing
	}
	total, ok := EstimatedTotal(r, h)
	if !ok {
		return p.ContactForPricing
	}
	return wrap(p, digits(p, total, 0))
}

// FormatCompactPrice сокращает суммы от тысячи до одной десятой с суффиксом K (от миллиона M).
func FormatCompactPrice(amount float64, loc locale.Code) string {
	p := locale.For(loc)
	d, ok := validAmount(amount, true)
	if !ok {
		return p.PriceNotSet
	}

	d = money.Round(d)
	if d.LessThan(thousand) {
		return wrap(p, digits(p, d, 0))
	}

	k := money.RoundTo(d.Div(thousand), 1)
	if k.LessThan(thousand) {
		return wrap(p, k.String()+p.ThousandSuffix)
	}

	m := money.RoundTo(d.Div(million), 1)
	text := m.String()
	if m.GreaterThanOrEqual(thousand) {
		text = digits(p, money.Round(m), 0)
	}
	return wrap(p, text+p.MillionSuffix)
}

// FormatPackageTotal форматирует сумму пакета услуг. Пустой пакет или некорректная позиция дают заглушку.
func FormatPackageTotal(prices []float64, loc locale.Code) string {
	p := locale.For(loc)
	if len(prices) == 0 {
		return p.PriceNotSet
	}

	amounts := make([]decimal.Decimal, 0, len(prices))
	for _, v := range prices {
		d, ok := validAmount(v, true)
		if !ok {
			return p.PriceNotSet
		}
		amounts = append(amounts, d)
	}
	return wrap(p, digits(p, money.Round(money.Sum(amounts...)), 0))
}

// FormatPriceList форматирует перечень цен через разделитель локали, пропуская некорректные значения.
func FormatPriceList(prices []float64, loc locale.Code) string {
	p := locale.For(loc)
	parts := make([]string, 0, len(prices))
	for _, v := range prices {
		if d, ok := validAmount(v, true); ok {
			parts = append(parts, wrap(p, digits(p, money.Round(d), 0)))
		}
	}
	if len(parts) == 0 {
		return p.PriceNotSet
	}
	return strings.Join(parts, p.ListSeparator)
}

// FormatPercent форматирует процент без лишних нулей: "30%", "12.5%".
func FormatPercent(d decimal.Decimal) string {
	return money.RoundTo(d, 2).String() + "%"
}

func validAmount(v float64, allowZero bool) (decimal.Decimal, bool) {
	d, ok := money.FromFloat(v)
	if !ok || d.IsNegative() {
		return decimal.Zero, false
	}
	if !allowZero && d.IsZero() {
		return decimal.Zero, false
	}
	return d, true
}

// digits группирует разряды по правилам локали. Сумма переводится в строку целиком, поэтому размер не ограничен.
func digits(p locale.Profile, d decimal.Decimal, places int) string {
	pr := message.NewPrinter(p.Tag)
	group := strings.Trim(pr.Sprintf("%d", 1000), "0123456789")

	s := d.StringFixed(int32(max(places, 0)))
	sign := ""
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		sign, s = "-", rest
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(group)
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteString(strings.Trim(pr.Sprint(number.Decimal(1.5)), "0123456789"))
		b.WriteString(frac)
	}
	return b.String()
}

func wrap(p locale.Profile, text string) string {
	if p.Placement == locale.UnitSuffix {
		return text + " " + p.UnitWord
	}
	return p.Symbol + text
}

func unitSuffix(p locale.Profile, u Unit) string {
	if u == PerHour {
		return p.PerHour
	}
	return ""
}
