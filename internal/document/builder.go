// Package document собирает коммерческие предложения и счета по бронированиям.
package document

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/artist-booking/internal/locale"
	"github.com/mmeshcher/artist-booking/internal/model"
	"github.com/mmeshcher/artist-booking/internal/money"
	"github.com/mmeshcher/artist-booking/internal/pricing"
)

var (
	// ErrNoQuotedPrice возвращается, если для предложения у бронирования ещё нет цены.
	ErrNoQuotedPrice = errors.New("booking has no quoted price")
	// ErrNotInvoiceable возвращается, если бронирование ещё не подтверждено.
	ErrNotInvoiceable = errors.New("booking cannot be invoiced in its current status")
	// ErrInvalidRequest возвращается при некорректных строках, ставке НДС или оплате.
	ErrInvalidRequest = errors.New("invalid document request")
	// ErrMismatch возвращается Verify, если сохранённые суммы не совпадают с пересчитанными.
	ErrMismatch = errors.New("document totals do not match its line items")
)

const (
	quotationPrefix = "QT"
	invoicePrefix   = "INV"
)

var hundred = decimal.NewFromInt(100)

// AddOn: дополнительная строка документа сверх гонорара за выступление.
type AddOn struct {
	Description locale.Text
	Quantity    decimal.Decimal
	Unit        locale.Text
	UnitPrice   decimal.Decimal
}

// Request: входные данные для сборки документа.
type Request struct {
	Booking    *model.Booking
	Items      []model.LineItem
	VATRate    decimal.Decimal
	Locale     locale.Code
	PaidAmount decimal.Decimal
	// Sequence: порядковый номер документа данного вида, выдаётся хранилищем.
	Sequence int64
}

// Builder собирает документы. Не хранит изменяемого состояния и безопасен для конкурентного использования.
type Builder struct {
	validFor time.Duration
	dueIn    time.Duration
	now      func() time.Time
}

// NewBuilder создаёт сборщик со сроком действия предложения и сроком оплаты счёта в днях.
func NewBuilder(validDays, dueDays int) *Builder {
	return &Builder{
		validFor: time.Duration(validDays) * 24 * time.Hour,
		dueIn:    time.Duration(dueDays) * 24 * time.Hour,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// BuildQuotation собирает коммерческое предложение.
func (b *Builder) BuildQuotation(req Request) (*model.FinancialDocument, error) {
	if req.Booking == nil {
		return nil, fmt.Errorf("%w: booking is required", ErrInvalidRequest)
	}
	if req.Booking.QuotedPrice == nil || req.Booking.Status == model.StatusCancelled {
		return nil, fmt.Errorf("%w: booking %s", ErrNoQuotedPrice, req.Booking.ID)
	}
	return b.build(model.KindQuotation, req)
}

// BuildInvoice собирает счёт для подтверждённого, оплаченного или завершённого бронирования.
func (b *Builder) BuildInvoice(req Request) (*model.FinancialDocument, error) {
	if req.Booking == nil {
		return nil, fmt.Errorf("%w: booking is required", ErrInvalidRequest)
	}
	switch req.Booking.Status {
	case model.StatusConfirmed, model.StatusPaid, model.StatusCompleted:
	default:
		return nil, fmt.Errorf("%w: booking %s is %s", ErrNotInvoiceable, req.Booking.ID, req.Booking.Status)
	}
	return b.build(model.KindInvoice, req)
}

// Amend выпускает новый документ того же вида, ссылающийся на original. original не изменяется.
func (b *Builder) Amend(original *model.FinancialDocument, req Request) (*model.FinancialDocument, error) {
	if original == nil || req.Booking == nil {
		return nil, fmt.Errorf("%w: original document and booking are required", ErrInvalidRequest)
	}
	if original.BookingID != req.Booking.ID {
		return nil, fmt.Errorf("%w: document %s belongs to another booking", ErrInvalidRequest, original.Number)
	}

	var (
		doc *model.FinancialDocument
		err error
	)
	if original.Kind == model.KindInvoice {
		doc, err = b.BuildInvoice(req)
	} else {
		doc, err = b.BuildQuotation(req)
	}
	if err != nil {
		return nil, err
	}
	doc.AmendsNumber = original.Number
	return doc, nil
}

// LineItemsForBooking формирует строки документа: гонорар за выступление и дополнительные позиции.
// Гонорар выражается в часах, если согласованная цена совпадает со ставкой, умноженной на часы, иначе одной суммой.
func LineItemsForBooking(bk *model.Booking, addOns []AddOn) ([]model.LineItem, error) {
	if bk == nil {
		return nil, fmt.Errorf("%w: booking is required", ErrInvalidRequest)
	}

	agreed := bk.FinalPrice
	if agreed == nil {
		agreed = bk.QuotedPrice
	}

	hours := bk.DurationHours
	if minimum := decimal.NewFromInt(int64(bk.MinimumHours)); hours.LessThan(minimum) {
		hours = minimum
	}

	var items []model.LineItem
	hourly, hasRate := decimal.Zero, false
	if bk.HourlyRate != nil {
		hourly, hasRate = pricing.EstimatedTotal(*bk.HourlyRate, hours)
	}

	switch {
	case hasRate && (agreed == nil || hourly.Equal(*agreed)):
		items = append(items, model.LineItem{
			Description: locale.TextOf(func(p locale.Profile) string { return p.PerformanceFee }),
			Quantity:    hours,
			Unit:        locale.TextOf(func(p locale.Profile) string { return p.HourUnit }),
			UnitPrice:   *bk.HourlyRate,
		})
	case agreed != nil:
		items = append(items, model.LineItem{
			Description: locale.TextOf(func(p locale.Profile) string { return p.LumpSumFee }),
			Quantity:    decimal.NewFromInt(1),
			Unit:        locale.TextOf(func(p locale.Profile) string { return p.EventUnit }),
			UnitPrice:   *agreed,
		})
	default:
		return nil, fmt.Errorf("%w: booking %s", ErrNoQuotedPrice, bk.ID)
	}

	for _, a := range addOns {
		items = append(items, model.LineItem{
			Description: a.Description,
			Quantity:    a.Quantity,
			Unit:        a.Unit,
			UnitPrice:   a.UnitPrice,
		})
	}

	for i := range items {
		items[i].Seq = i + 1
		items[i].Amount = money.Line(items[i].Quantity, items[i].UnitPrice)
	}
	return items, nil
}

// Verify пересчитывает суммы документа и сравнивает их с сохранёнными.
func Verify(doc *model.FinancialDocument) error {
	t := computeTotals(doc.Items, doc.VATRate, doc.PaidAmount)

	for _, it := range doc.Items {
		if want := money.Line(it.Quantity, it.UnitPrice); !want.Equal(it.Amount) {
			return fmt.Errorf("%w: %s line %d amount %s, want %s", ErrMismatch, doc.Number, it.Seq, it.Amount, want)
		}
	}

	checks := []struct {
		name      string
		got, want decimal.Decimal
	}{
		{"subtotal", doc.Subtotal, t.subtotal},
		{"vat", doc.VATAmount, t.vat},
		{"total", doc.Total, t.total},
		{"balance", doc.BalanceDue, t.balance},
	}
	for _, c := range checks {
		if !c.got.Equal(c.want) {
			return fmt.Errorf("%w: %s %s %s, want %s", ErrMismatch, doc.Number, c.name, c.got, c.want)
		}
	}
	if doc.PaymentStatus != t.status {
		return fmt.Errorf("%w: %s payment status %s, want %s", ErrMismatch, doc.Number, doc.PaymentStatus, t.status)
	}
	return nil
}

// Number форматирует номер документа: QT-20260301-000042.
func Number(kind model.DocumentKind, issued time.Time, seq int64) string {
	prefix := quotationPrefix
	if kind == model.KindInvoice {
		prefix = invoicePrefix
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, issued.Format("20060102"), seq)
}

// PaymentStatusOf выводит статус оплаты из оплаченной суммы и итога.
func PaymentStatusOf(paid, total decimal.Decimal) model.PaymentStatus {
	switch {
	case paid.IsZero() && total.IsPositive():
		return model.PaymentUnpaid
	case paid.GreaterThanOrEqual(total):
		return model.PaymentPaid
	default:
		return model.PaymentPartial
	}
}

type totals struct {
	subtotal decimal.Decimal
	vat      decimal.Decimal
	total    decimal.Decimal
	balance  decimal.Decimal
	status   model.PaymentStatus
}

func computeTotals(items []model.LineItem, vatRate, paid decimal.Decimal) totals {
	amounts := make([]decimal.Decimal, 0, len(items))
	for _, it := range items {
		amounts = append(amounts, money.Line(it.Quantity, it.UnitPrice))
	}

	var t totals
	t.subtotal = money.Sum(amounts...)
	t.vat = money.Percent(t.subtotal, vatRate)
	t.total = t.subtotal.Add(t.vat)
	t.status = PaymentStatusOf(paid, t.total)
	t.balance = decimal.Zero
	if t.status != model.PaymentPaid {
		t.balance = t.total.Sub(paid)
	}
	return t
}

func (b *Builder) build(kind model.DocumentKind, req Request) (*model.FinancialDocument, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	loc := req.Locale
	if !locale.Supported(loc) {
		loc = locale.Default
	}

	items := make([]model.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = it
		items[i].Seq = i + 1
		items[i].Amount = money.Line(it.Quantity, it.UnitPrice)
	}

	t := computeTotals(items, req.VATRate, req.PaidAmount)
	issued := b.now()
	bk := req.Booking

	doc := &model.FinancialDocument{
		Kind:          kind,
		Number:        Number(kind, issued, req.Sequence),
		IssuedAt:      issued,
		Locale:        loc,
		BookingID:     bk.ID,
		OrganizerID:   bk.OrganizerID,
		ArtistID:      bk.ArtistID,
		Currency:      bk.Currency,
		Items:         items,
		Subtotal:      t.subtotal,
		VATRate:       req.VATRate,
		VATAmount:     t.vat,
		Total:         t.total,
		PaymentStatus: t.status,
		PaidAmount:    req.PaidAmount,
		BalanceDue:    t.balance,
		DepositDue:    depositDue(bk, t.total),
	}

	if kind == model.KindQuotation {
		until := issued.Add(b.validFor)
		doc.ValidUntil = &until
	} else {
		due := issued.Add(b.dueIn)
		doc.DueDate = &due
	}

	doc.Display = display(doc, bk)
	return doc, nil
}

func validate(req Request) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrInvalidRequest)
	}
	if req.Sequence <= 0 {
		return fmt.Errorf("%w: sequence must be positive", ErrInvalidRequest)
	}
	if req.VATRate.IsNegative() || req.VATRate.GreaterThan(hundred) {
		return fmt.Errorf("%w: vat rate must be within 0..100", ErrInvalidRequest)
	}
	if req.PaidAmount.IsNegative() {
		return fmt.Errorf("%w: paid amount must not be negative", ErrInvalidRequest)
	}
	for i, it := range req.Items {
		if it.Quantity.IsNegative() || it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d has negative quantity or price", ErrInvalidRequest, i+1)
		}
		if strings.TrimSpace(it.Description.In(locale.Default)) == "" {
			return fmt.Errorf("%w: line %d has no description", ErrInvalidRequest, i+1)
		}
	}
	return nil
}

// depositDue: сумма депозита, если задана, иначе процент от итога; не больше итога.
func depositDue(bk *model.Booking, total decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch {
	case bk.DepositAmount != nil:
		d = money.Round(*bk.DepositAmount)
	case bk.DepositPercentage != nil:
		d = money.Percent(total, *bk.DepositPercentage)
	default:
		return decimal.Zero
	}
	if d.GreaterThan(total) {
		return total
	}
	return d
}

func display(doc *model.FinancialDocument, bk *model.Booking) model.DocumentDisplay {
	p := locale.For(doc.Locale)

	title := p.QuotationTitle
	if doc.Kind == model.KindInvoice {
		title = p.InvoiceTitle
	}

	lines := make([]string, 0, len(doc.Items))
	for _, it := range doc.Items {
		lines = append(lines, fmt.Sprintf("%d. %s: %s %s × %s = %s",
			it.Seq,
			it.Description.In(doc.Locale),
			it.Quantity.String(),
			it.Unit.In(doc.Locale),
			pricing.FormatAmount(it.UnitPrice, doc.Locale),
			pricing.FormatAmount(it.Amount, doc.Locale),
		))
	}

	d := model.DocumentDisplay{
		Title:         title,
		Items:         lines,
		Subtotal:      pricing.FormatAmount(doc.Subtotal, doc.Locale),
		Total:         pricing.FormatAmount(doc.Total, doc.Locale),
		PaymentStatus: paymentPhrase(p, doc.PaymentStatus),
		PaidAmount:    pricing.FormatAmount(doc.PaidAmount, doc.Locale),
		BalanceDue:    pricing.FormatAmount(doc.BalanceDue, doc.Locale),
		Deposit:       pricing.FormatDeposit(floatPtr(bk.DepositAmount), floatPtr(bk.DepositPercentage), doc.Locale),
	}
	// Нулевая ставка НДС не выводится.
	if doc.VATRate.IsPositive() {
		d.VATLabel = fmt.Sprintf(p.VATLabel, pricing.FormatPercent(doc.VATRate))
		d.VATAmount = pricing.FormatAmount(doc.VATAmount, doc.Locale)
	}
	return d
}

func paymentPhrase(p locale.Profile, s model.PaymentStatus) string {
	switch s {
	case model.PaymentPaid:
		return p.Paid
	case model.PaymentPartial:
		return p.Partial
	default:
		return p.Unpaid
	}
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
