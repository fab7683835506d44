package document

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/artist-booking/internal/locale"
	"github.com/mmeshcher/artist-booking/internal/model"
)

var issuedAt = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func dp(v string) *decimal.Decimal {
	x := d(v)
	return &x
}

func newBuilder() *Builder {
	return NewBuilder(14, 7).WithClock(func() time.Time { return issuedAt })
}

func quotedBooking() *model.Booking {
	return &model.Booking{
		ID:            "b1",
		OrganizerID:   "org-1",
		ArtistID:      "art-1",
		Status:        model.StatusQuoted,
		DurationHours: d("3"),
		MinimumHours:  2,
		HourlyRate:    dp("2500"),
		QuotedPrice:   dp("7500"),
		Currency:      "THB",
	}
}

func TestLineItemsForBooking(t *testing.T) {
	t.Run("hourly when agreed price matches rate", func(t *testing.T) {
		items, err := LineItemsForBooking(quotedBooking(), []AddOn{{
			Description: locale.Text{locale.EN: "Sound system", locale.TH: "ระบบเสียง"},
			Quantity:    d("1"),
			Unit:        locale.Text{locale.EN: "set"},
			UnitPrice:   d("1200"),
		}})
		require.NoError(t, err)
		require.Len(t, items, 2)

		assert.Equal(t, 1, items[0].Seq)
		assert.Equal(t, "Performance fee", items[0].Description.In(locale.EN))
		assert.Equal(t, "ชั่วโมง", items[0].Unit.In(locale.TH))
		assert.True(t, items[0].Amount.Equal(d("7500")))
		assert.Equal(t, 2, items[1].Seq)
		assert.True(t, items[1].Amount.Equal(d("1200")))
	})

	t.Run("lump sum when price was negotiated", func(t *testing.T) {
		bk := quotedBooking()
		bk.FinalPrice = dp("7000")

		items, err := LineItemsForBooking(bk, nil)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Performance fee (lump sum)", items[0].Description.In(locale.EN))
		assert.True(t, items[0].Quantity.Equal(d("1")))
		assert.True(t, items[0].Amount.Equal(d("7000")))
	})

	t.Run("lump sum without hourly rate", func(t *testing.T) {
		bk := quotedBooking()
		bk.HourlyRate = nil

		items, err := LineItemsForBooking(bk, nil)
		require.NoError(t, err)
		assert.True(t, items[0].UnitPrice.Equal(d("7500")))
	})

	t.Run("no price at all", func(t *testing.T) {
		bk := quotedBooking()
		bk.HourlyRate = nil
		bk.QuotedPrice = nil

		_, err := LineItemsForBooking(bk, nil)
		assert.ErrorIs(t, err, ErrNoQuotedPrice)
	})
}

func TestBuildQuotation_Totals(t *testing.T) {
	bk := quotedBooking()
	bk.DepositPercentage = dp("30")
	items, err := LineItemsForBooking(bk, nil)
	require.NoError(t, err)

	doc, err := newBuilder().BuildQuotation(Request{
		Booking:  bk,
		Items:    items,
		VATRate:  d("7"),
		Locale:   locale.EN,
		Sequence: 42,
	})
	require.NoError(t, err)

	assert.Equal(t, model.KindQuotation, doc.Kind)
	assert.Equal(t, "QT-20260301-000042", doc.Number)
	assert.True(t, doc.Subtotal.Equal(d("7500")))
	assert.True(t, doc.VATAmount.Equal(d("525")))
	assert.True(t, doc.Total.Equal(d("8025")))
	assert.Equal(t, model.PaymentUnpaid, doc.PaymentStatus)
	assert.True(t, doc.BalanceDue.Equal(d("8025")))
	assert.True(t, doc.DepositDue.Equal(d("2408")))
	require.NotNil(t, doc.ValidUntil)
	assert.True(t, doc.ValidUntil.Equal(issuedAt.AddDate(0, 0, 14)))
	assert.Nil(t, doc.DueDate)

	assert.Equal(t, "Quotation", doc.Display.Title)
	assert.Equal(t, "VAT 7%", doc.Display.VATLabel)
	assert.Equal(t, "฿8,025", doc.Display.Total)
	assert.Equal(t, "Deposit 30%", doc.Display.Deposit)
	assert.Equal(t, "1. Performance fee: 3 hour × ฿2,500 = ฿7,500", doc.Display.Items[0])

	require.NoError(t, Verify(doc))
}

func TestBuild_VATExactness(t *testing.T) {
	b := newBuilder()
	bk := quotedBooking()

	subtotals := []string{"0", "1", "99", "1234.5", "7500", "333333"}
	rates := []string{"0", "7", "10", "12.5"}

	for _, s := range subtotals {
		for _, r := range rates {
			req := Request{
				Booking: bk,
				Items: []model.LineItem{{
					Description: locale.Text{locale.EN: "Item"},
					Quantity:    d("1"),
					UnitPrice:   d(s),
				}},
				VATRate:  d(r),
				Sequence: 1,
			}
			first, err := b.BuildQuotation(req)
			require.NoError(t, err)
			second, err := b.BuildQuotation(req)
			require.NoError(t, err)

			wantVAT := first.Subtotal.Mul(d(r)).Div(d("100")).Round(0)
			assert.True(t, first.VATAmount.Equal(wantVAT), "vat for %s at %s%%", s, r)
			assert.True(t, first.Total.Equal(first.Subtotal.Add(first.VATAmount)), "total for %s at %s%%", s, r)
			assert.True(t, first.Total.Equal(second.Total), "repeated computation drifted")
			assert.Equal(t, first.Display, second.Display)
		}
	}
}

func TestBuild_ZeroVATSuppressesDisplay(t *testing.T) {
	bk := quotedBooking()
	items, _ := LineItemsForBooking(bk, nil)

	doc, err := newBuilder().BuildQuotation(Request{Booking: bk, Items: items, Locale: locale.TH, Sequence: 1})
	require.NoError(t, err)

	assert.Empty(t, doc.Display.VATLabel)
	assert.Empty(t, doc.Display.VATAmount)
	assert.Equal(t, "7,500 บาท", doc.Display.Total)
	assert.Equal(t, "ใบเสนอราคา", doc.Display.Title)
}

func TestBuild_IgnoresCallerAmounts(t *testing.T) {
	bk := quotedBooking()
	doc, err := newBuilder().BuildQuotation(Request{
		Booking: bk,
		Items: []model.LineItem{{
			Seq:         9,
			Description: locale.Text{locale.EN: "Fee"},
			Quantity:    d("2.5"),
			UnitPrice:   d("1001"),
			Amount:      d("1"),
		}},
		Sequence: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Items[0].Seq)
	// 2.5 * 1001 = 2502.5, округление от нуля.
	assert.True(t, doc.Items[0].Amount.Equal(d("2503")))
	assert.True(t, doc.Subtotal.Equal(d("2503")))
}

func TestPaymentStatusOf(t *testing.T) {
	tests := []struct {
		paid, total string
		want        model.PaymentStatus
	}{
		{"0", "8025", model.PaymentUnpaid},
		{"1", "8025", model.PaymentPartial},
		{"8024", "8025", model.PaymentPartial},
		{"8025", "8025", model.PaymentPaid},
		{"9000", "8025", model.PaymentPaid},
		{"0", "0", model.PaymentPaid},
	}

	for _, tt := range tests {
		t.Run(tt.paid+"/"+tt.total, func(t *testing.T) {
			assert.Equal(t, tt.want, PaymentStatusOf(d(tt.paid), d(tt.total)))
		})
	}
}

func TestBuildInvoice(t *testing.T) {
	bk := quotedBooking()
	items, _ := LineItemsForBooking(bk, nil)
	req := Request{Booking: bk, Items: items, VATRate: d("7"), PaidAmount: d("3000"), Sequence: 7}

	_, err := newBuilder().BuildInvoice(req)
	require.ErrorIs(t, err, ErrNotInvoiceable)

	bk.Status = model.StatusConfirmed
	bk.FinalPrice = dp("7500")
	doc, err := newBuilder().BuildInvoice(req)
	require.NoError(t, err)

	assert.Equal(t, "INV-20260301-000007", doc.Number)
	assert.Equal(t, model.PaymentPartial, doc.PaymentStatus)
	assert.True(t, doc.BalanceDue.Equal(d("5025")))
	require.NotNil(t, doc.DueDate)
	assert.True(t, doc.DueDate.Equal(issuedAt.AddDate(0, 0, 7)))
	assert.Nil(t, doc.ValidUntil)
	assert.Equal(t, "Partially paid", doc.Display.PaymentStatus)

	req.PaidAmount = d("10000")
	doc, err = newBuilder().BuildInvoice(req)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, doc.PaymentStatus)
	assert.True(t, doc.BalanceDue.IsZero())
}

func TestBuild_InvalidRequests(t *testing.T) {
	bk := quotedBooking()
	item := model.LineItem{Description: locale.Text{locale.EN: "Fee"}, Quantity: d("1"), UnitPrice: d("100")}

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"no booking", Request{Items: []model.LineItem{item}, Sequence: 1}, ErrInvalidRequest},
		{"no items", Request{Booking: bk, Sequence: 1}, ErrInvalidRequest},
		{"no sequence", Request{Booking: bk, Items: []model.LineItem{item}}, ErrInvalidRequest},
		{"negative vat", Request{Booking: bk, Items: []model.LineItem{item}, VATRate: d("-1"), Sequence: 1}, ErrInvalidRequest},
		{"negative paid", Request{Booking: bk, Items: []model.LineItem{item}, PaidAmount: d("-5"), Sequence: 1}, ErrInvalidRequest},
		{"negative price", Request{Booking: bk, Items: []model.LineItem{{Description: item.Description, Quantity: d("1"), UnitPrice: d("-1")}}, Sequence: 1}, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newBuilder().BuildQuotation(tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	inquiry := quotedBooking()
	inquiry.Status = model.StatusInquiry
	inquiry.QuotedPrice = nil
	_, err := newBuilder().BuildQuotation(Request{Booking: inquiry, Items: []model.LineItem{item}, Sequence: 1})
	assert.ErrorIs(t, err, ErrNoQuotedPrice)
}

func TestAmend_LeavesOriginalUntouched(t *testing.T) {
	b := newBuilder()
	bk := quotedBooking()
	items, _ := LineItemsForBooking(bk, nil)

	original, err := b.BuildQuotation(Request{Booking: bk, Items: items, VATRate: d("7"), Sequence: 1})
	require.NoError(t, err)
	snapshot := *original

	bk.QuotedPrice = dp("9000")
	newItems, _ := LineItemsForBooking(bk, nil)
	amended, err := b.Amend(original, Request{Booking: bk, Items: newItems, VATRate: d("7"), Sequence: 2})
	require.NoError(t, err)

	assert.Equal(t, original.Number, amended.AmendsNumber)
	assert.Equal(t, model.KindQuotation, amended.Kind)
	assert.True(t, amended.Total.Equal(d("9630")))
	assert.Equal(t, snapshot.Number, original.Number)
	assert.True(t, original.Total.Equal(snapshot.Total))
	assert.Empty(t, original.AmendsNumber)

	other := quotedBooking()
	other.ID = "b2"
	_, err = b.Amend(original, Request{Booking: other, Items: newItems, Sequence: 3})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestVerify_DetectsTampering(t *testing.T) {
	bk := quotedBooking()
	items, _ := LineItemsForBooking(bk, nil)
	doc, err := newBuilder().BuildQuotation(Request{Booking: bk, Items: items, VATRate: d("7"), Sequence: 1})
	require.NoError(t, err)

	doc.Total = doc.Total.Add(d("1"))
	assert.ErrorIs(t, Verify(doc), ErrMismatch)

	doc.Total = doc.Subtotal.Add(doc.VATAmount)
	doc.Items[0].Amount = d("1")
	assert.ErrorIs(t, Verify(doc), ErrMismatch)
}
