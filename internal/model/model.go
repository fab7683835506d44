// Package model содержит доменные сущности сервиса бронирования артистов.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/artist-booking/internal/locale"
)

// BookingStatus описывает этап жизненного цикла бронирования.
type BookingStatus string

const (
	StatusInquiry   BookingStatus = "INQUIRY"
	StatusQuoted    BookingStatus = "QUOTED"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusPaid      BookingStatus = "PAID"
	StatusCompleted BookingStatus = "COMPLETED"
	StatusCancelled BookingStatus = "CANCELLED"
)

// IsTerminal сообщает, что из статуса нет исходящих переходов.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid сообщает, что статус входит в жизненный цикл.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusInquiry, StatusQuoted, StatusConfirmed, StatusPaid, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Role: роль участника, запрашивающего переход.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleArtist    Role = "artist"
	RoleOperator  Role = "operator"
)

// Valid сообщает, что роль известна.
func (r Role) Valid() bool {
	return r == RoleOrganizer || r == RoleArtist || r == RoleOperator
}

// Actor: участник, от имени которого выполняется операция.
type Actor struct {
	ID   string
	Role Role
}

// Booking описывает бронирование артиста организатором мероприятия.
type Booking struct {
	ID          string
	OrganizerID string
	ArtistID    string
	Status      BookingStatus
	Version     int64

	EventDate     time.Time
	DurationHours decimal.Decimal
	MinimumHours  int
	// HourlyRate равен nil, если артист работает по запросу цены.
	HourlyRate *decimal.Decimal

	QuotedPrice       *decimal.Decimal
	FinalPrice        *decimal.Decimal
	DepositAmount     *decimal.Decimal
	DepositPercentage *decimal.Decimal
	Currency          string

	CreatedAt          time.Time
	QuotedAt           *time.Time
	ConfirmedAt        *time.Time
	PaidAt             *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
}

// Clone возвращает глубокую копию бронирования.
func (b *Booking) Clone() *Booking {
	c := *b
	c.HourlyRate = cloneDecimal(b.HourlyRate)
	c.QuotedPrice = cloneDecimal(b.QuotedPrice)
	c.FinalPrice = cloneDecimal(b.FinalPrice)
	c.DepositAmount = cloneDecimal(b.DepositAmount)
	c.DepositPercentage = cloneDecimal(b.DepositPercentage)
	c.QuotedAt = cloneTime(b.QuotedAt)
	c.ConfirmedAt = cloneTime(b.ConfirmedAt)
	c.PaidAt = cloneTime(b.PaidAt)
	c.CompletedAt = cloneTime(b.CompletedAt)
	c.CancelledAt = cloneTime(b.CancelledAt)
	return &c
}

// TransitionEvent публикуется после каждого успешного перехода.
type TransitionEvent struct {
	BookingID string        `json:"booking_id"`
	From      BookingStatus `json:"from"`
	To        BookingStatus `json:"to"`
	At        time.Time     `json:"at"`
	Actor     Actor         `json:"actor"`
}

// DocumentKind различает коммерческое предложение и счёт.
type DocumentKind string

const (
	KindQuotation DocumentKind = "QUOTATION"
	KindInvoice   DocumentKind = "INVOICE"
)

// PaymentStatus: статус оплаты документа.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

// LineItem: строка финансового документа.
type LineItem struct {
	Seq         int             `json:"seq"`
	Description locale.Text     `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        locale.Text     `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// FinancialDocument: выпущенное коммерческое предложение или счёт. После выпуска не изменяется.
type FinancialDocument struct {
	Kind         DocumentKind `json:"kind"`
	Number       string       `json:"number"`
	AmendsNumber string       `json:"amends_number,omitempty"`
	IssuedAt     time.Time    `json:"issued_at"`
	ValidUntil   *time.Time   `json:"valid_until,omitempty"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	Locale       locale.Code  `json:"locale"`

	BookingID   string `json:"booking_id"`
	OrganizerID string `json:"organizer_id"`
	ArtistID    string `json:"artist_id"`
	Currency    string `json:"currency"`

	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	VATRate       decimal.Decimal `json:"vat_rate"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
	Total         decimal.Decimal `json:"total"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	DepositDue    decimal.Decimal `json:"deposit_due"`

	Display DocumentDisplay `json:"display"`
}

// DocumentDisplay содержит готовые к выводу строки документа.
type DocumentDisplay struct {
	Title         string   `json:"title"`
	Items         []string `json:"items"`
	Subtotal      string   `json:"subtotal"`
	VATLabel      string   `json:"vat_label,omitempty"`
	VATAmount     string   `json:"vat_amount,omitempty"`
	Total         string   `json:"total"`
	PaymentStatus string   `json:"payment_status"`
	PaidAmount    string   `json:"paid_amount"`
	BalanceDue    string   `json:"balance_due"`
	Deposit       string   `json:"deposit"`
}

// BookingFilter задаёт условия выборки бронирований.
type BookingFilter struct {
	Status      BookingStatus
	OrganizerID string
	ArtistID    string
	EventFrom   *time.Time
	EventTo     *time.Time
	Page        int
	PageSize    int
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
