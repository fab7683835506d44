// Package locale содержит таблицу локалей для денежных и служебных строк.
package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Code идентифицирует локаль отображения.
type Code string

const (
	EN Code = "en"
	TH Code = "th"

	// Default используется для неизвестных и пустых кодов.
	Default = EN
)

// Placement задаёт положение обозначения валюты относительно суммы.
type Placement int

const (
	// SymbolPrefix: символ перед суммой без пробела, "฿2,500".
	SymbolPrefix Placement = iota
	// UnitSuffix: сумма, пробел и слово-единица, "2,500 บาท".
	UnitSuffix
)

// Profile описывает одну строку таблицы локалей.
type Profile struct {
	Code      Code
	Tag       language.Tag
	Placement Placement
	Symbol    string
	UnitWord  string

	ListSeparator  string
	RangeSeparator string

	PriceNotSet       string
	ContactForPricing string

	PerHour        string
	MinimumHours   string // fmt-шаблон с одним %d
	FromPrice      string // fmt-шаблон с одним %s
	DepositAmount  string
	DepositPercent string
	DepositBoth    string // сумма, затем процент
	NoDeposit      string

	ThousandSuffix string
	MillionSuffix  string

	QuotationTitle string
	InvoiceTitle   string
	VATLabel       string // fmt-шаблон со ставкой
	PerformanceFee string
	HourUnit       string
	LumpSumFee     string
	EventUnit      string

	Unpaid  string
	Partial string
	Paid    string
}

// Profiles: таблица поддерживаемых локалей.
var Profiles = map[Code]Profile{
	EN: {
		Code:              EN,
		Tag:               language.English,
		Placement:         SymbolPrefix,
		Symbol:            "฿",
		UnitWord:          "THB",
		ListSeparator:     ", ",
		RangeSeparator:    " - ",
		PriceNotSet:       "Price not set",
		ContactForPricing: "Contact for pricing",
		PerHour:           "/hr",
		MinimumHours:      " (min. %d hrs)",
		FromPrice:         "From %s",
		DepositAmount:     "Deposit %s",
		DepositPercent:    "Deposit %s",
		DepositBoth:       "Deposit %s (%s)",
		NoDeposit:         "No deposit required",
		ThousandSuffix:    "K",
		MillionSuffix:     "M",
		QuotationTitle:    "Quotation",
		InvoiceTitle:      "Invoice",
		VATLabel:          "VAT %s",
		PerformanceFee:    "Performance fee",
		HourUnit:          "hour",
		LumpSumFee:        "Performance fee (lump sum)",
		EventUnit:         "event",
		Unpaid:            "Unpaid",
		Partial:           "Partially paid",
		Paid:              "Paid",
	},
	TH: {
		Code:              TH,
		Tag:               language.Thai,
		Placement:         UnitSuffix,
		Symbol:            "฿",
		UnitWord:          "บาท",
		ListSeparator:     ", ",
		RangeSeparator:    " - ",
		PriceNotSet:       "ยังไม่ระบุราคา",
		ContactForPricing: "ติดต่อสอบถามราคา",
		PerHour:           "/ชม.",
		MinimumHours:      " (ขั้นต่ำ %d ชม.)",
		FromPrice:         "เริ่มต้น %s",
		DepositAmount:     "มัดจำ %s",
		DepositPercent:    "มัดจำ %s",
		DepositBoth:       "มัดจำ %s (%s)",
		NoDeposit:         "ไม่ต้องวางมัดจำ",
		ThousandSuffix:    "K",
		MillionSuffix:     "M",
		QuotationTitle:    "ใบเสนอราคา",
		InvoiceTitle:      "ใบแจ้งหนี้",
		VATLabel:          "ภาษีมูลค่าเพิ่ม %s",
		PerformanceFee:    "ค่าการแสดง",
		HourUnit:          "ชั่วโมง",
		LumpSumFee:        "ค่าการแสดง (เหมาจ่าย)",
		EventUnit:         "งาน",
		Unpaid:            "ยังไม่ชำระ",
		Partial:           "ชำระบางส่วน",
		Paid:              "ชำระแล้ว",
	},
}

// For возвращает профиль локали, для неизвестного кода профиль по умолчанию.
func For(c Code) Profile {
	if p, ok := Profiles[c]; ok {
		return p
	}
	return Profiles[Default]
}

// Parse приводит произвольную строку к поддерживаемому коду.
func Parse(s string) Code {
	c := Code(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Profiles[c]; ok {
		return c
	}
	return Default
}

// Supported сообщает, есть ли код в таблице.
func Supported(c Code) bool {
	_, ok := Profiles[c]
	return ok
}

// Text хранит строку в нескольких локалях.
type Text map[Code]string

// In возвращает строку для локали, затем для локали по умолчанию, затем любую непустую.
func (t Text) In(c Code) string {
	if s, ok := t[c]; ok && s != "" {
		return s
	}
	if s, ok := t[Default]; ok && s != "" {
		return s
	}
	for _, s := range t {
		if s != "" {
			return s
		}
	}
	return ""
}

// TextOf собирает Text из поля профиля для всех локалей таблицы.
func TextOf(field func(Profile) string) Text {
	t := make(Text, len(Profiles))
	for c, p := range Profiles {
		t[c] = field(p)
	}
	return t
}
