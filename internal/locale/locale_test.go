package locale

import "testing"

func TestForFallsBackToDefault(t *testing.T) {
	if got := For("fr").Code; got != Default {
		t.Fatalf("For(fr).Code = %q, want %q", got, Default)
	}
	if got := For(TH).Placement; got != UnitSuffix {
		t.Fatalf("TH placement = %v, want UnitSuffix", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Code
	}{
		{in: "th", want: TH},
		{in: " TH ", want: TH},
		{in: "en", want: EN},
		{in: "", want: Default},
		{in: "de", want: Default},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Parse(tt.in); got != tt.want {
				t.Fatalf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestProfilesAreComplete(t *testing.T) {
	for code, p := range Profiles {
		if p.Code != code {
			t.Fatalf("profile %q has code %q", code, p.Code)
		}
		if p.PriceNotSet == "" || p.ContactForPricing == "" || p.NoDeposit == "" {
			t.Fatalf("profile %q is missing fallback phrases", code)
		}
		if p.Placement == SymbolPrefix && p.Symbol == "" {
			t.Fatalf("profile %q has prefix placement without symbol", code)
		}
		if p.Placement == UnitSuffix && p.UnitWord == "" {
			t.Fatalf("profile %q has suffix placement without unit word", code)
		}
	}
}

func TestTextIn(t *testing.T) {
	txt := Text{EN: "Performance fee", TH: "ค่าการแสดง"}
	if got := txt.In(TH); got != "ค่าการแสดง" {
		t.Fatalf("In(TH) = %q", got)
	}
	if got := (Text{EN: "only english"}).In(TH); got != "only english" {
		t.Fatalf("missing locale must fall back to default, got %q", got)
	}
	if got := (Text{TH: "เฉพาะไทย"}).In(EN); got != "เฉพาะไทย" {
		t.Fatalf("missing default must fall back to any value, got %q", got)
	}
	if got := TextOf(func(p Profile) string { return p.HourUnit }).In(TH); got != "ชั่วโมง" {
		t.Fatalf("TextOf(HourUnit).In(TH) = %q", got)
	}
}
