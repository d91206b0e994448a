package money

import (
	"encoding/json"
	"testing"
)

func TestArithmetic(t *testing.T) {
	a := MustParse("100.00")
	b := MustParse("20.50")

	if got := a.Add(b).String(); got != "120.50" {
		t.Errorf("Add = %s, want 120.50", got)
	}
	if got := a.Sub(b).String(); got != "79.50" {
		t.Errorf("Sub = %s, want 79.50", got)
	}
	if got := b.MulInt(75).String(); got != "1537.50" {
		t.Errorf("MulInt = %s, want 1537.50", got)
	}
	if got := a.Neg().String(); got != "-100.00" {
		t.Errorf("Neg = %s, want -100.00", got)
	}
}

func TestDivBankersRounding(t *testing.T) {
	cases := []struct {
		num, den string
		want     string
	}{
		{"10.00", "3.00", "3.33"},
		{"0.05", "2.00", "0.02"}, // 0.025 rounds to even
		{"0.15", "2.00", "0.08"}, // 0.075 rounds to even
		{"100.00", "8.00", "12.50"},
	}
	for _, c := range cases {
		got := MustParse(c.num).Div(MustParse(c.den)).String()
		if got != c.want {
			t.Errorf("%s / %s = %s, want %s", c.num, c.den, got, c.want)
		}
	}

	if !MustParse("5.00").Div(Zero).IsZero() {
		t.Error("division by zero should yield zero")
	}
}

func TestDivIntWeightedAverage(t *testing.T) {
	// (100·50 + 110·25) / 75 = 103.333... → 103.33
	total := MustParse("100.00").MulInt(50).Add(MustParse("110.00").MulInt(25))
	if got := total.DivInt(75).String(); got != "103.33" {
		t.Errorf("weighted avg = %s, want 103.33", got)
	}
}

func TestPaiseConversions(t *testing.T) {
	if got := FromPaise(12345).String(); got != "123.45" {
		t.Errorf("FromPaise = %s, want 123.45", got)
	}
	if got := MustParse("123.45").Paise(); got != 12345 {
		t.Errorf("Paise = %d, want 12345", got)
	}
	if got := FromInt(100).Paise(); got != 10000 {
		t.Errorf("FromInt(100).Paise = %d, want 10000", got)
	}
}

func TestFormatIndianGrouping(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0.00", "₹0.00"},
		{"999.00", "₹999.00"},
		{"1000.00", "₹1,000.00"},
		{"100000.00", "₹1,00,000.00"},
		{"10000000.50", "₹1,00,00,000.50"},
		{"-1460.00", "-₹1,460.00"},
	}
	for _, c := range cases {
		if got := MustParse(c.in).Format(); got != c.want {
			t.Errorf("Format(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("abc"); err == nil {
		t.Error("expected error for non-numeric input")
	}
	if _, err := Parse(""); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := MustParse("1460.00")
	blob, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(blob) != `"1460.00"` {
		t.Errorf("marshal = %s, want \"1460.00\"", blob)
	}

	var out Money
	if err := json.Unmarshal(blob, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Equal(in) {
		t.Errorf("round trip = %s, want %s", out, in)
	}

	// Bare numbers are accepted too.
	var n Money
	if err := json.Unmarshal([]byte(`1460`), &n); err != nil {
		t.Fatal(err)
	}
	if !n.Equal(in) {
		t.Errorf("numeric form = %s, want %s", n, in)
	}
}

func TestComparisons(t *testing.T) {
	small, big := MustParse("1.00"), MustParse("2.00")
	if !small.LessThan(big) || big.LessThan(small) {
		t.Error("LessThan misordered")
	}
	if !Min(small, big).Equal(small) || !Max(small, big).Equal(big) {
		t.Error("Min/Max misordered")
	}
	if !MustParse("-0.01").IsNegative() || MustParse("0.00").IsNegative() {
		t.Error("IsNegative wrong")
	}
}
