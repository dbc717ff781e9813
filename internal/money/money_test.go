package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMinor(t *testing.T) {
	cases := []struct {
		input string
		want  int64
		err   error
	}{
		{"12.34", 1234, nil},
		{"12", 1200, nil},
		{"12.3", 1230, nil},
		{"0.05", 5, nil},
		{"-7.50", -750, nil},
		{"+3.00", 300, nil},
		{".99", 99, nil},
		{" 1.00 ", 100, nil},
		{"", 0, ErrInvalidAmount},
		{"abc", 0, ErrInvalidAmount},
		{"1.234", 0, ErrTooManyDecimals},
		{"1.2x", 0, ErrInvalidAmount},
	}
	for _, tc := range cases {
		got, err := ParseMinor(tc.input)
		if err != tc.err {
			t.Fatalf("ParseMinor(%q) error = %v, want %v", tc.input, err, tc.err)
		}
		if got != tc.want {
			t.Fatalf("ParseMinor(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestFormatMinor(t *testing.T) {
	cases := []struct {
		input int64
		want  string
	}{
		{1234, "12.34"},
		{5, "0.05"},
		{-750, "-7.50"},
		{0, "0.00"},
	}
	for _, tc := range cases {
		if got := FormatMinor(tc.input); got != tc.want {
			t.Fatalf("FormatMinor(%d) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, value := range []int64{0, 1, 99, 100, 12345, -6789} {
		parsed, err := ParseMinor(FormatMinor(value))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if parsed != value {
			t.Fatalf("round trip %d -> %d", value, parsed)
		}
	}
}

func TestConvertMinor(t *testing.T) {
	rate, _ := decimal.NewFromString("0.92")
	if got := ConvertMinor(10000, rate); got != 9200 {
		t.Fatalf("ConvertMinor = %d, want 9200", got)
	}
	half, _ := decimal.NewFromString("0.5")
	// banker's rounding: 25 * 0.5 = 12.5 rounds to 12
	if got := ConvertMinor(25, half); got != 12 {
		t.Fatalf("ConvertMinor = %d, want 12", got)
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio(8325, 10000); got != "83.25" {
		t.Fatalf("Ratio = %q, want 83.25", got)
	}
	if got := Ratio(5, 0); got != "0.00" {
		t.Fatalf("Ratio with zero denominator = %q, want 0.00", got)
	}
}
