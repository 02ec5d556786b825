package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"12.50", 1250, true},
		{"0.01", 1, true},
		{"0.29", 29, true}, // exact; binary floating point would give 28
		{"1.15", 115, true},
		{"9.999", 999, true}, // truncated, not rounded
		{"0.009", 0, true},
		{"-0.5", -50, true},
		{"-12.345", -1234, true}, // truncated toward zero
		{" 2.50 ", 250, true},
		{"0", 0, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"12,50", 0, false},
		{"", 0, false},
		{"   ", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseCents(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if err != ErrInvalidAmount {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestParseCentsRejectsHugeValues(t *testing.T) {
	if _, err := ParseCents("1e30"); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:     "0.00",
		1250:  "12.50",
		-50:   "-0.50",
		99999: "999.99",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("%d expected %q, got %q", cents, want, got)
		}
	}
}

func TestMoneyDecimalRoundTrip(t *testing.T) {
	m := Money{Cents: 1234}
	if !m.Decimal().Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("unexpected decimal %s", m.Decimal())
	}
	if got := FromDecimal(decimal.RequireFromString("12.349")); got.Cents != 1234 {
		t.Fatalf("expected 1234, got %d", got.Cents)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a, b := Money{Cents: 300}, Money{Cents: 125}
	if a.Add(b).Cents != 425 || a.Sub(b).Cents != 175 {
		t.Fatalf("unexpected arithmetic result")
	}
	if !(Money{}).IsZero() {
		t.Fatalf("zero money should report IsZero")
	}
}
