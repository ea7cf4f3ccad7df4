package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"1000", 100000, true},
		{"0.01", 1, true},
		{"12.345", 1234, true},  // tie, 34 already even
		{"12.355", 1236, true},  // tie, 35 rounds to even
		{"12.3451", 1235, true}, // past the tie, rounds up
		{"12.346", 1235, true},  // rounds up
		{" 500 ", 50000, true},
		{"", 0, false},
		{"0", 0, false},
		{"0.00", 0, false},
		{"-5", 0, false},
		{"+5", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"12e3", 0, false},
	}
	for i, tc := range cases {
		m, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("case %d (%q): expected ok, got %v", i, tc.in, err)
			}
			if m.Cents != tc.cents {
				t.Fatalf("case %d (%q): cents = %d, want %d", i, tc.in, m.Cents, tc.cents)
			}
			continue
		}
		if err == nil {
			t.Fatalf("case %d (%q): expected error", i, tc.in)
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("case %d (%q): error = %v, want ErrInvalidAmount", i, tc.in, err)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -100}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{1234, "12.34"},
		{100000, "1000.00"},
		{5, "0.05"},
		{-50000, "-500.00"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("Money{%d}.String() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
