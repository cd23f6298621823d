package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseIncomeCentsAllowsZero(t *testing.T) {
	got, err := ParseIncomeCents("0")
	if err != nil || got != 0 {
		t.Fatalf("expected 0 cents, got %d (err=%v)", got, err)
	}
	if _, err := ParseIncomeCents("-5"); err == nil {
		t.Fatal("negative income should be rejected")
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{123, "1.23"},
		{100000, "1000.00"},
		{-4550, "-45.50"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("%d cents: expected %q, got %q", tc.cents, tc.want, got)
		}
	}
}

func TestMeanCents(t *testing.T) {
	cases := []struct {
		in   []int64
		want int64
	}{
		{nil, 0},
		{[]int64{}, 0},
		{[]int64{300}, 300},
		{[]int64{100, 200}, 150},
		{[]int64{100, 101}, 101}, // half-up
		{[]int64{100, 200, 301}, 200},
	}
	for _, tc := range cases {
		if got := MeanCents(tc.in); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.in, tc.want, got)
		}
	}
}
