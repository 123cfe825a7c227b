package svm

import "testing"

func TestParseBaseUnits(t *testing.T) {
	cases := []struct {
		amount string
		want   uint64
	}{
		{"1", 1},
		{"1000000", 1000000},
		// Above 2^53: must survive without float precision loss.
		{"9007199254740993", 9007199254740993},
		{"18446744073709551615", 18446744073709551615},
	}
	for _, tc := range cases {
		got, err := ParseBaseUnits(tc.amount)
		if err != nil {
			t.Fatalf("ParseBaseUnits(%q) failed: %v", tc.amount, err)
		}
		if got != tc.want {
			t.Fatalf("ParseBaseUnits(%q) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}

func TestParseBaseUnitsRejectsInvalid(t *testing.T) {
	invalid := []string{
		"",
		"abc",
		"0",
		"-1",
		"1.5",
		"1e6",
		"18446744073709551616", // one above max uint64
	}
	for _, amount := range invalid {
		if _, err := ParseBaseUnits(amount); err == nil {
			t.Fatalf("ParseBaseUnits(%q) should have failed", amount)
		}
	}
}

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
		want     uint64
	}{
		{"1", 6, 1000000},
		{"1.5", 6, 1500000},
		{"0.000001", 6, 1},
		{".5", 2, 50},
		{"250", 0, 250},
	}
	for _, tc := range cases {
		got, err := ToBaseUnits(tc.amount, tc.decimals)
		if err != nil {
			t.Fatalf("ToBaseUnits(%q, %d) failed: %v", tc.amount, tc.decimals, err)
		}
		if got != tc.want {
			t.Fatalf("ToBaseUnits(%q, %d) = %d, want %d", tc.amount, tc.decimals, got, tc.want)
		}
	}
}

func TestToBaseUnitsRejectsExcessPrecision(t *testing.T) {
	if _, err := ToBaseUnits("1.2345678", 6); err == nil {
		t.Fatal("expected rejection of sub-base-unit precision")
	}
}

func TestToBaseUnitsRejectsInvalid(t *testing.T) {
	for _, amount := range []string{"", ".", "-1", "0", "abc"} {
		if _, err := ToBaseUnits(amount, 6); err == nil {
			t.Fatalf("ToBaseUnits(%q) should have failed", amount)
		}
	}
}
