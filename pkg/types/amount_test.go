package types

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"1", 100_000_000},
		{"0.00004", 4000},
		{"0.00000001", 1},
		{"1.5", 150_000_000},
		{".5", 50_000_000},
		{" 0.001 ", 100_000},
		{"21000000", MaxSatoshi},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"0",
		"0.0",
		"-1",
		"+1",
		"abc",
		"1.",
		"1.123456789",
		"1e3",
		"1.2.3",
		"21000000.00000001",
		"99999999999999999999",
	} {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseAmount(in); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("ParseAmount(%q) error = %v, want ErrInvalidAmount", in, err)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(150_000_000); got != "1.50000000" {
		t.Errorf("FormatAmount = %q", got)
	}
	if got := FormatAmount(4000); got != "0.00004000" {
		t.Errorf("FormatAmount = %q", got)
	}
}
