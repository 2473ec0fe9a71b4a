package player

import "testing"

func TestParseSeconds(t *testing.T) {
	tests := map[string]float64{
		"12.345678\n": 12.345678,
		"0":           0,
		"":            0,
		"-3":          0,
		"abc":         0,
	}
	for in, want := range tests {
		if got := parseSeconds(in); got != want {
			t.Errorf("parseSeconds(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseMicroseconds(t *testing.T) {
	tests := map[string]float64{
		"215000000\n": 215,
		"1500000":     1.5,
		"":            0,
		"0":           0,
		"3.5":         0,
	}
	for in, want := range tests {
		if got := parseMicroseconds(in); got != want {
			t.Errorf("parseMicroseconds(%q) = %v, want %v", in, got, want)
		}
	}
}
