package format

import "testing"

func TestPercent(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{name: "zero", in: 0, want: "0%"},
		{name: "whole", in: 42, want: "42%"},
		{name: "fraction", in: 42.5, want: "42.5%"},
		{name: "full", in: 100, want: "100%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percent(tt.in); got != tt.want {
				t.Errorf("Percent(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClampPercent(t *testing.T) {
	for in, want := range map[float64]float64{-5: 0, 0: 0, 55.5: 55.5, 100: 100, 180: 100} {
		if got := ClampPercent(in); got != want {
			t.Errorf("ClampPercent(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestMinutesSeconds(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{name: "zero", seconds: 0, want: "0m 0s"},
		{name: "under a minute", seconds: 42.9, want: "0m 42s"},
		{name: "exact minute", seconds: 60, want: "1m 0s"},
		{name: "minutes and seconds", seconds: 125.7, want: "2m 5s"},
		{name: "negative clamps", seconds: -3, want: "0m 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinutesSeconds(tt.seconds); got != tt.want {
				t.Errorf("MinutesSeconds(%v) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestWholeSecondsAndRate(t *testing.T) {
	if got := WholeSeconds(12.99); got != "12s" {
		t.Errorf("WholeSeconds = %q", got)
	}
	if got := Rate(2); got != "2.0" {
		t.Errorf("Rate(2) = %q", got)
	}
	if got := Rate(3.46); got != "3.5" {
		t.Errorf("Rate(3.46) = %q", got)
	}
}
