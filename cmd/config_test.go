package cmd

import "testing"

func TestMask(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"abc":          "***",
		"AIzaSecret12": "********et12",
	}
	for in, want := range tests {
		if got := mask(in); got != want {
			t.Errorf("mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskURL(t *testing.T) {
	tests := map[string]string{
		"postgres://user:pw@db:5432/stig": "postgres://user:****@db:5432/stig",
		"postgres://db/stig":              "postgres://db/stig",
		"":                                "",
	}
	for in, want := range tests {
		if got := maskURL(in); got != want {
			t.Errorf("maskURL(%q) = %q, want %q", in, got, want)
		}
	}
}
