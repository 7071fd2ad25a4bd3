package domain

import (
	"errors"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Addr != ":6789" {
		t.Fatalf("expected port 6789, got %q", cfg.Addr)
	}
	if cfg.MasterMatch != "Master" {
		t.Fatalf("expected Master heuristic, got %q", cfg.MasterMatch)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Addr = " " }},
		{"unknown backend", func(c *Config) { c.Backend = "alsa" }},
		{"empty match", func(c *Config) { c.MasterMatch = "" }},
		{"unknown policy", func(c *Config) { c.OnError = "ignore" }},
		{"bad direction", func(c *Config) { c.Simulated.Mixers[0].Lines[0].Direction = "sideways" }},
		{"value out of range", func(c *Config) {
			c.Simulated.Mixers[0].Lines[1].Controls[0].Value = 1.5
		}},
		{"untyped control", func(c *Config) {
			c.Simulated.Mixers[0].Lines[0].Controls[0].Members[0].Type = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	if d, ok := ParseDirection("source"); !ok || d != DirectionSource {
		t.Fatalf("expected source, got %v %t", d, ok)
	}
	if _, ok := ParseDirection("input"); ok {
		t.Fatal("expected unknown direction to fail")
	}
}
