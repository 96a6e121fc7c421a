package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with defaults: %v", err)
	}
	if cfg.App.Name != "coinpulse" {
		t.Fatalf("unexpected app name %q", cfg.App.Name)
	}
	if cfg.Pricing.BuyDrift != 1.0001 || cfg.Pricing.SellDrift != 0.9999 {
		t.Fatalf("drift defaults wrong: %+v", cfg.Pricing)
	}
	if cfg.Cache.TTL != 3*time.Minute {
		t.Fatalf("cache ttl default wrong: %s", cfg.Cache.TTL)
	}
}

func TestValidateRejectsBadClampBand(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Pricing.ClampBand = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("clamp band outside (0,1) should fail validation")
	}
}

func TestValidateRejectsZeroInterval(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Refresher.Interval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero refresher interval should fail validation")
	}
}
