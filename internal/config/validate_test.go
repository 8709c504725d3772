package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidateCleanDefaultsProduceNoErrors(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("default config should validate cleanly, got %v", errs)
	}
}

func TestValidateRejectsBadLiveURLScheme(t *testing.T) {
	cfg := Default()
	cfg.LiveURL = "https://example.com/live"
	errs := cfg.Validate()
	found := false
	for _, err := range errs {
		if strings.Contains(err.Error(), "live_url scheme") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected live_url scheme error, got %v", errs)
	}
}

func TestValidateRejectsControlCharsInToken(t *testing.T) {
	cfg := Default()
	cfg.AuthToken = "token\x00with\x01control"
	errs := cfg.Validate()
	if len(errs) == 0 {
		t.Fatal("control chars in token should be rejected")
	}
}

func TestValidateClampsPollInterval(t *testing.T) {
	cfg := Default()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.Validate()
	if cfg.PollInterval != time.Second {
		t.Fatalf("PollInterval = %v, want 1s (clamped)", cfg.PollInterval)
	}
}

func TestValidateKeepsSettleBelowPoll(t *testing.T) {
	cfg := Default()
	cfg.PollInterval = 2 * time.Second
	cfg.SettleDelay = 3 * time.Second
	cfg.Validate()
	if cfg.SettleDelay >= cfg.PollInterval {
		t.Fatalf("SettleDelay = %v not clamped below PollInterval %v", cfg.SettleDelay, cfg.PollInterval)
	}
}

func TestValidateResetsThresholdOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.InputThreshold = 1.5
	cfg.Validate()
	if cfg.InputThreshold != Default().InputThreshold {
		t.Fatalf("InputThreshold = %v, want default %v", cfg.InputThreshold, Default().InputThreshold)
	}
}

func TestValidateClampsSampleFPS(t *testing.T) {
	cfg := Default()
	cfg.SampleFPS = 240
	cfg.Validate()
	if cfg.SampleFPS != 30 {
		t.Fatalf("SampleFPS = %d, want 30 (clamped)", cfg.SampleFPS)
	}
}

func TestValidateUnknownArchiveProvider(t *testing.T) {
	cfg := Default()
	cfg.Archive.Enabled = true
	cfg.Archive.Provider = "ftp"
	errs := cfg.Validate()
	found := false
	for _, err := range errs {
		if strings.Contains(err.Error(), "archive.provider") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected archive.provider error, got %v", errs)
	}
}
