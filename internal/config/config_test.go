package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_Values(t *testing.T) {
	c := Default()
	if c == nil {
		t.Fatal("Default() returned nil")
	}
	if c.Cash != 10_000_000 {
		t.Errorf("Cash = %v, want 10000000", c.Cash)
	}
	if c.AllocPercent != 20 {
		t.Errorf("AllocPercent = %v, want 20", c.AllocPercent)
	}
	if c.ItemCap != 6 {
		t.Errorf("ItemCap = %v, want 6", c.ItemCap)
	}
	if c.MinHourlyVolume != 1000 {
		t.Errorf("MinHourlyVolume = %v, want 1000", c.MinHourlyVolume)
	}
	if c.MinROI != 3 || c.FreshMinutes != 8 {
		t.Errorf("MinROI/FreshMinutes = %v/%v, want 3/8", c.MinROI, c.FreshMinutes)
	}
	if c.PriceMode != "stable" || c.Mode != "all" || c.SortKey != "profit" {
		t.Errorf("enums = %q/%q/%q", c.PriceMode, c.Mode, c.SortKey)
	}
}

func TestClamp(t *testing.T) {
	c := &Config{
		Cash:         -5,
		AllocPercent: 250,
		ItemCap:      0,
		FreshMinutes: -1,
		PriceMode:    "turbo",
		Mode:         "qf",
		SortKey:      "",
		Scope:        "pinned",
		SignalFilter: "buy",
	}
	c.Clamp()
	if c.Cash != 0 {
		t.Errorf("Cash = %v, want 0", c.Cash)
	}
	if c.AllocPercent != 100 {
		t.Errorf("AllocPercent = %v, want 100", c.AllocPercent)
	}
	if c.ItemCap != 1 {
		t.Errorf("ItemCap = %v, want 1", c.ItemCap)
	}
	if c.FreshMinutes != 0 {
		t.Errorf("FreshMinutes = %v, want 0", c.FreshMinutes)
	}
	if c.PriceMode != "stable" {
		t.Errorf("PriceMode = %q, want stable", c.PriceMode)
	}
	if c.Mode != "qf" || c.Scope != "pinned" {
		t.Errorf("valid enums rewritten: mode=%q scope=%q", c.Mode, c.Scope)
	}
	if c.SortKey != "profit" {
		t.Errorf("SortKey = %q, want profit", c.SortKey)
	}
	if c.SignalFilter != "BUY" {
		t.Errorf("SignalFilter = %q, want BUY", c.SignalFilter)
	}
}

func TestClamp_SignalFilter(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"buy", "BUY"},
		{" Hold ", "HOLD"},
		{"dodge", "DODGE"},
		{"ANY", "any"},
		{"", "any"},
		{"sell", "any"},
	}
	for _, tt := range tests {
		c := Default()
		c.SignalFilter = tt.in
		c.Clamp()
		if c.SignalFilter != tt.want {
			t.Errorf("Clamp(signal %q) = %q, want %q", tt.in, c.SignalFilter, tt.want)
		}
	}
}

func TestLoadSettings_DefaultsWithoutFile(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Feed.BaseURL != "https://prices.runescape.wiki/api/v1/osrs" {
		t.Errorf("BaseURL = %q", s.Feed.BaseURL)
	}
	if s.Feed.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", s.Feed.Timeout)
	}
	if s.Refresh.Cron != "@every 1m" {
		t.Errorf("Cron = %q", s.Refresh.Cron)
	}
	if s.Refresh.SearchDebounce != 300*time.Millisecond {
		t.Errorf("SearchDebounce = %v, want 300ms", s.Refresh.SearchDebounce)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate defaults: %v", err)
	}
}

func TestLoadSettings_MissingFileIsNotError(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("LoadSettings missing file: %v", err)
	}
}

func TestLoadSettings_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("server:\n  port: 9999\nrefresh:\n  cron: \"@every 30s\"\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("OSRS_FLIPPER_SERVER_PORT", "8088")

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Server.Port != 8088 {
		t.Errorf("Port = %d, want env override 8088", s.Server.Port)
	}
	if s.Refresh.Cron != "@every 30s" {
		t.Errorf("Cron = %q, want file value", s.Refresh.Cron)
	}
}

func TestSettingsValidate_TelegramRequiresCredentials(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	s.Telegram.Enabled = true
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for telegram without token")
	}
}
