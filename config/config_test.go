package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.TTLMs != 600000 {
		t.Errorf("Cache.TTLMs = %d, want 600000", cfg.Cache.TTLMs)
	}
	if cfg.Cache.MaxEntries != 500 {
		t.Errorf("Cache.MaxEntries = %d, want 500", cfg.Cache.MaxEntries)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("AGENTWEB_PORT", "9090")
	t.Setenv("AGENTWEB_CACHE_MAX_ENTRIES", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Cache.MaxEntries != 250 {
		t.Errorf("Cache.MaxEntries = %d, want 250", cfg.Cache.MaxEntries)
	}
}
