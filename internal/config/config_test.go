package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Memory.MaxRecent != 10 || cfg.Memory.SummarizeThreshold != 20 {
		t.Fatalf("unexpected memory defaults: %+v", cfg.Memory)
	}
	if cfg.Store.Path == "" {
		t.Fatal("expected default db path")
	}
}

func TestLoadServerExplicitAddr(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9090")
	server, err := loadServer()
	if err != nil {
		t.Fatalf("loadServer err: %v", err)
	}
	if server.Addr != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr: %s", server.Addr)
	}
}

func TestLoadServerRejectsWhitespace(t *testing.T) {
	t.Setenv("PORT", "80 80")
	if _, err := loadServer(); err == nil {
		t.Fatal("expected error for malformed PORT")
	}
}

func TestLoadMemoryOverrides(t *testing.T) {
	t.Setenv("MAX_RECENT_MESSAGES", "4")
	t.Setenv("SUMMARIZE_THRESHOLD", "8")
	memory, err := loadMemory()
	if err != nil {
		t.Fatalf("loadMemory err: %v", err)
	}
	if memory.MaxRecent != 4 || memory.SummarizeThreshold != 8 {
		t.Fatalf("overrides not applied: %+v", memory)
	}
}

func TestLoadMemoryRejectsZeroWindow(t *testing.T) {
	t.Setenv("MAX_RECENT_MESSAGES", "0")
	if _, err := loadMemory(); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestAIEnabled(t *testing.T) {
	ai := AI{Model: "doubao-pro", APIKey: "k"}
	if !ai.Enabled() {
		t.Fatal("expected enabled with api key")
	}
	ai = AI{Model: "doubao-pro"}
	if ai.Enabled() {
		t.Fatal("expected disabled without credentials")
	}
	ai = AI{Model: "doubao-pro", AccessKey: "ak", SecretKey: "sk"}
	if !ai.Enabled() {
		t.Fatal("expected enabled with ak/sk pair")
	}
}
