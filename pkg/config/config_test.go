package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BatchInterval != 60*time.Second {
		t.Errorf("expected default batch interval, got %v", cfg.BatchInterval)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fisherman.yaml")
	content := "rpc_url: wss://chain.example.com\nbatch_interval: 5s\nindexer_mode: full\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RPCURL != "wss://chain.example.com" {
		t.Errorf("rpc_url not overridden: %s", cfg.RPCURL)
	}
	if cfg.BatchInterval != 5*time.Second {
		t.Errorf("batch_interval not overridden: %v", cfg.BatchInterval)
	}
	if cfg.IndexerMode != IndexerModeFull {
		t.Errorf("indexer_mode not overridden: %s", cfg.IndexerMode)
	}
	// unspecified keys keep defaults
	if cfg.DBURL != Default().DBURL {
		t.Errorf("db_url should retain default, got %s", cfg.DBURL)
	}
}

func TestValidateRejectsBadIndexerMode(t *testing.T) {
	cfg := Default()
	cfg.IndexerMode = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for bad indexer_mode")
	}
}

func TestValidateRejectsNonPositiveBatchInterval(t *testing.T) {
	cfg := Default()
	cfg.BatchInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero batch_interval")
	}
}

func TestValidateRejectsSyncMaxBelowPageSize(t *testing.T) {
	cfg := Default()
	cfg.IncompleteSyncPageSize = 100
	cfg.IncompleteSyncMax = 10
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error when incomplete_sync_max < incomplete_sync_page_size")
	}
}
