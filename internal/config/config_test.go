package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadIngestConfig(t *testing.T) {
	path := writeConfig(t, `
log_file: /var/log/scanner/scanner.log
mongodb:
  uri: mongodb://localhost:27017
`)

	cfg, err := LoadIngestConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogFile != "/var/log/scanner/scanner.log" {
		t.Errorf("log_file = %q", cfg.LogFile)
	}
	// Defaults
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("poll_interval = %v", cfg.PollInterval)
	}
	if cfg.Batching.MaxSize != 100 {
		t.Errorf("batching.max_size = %d", cfg.Batching.MaxSize)
	}
	if cfg.MongoDB.Database != "gatewatch" {
		t.Errorf("mongodb.database = %q", cfg.MongoDB.Database)
	}
}

func TestLoadIngestConfigRequiresLogFile(t *testing.T) {
	path := writeConfig(t, `
mongodb:
  uri: mongodb://localhost:27017
`)
	if _, err := LoadIngestConfig(path); err == nil {
		t.Fatal("expected error for missing log_file")
	}
}

func TestLoadValidateConfig(t *testing.T) {
	path := writeConfig(t, `
mongodb:
  uri: mongodb://localhost:27017
ocr:
  url: http://127.0.0.1:5000/recognize
images:
  root: /mnt/scanner-share
batch:
  limit: 50
`)

	cfg, err := LoadValidateConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Batch.Limit != 50 {
		t.Errorf("batch.limit = %d", cfg.Batch.Limit)
	}
	if cfg.OCR.Concurrency != 1 {
		t.Errorf("ocr.concurrency default = %d", cfg.OCR.Concurrency)
	}
	if cfg.Batch.Cooldown != 2*time.Second {
		t.Errorf("batch.cooldown default = %v", cfg.Batch.Cooldown)
	}
}

func TestLoadValidateConfigRequiresImageSource(t *testing.T) {
	path := writeConfig(t, `
mongodb:
  uri: mongodb://localhost:27017
ocr:
  url: http://127.0.0.1:5000/recognize
`)
	if _, err := LoadValidateConfig(path); err == nil {
		t.Fatal("expected error when neither images.root nor images.base_url is set")
	}
}

func TestLoadValidateConfigPartialTLS(t *testing.T) {
	path := writeConfig(t, `
mongodb:
  uri: mongodb://localhost:27017
ocr:
  url: https://127.0.0.1:5000/recognize
  client_cert: /etc/gatewatch/client.pem
images:
  root: /mnt/scanner-share
`)
	if _, err := LoadValidateConfig(path); err == nil {
		t.Fatal("expected error for incomplete TLS settings")
	}
}
