package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"PaperPromoter/internal/config"
	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/infrastructure/output"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	root := t.TempDir()
	var cfg config.Config
	cfg.Run.InputDir = filepath.Join(root, "in")
	cfg.Run.OutputDir = filepath.Join(root, "out")
	cfg.Run.Concurrency = 1
	cfg.Run.Platform = "twitter"
	cfg.Models.APIKey = "test"
	cfg.Models.BaseURL = "http://127.0.0.1:1/v1/"
	cfg.Models.TextModel = "m"
	cfg.Images.Quality = "low"
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRejectsBadSettings(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Images.Quality = "ultra"
	_, err := New(context.Background(), cfg, quietLogger())
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}

	cfg = testConfig(t)
	cfg.Models.APIKey = ""
	if _, err := New(context.Background(), cfg, quietLogger()); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError without key, got %v", err)
	}
}

func TestRunIsolatesUnreadablePDF(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Join(cfg.Run.InputDir, "A"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Run.InputDir, "A", "paper.pdf"), []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.Run.InputDir, "B"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	application, err := New(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Close()

	summary, err := application.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Total != 1 || summary.Failed != 1 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(cfg.Run.OutputDir, output.SummaryJSON)); err != nil {
		t.Fatalf("run summary not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Run.OutputDir, "A")); !os.IsNotExist(err) {
		t.Fatalf("failed project must not produce output, stat err %v", err)
	}
}
