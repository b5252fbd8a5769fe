package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
)

func TestLoadUsesFallbacks(t *testing.T) {
	cfg := Load()

	if cfg.APIPort != "8080" {
		t.Errorf("APIPort = %q", cfg.APIPort)
	}
	if cfg.OCRWorkers != 2 {
		t.Errorf("OCRWorkers = %d", cfg.OCRWorkers)
	}
	if cfg.ConfidenceThreshold != 0.9 {
		t.Errorf("ConfidenceThreshold = %v", cfg.ConfidenceThreshold)
	}
	if cfg.RatePerWindow != 30 || cfg.RateWindowSeconds != 60 {
		t.Errorf("rate limit defaults = %d/%ds", cfg.RatePerWindow, cfg.RateWindowSeconds)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("OCR_WORKERS", "8")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("MAX_FILE_SIZE", "1048576")

	cfg := Load()

	if cfg.APIPort != "9999" {
		t.Errorf("APIPort = %q", cfg.APIPort)
	}
	if cfg.OCRWorkers != 8 {
		t.Errorf("OCRWorkers = %d", cfg.OCRWorkers)
	}
	if cfg.ConfidenceThreshold != 0.75 {
		t.Errorf("ConfidenceThreshold = %v", cfg.ConfidenceThreshold)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("OCR_WORKERS", "many")

	cfg := Load()
	if cfg.OCRWorkers != 2 {
		t.Errorf("OCRWorkers = %d, want fallback", cfg.OCRWorkers)
	}
}

func TestLoadKeywordsDefaults(t *testing.T) {
	table, err := LoadKeywords("")
	if err != nil {
		t.Fatalf("LoadKeywords: %v", err)
	}
	for _, category := range domain.Categories() {
		if len(table[category]) == 0 {
			t.Errorf("category %q has no keywords", category)
		}
	}
}

func TestLoadKeywordsYAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	content := "Diplom:\n  - ДИПЛОМ\n  - степень\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	table, err := LoadKeywords(path)
	if err != nil {
		t.Fatalf("LoadKeywords: %v", err)
	}
	got := table[domain.CategoryDiplom]
	if len(got) != 2 || got[0] != "диплом" || got[1] != "степень" {
		t.Fatalf("override = %v, want lowercased yaml entries", got)
	}
	// Untouched categories keep their defaults.
	if len(table[domain.CategoryENT]) == 0 {
		t.Fatal("override dropped unrelated category")
	}
}

func TestLoadKeywordsRejectsUnknownCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	if err := os.WriteFile(path, []byte("Paszport:\n  - паспорт\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := LoadKeywords(path); err == nil {
		t.Fatal("expected error for unknown category")
	}
}
