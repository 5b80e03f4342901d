package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DOCLADDER_PROFILE", "GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_MODEL", "VISION_TIMEOUT",
		"VISION_BATCH_SIZE", "VISION_CONCURRENCY", "VISION_MAX_IMAGE_SIDE", "PDFTOPPM", "OCR_DPI", "TESSERACT_LANG", "TESSDATA_PREFIX",
		"OCR_MAX_PAGES", "DOCLADDER_RECORD_DB", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}
	want := &Config{
		Profile: "balanced",
		Vision:  VisionConfig{Model: "gemini-2.5-flash", Timeout: 2 * time.Minute, BatchSize: 4, Concurrency: 2, MaxImageSide: 3072},
		OCR:     OCRConfig{Pdftoppm: "pdftoppm", DPI: 300, Languages: []string{"eng"}},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
	got := Load()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "fallback-key")
	t.Setenv("TESSERACT_LANG", "eng+deu")
	t.Setenv("OCR_DPI", "not-a-number")
	t.Setenv("VISION_TIMEOUT", "30s")
	t.Setenv("DOCLADDER_RECORD_DB", "/tmp/runs.db")
	t.Setenv("LOG_FORMAT", "json")

	c := Load()
	if c.Vision.APIKey != "fallback-key" {
		t.Errorf("APIKey = %q, want GOOGLE_API_KEY fallback", c.Vision.APIKey)
	}
	if diff := cmp.Diff([]string{"eng", "deu"}, c.OCR.Languages); diff != "" {
		t.Errorf("Languages mismatch (-want +got):\n%s", diff)
	}
	if c.OCR.DPI != 300 {
		t.Errorf("DPI = %d, want default on parse failure", c.OCR.DPI)
	}
	if c.Vision.Timeout != 30*time.Second || c.Store.Path != "/tmp/runs.db" || c.Log.Format != "json" {
		t.Errorf("Load() = %+v", c)
	}

	t.Setenv("GEMINI_API_KEY", "primary-key")
	if got := Load().Vision.APIKey; got != "primary-key" {
		t.Errorf("APIKey = %q, want GEMINI_API_KEY to win", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Profile: "full",
			Vision:  VisionConfig{BatchSize: 4, Concurrency: 1},
			OCR:     OCRConfig{DPI: 300},
			Log:     LogConfig{Level: "debug", Format: "JSON"},
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown profile", func(c *Config) { c.Profile = "turbo" }, "unknown profile"},
		{"low dpi", func(c *Config) { c.OCR.DPI = 10 }, "OCR_DPI"},
		{"batch size", func(c *Config) { c.Vision.BatchSize = 0 }, "VISION_BATCH_SIZE"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "LOG_LEVEL"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	lvl, err := LogConfig{Level: "WARN"}.SlogLevel()
	if err != nil || lvl != slog.LevelWarn {
		t.Errorf("SlogLevel() = %v, %v; want WARN", lvl, err)
	}
	if (LogConfig{Format: "json"}).NewLogger() == nil {
		t.Error("NewLogger() = nil")
	}
}
