// Package config loads docladder settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thywilljoshua/docladder/internal/pipeline"
)

// Config holds all application configuration
type Config struct {
	Profile string
	Vision  VisionConfig
	OCR     OCRConfig
	Store   StoreConfig
	Log     LogConfig
}

// VisionConfig holds vision-model configuration
type VisionConfig struct {
	APIKey       string
	Model        string
	Timeout      time.Duration
	BatchSize    int
	Concurrency  int
	MaxImageSide int
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftoppm       string
	DPI            int
	Languages      []string
	TessdataPrefix string
	MaxPages       int
}

// StoreConfig holds the attempt database location. An empty path disables
// recording.
type StoreConfig struct {
	Path string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Profile: getEnv("DOCLADDER_PROFILE", "balanced"),
		Vision: VisionConfig{
			APIKey:       getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
			Model:        getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout:      getEnvAsDuration("VISION_TIMEOUT", 2*time.Minute),
			BatchSize:    getEnvAsInt("VISION_BATCH_SIZE", pipeline.DefaultVisionBatchSize),
			Concurrency:  getEnvAsInt("VISION_CONCURRENCY", 2),
			MaxImageSide: getEnvAsInt("VISION_MAX_IMAGE_SIDE", 3072),
		},
		OCR: OCRConfig{
			Pdftoppm:       getEnv("PDFTOPPM", "pdftoppm"),
			DPI:            getEnvAsInt("OCR_DPI", 300),
			Languages:      strings.Split(getEnv("TESSERACT_LANG", "eng"), "+"),
			TessdataPrefix: getEnv("TESSDATA_PREFIX", ""),
			MaxPages:       getEnvAsInt("OCR_MAX_PAGES", 0),
		},
		Store: StoreConfig{
			Path: getEnv("DOCLADDER_RECORD_DB", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks value ranges. A missing API key is not an error here;
// the vision tier reports it when it is first needed.
func (c *Config) Validate() error {
	var errs []error
	if _, err := pipeline.Profile(c.Profile); err != nil {
		errs = append(errs, err)
	}
	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		errs = append(errs, fmt.Errorf("OCR_DPI must be between 72 and 1200, got %d", c.OCR.DPI))
	}
	if c.OCR.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("OCR_MAX_PAGES must be >= 0, got %d", c.OCR.MaxPages))
	}
	if c.Vision.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("VISION_BATCH_SIZE must be >= 1, got %d", c.Vision.BatchSize))
	}
	if c.Vision.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("VISION_CONCURRENCY must be >= 1, got %d", c.Vision.Concurrency))
	}
	if c.Vision.Timeout < 0 {
		errs = append(errs, fmt.Errorf("VISION_TIMEOUT must be >= 0, got %s", c.Vision.Timeout))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// NewLogger builds a text or JSON handler on stderr at the configured level.
func (l LogConfig) NewLogger() *slog.Logger {
	lvl, _ := l.SlogLevel()
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
