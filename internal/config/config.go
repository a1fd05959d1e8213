// Package config holds process-wide tunables for the lab-report extraction
// pipeline and the batch HTTP/CLI surfaces built on top of it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default values. These mirror the constants named throughout spec.md so a
// reader can cross-reference a tunable directly against the section that
// defines it.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = "8080"

	// LineGrouper (spec.md §4.1)
	DefaultMinConfidence  = 0.5
	DefaultLineAlpha      = 0.7
	DefaultFallbackRawH   = 16.0
	DefaultNameMergeGap   = 14.0
	DefaultNameMergeRatio = 1.6

	// HeaderInferer (spec.md §4.3)
	DefaultRoleMinDistinctHits   = 3
	DefaultRangeFractionThresh   = 0.3
	DefaultMinRowsForInference   = 8
	DefaultUnitRoleThreshold     = 0.70
	DefaultShortTableBonus       = 0.05
	DefaultReferenceRoleThresh   = 0.50
	DefaultResultRoleThreshold   = 0.60
	DefaultForcedResultNumThresh = 0.45
	DefaultForcedResultDateCap   = 0.10
	DefaultAlignmentThreshold    = 0.65
	DefaultAlignmentSampleRows   = 20

	// ColumnBander / CellAssigner (spec.md §4.3-4.4)
	DefaultMaxSampleRows  = 20
	DefaultBandEdgeMargin = 20.0

	// RowNormalizer (spec.md §4.5)
	DefaultValueConfidenceThreshold = 0.94
	DefaultFallbackValueConfidence  = 0.5

	// MetadataExtractor (spec.md §4.7)
	DefaultNameConcatMaxTokens = 3
	DefaultNameConcatGapRatio  = 1.8
	DefaultNameConcatGapFloor  = 16.0

	// Optional LLM fallback (spec.md §5, §6.3)
	DefaultFallbackMaxConcurrent = 2
	DefaultFallbackTimeout       = 20 * time.Second
	DefaultOpenAIModel           = "gpt-4o-mini"
)

// Config is the process-wide tunable set. The pipeline itself takes a
// *pipeline.Options derived from this, so that library callers who don't
// want env-var configuration can construct Options directly.
type Config struct {
	// Server
	Host        string
	Port        string
	CORSOrigins []string

	// LineGrouper
	MinConfidence float64
	LineAlpha     float64

	// HeaderInferer
	RoleMinDistinctHits int
	RangeFractionThresh float64
	MinRowsForInference int
	AlignmentThreshold  float64

	// RowNormalizer
	ValueConfidenceThreshold float64

	// Optional LLM fallback
	OpenAIAPIKey          string
	OpenAIModel           string
	FallbackEnabled       bool
	FallbackMaxConcurrent int
	FallbackTimeout       time.Duration
}

// LoadConfig reads configuration from the environment, falling back to the
// defaults above. Mirrors the env-var-driven loader pattern used throughout
// this codebase's service entrypoints.
func LoadConfig() *Config {
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:3000"}
	}

	openAIAPIKey := getEnv("OPENAI_API_KEY", "")
	fallbackEnabled := openAIAPIKey != ""
	if fallbackEnabled {
		slog.Info("llm header/metadata fallback enabled (OPENAI_API_KEY is set)")
	} else {
		slog.Info("llm header/metadata fallback disabled (OPENAI_API_KEY not set)")
	}

	return &Config{
		Host:        getEnv("HOST", DefaultHost),
		Port:        getEnv("PORT", DefaultPort),
		CORSOrigins: corsOrigins,

		MinConfidence: getEnvFloat64("MIN_CONFIDENCE", DefaultMinConfidence),
		LineAlpha:     getEnvFloat64("LINE_ALPHA", DefaultLineAlpha),

		RoleMinDistinctHits: getEnvInt("ROLE_MIN_DISTINCT_HITS", DefaultRoleMinDistinctHits),
		RangeFractionThresh: getEnvFloat64("RANGE_FRACTION_THRESHOLD", DefaultRangeFractionThresh),
		MinRowsForInference: getEnvInt("MIN_ROWS_FOR_INFERENCE", DefaultMinRowsForInference),
		AlignmentThreshold:  getEnvFloat64("ALIGNMENT_THRESHOLD", DefaultAlignmentThreshold),

		ValueConfidenceThreshold: getEnvFloat64("VALUE_CONFIDENCE_THRESHOLD", DefaultValueConfidenceThreshold),

		OpenAIAPIKey:          openAIAPIKey,
		OpenAIModel:           getEnv("OPENAI_MODEL", DefaultOpenAIModel),
		FallbackEnabled:       fallbackEnabled,
		FallbackMaxConcurrent: getEnvInt("FALLBACK_MAX_CONCURRENT", DefaultFallbackMaxConcurrent),
		FallbackTimeout:       getEnvDuration("FALLBACK_TIMEOUT", DefaultFallbackTimeout),
	}
}

// Validate checks config values and returns an error on failure. Call after
// LoadConfig to fail fast on invalid configuration.
func Validate(cfg *Config) error {
	if cfg.Port != "" {
		if _, err := strconv.Atoi(cfg.Port); err != nil {
			return fmt.Errorf("PORT must be numeric, got %q", cfg.Port)
		}
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be in range 0..1")
	}
	if cfg.ValueConfidenceThreshold < 0 || cfg.ValueConfidenceThreshold > 1 {
		return fmt.Errorf("VALUE_CONFIDENCE_THRESHOLD must be in range 0..1")
	}
	if cfg.AlignmentThreshold < 0 || cfg.AlignmentThreshold > 1 {
		return fmt.Errorf("ALIGNMENT_THRESHOLD must be in range 0..1")
	}
	if cfg.RoleMinDistinctHits <= 0 {
		return fmt.Errorf("ROLE_MIN_DISTINCT_HITS must be positive")
	}
	if cfg.FallbackMaxConcurrent <= 0 {
		return fmt.Errorf("FALLBACK_MAX_CONCURRENT must be positive")
	}
	if len(cfg.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must have at least one origin")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat64(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var items []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
