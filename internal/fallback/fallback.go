// Package fallback implements the optional external-LLM capabilities from
// spec §6.3 — header-role inference and patient-name extraction — over the
// OpenAI structured-output API. Nothing in internal/pipeline depends on this
// package; a caller wires it in only if it wants the fallback cascade leg
// enabled (spec §9's "no-op default" principle).
package fallback

import (
	"github.com/yourorg/labreport-extract/internal/config"
	"github.com/yourorg/labreport-extract/internal/pipeline"
)

// Capabilities bundles the two optional fallbacks so callers wiring an
// Extractor have one thing to pass around.
type Capabilities struct {
	Header  pipeline.HeaderRoleFallback
	Patient pipeline.PatientNameFallback
}

// New builds both fallbacks from process config. It returns ok=false (and a
// zero Capabilities whose Header and Patient are nil) when no API key is
// configured, matching the core's
// requirement that it "function correctly with the fallback disabled."
func New(cfg *config.Config) (Capabilities, bool) {
	if cfg == nil || !cfg.FallbackEnabled || cfg.OpenAIAPIKey == "" {
		return Capabilities{}, false
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = config.DefaultOpenAIModel
	}
	maxConc := cfg.FallbackMaxConcurrent
	if maxConc <= 0 {
		maxConc = config.DefaultFallbackMaxConcurrent
	}
	return Capabilities{
		Header:  NewOpenAIHeaderFallback(cfg.OpenAIAPIKey, model, cfg.FallbackTimeout, maxConc),
		Patient: NewOpenAIPatientNameFallback(cfg.OpenAIAPIKey, model, cfg.FallbackTimeout, maxConc),
	}, true
}
