package pipeline

import "github.com/yourorg/labreport-extract/internal/config"

// Options aggregates every per-stage tunable (spec §4). Each stage keeps its
// own Options struct so the pipeline package has no hard dependency on
// internal/config; OptionsFromConfig is the one place that bridges them.
type Options struct {
	LineGrouper    LineGrouperOptions
	HeaderInferer  HeaderInfererOptions
	ColumnBander   ColumnBanderOptions
	CellAssignMode AssignMode
	RowNormalizer  RowNormalizerOptions
	Metadata       MetadataOptions
}

// DefaultOptions mirrors the constants in spec.md referenced throughout §4.
func DefaultOptions() Options {
	return OptionsFromConfig(&config.Config{
		MinConfidence:            config.DefaultMinConfidence,
		LineAlpha:                config.DefaultLineAlpha,
		RoleMinDistinctHits:      config.DefaultRoleMinDistinctHits,
		RangeFractionThresh:      config.DefaultRangeFractionThresh,
		MinRowsForInference:      config.DefaultMinRowsForInference,
		AlignmentThreshold:       config.DefaultAlignmentThreshold,
		ValueConfidenceThreshold: config.DefaultValueConfidenceThreshold,
	})
}

// OptionsFromConfig builds pipeline Options from process-wide Config,
// falling back to spec defaults for tunables Config doesn't expose as
// env-configurable knobs.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		LineGrouper: LineGrouperOptions{
			MinConfidence:     cfg.MinConfidence,
			Alpha:             cfg.LineAlpha,
			NameMergeGap:      config.DefaultNameMergeGap,
			NameMergeGapRatio: config.DefaultNameMergeRatio,
		},
		HeaderInferer: HeaderInfererOptions{
			RoleMinDistinctHits:      cfg.RoleMinDistinctHits,
			RangeFractionThreshold:   cfg.RangeFractionThresh,
			MinRowsForInference:      cfg.MinRowsForInference,
			UnitRoleThreshold:        config.DefaultUnitRoleThreshold,
			ShortTableBonus:          config.DefaultShortTableBonus,
			ReferenceRoleThreshold:   config.DefaultReferenceRoleThresh,
			ResultRoleThreshold:      config.DefaultResultRoleThreshold,
			ForcedResultNumThreshold: config.DefaultForcedResultNumThresh,
			ForcedResultDateCap:      config.DefaultForcedResultDateCap,
			AlignmentThreshold:       cfg.AlignmentThreshold,
			AlignmentSampleRows:      config.DefaultAlignmentSampleRows,
			MaxSampleRows:            config.DefaultMaxSampleRows,
		},
		ColumnBander: ColumnBanderOptions{
			MaxSampleRows:  config.DefaultMaxSampleRows,
			BandEdgeMargin: config.DefaultBandEdgeMargin,
		},
		CellAssignMode: ModeNearest,
		RowNormalizer: RowNormalizerOptions{
			ValueConfidenceThreshold: cfg.ValueConfidenceThreshold,
			FallbackValueConfidence:  config.DefaultFallbackValueConfidence,
		},
		Metadata: MetadataOptions{
			NameConcatMaxTokens:        config.DefaultNameConcatMaxTokens,
			NameConcatMinGapPx:         config.DefaultNameConcatGapFloor,
			NameConcatMaxGapMultiplier: config.DefaultNameConcatGapRatio,
		},
	}
}
