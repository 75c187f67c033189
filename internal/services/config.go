package services

import (
	"time"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/utils"
)

// Config carries the engine tunables. Defaults match the calibration the
// heuristics were tuned against; every knob is env-overridable.
type Config struct {
	// Blocker detection (IdentifyBlockers).
	BlockerAttemptsThreshold  int
	BlockerErrorRateThreshold float64

	// Adaptation rule thresholds (AdaptPath).
	AdaptationErrorRateThreshold float64
	AdaptationSkipRateThreshold  float64

	// Pacing divergence: observed/estimated time ratios below Fast or above
	// Slow trigger a pacing adjustment.
	PacingFastRatio float64
	PacingSlowRatio float64

	// Storage discipline.
	StorageTimeout  time.Duration
	CatalogCacheTTL time.Duration

	// Suggestions returned per request.
	MaxSuggestions int
}

func DefaultConfig() Config {
	return Config{
		BlockerAttemptsThreshold:     3,
		BlockerErrorRateThreshold:    0.5,
		AdaptationErrorRateThreshold: 0.3,
		AdaptationSkipRateThreshold:  0.4,
		PacingFastRatio:              0.5,
		PacingSlowRatio:              2.0,
		StorageTimeout:               5 * time.Second,
		CatalogCacheTTL:              10 * time.Minute,
		MaxSuggestions:               5,
	}
}

func LoadConfig(log *logger.Logger) Config {
	cfg := DefaultConfig()
	cfg.BlockerAttemptsThreshold = utils.GetEnvAsInt("BLOCKER_ATTEMPTS_THRESHOLD", cfg.BlockerAttemptsThreshold, log)
	cfg.BlockerErrorRateThreshold = utils.GetEnvAsFloat("BLOCKER_ERROR_RATE_THRESHOLD", cfg.BlockerErrorRateThreshold, log)
	cfg.AdaptationErrorRateThreshold = utils.GetEnvAsFloat("ADAPTATION_ERROR_RATE_THRESHOLD", cfg.AdaptationErrorRateThreshold, log)
	cfg.AdaptationSkipRateThreshold = utils.GetEnvAsFloat("ADAPTATION_SKIP_RATE_THRESHOLD", cfg.AdaptationSkipRateThreshold, log)
	cfg.PacingFastRatio = utils.GetEnvAsFloat("PACING_FAST_RATIO", cfg.PacingFastRatio, log)
	cfg.PacingSlowRatio = utils.GetEnvAsFloat("PACING_SLOW_RATIO", cfg.PacingSlowRatio, log)
	cfg.StorageTimeout = time.Duration(utils.GetEnvAsInt("STORAGE_TIMEOUT_SECONDS", int(cfg.StorageTimeout/time.Second), log)) * time.Second
	cfg.CatalogCacheTTL = time.Duration(utils.GetEnvAsInt("CATALOG_CACHE_TTL_SECONDS", int(cfg.CatalogCacheTTL/time.Second), log)) * time.Second
	cfg.MaxSuggestions = utils.GetEnvAsInt("MAX_PATH_SUGGESTIONS", cfg.MaxSuggestions, log)
	return cfg
}
