// Package models contains the data structures used throughout check-oracle-tbs.
package models

import "regexp"

// CheckConfig holds the complete configuration for a probe run.
type CheckConfig struct {
	Oracle      OracleConfig
	Thresholds  ThresholdConfig
	MetricsFile string           // empty if not configured
	SSHTunnel   *SSHTunnelConfig // nil if not configured
	Telegram    *TelegramConfig  // nil if not configured
}

// ThresholdConfig controls how tablespaces are classified.
type ThresholdConfig struct {
	WarningPercent     float64
	CriticalPercent    float64
	ExcludePattern     *regexp.Regexp // nil means no tablespace is excluded
	SkipAutoextensible bool
	MinFreeMB          float64 // only enforced when > 0
}
