// Package classifier buckets tablespace statistics into severities and
// accounts for the remaining free space.
package classifier

import (
	"fmt"
	"regexp"

	"github.com/fgeck/check-oracle-tbs/internal/models"
)

// Classify walks stats in order and builds the run result.
//
// Rows whose name matches cfg.ExcludePattern are dropped entirely. Every other
// row counts toward TotalFreeMB, even when it is skipped for being
// autoextensible or produces no status line. CRITICAL is checked before
// WARNING, so a row at or above both thresholds is CRITICAL.
func Classify(stats []models.TablespaceStat, cfg models.ThresholdConfig) *models.RunResult {
	result := &models.RunResult{}

	for _, stat := range stats {
		if Excluded(stat.Name, cfg) {
			result.Excluded++
			result.Entries = append(result.Entries, models.ClassifiedEntry{Stat: stat, Severity: models.SeverityExcluded})
			continue
		}

		result.TotalFreeMB += stat.FreeMB()

		severity := Severity(stat, cfg)
		result.Entries = append(result.Entries, models.ClassifiedEntry{Stat: stat, Severity: severity})

		switch severity {
		case models.SeveritySkipped:
			result.Skipped++
			result.Lines = append(result.Lines, fmt.Sprintf("skipping autoextensible tablespace %s", stat.Name))
		case models.SeverityCritical:
			result.Criticals++
			result.Lines = append(result.Lines, FormatLine(stat, severity))
		case models.SeverityWarning:
			result.Warnings++
			result.Lines = append(result.Lines, FormatLine(stat, severity))
		}
	}

	return result
}

// CompileExclude compiles an exclusion expression anchored at the start of the
// tablespace name, so "UNDOTBS[0-9]" matches UNDOTBS1 and UNDOTBS12 but not
// MY_UNDOTBS1. An empty expression yields a nil pattern.
func CompileExclude(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil //nolint:nilnil // no pattern excludes nothing
	}
	re, err := regexp.Compile("^(?:" + expr + ")")
	if err != nil {
		return nil, fmt.Errorf("invalid exclusion pattern %q: %w", expr, err)
	}
	return re, nil
}

// Excluded reports whether name matches the exclusion pattern. A nil pattern
// excludes nothing.
func Excluded(name string, cfg models.ThresholdConfig) bool {
	if cfg.ExcludePattern == nil {
		return false
	}
	return cfg.ExcludePattern.MatchString(name)
}

// Severity returns the classification of a single non-excluded row.
func Severity(stat models.TablespaceStat, cfg models.ThresholdConfig) models.Severity {
	switch {
	case cfg.SkipAutoextensible && stat.Autoextensible:
		return models.SeveritySkipped
	case stat.PercentUsed >= cfg.CriticalPercent:
		return models.SeverityCritical
	case stat.PercentUsed >= cfg.WarningPercent:
		return models.SeverityWarning
	default:
		return models.SeverityOK
	}
}

// FormatLine renders the status line for a WARNING or CRITICAL row.
func FormatLine(stat models.TablespaceStat, severity models.Severity) string {
	return fmt.Sprintf("%s %s %.2f autoextensible(%s)", stat.Name, severity, stat.PercentUsed, YesNo(stat.Autoextensible))
}

// YesNo renders a flag the way dba_data_files does.
func YesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
