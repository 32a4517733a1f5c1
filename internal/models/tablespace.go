package models

// Severity is the classification assigned to a tablespace.
type Severity string

// Severity values.
const (
	SeverityOK       Severity = "OK"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
	SeveritySkipped  Severity = "SKIPPED"
	SeverityExcluded Severity = "EXCLUDED"
)

// TablespaceStat is one row of the tablespace usage query.
type TablespaceStat struct {
	Name           string
	PercentUsed    float64 // may slightly exceed 100 due to rounding
	FreeKB         float64
	Autoextensible bool
}

// FreeMB returns the free space in megabytes.
func (t TablespaceStat) FreeMB() float64 {
	return t.FreeKB / 1024
}

// ClassifiedEntry pairs a tablespace with its classification.
type ClassifiedEntry struct {
	Stat     TablespaceStat
	Severity Severity
}

// RunResult holds the outcome of classifying one query result.
type RunResult struct {
	Lines       []string // status lines in query order
	Entries     []ClassifiedEntry
	TotalFreeMB float64
	ExitCode    int

	Warnings  int
	Criticals int
	Skipped   int
	Excluded  int
}

// LowSpace reports whether the free-space floor was breached.
func (r *RunResult) LowSpace() bool {
	return r.ExitCode != 0
}
