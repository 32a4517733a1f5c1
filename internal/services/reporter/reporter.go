// Package reporter renders probe results for the monitoring frontend and for
// interactive use.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cheynewallace/tabby"
	"github.com/fgeck/check-oracle-tbs/internal/models"
	"github.com/fgeck/check-oracle-tbs/internal/services/classifier"
	"github.com/logrusorgru/aurora/v4"
)

// Process exit codes.
const (
	ExitOK    = 0
	ExitAlert = 1
)

// Report writes the status lines and the free-space summary to w and returns
// the process exit code. Only the free-space floor drives the exit code;
// WARNING and CRITICAL lines are informational.
func Report(w io.Writer, result *models.RunResult, minFreeMB float64) (int, error) {
	for _, line := range result.Lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return ExitAlert, err
		}
	}

	if _, err := fmt.Fprintf(w, "Remaining free space = (%.2fMb)\n", result.TotalFreeMB); err != nil {
		return ExitAlert, err
	}

	result.ExitCode = ExitCode(result.TotalFreeMB, minFreeMB)
	if result.ExitCode != ExitOK {
		if _, err := fmt.Fprintf(w, "Space is less than %.2fMb\n", minFreeMB); err != nil {
			return ExitAlert, err
		}
	}

	return result.ExitCode, nil
}

// ExitCode returns ExitAlert iff a positive floor is set and totalFreeMB is at
// or below it.
func ExitCode(totalFreeMB, minFreeMB float64) int {
	if minFreeMB > 0 && totalFreeMB <= minFreeMB {
		return ExitAlert
	}
	return ExitOK
}

// Error writes the single diagnostic line printed when a run aborts.
func Error(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", err)
}

// TableOptions controls Table rendering.
type TableOptions struct {
	Colors bool
}

// Table writes every tablespace with its classification as an aligned table.
func Table(w io.Writer, result *models.RunResult, opts TableOptions) {
	au := aurora.New(aurora.WithColors(opts.Colors))

	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("TABLESPACE", "USED %", "FREE MB", "AUTOEXTEND", "STATUS")

	for _, entry := range result.Entries {
		t.AddLine(
			entry.Stat.Name,
			fmt.Sprintf("%.2f", entry.Stat.PercentUsed),
			fmt.Sprintf("%.2f", entry.Stat.FreeMB()),
			classifier.YesNo(entry.Stat.Autoextensible),
			colorize(au, entry.Severity),
		)
	}
	t.Print()

	_, _ = fmt.Fprintf(w, "\nRemaining free space: %s MB (warning %d, critical %d, skipped %d, excluded %d)\n",
		au.Bold(fmt.Sprintf("%.2f", result.TotalFreeMB)),
		result.Warnings, result.Criticals, result.Skipped, result.Excluded)
}

func colorize(au *aurora.Aurora, severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return au.Red(string(severity)).String()
	case models.SeverityWarning:
		return au.Yellow(string(severity)).String()
	case models.SeverityOK:
		return au.Green(string(severity)).String()
	default:
		return au.Faint(string(severity)).String()
	}
}

type jsonEntry struct {
	Name           string  `json:"name"`
	PercentUsed    float64 `json:"percent_used"`
	FreeMB         float64 `json:"free_mb"`
	Autoextensible bool    `json:"autoextensible"`
	Status         string  `json:"status"`
}

type jsonReport struct {
	Tablespaces []jsonEntry `json:"tablespaces"`
	TotalFreeMB float64     `json:"total_free_mb"`
	Warnings    int         `json:"warnings"`
	Criticals   int         `json:"criticals"`
	Skipped     int         `json:"skipped"`
	Excluded    int         `json:"excluded"`
}

// JSON writes every tablespace with its classification as an indented JSON document.
func JSON(w io.Writer, result *models.RunResult) error {
	doc := jsonReport{
		Tablespaces: make([]jsonEntry, 0, len(result.Entries)),
		TotalFreeMB: result.TotalFreeMB,
		Warnings:    result.Warnings,
		Criticals:   result.Criticals,
		Skipped:     result.Skipped,
		Excluded:    result.Excluded,
	}
	for _, entry := range result.Entries {
		doc.Tablespaces = append(doc.Tablespaces, jsonEntry{
			Name:           entry.Stat.Name,
			PercentUsed:    entry.Stat.PercentUsed,
			FreeMB:         entry.Stat.FreeMB(),
			Autoextensible: entry.Stat.Autoextensible,
			Status:         string(entry.Severity),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
