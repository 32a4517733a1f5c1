// Package metrics exports probe results in the Prometheus text format for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fgeck/check-oracle-tbs/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// PrometheusNamespace is the prefix of every exported metric.
const PrometheusNamespace = "oracle_tablespace"

// Service defines the interface for exporting a run result.
type Service interface {
	Export(path string, database string, result *models.RunResult) error
}

// Metrics contains the descriptors written for one run.
type Metrics struct {
	PercentUsed    *prometheus.GaugeVec
	FreeBytes      *prometheus.GaugeVec
	Autoextensible *prometheus.GaugeVec
	Status         *prometheus.GaugeVec
	TotalFreeBytes *prometheus.GaugeVec
	LowSpace       *prometheus.GaugeVec
	LastRun        *prometheus.GaugeVec
}

func newMetrics() *Metrics {
	return &Metrics{
		PercentUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: PrometheusNamespace,
			Name:      "percent_used",
			Help:      "Percentage of the allocated tablespace size in use (0-100).",
		}, []string{"database", "tablespace"}),
		FreeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: PrometheusNamespace,
			Name:      "free_bytes",
			Help:      "Free space in the tablespace's allocated data files.",
		}, []string{"database", "tablespace"}),
		Autoextensible: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: PrometheusNamespace,
			Name:      "autoextensible",
			Help:      "1 if any data file of the tablespace can autoextend.",
		}, []string{"database", "tablespace"}),
		Status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: PrometheusNamespace,
			Name:      "status",
			Help:      "1 for the severity currently assigned to the tablespace.",
		}, []string{"database", "tablespace", "severity"}),
		TotalFreeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: PrometheusNamespace,
			Name:      "remaining_free_bytes",
			Help:      "Free space summed over all tablespaces that are not excluded.",
		}, []string{"database"}),
		LowSpace: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: PrometheusNamespace,
			Name:      "low_space",
			Help:      "1 if the remaining free space is at or below the configured floor.",
		}, []string{"database"}),
		LastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: PrometheusNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed check.",
		}, []string{"database"}),
	}
}

func (m *Metrics) register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.PercentUsed,
		m.FreeBytes,
		m.Autoextensible,
		m.Status,
		m.TotalFreeBytes,
		m.LowSpace,
		m.LastRun,
	)
}

// Impl implements the metrics Service interface.
type Impl struct {
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a new metrics exporter.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		logger: logger,
		now:    time.Now,
	}
}

// Collect fills a fresh registry from result.
func (s *Impl) Collect(database string, result *models.RunResult) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	m := newMetrics()
	m.register(reg)

	for _, entry := range result.Entries {
		if entry.Severity == models.SeverityExcluded {
			continue
		}
		name := entry.Stat.Name
		m.PercentUsed.WithLabelValues(database, name).Set(entry.Stat.PercentUsed)
		m.FreeBytes.WithLabelValues(database, name).Set(entry.Stat.FreeKB * 1024)
		m.Autoextensible.WithLabelValues(database, name).Set(boolToFloat(entry.Stat.Autoextensible))
		m.Status.WithLabelValues(database, name, string(entry.Severity)).Set(1)
	}

	m.TotalFreeBytes.WithLabelValues(database).Set(result.TotalFreeMB * 1024 * 1024)
	m.LowSpace.WithLabelValues(database).Set(boolToFloat(result.LowSpace()))
	m.LastRun.WithLabelValues(database).Set(float64(s.now().Unix()))

	return reg
}

// Export writes the metrics for result to path atomically.
func (s *Impl) Export(path string, database string, result *models.RunResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}

	if err := prometheus.WriteToTextfile(path, s.Collect(database, result)); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	s.logger.Debug().Str("path", path).Msg("metrics file written")
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
