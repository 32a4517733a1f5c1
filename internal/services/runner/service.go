// Package runner orchestrates one tablespace check.
package runner

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/fgeck/check-oracle-tbs/internal/models"
	"github.com/fgeck/check-oracle-tbs/internal/services/classifier"
	"github.com/fgeck/check-oracle-tbs/internal/services/metrics"
	"github.com/fgeck/check-oracle-tbs/internal/services/oracle"
	"github.com/fgeck/check-oracle-tbs/internal/services/reporter"
	"github.com/fgeck/check-oracle-tbs/internal/services/ssh"
	"github.com/fgeck/check-oracle-tbs/internal/services/telegram"
	"github.com/rs/zerolog"
)

// Service defines the interface for the check runner.
type Service interface {
	Run(ctx context.Context, cfg models.CheckConfig, out io.Writer) (*models.RunResult, error)
	Evaluate(ctx context.Context, cfg models.CheckConfig) (*models.RunResult, error)
}

// Impl implements the runner Service interface.
type Impl struct {
	oracleSvc   oracle.Service
	sshSvc      ssh.Service
	telegramSvc telegram.Service
	metricsSvc  metrics.Service
	logger      zerolog.Logger
	now         func() time.Time
}

// New creates a new runner service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		oracleSvc:   oracle.New(logger),
		sshSvc:      ssh.New(logger),
		telegramSvc: telegram.New(logger),
		metricsSvc:  metrics.New(logger),
		logger:      logger,
		now:         time.Now,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	oracleSvc oracle.Service,
	sshSvc ssh.Service,
	telegramSvc telegram.Service,
	metricsSvc metrics.Service,
) *Impl {
	return &Impl{
		oracleSvc:   oracleSvc,
		sshSvc:      sshSvc,
		telegramSvc: telegramSvc,
		metricsSvc:  metricsSvc,
		logger:      logger,
		now:         time.Now,
	}
}

// DatabaseLabel identifies the monitored database in logs and notifications.
func DatabaseLabel(cfg models.OracleConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)) + "/" + cfg.ServiceName
}

// Run collects, classifies and reports. Nothing is written to out when the
// run fails before classification. Metrics and Telegram failures are logged
// and never change the outcome.
func (s *Impl) Run(ctx context.Context, cfg models.CheckConfig, out io.Writer) (*models.RunResult, error) {
	startTime := s.now()
	database := DatabaseLabel(cfg.Oracle)

	s.logger.Info().
		Str("database", database).
		Float64("warning", cfg.Thresholds.WarningPercent).
		Float64("critical", cfg.Thresholds.CriticalPercent).
		Float64("min_space_mb", cfg.Thresholds.MinFreeMB).
		Bool("skip_autoextensible", cfg.Thresholds.SkipAutoextensible).
		Msg("starting tablespace check")

	result, err := s.Evaluate(ctx, cfg)
	if err != nil {
		if cfg.Telegram != nil {
			s.sendNotification(ctx, *cfg.Telegram, models.TelegramMessage{
				Database:     database,
				CheckedAt:    startTime,
				Duration:     s.now().Sub(startTime),
				ErrorMessage: err.Error(),
			})
		}
		return nil, err
	}

	if _, err := reporter.Report(out, result, cfg.Thresholds.MinFreeMB); err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}

	if cfg.MetricsFile != "" {
		if err := s.metricsSvc.Export(cfg.MetricsFile, database, result); err != nil {
			s.logger.Error().Err(err).Str("path", cfg.MetricsFile).Msg("failed to export metrics")
		}
	}

	if cfg.Telegram != nil {
		msg := models.TelegramMessage{
			Database:    database,
			CheckedAt:   startTime,
			Duration:    s.now().Sub(startTime),
			TotalFreeMB: result.TotalFreeMB,
			MinFreeMB:   cfg.Thresholds.MinFreeMB,
			LowSpace:    result.LowSpace(),
			Alerts:      alerts(result),
		}
		if telegram.ShouldNotify(*cfg.Telegram, msg) {
			s.sendNotification(ctx, *cfg.Telegram, msg)
		}
	}

	s.logger.Info().
		Int("warnings", result.Warnings).
		Int("criticals", result.Criticals).
		Int("skipped", result.Skipped).
		Int("excluded", result.Excluded).
		Float64("total_free_mb", result.TotalFreeMB).
		Int("exit_code", result.ExitCode).
		Dur("duration", s.now().Sub(startTime)).
		Msg("tablespace check completed")

	return result, nil
}

// Evaluate collects and classifies without writing a report.
func (s *Impl) Evaluate(ctx context.Context, cfg models.CheckConfig) (*models.RunResult, error) {
	oracleCfg := cfg.Oracle

	if cfg.SSHTunnel != nil {
		tunnelCfg := *cfg.SSHTunnel
		tunnelCfg.Timeout = cfg.Oracle.Timeout

		tunnel, err := s.sshSvc.Open(ctx, tunnelCfg, cfg.Oracle.Host, cfg.Oracle.Port)
		if err != nil {
			return nil, fmt.Errorf("%w: SSH tunnel via %s: %w", models.ErrConnection, cfg.SSHTunnel.Host, err)
		}
		defer func() {
			if err := tunnel.Close(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to close SSH tunnel")
			}
		}()

		oracleCfg.Host = tunnel.LocalHost
		oracleCfg.Port = tunnel.LocalPort
	}

	stats, err := s.oracleSvc.Collect(ctx, oracleCfg)
	if err != nil {
		return nil, err
	}

	return classifier.Classify(stats, cfg.Thresholds), nil
}

func alerts(result *models.RunResult) []models.ClassifiedEntry {
	var out []models.ClassifiedEntry
	for _, entry := range result.Entries {
		if entry.Severity == models.SeverityWarning || entry.Severity == models.SeverityCritical {
			out = append(out, entry)
		}
	}
	return out
}

func (s *Impl) sendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) {
	result, err := s.telegramSvc.SendNotification(ctx, cfg, msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
		return
	}

	s.logger.Info().Msg("Telegram notification sent")
}
