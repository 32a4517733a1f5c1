package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/fgeck/check-oracle-tbs/internal/models"
	"github.com/fgeck/check-oracle-tbs/internal/services/classifier"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations.
type mockOracleService struct {
	collectFunc func(ctx context.Context, cfg models.OracleConfig) ([]models.TablespaceStat, error)
}

func (m *mockOracleService) Collect(ctx context.Context, cfg models.OracleConfig) ([]models.TablespaceStat, error) {
	if m.collectFunc != nil {
		return m.collectFunc(ctx, cfg)
	}
	return scenarioRows(), nil
}

type mockSSHService struct {
	openFunc func(ctx context.Context, cfg models.SSHTunnelConfig, remoteHost string, remotePort int) (*models.SSHTunnel, error)
}

func (m *mockSSHService) Open(ctx context.Context, cfg models.SSHTunnelConfig, remoteHost string, remotePort int) (*models.SSHTunnel, error) {
	if m.openFunc != nil {
		return m.openFunc(ctx, cfg, remoteHost, remotePort)
	}
	return &models.SSHTunnel{LocalHost: "127.0.0.1", LocalPort: 40000, Close: func() error { return nil }}, nil
}

type mockTelegramService struct {
	sendFunc func(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) (*models.TelegramResult, error)
	sent     []models.TelegramMessage
}

func (m *mockTelegramService) SendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) (*models.TelegramResult, error) {
	m.sent = append(m.sent, msg)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, cfg, msg)
	}
	return &models.TelegramResult{MessageSent: true}, nil
}

type mockMetricsService struct {
	exportFunc func(path string, database string, result *models.RunResult) error
	exported   int
}

func (m *mockMetricsService) Export(path string, database string, result *models.RunResult) error {
	m.exported++
	if m.exportFunc != nil {
		return m.exportFunc(path, database, result)
	}
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("stdout closed")
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func scenarioRows() []models.TablespaceStat {
	return []models.TablespaceStat{
		{Name: "A", PercentUsed: 90, FreeKB: 100},
		{Name: "B", PercentUsed: 96, FreeKB: 50},
		{Name: "C", PercentUsed: 70, FreeKB: 200, Autoextensible: true},
	}
}

func mustPattern(t *testing.T, expr string) *regexp.Regexp {
	t.Helper()

	re, err := classifier.CompileExclude(expr)
	require.NoError(t, err)
	return re
}

func minimalConfig() models.CheckConfig {
	return models.CheckConfig{
		Oracle: models.OracleConfig{
			Host:        "db1",
			Port:        1521,
			Username:    "monitor",
			Password:    "secret",
			ServiceName: "ORCL",
		},
		Thresholds: models.ThresholdConfig{
			WarningPercent:  85,
			CriticalPercent: 95,
		},
	}
}

type fixture struct {
	oracle   *mockOracleService
	ssh      *mockSSHService
	telegram *mockTelegramService
	metrics  *mockMetricsService
	runner   *Impl
}

func newFixture() *fixture {
	f := &fixture{
		oracle:   &mockOracleService{},
		ssh:      &mockSSHService{},
		telegram: &mockTelegramService{},
		metrics:  &mockMetricsService{},
	}
	f.runner = NewWithServices(testLogger(), f.oracle, f.ssh, f.telegram, f.metrics)
	return f
}

func TestRun_Success_MinimalConfig(t *testing.T) {
	f := newFixture()
	var out bytes.Buffer

	result, err := f.runner.Run(context.Background(), minimalConfig(), &out)

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t,
		"A WARNING 90.00 autoextensible(NO)\n"+
			"B CRITICAL 96.00 autoextensible(NO)\n"+
			"Remaining free space = (0.34Mb)\n",
		out.String())
	assert.Zero(t, f.metrics.exported)
	assert.Empty(t, f.telegram.sent)
}

func TestRun_ExclusionScenario(t *testing.T) {
	f := newFixture()
	cfg := minimalConfig()
	cfg.Thresholds.ExcludePattern = mustPattern(t, "C")
	var out bytes.Buffer

	result, err := f.runner.Run(context.Background(), cfg, &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Remaining free space = (0.15Mb)")
	assert.NotContains(t, out.String(), "C ")
	assert.Equal(t, 1, result.Excluded)
}

func TestRun_FloorBreached(t *testing.T) {
	f := newFixture()
	cfg := minimalConfig()
	cfg.Thresholds.MinFreeMB = 1.0
	var out bytes.Buffer

	result, err := f.runner.Run(context.Background(), cfg, &out)

	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, out.String(), "Space is less than 1.00Mb")
}

func TestRun_CollectFailureWritesNothing(t *testing.T) {
	f := newFixture()
	f.oracle.collectFunc = func(ctx context.Context, cfg models.OracleConfig) ([]models.TablespaceStat, error) {
		return nil, fmt.Errorf("%w: ORA-12541: TNS:no listener", models.ErrConnection)
	}
	var out bytes.Buffer

	result, err := f.runner.Run(context.Background(), minimalConfig(), &out)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrConnection)
	assert.Empty(t, out.String())
	assert.Zero(t, f.metrics.exported)
}

func TestRun_CollectFailureNotifiesTelegram(t *testing.T) {
	f := newFixture()
	f.oracle.collectFunc = func(ctx context.Context, cfg models.OracleConfig) ([]models.TablespaceStat, error) {
		return nil, fmt.Errorf("%w: tablespace query returned no rows", models.ErrQuery)
	}
	cfg := minimalConfig()
	cfg.Telegram = &models.TelegramConfig{BotToken: "t", ChatID: "c"}

	_, err := f.runner.Run(context.Background(), cfg, io.Discard)

	require.Error(t, err)
	require.Len(t, f.telegram.sent, 1)
	assert.True(t, f.telegram.sent[0].Failed())
	assert.Contains(t, f.telegram.sent[0].ErrorMessage, "no rows")
	assert.Equal(t, "db1:1521/ORCL", f.telegram.sent[0].Database)
}

func TestRun_TelegramAlertsOnlyWhenNeeded(t *testing.T) {
	f := newFixture()
	f.oracle.collectFunc = func(ctx context.Context, cfg models.OracleConfig) ([]models.TablespaceStat, error) {
		return []models.TablespaceStat{{Name: "USERS", PercentUsed: 10, FreeKB: 4096}}, nil
	}
	cfg := minimalConfig()
	cfg.Telegram = &models.TelegramConfig{BotToken: "t", ChatID: "c"}

	_, err := f.runner.Run(context.Background(), cfg, io.Discard)

	require.NoError(t, err)
	assert.Empty(t, f.telegram.sent)
}

func TestRun_TelegramAlertCarriesWarningsAndCriticals(t *testing.T) {
	f := newFixture()
	cfg := minimalConfig()
	cfg.Thresholds.MinFreeMB = 1
	cfg.Telegram = &models.TelegramConfig{BotToken: "t", ChatID: "c"}

	_, err := f.runner.Run(context.Background(), cfg, io.Discard)

	require.NoError(t, err)
	require.Len(t, f.telegram.sent, 1)
	msg := f.telegram.sent[0]
	assert.True(t, msg.LowSpace)
	assert.Equal(t, 1.0, msg.MinFreeMB)
	require.Len(t, msg.Alerts, 2)
	assert.Equal(t, "A", msg.Alerts[0].Stat.Name)
	assert.Equal(t, "B", msg.Alerts[1].Stat.Name)
}

func TestRun_TelegramFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture()
	f.telegram.sendFunc = func(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) (*models.TelegramResult, error) {
		return &models.TelegramResult{Error: errors.New("telegram API returned status 401")}, nil
	}
	cfg := minimalConfig()
	cfg.Telegram = &models.TelegramConfig{BotToken: "t", ChatID: "c"}

	result, err := f.runner.Run(context.Background(), cfg, io.Discard)

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}

func TestRun_MetricsExported(t *testing.T) {
	f := newFixture()
	var gotPath, gotDatabase string
	var gotExit int
	f.metrics.exportFunc = func(path string, database string, result *models.RunResult) error {
		gotPath = path
		gotDatabase = database
		gotExit = result.ExitCode
		return nil
	}
	cfg := minimalConfig()
	cfg.MetricsFile = "/tmp/oracle.prom"
	cfg.Thresholds.MinFreeMB = 1

	_, err := f.runner.Run(context.Background(), cfg, io.Discard)

	require.NoError(t, err)
	assert.Equal(t, 1, f.metrics.exported)
	assert.Equal(t, "/tmp/oracle.prom", gotPath)
	assert.Equal(t, "db1:1521/ORCL", gotDatabase)
	assert.Equal(t, 1, gotExit)
}

func TestRun_MetricsFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.metrics.exportFunc = func(path string, database string, result *models.RunResult) error {
		return errors.New("read-only file system")
	}
	cfg := minimalConfig()
	cfg.MetricsFile = "/ro/oracle.prom"

	result, err := f.runner.Run(context.Background(), cfg, io.Discard)

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}

func TestRun_WriteFailure(t *testing.T) {
	f := newFixture()

	_, err := f.runner.Run(context.Background(), minimalConfig(), failingWriter{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing report")
}

func TestEvaluate_UsesSSHTunnel(t *testing.T) {
	f := newFixture()
	closed := false
	var remoteHost string
	var remotePort int
	var tunnelTimeout time.Duration
	f.ssh.openFunc = func(ctx context.Context, cfg models.SSHTunnelConfig, host string, port int) (*models.SSHTunnel, error) {
		remoteHost, remotePort = host, port
		tunnelTimeout = cfg.Timeout
		return &models.SSHTunnel{
			LocalHost: "127.0.0.1",
			LocalPort: 41521,
			Close: func() error {
				closed = true
				return nil
			},
		}, nil
	}
	var collectedCfg models.OracleConfig
	f.oracle.collectFunc = func(ctx context.Context, cfg models.OracleConfig) ([]models.TablespaceStat, error) {
		collectedCfg = cfg
		assert.False(t, closed, "tunnel closed before query")
		return scenarioRows(), nil
	}

	cfg := minimalConfig()
	cfg.Oracle.Timeout = 7 * time.Second
	cfg.SSHTunnel = &models.SSHTunnelConfig{Host: "bastion", Port: 22, Username: "jump", KeyPath: "/key"}

	result, err := f.runner.Evaluate(context.Background(), cfg)

	require.NoError(t, err)
	assert.Len(t, result.Lines, 2)
	assert.Equal(t, "db1", remoteHost)
	assert.Equal(t, 1521, remotePort)
	assert.Equal(t, 7*time.Second, tunnelTimeout)
	assert.Equal(t, "127.0.0.1", collectedCfg.Host)
	assert.Equal(t, 41521, collectedCfg.Port)
	assert.Equal(t, "ORCL", collectedCfg.ServiceName)
	assert.True(t, closed)
}

func TestEvaluate_SSHTunnelFailure(t *testing.T) {
	f := newFixture()
	f.ssh.openFunc = func(ctx context.Context, cfg models.SSHTunnelConfig, host string, port int) (*models.SSHTunnel, error) {
		return nil, errors.New("failed to connect to bastion:22: connection refused")
	}
	collected := false
	f.oracle.collectFunc = func(ctx context.Context, cfg models.OracleConfig) ([]models.TablespaceStat, error) {
		collected = true
		return nil, nil
	}

	cfg := minimalConfig()
	cfg.SSHTunnel = &models.SSHTunnelConfig{Host: "bastion", Port: 22}

	_, err := f.runner.Evaluate(context.Background(), cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConnection)
	assert.False(t, collected)
}

func TestDatabaseLabel(t *testing.T) {
	assert.Equal(t, "db1:1521/ORCL", DatabaseLabel(models.OracleConfig{Host: "db1", Port: 1521, ServiceName: "ORCL"}))
	assert.Equal(t, "[::1]:1521/ORCL", DatabaseLabel(models.OracleConfig{Host: "::1", Port: 1521, ServiceName: "ORCL"}))
}
