// Package oracle collects tablespace usage statistics from an Oracle database.
package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fgeck/check-oracle-tbs/internal/models"
	"github.com/rs/zerolog"
	goora "github.com/sijms/go-ora/v2"
)

// DriverName is the database/sql driver registered by go-ora.
const DriverName = "oracle"

// DefaultTimeout bounds connect + query when the config leaves it unset.
const DefaultTimeout = 30 * time.Second

// TablespaceQuery returns, per tablespace: name, percent used, free kilobytes
// and whether any of its data files is autoextensible.
const TablespaceQuery = `
SELECT
	b.tablespace_name AS name,
	((b.kbytes_alloc - NVL(a.kbytes_free, 0)) / b.kbytes_alloc) * 100 AS pct_used,
	NVL(a.kbytes_free, 0) AS free_kb,
	NVL(c.autoextensible, 'NO') AS autoextensible
FROM
	(SELECT tablespace_name, SUM(bytes) / 1024 AS kbytes_alloc
	 FROM sys.dba_data_files
	 GROUP BY tablespace_name) b
LEFT JOIN
	(SELECT tablespace_name, SUM(bytes) / 1024 AS kbytes_free
	 FROM sys.dba_free_space
	 GROUP BY tablespace_name) a
	ON a.tablespace_name = b.tablespace_name
LEFT JOIN
	(SELECT tablespace_name, MAX(autoextensible) AS autoextensible
	 FROM sys.dba_data_files
	 WHERE autoextensible = 'YES'
	 GROUP BY tablespace_name) c
	ON c.tablespace_name = b.tablespace_name`

const expectedColumns = 4

// Service defines the interface for collecting tablespace statistics.
type Service interface {
	Collect(ctx context.Context, cfg models.OracleConfig) ([]models.TablespaceStat, error)
}

// DBOpener allows replacing the database handle in tests.
type DBOpener interface {
	Open(dsn string) (*sql.DB, error)
}

// DefaultOpener opens connections through the go-ora driver.
type DefaultOpener struct{}

// Open returns a handle for the given go-ora connection URL.
func (o *DefaultOpener) Open(dsn string) (*sql.DB, error) {
	return sql.Open(DriverName, dsn)
}

// Impl implements the oracle Service interface.
type Impl struct {
	opener DBOpener
	logger zerolog.Logger
}

// New creates a new Oracle collector.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		opener: &DefaultOpener{},
		logger: logger,
	}
}

// NewWithOpener creates a new Oracle collector with a custom opener (for testing).
func NewWithOpener(logger zerolog.Logger, opener DBOpener) *Impl {
	return &Impl{
		opener: opener,
		logger: logger,
	}
}

// BuildDSN returns the go-ora connection URL for cfg.
func BuildDSN(cfg models.OracleConfig) string {
	return goora.BuildUrl(cfg.Host, cfg.Port, cfg.ServiceName, cfg.Username, cfg.Password, nil)
}

// Collect opens one session, runs the tablespace query once and returns its rows.
func (s *Impl) Collect(ctx context.Context, cfg models.OracleConfig) ([]models.TablespaceStat, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Debug().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("service", cfg.ServiceName).
		Str("user", cfg.Username).
		Dur("timeout", timeout).
		Msg("connecting to Oracle")

	start := time.Now()

	db, err := s.opener.Open(BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s:%d/%s: %w", models.ErrConnection, cfg.Host, cfg.Port, cfg.ServiceName, err)
	}
	defer func() { _ = db.Close() }()

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, classify(ctx, models.ErrConnection, fmt.Sprintf("connecting to %s:%d/%s", cfg.Host, cfg.Port, cfg.ServiceName), err)
	}

	stats, err := s.query(ctx, db)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("tablespaces", len(stats)).
		Dur("duration", time.Since(start)).
		Msg("tablespace query completed")

	return stats, nil
}

func (s *Impl) query(ctx context.Context, db *sql.DB) ([]models.TablespaceStat, error) {
	rows, err := db.QueryContext(ctx, TablespaceQuery)
	if err != nil {
		return nil, classify(ctx, models.ErrQuery, "running tablespace query", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, classify(ctx, models.ErrQuery, "reading result columns", err)
	}
	if len(columns) != expectedColumns {
		return nil, fmt.Errorf("%w: expected %d columns, got %d (%s)",
			models.ErrQuery, expectedColumns, len(columns), strings.Join(columns, ", "))
	}

	var stats []models.TablespaceStat
	for rows.Next() {
		var (
			name  string
			pct   sql.NullFloat64
			free  sql.NullFloat64
			autoX sql.NullString
		)
		if err := rows.Scan(&name, &pct, &free, &autoX); err != nil {
			return nil, classify(ctx, models.ErrQuery, "scanning tablespace row", err)
		}

		stat := models.TablespaceStat{
			Name:           name,
			PercentUsed:    pct.Float64,
			FreeKB:         free.Float64,
			Autoextensible: strings.EqualFold(strings.TrimSpace(autoX.String), "YES"),
		}

		s.logger.Debug().
			Str("tablespace", stat.Name).
			Float64("pct_used", stat.PercentUsed).
			Float64("free_kb", stat.FreeKB).
			Bool("autoextensible", stat.Autoextensible).
			Msg("tablespace row")

		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, models.ErrQuery, "iterating tablespace rows", err)
	}

	if len(stats) == 0 {
		return nil, fmt.Errorf("%w: tablespace query returned no rows", models.ErrQuery)
	}

	return stats, nil
}

// classify wraps err with class, or with ErrTimeout when the deadline expired.
func classify(ctx context.Context, class error, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", models.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", class, op, err)
}
