// Package config resolves probe parameters from flags, environment and an
// optional configuration file.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/fgeck/check-oracle-tbs/internal/models"
	"github.com/fgeck/check-oracle-tbs/internal/services/classifier"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// EnvPrefix is prepended to every environment variable, e.g. CHECK_ORACLE_TBS_DB_PASSWORD.
const EnvPrefix = "CHECK_ORACLE_TBS"

// Default thresholds.
const (
	DefaultWarningPercent  = 85.0
	DefaultCriticalPercent = 95.0
	DefaultTimeout         = 30 * time.Second
)

// Configuration keys.
const (
	KeyDBHost             = "db.host"
	KeyDBPort             = "db.port"
	KeyDBUser             = "db.user"
	KeyDBPassword         = "db.password"
	KeyDBServiceName      = "db.service_name"
	KeyTimeout            = "db.timeout"
	KeyExclude            = "thresholds.exclude"
	KeyWarning            = "thresholds.warning"
	KeyCritical           = "thresholds.critical"
	KeySkipAutoextensible = "thresholds.skip_autoextensible"
	KeyMinSpace           = "thresholds.min_space"
	KeyMetricsFile        = "metrics_file"
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"db-host":             KeyDBHost,
	"db-port":             KeyDBPort,
	"db-user":             KeyDBUser,
	"db-password":         KeyDBPassword,
	"db-service-name":     KeyDBServiceName,
	"timeout":             KeyTimeout,
	"exclude":             KeyExclude,
	"warning":             KeyWarning,
	"critical":            KeyCritical,
	"skip-autoextensible": KeySkipAutoextensible,
	"min-space":           KeyMinSpace,
	"metrics-file":        KeyMetricsFile,
}

var envReplacer = strings.NewReplacer(".", "_", "-", "_")

// Parser handles configuration parsing.
type Parser struct {
	v     *viper.Viper
	flags map[string]*pflag.Flag
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	v.SetDefault(KeyWarning, DefaultWarningPercent)
	v.SetDefault(KeyCritical, DefaultCriticalPercent)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeySkipAutoextensible, false)
	v.SetDefault(KeyMinSpace, 0.0)

	return &Parser{v: v, flags: map[string]*pflag.Flag{}}
}

// BindFlags binds the known flags present in fs. Flags take precedence over
// environment variables and the configuration file once they are set.
func (p *Parser) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := p.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
		p.flags[key] = flag
	}
	return nil
}

// Load resolves the configuration from flags and environment only.
func (p *Parser) Load() (*models.CheckConfig, error) {
	return p.parse()
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.CheckConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading config file: %w", models.ErrConfig, err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.CheckConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("%w: reading config: %w", models.ErrConfig, err)
	}

	return p.parse()
}

//nolint:gocognit,gocyclo // parsing config requires checking many fields
func (p *Parser) parse() (*models.CheckConfig, error) {
	cfg := &models.CheckConfig{}
	var errs error

	// Parse connection parameters (required).
	cfg.Oracle = models.OracleConfig{
		Host:        p.v.GetString(KeyDBHost),
		Port:        p.v.GetInt(KeyDBPort),
		Username:    p.fileString(KeyDBUser),
		Password:    p.fileString(KeyDBPassword),
		ServiceName: p.v.GetString(KeyDBServiceName),
		Timeout:     p.v.GetDuration(KeyTimeout),
	}

	if cfg.Oracle.Host == "" {
		errs = multierr.Append(errs, fmt.Errorf("db-host is required"))
	}
	if cfg.Oracle.Port == 0 {
		errs = multierr.Append(errs, fmt.Errorf("db-port is required"))
	}
	if cfg.Oracle.Username == "" {
		errs = multierr.Append(errs, fmt.Errorf("db-user is required"))
	}
	if cfg.Oracle.Password == "" {
		errs = multierr.Append(errs, fmt.Errorf("db-password is required"))
	}
	if cfg.Oracle.ServiceName == "" {
		errs = multierr.Append(errs, fmt.Errorf("db-service-name is required"))
	}
	if cfg.Oracle.Timeout <= 0 {
		cfg.Oracle.Timeout = DefaultTimeout
	}

	// Parse thresholds.
	cfg.Thresholds = models.ThresholdConfig{
		WarningPercent:     p.v.GetFloat64(KeyWarning),
		CriticalPercent:    p.v.GetFloat64(KeyCritical),
		SkipAutoextensible: p.v.GetBool(KeySkipAutoextensible),
		MinFreeMB:          p.v.GetFloat64(KeyMinSpace),
	}

	pattern, err := classifier.CompileExclude(p.v.GetString(KeyExclude))
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	cfg.Thresholds.ExcludePattern = pattern

	cfg.MetricsFile = p.fileString(KeyMetricsFile)

	// Parse optional SSH tunnel config.
	if p.v.IsSet("ssh_tunnel") { //nolint:nestif // config parsing with defaults
		cfg.SSHTunnel = &models.SSHTunnelConfig{
			Host:           p.v.GetString("ssh_tunnel.host"),
			Port:           p.v.GetInt("ssh_tunnel.port"),
			Username:       p.v.GetString("ssh_tunnel.username"),
			KeyPath:        p.fileString("ssh_tunnel.key_path"),
			KnownHostsPath: p.fileString("ssh_tunnel.known_hosts"),
		}

		if cfg.SSHTunnel.Host == "" {
			errs = multierr.Append(errs, fmt.Errorf("ssh_tunnel.host is required when ssh_tunnel is configured"))
		}
		if cfg.SSHTunnel.Port == 0 {
			cfg.SSHTunnel.Port = 22
		}
		if cfg.SSHTunnel.Username == "" {
			cfg.SSHTunnel.Username = "oracle"
		}
		if cfg.SSHTunnel.KeyPath == "" {
			errs = multierr.Append(errs, fmt.Errorf("ssh_tunnel.key_path is required when ssh_tunnel is configured"))
		}
	}

	// Parse optional Telegram config.
	if p.v.IsSet("telegram") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken:   p.fileString("telegram.bot_token"),
			ChatID:     p.fileString("telegram.chat_id"),
			NotifyOnOK: p.v.GetBool("telegram.notify_on_ok"),
		}

		if cfg.Telegram.BotToken == "" {
			errs = multierr.Append(errs, fmt.Errorf("telegram.bot_token is required when telegram is configured"))
		}
		if cfg.Telegram.ChatID == "" {
			errs = multierr.Append(errs, fmt.Errorf("telegram.chat_id is required when telegram is configured"))
		}
	}

	if errs != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConfig, errs)
	}

	return cfg, nil
}

// fileString returns the value for key. Environment references (${VAR} or
// $VAR) are expanded only when the value was read from the config file;
// flag and environment values are used verbatim.
func (p *Parser) fileString(key string) string {
	value := p.v.GetString(key)
	if !p.fromFile(key) {
		return value
	}
	return os.ExpandEnv(value)
}

// fromFile reports whether the resolved value of key comes from the config file.
func (p *Parser) fromFile(key string) bool {
	if !p.v.InConfig(key) {
		return false
	}
	if flag, ok := p.flags[key]; ok && flag.Changed {
		return false
	}
	if _, ok := os.LookupEnv(envName(key)); ok {
		return false
	}
	return true
}

// envName returns the environment variable viper consults for key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(envReplacer.Replace(key))
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.CheckConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", models.ErrConfig)
	}

	var errs error
	t := cfg.Thresholds

	if t.WarningPercent < 0 || math.IsNaN(t.WarningPercent) {
		errs = multierr.Append(errs, fmt.Errorf("warning must be a non-negative number, got %.2f", t.WarningPercent))
	}
	if t.CriticalPercent < 0 || math.IsNaN(t.CriticalPercent) {
		errs = multierr.Append(errs, fmt.Errorf("critical must be a non-negative number, got %.2f", t.CriticalPercent))
	}
	if cfg.Oracle.Port < 0 || cfg.Oracle.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("db-port must be between 1 and 65535, got %d", cfg.Oracle.Port))
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", models.ErrConfig, errs)
	}
	return nil
}
