package main

import (
	"os"
	"strings"

	"github.com/fgeck/check-oracle-tbs/internal/config"
	"github.com/fgeck/check-oracle-tbs/internal/models"
	"github.com/fgeck/check-oracle-tbs/internal/services/reporter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool

	// exitCode is the status reported by a successful check.
	exitCode = reporter.ExitOK
)

var rootCmd = &cobra.Command{
	Use:   "check-oracle-tbs",
	Short: "Nagios-style probe for Oracle tablespace usage",
	Long: `check-oracle-tbs queries Oracle tablespace allocation and free space,
compares usage against warning and critical thresholds and reports:
  - one line per WARNING or CRITICAL tablespace
  - the remaining free space over all checked tablespaces
  - exit code 1 when the free space falls to or below --min-space

Parameters can be given as flags, CHECK_ORACLE_TBS_* environment variables
or a YAML file passed with --config.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(tablespacesCmd)
}

// addCheckFlags registers the connection and threshold flags on fs.
func addCheckFlags(fs *pflag.FlagSet) {
	fs.String("db-host", "", "Oracle host (required)")
	fs.Int("db-port", 0, "Oracle listener port (required)")
	fs.String("db-user", "", "Oracle user (required)")
	fs.String("db-password", "", "Oracle password (required)")
	fs.String("db-service-name", "", "Oracle service name (required)")
	fs.Duration("timeout", config.DefaultTimeout, "bound for connecting and querying")
	fs.StringP("exclude", "e", "", "regex for tablespace exclusion, matched from the start of the name (example: -e 'UNDOTBS[0-9]')")
	fs.Float64P("warning", "w", config.DefaultWarningPercent, "usage percent for warning")
	fs.Float64P("critical", "c", config.DefaultCriticalPercent, "usage percent for critical")
	fs.Bool("skip-autoextensible", false, "do not report WARNING/CRITICAL for autoextensible tablespaces")
	fs.Float64("min-space", 0, "exit 1 if the remaining free space in Mb is less than or equal to this value")

	// Accept underscore spellings such as --db_host.
	fs.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
}

// loadConfig resolves and validates the configuration for cmd.
func loadConfig(cmd *cobra.Command) (*models.CheckConfig, error) {
	parser := config.NewParser()
	if err := parser.BindFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	var (
		cfg *models.CheckConfig
		err error
	)
	if configFile != "" {
		cfg, err = parser.LoadFile(configFile)
	} else {
		cfg, err = parser.Load()
	}
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}

	return cfg, nil
}

func setupLogging() {
	// Logs go to stderr; stdout carries the plugin output.
	if jsonOutput {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		reporter.Error(os.Stdout, err)
		return reporter.ExitAlert
	}
	return exitCode
}
