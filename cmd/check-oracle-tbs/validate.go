package main

import (
	"fmt"

	"github.com/fgeck/check-oracle-tbs/internal/services/runner"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Resolve flags, environment and the configuration file and print the result without connecting to the database.`,
	RunE:  validateConfig,
}

func init() {
	addCheckFlags(validateCmd.Flags())
	validateCmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	// Print configuration summary
	fmt.Fprintln(out, "Configuration is valid!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Database:")
	fmt.Fprintf(out, "  Address: %s\n", runner.DatabaseLabel(cfg.Oracle))
	fmt.Fprintf(out, "  User: %s\n", cfg.Oracle.Username)
	fmt.Fprintf(out, "  Password: (configured)\n")
	fmt.Fprintf(out, "  Timeout: %s\n", cfg.Oracle.Timeout)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Thresholds:")
	fmt.Fprintf(out, "  Warning: %.2f%%\n", cfg.Thresholds.WarningPercent)
	fmt.Fprintf(out, "  Critical: %.2f%%\n", cfg.Thresholds.CriticalPercent)
	if cfg.Thresholds.ExcludePattern != nil {
		fmt.Fprintf(out, "  Exclude: %s\n", cfg.Thresholds.ExcludePattern)
	} else {
		fmt.Fprintf(out, "  Exclude: (none)\n")
	}
	fmt.Fprintf(out, "  Skip autoextensible: %v\n", cfg.Thresholds.SkipAutoextensible)
	if cfg.Thresholds.MinFreeMB > 0 {
		fmt.Fprintf(out, "  Min free space: %.2fMb\n", cfg.Thresholds.MinFreeMB)
	} else {
		fmt.Fprintf(out, "  Min free space: (not enforced)\n")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Optional Features:")
	fmt.Fprintf(out, "  SSH Tunnel: %v\n", cfg.SSHTunnel != nil)
	fmt.Fprintf(out, "  Telegram: %v\n", cfg.Telegram != nil)
	fmt.Fprintf(out, "  Metrics file: %v\n", cfg.MetricsFile != "")

	if cfg.SSHTunnel != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "SSH Tunnel Configuration:")
		fmt.Fprintf(out, "  Host: %s\n", cfg.SSHTunnel.Host)
		fmt.Fprintf(out, "  Port: %d\n", cfg.SSHTunnel.Port)
		fmt.Fprintf(out, "  Username: %s\n", cfg.SSHTunnel.Username)
		fmt.Fprintf(out, "  Host key check: %v\n", cfg.SSHTunnel.KnownHostsPath != "")
	}

	if cfg.Telegram != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Telegram Configuration:")
		fmt.Fprintf(out, "  Chat ID: %s\n", cfg.Telegram.ChatID)
		fmt.Fprintf(out, "  Bot Token: (configured)\n")
		fmt.Fprintf(out, "  Notify on OK: %v\n", cfg.Telegram.NotifyOnOK)
	}

	if cfg.MetricsFile != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Metrics file: %s\n", cfg.MetricsFile)
	}

	return nil
}
