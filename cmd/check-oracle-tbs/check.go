package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/check-oracle-tbs/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check tablespace usage",
	Long: `Run the tablespace check once:
1. Open an SSH tunnel (if configured)
2. Query tablespace usage and free space
3. Classify every tablespace as OK, WARNING or CRITICAL
4. Print WARNING/CRITICAL lines and the remaining free space
5. Write Prometheus metrics (if --metrics-file is set)
6. Send a Telegram alert (if configured)

Exit code is 1 when the remaining free space is at or below --min-space,
or when the check could not run.`,
	Example: `  check-oracle-tbs check --db-host db1 --db-port 1521 --db-user monitor \
    --db-password secret --db-service-name ORCLPDB1 -e 'UNDOTBS[0-9]' -w 85 -c 95 --min-space 1024`,
	RunE: runCheck,
}

func init() {
	addCheckFlags(checkCmd.Flags())
	checkCmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile")
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Debug().
		Str("config", configFile).
		Str("host", cfg.Oracle.Host).
		Str("service", cfg.Oracle.ServiceName).
		Msg("configuration loaded")

	ctx, cancel := signalContext()
	defer cancel()

	result, err := runner.New(log.Logger).Run(ctx, *cfg, cmd.OutOrStdout())
	if err != nil {
		log.Error().Err(err).Msg("tablespace check failed")
		return err
	}

	exitCode = result.ExitCode
	return nil
}
