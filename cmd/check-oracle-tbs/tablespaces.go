package main

import (
	"fmt"
	"os"

	"github.com/fgeck/check-oracle-tbs/internal/services/reporter"
	"github.com/fgeck/check-oracle-tbs/internal/services/runner"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	outputFormat string
	noColor      bool
)

var tablespacesCmd = &cobra.Command{
	Use:     "tablespaces",
	Aliases: []string{"ls"},
	Short:   "List every tablespace with its classification",
	Long: `Query the database once and print all tablespaces, including OK, skipped and
excluded ones. Intended for interactive use; the exit code only reflects
whether the query succeeded.`,
	RunE: listTablespaces,
}

func init() {
	addCheckFlags(tablespacesCmd.Flags())
	tablespacesCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
	tablespacesCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func listTablespaces(cmd *cobra.Command, args []string) error {
	if outputFormat != "table" && outputFormat != "json" {
		return fmt.Errorf("unknown output format %q", outputFormat)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := runner.New(log.Logger).Evaluate(ctx, *cfg)
	if err != nil {
		log.Error().Err(err).Msg("tablespace query failed")
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		return reporter.JSON(out, result)
	}

	colors := !noColor && isatty.IsTerminal(os.Stdout.Fd())
	reporter.Table(out, result, reporter.TableOptions{Colors: colors})
	return nil
}
