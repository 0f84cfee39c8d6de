// Command margaret runs the publishing platform: a GraphQL API over either
// the in-memory store or postgres.
package main

import (
	"fmt"
	stdlog "log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var verbosity int

	cmd := &cobra.Command{
		Use:           "margaret",
		Short:         "margaret is a social publishing platform API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	cmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0, "log verbosity")

	cmd.AddCommand(
		serveCmd(&configPath, &verbosity),
		migrateCmd(&configPath),
		tokenCmd(&configPath),
	)
	return cmd
}

func newLogger(verbosity int) logr.Logger {
	stdr.SetVerbosity(verbosity)
	return stdr.New(stdlog.New(os.Stderr, "", stdlog.LstdFlags))
}
