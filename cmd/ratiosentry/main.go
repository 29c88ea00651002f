package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/ratiosentry/internal/models"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitOK              = 0
	exitFailure         = 1
	exitInputValidation = 2
	exitEmptyResultSet  = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, models.ErrInputValidation):
		return exitInputValidation
	case errors.Is(err, models.ErrEmptyResultSet):
		return exitEmptyResultSet
	default:
		return exitFailure
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratiosentry",
		Short: "Flag anomalous periods in per-entity ratio series",
		Long: "ratiosentry scores every entity's [0,1] performance series against a rolling,\n" +
			"lagged baseline of its own history, flags outliers beyond a z threshold and\n" +
			"compares the flag rate per category with what chance alone would produce.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	cmd.AddCommand(newRunCmd(), newSynthCmd(), newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ratiosentry %s\n", version)
		},
	}
}
