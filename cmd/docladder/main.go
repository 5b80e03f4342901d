package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/docladder/internal/config"
)

// app carries what every subcommand needs once the root has loaded the
// environment.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "docladder",
		Short:         "Extract documents with an escalating ladder of parsers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.Load()
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			a.logger = a.cfg.Log.NewLogger()
			slog.SetDefault(a.logger)
			return nil
		},
	}

	root.AddCommand(parseCmd(a), profilesCmd(), inspectCmd(a))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
