package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	owner      string
}

func main() {
	// Initial logger; commands reconfigure it after config load
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tasksync",
		Short: "Offline-first task list with background sync",
		Long: `tasksync keeps a task list in a local SQLite store, records every change
in a mutation queue and reconciles with a remote store whenever the
network is available.

Configuration comes from environment variables, optionally layered over
a YAML file given with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.owner, "owner", "", "Act as this owner instead of the signed-in account")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newTasksCmd(opts))
	cmd.AddCommand(newQueueCmd(opts))
	cmd.AddCommand(newSignUpCmd(opts))
	cmd.AddCommand(newConfirmCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newLogoutCmd(opts))

	return cmd
}

// withApp opens the engine for one command run and closes it afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app) error) error {
	a, err := openApp(cmd.Context(), opts.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// withOwner is withApp plus owner resolution.
func withOwner(cmd *cobra.Command, opts *rootOptions, fn func(a *app, owner string) error) error {
	return withApp(cmd, opts, func(a *app) error {
		owner, err := a.owner(cmd.Context(), opts.owner)
		if err != nil {
			return err
		}
		return fn(a, owner)
	})
}
