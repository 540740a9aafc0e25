package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push local changes, replay the queue and pull remote changes",
		Long: `Run one sync cycle for the owner.

Pending rows are pushed in batches, queued mutations are replayed with
backoff, and remote rows newer than their local copies replace them.
When the network is down nothing happens and changes stay queued.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, opts, func(a *app, owner string) error {
				report, err := a.tasks.Sync(cmd.Context(), owner)
				fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
				return err
			})
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status for the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, opts, func(a *app, owner string) error {
				st, err := a.tasks.State(cmd.Context(), owner)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Owner: %s\n", owner)
				fmt.Fprintf(out, "Network: %s\n", a.monitor.CurrentStatus(cmd.Context()))
				fmt.Fprintln(out, renderState(st))
				return nil
			})
		},
	}
}
