package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueueCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and resolve queued mutations",
	}
	cmd.AddCommand(newQueueListCmd(opts))
	cmd.AddCommand(newQueueRetryCmd(opts))
	cmd.AddCommand(newQueueDiscardCmd(opts))
	return cmd
}

func newQueueListCmd(opts *rootOptions) *cobra.Command {
	var abandonedOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued mutations, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, opts, func(a *app, owner string) error {
				list := a.tasks.QueuedEntries
				if abandonedOnly {
					list = a.tasks.AbandonedEntries
				}
				entries, err := list(cmd.Context(), owner)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, faint.Render("queue is empty"))
					return nil
				}
				for _, e := range entries {
					fmt.Fprintln(out, renderEntry(e))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&abandonedOnly, "abandoned", false, "Only show entries that ran out of retries")
	return cmd
}

func newQueueRetryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <entry-id>",
		Short: "Give an abandoned entry a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, opts, func(a *app, owner string) error {
				if err := a.tasks.RetryEntry(cmd.Context(), owner, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueDiscardCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <entry-id>",
		Short: "Drop a queued entry without replaying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, opts, func(a *app, owner string) error {
				if err := a.tasks.DiscardEntry(cmd.Context(), owner, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "discarded %s\n", args[0])
				return nil
			})
		},
	}
}
