package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaekwang-park/tasksync/internal/model"
)

func newTasksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"t"},
		Short:   "Manage the local task list",
	}
	cmd.AddCommand(newTasksListCmd(opts))
	cmd.AddCommand(newTasksAddCmd(opts))
	cmd.AddCommand(newTasksEditCmd(opts))
	cmd.AddCommand(newTasksDoneCmd(opts))
	cmd.AddCommand(newTasksRmCmd(opts))
	return cmd
}

func newTasksListCmd(opts *rootOptions) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, opts, func(a *app, owner string) error {
				if _, err := a.tasks.LoadTasks(cmd.Context(), owner); err != nil {
					return err
				}
				visible, err := a.tasks.SetFilter(owner, model.Filter(filter))
				if err != nil {
					return err
				}
				printTasks(cmd, visible)
				fmt.Fprintln(cmd.OutOrStdout(), renderStats(a.tasks.Stats(owner)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", string(model.FilterAll), "all, active or completed")
	return cmd
}

func newTasksAddCmd(opts *rootOptions) *cobra.Command {
	var description, reminder string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := model.NewTask{
				Title:       strings.Join(args, " "),
				Description: description,
			}
			if reminder != "" {
				at, err := parseReminder(reminder)
				if err != nil {
					return err
				}
				in.ReminderAt = &at
			}
			return withOwner(cmd, opts, func(a *app, owner string) error {
				tasks, err := a.tasks.AddTask(cmd.Context(), owner, in)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTask(tasks[0]))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVar(&reminder, "remind", "", "Reminder time (RFC 3339 or \"2006-01-02 15:04\")")
	return cmd
}

func newTasksEditCmd(opts *rootOptions) *cobra.Command {
	var newTitle, description, reminder string
	var clearReminder bool
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task's title, description or reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.TaskPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &newTitle
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("remind") {
				at, err := parseReminder(reminder)
				if err != nil {
					return err
				}
				patch.ReminderAt = &at
			}
			patch.ClearReminder = clearReminder
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to change: pass --title, --description, --remind or --clear-remind")
			}
			return withOwner(cmd, opts, func(a *app, owner string) error {
				tasks, err := a.tasks.UpdateTask(cmd.Context(), owner, args[0], patch)
				if err != nil {
					return err
				}
				printTask(cmd, tasks, args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&newTitle, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVar(&reminder, "remind", "", "New reminder time")
	cmd.Flags().BoolVar(&clearReminder, "clear-remind", false, "Remove the reminder")
	cmd.MarkFlagsMutuallyExclusive("remind", "clear-remind")
	return cmd
}

func newTasksDoneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task between active and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, opts, func(a *app, owner string) error {
				tasks, err := a.tasks.ToggleComplete(cmd.Context(), owner, args[0])
				if err != nil {
					return err
				}
				printTask(cmd, tasks, args[0])
				return nil
			})
		},
	}
}

func newTasksRmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd, opts, func(a *app, owner string) error {
				if _, err := a.tasks.DeleteTask(cmd.Context(), owner, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func printTasks(cmd *cobra.Command, tasks []model.Task) {
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, faint.Render("no tasks"))
		return
	}
	for _, t := range tasks {
		fmt.Fprintln(out, renderTask(t))
	}
}

func printTask(cmd *cobra.Command, tasks []model.Task, id string) {
	for _, t := range tasks {
		if t.ID == id {
			fmt.Fprintln(cmd.OutOrStdout(), renderTask(t))
			return
		}
	}
}

func parseReminder(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reminder %q: use RFC 3339 or \"2006-01-02 15:04\"", s)
	}
	return t, nil
}
