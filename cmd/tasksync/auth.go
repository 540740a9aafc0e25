package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaekwang-park/tasksync/internal/service"
)

type credentials struct {
	email    string
	password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.email, "email", "", "Account email")
	cmd.Flags().StringVar(&c.password, "password", "", "Account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
}

func newSignUpCmd(opts *rootOptions) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				out, err := a.auth.SignUp(cmd.Context(), service.SignUpInput{Email: creds.email, Password: creds.password})
				if err != nil {
					return err
				}
				if out.Confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "account created")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "account created; a confirmation code was sent by %s\n", out.CodeDelivery)
				return nil
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newConfirmCmd(opts *rootOptions) *cobra.Command {
	var email, code string
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm an account with the emailed code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if err := a.auth.ConfirmSignUp(cmd.Context(), email, code); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "email confirmed; you can log in now")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&code, "code", "", "Confirmation code")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("code")
	return cmd
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				sess, err := a.auth.Login(cmd.Context(), creds.email, creds.password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (owner %s)\n", sess.Email, sess.OwnerID)
				return nil
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and erase local tasks, queue and session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if err := a.auth.Logout(cmd.Context()); err != nil {
					return err
				}
				a.tasks.Forget()
				fmt.Fprintln(cmd.OutOrStdout(), "signed out; local data cleared")
				return nil
			})
		},
	}
}
