package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"ticketdesk/internal/auth"
)

type credentials struct {
	username string
	password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.username, "user", "u", "", "Username (required)")
	cmd.Flags().StringVarP(&c.password, "password", "p", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("password")
}

func newUsersCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Register accounts and check credentials",
	}
	cmd.AddCommand(newUsersRegisterCmd(rt))
	cmd.AddCommand(newUsersLoginCmd(rt))
	cmd.AddCommand(newUsersPasswdCmd(rt))
	return cmd
}

func newUsersRegisterCmd(rt *runtime) *cobra.Command {
	var c credentials
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.open(cmd.Context(), false); err != nil {
				return err
			}
			ok, err := auth.NewService(rt.db).Register(cmd.Context(), c.username, c.password)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("user %q already exists", c.username)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", c.username)
			return nil
		},
	}
	c.bind(cmd)
	return cmd
}

func newUsersLoginCmd(rt *runtime) *cobra.Command {
	var c credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify credentials and print the account role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.open(cmd.Context(), false); err != nil {
				return err
			}
			u, err := rt.authenticate(cmd.Context(), c.username, c.password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", u.Username, u.Role)
			return nil
		},
	}
	c.bind(cmd)
	return cmd
}

func newUsersPasswdCmd(rt *runtime) *cobra.Command {
	var (
		c           credentials
		newPassword string
	)
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.open(cmd.Context(), false); err != nil {
				return err
			}
			ok, err := auth.NewService(rt.db).ChangePassword(cmd.Context(), c.username, c.password, newPassword)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("invalid username or password")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password changed for %s\n", c.username)
			return nil
		},
	}
	c.bind(cmd)
	cmd.Flags().StringVar(&newPassword, "new-password", "", "New password (required)")
	_ = cmd.MarkFlagRequired("new-password")
	return cmd
}
