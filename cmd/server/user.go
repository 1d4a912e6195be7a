package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/store/sqlite"
)

// openAuth opens the configured database and an auth service over it.
func openAuth(opts *rootOptions) (*auth.Service, *sqlite.SQLiteStore, error) {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	svc := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}, cfg.AuthToken)
	return svc, st, nil
}

func newUserCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCmd(opts), newUserListCmd(opts), newUserSetPasswordCmd(opts))
	return cmd
}

func newUserCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		email     string
		password  string
		firstName string
		lastName  string
		role      string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, st, err := openAuth(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			u, err := svc.CreateUser(ctx, email, password, firstName, lastName, auth.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with role %s\n", u.Email, u.ID, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleUser), "user, admin or super-admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, st, err := openAuth(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			users, err := st.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\n", u.ID, u.Email, u.FirstName, u.LastName, u.Role)
			}
			return w.Flush()
		},
	}
}

func newUserSetPasswordCmd(opts *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Replace a user's password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, st, err := openAuth(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := svc.SetPassword(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
