package main

import (
	"fmt"

	"github.com/bcnelson/seo-insights/internal/seed"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer store.Close()

			version, err := store.MigrationVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database at schema version %d\n", version)
			return nil
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	var cleanupEmail string

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load users and queries from a YAML fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := seed.ParseFile(args[0])
			if err != nil {
				return err
			}

			store, err := a.openStore(ctx, true)
			if err != nil {
				return err
			}
			defer store.Close()

			authService, queries := a.offlineServices(store)
			res, err := seed.NewLoader(authService, queries, a.logger).Load(ctx, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "users: %d created, %d existing\n", res.UsersCreated, res.UsersExisting)
			fmt.Fprintf(out, "queries: %d upserted\n", res.Queries)

			if cleanupEmail != "" {
				n, err := seed.CleanupGroupsForUser(ctx, store, cleanupEmail)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "groups: %d deleted for %s\n", n, cleanupEmail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cleanupEmail, "clean-groups", "", "delete every group owned by this account after loading")
	return cmd
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserCreateCmd(a), newUserResetTokenCmd(a))
	return cmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a password account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer store.Close()

			authService, _ := a.offlineServices(store)
			user, err := authService.CreateUser(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("creating user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// newUserResetTokenCmd issues a reset token without sending mail, for
// operators and end-to-end test runs.
func newUserResetTokenCmd(a *app) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-token",
		Short: "Issue a password reset token and print the link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer store.Close()

			authService, _ := a.offlineServices(store)
			token, link, err := authService.IssueResetToken(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("issuing reset token: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "token: %s\n", token)
			fmt.Fprintf(out, "link:  %s\n", link)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
