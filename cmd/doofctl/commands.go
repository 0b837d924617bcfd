package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"doof/internal/app"
	"doof/internal/core/config"
	"doof/internal/core/database"
	"doof/internal/domain"
	"doof/internal/repo"
	"doof/internal/seed"
)

type rootOpts struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	o := &rootOpts{}
	cmd := &cobra.Command{
		Use:           "doofctl",
		Short:         "DOOF operations: migrations, demo data and account management",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "config file (default $CONFIG_PATH or ./configs/config.local.yaml)")

	userCmd := &cobra.Command{Use: "user", Short: "Manage user accounts"}
	userCmd.AddCommand(newPromoteCmd(o))

	cmd.AddCommand(newMigrateCmd(o), newSeedCmd(o), userCmd)
	return cmd
}

func (o *rootOpts) load() (*config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log, cleanup := app.NewLogger(cfg)
	return cfg, log, cleanup, nil
}

func newMigrateCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, cleanup, err := o.load()
			if err != nil {
				return err
			}
			defer cleanup()

			// 迁移由命令显式执行，不依赖 auto_migrate
			cfg.DB.AutoMigrate = false
			db, err := app.OpenDB(cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()
			if err := repo.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo users, restaurants, dishes and a list (safe to re-run)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd.Context(), func(a *app.App) error {
				rep, err := seed.Run(cmd.Context(), seed.Deps{
					Auth:  a.Deps.Auth,
					Bulk:  a.Deps.Bulk,
					Lists: a.Deps.Lists,
					Log:   a.Log,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "users=%d created=%d duplicates=%d list=%s\n",
					rep.Users, rep.Created, rep.Duplicates, rep.ListID)
				return nil
			})
		},
	}
}

func newPromoteCmd(o *rootOpts) *cobra.Command {
	var accountType string
	cmd := &cobra.Command{
		Use:   "promote <email>",
		Short: "Change a user's account type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.ValidRole(accountType) {
				return fmt.Errorf("--type must be user, admin or superuser")
			}
			return o.withApp(cmd.Context(), func(a *app.App) error {
				u, err := a.Deps.Admin.PromoteByEmail(cmd.Context(), args[0], accountType)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Email, u.AccountType)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&accountType, "type", "t", domain.RoleAdmin, "account type: user|admin|superuser")
	return cmd
}

func (o *rootOpts) withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, log, cleanup, err := o.load()
	if err != nil {
		return err
	}
	defer cleanup()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
