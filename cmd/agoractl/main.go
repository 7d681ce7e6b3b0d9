// Command agoractl is the operator CLI: seeding, city imports, phase
// transitions, and one-off synchronization runs. It talks to the same
// PostgreSQL instance as the server, not to the server itself.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"agora/internal/accounts"
	"agora/internal/cities"
	"agora/internal/domains"
	"agora/internal/flags"
	"agora/internal/hub"
	"agora/internal/org"
	"agora/internal/phase"
	"agora/internal/platform/config"
	"agora/internal/platform/logger"
	"agora/internal/platform/postgres"
	"agora/internal/resettoken"
	id "agora/pkg/domain"
	"agora/pkg/platform/tx"
)

func main() {
	root := &cobra.Command{
		Use:           "agoractl",
		Short:         "Operator tooling for the agora election platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(seedCmd(), importCitiesCmd(), phaseCmd(), syncCmd(), resetTokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withDB loads config, opens the database and hands both to fn.
func withDB(ctx context.Context, fn func(cfg config.Config, db *sql.DB) error) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(cfg, db)
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the feature-flag catalog and the electoral domain set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(cfg config.Config, db *sql.DB) error {
				log := logger.New(cfg.Debug)
				if err := flags.NewService(flags.NewPostgres(db), flags.WithLogger(log)).Seed(cmd.Context()); err != nil {
					return fmt.Errorf("seed flags: %w", err)
				}
				if err := domains.NewRegistry(domains.NewPostgres(db)).Seed(cmd.Context()); err != nil {
					return fmt.Errorf("seed domains: %w", err)
				}
				fmt.Println("seeded flags and domains")
				return nil
			})
		},
	}
}

func importCitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-cities <file.csv>",
		Short: "Import the County,City reference list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(cfg config.Config, db *sql.DB) error {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				log := logger.New(cfg.Debug)
				res, err := cities.ImportCSV(cmd.Context(), cities.NewPostgres(db), f, log)
				if err != nil {
					return err
				}
				fmt.Printf("imported %d cities, skipped %d unknown-county rows\n",
					res.Imported, res.SkippedCounties)
				return nil
			})
		},
	}
}

func phaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "phase <name>",
		Short: "Apply an election phase (PAUSE, DEACTIVATE, PHASE_1, PHASE_2, PHASE_3, FINAL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := phase.Parse(args[0])
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), func(cfg config.Config, db *sql.DB) error {
				log := logger.New(cfg.Debug)
				flagService := flags.NewService(flags.NewPostgres(db), flags.WithLogger(log))
				controller := phase.NewController(flagService, phase.WithLogger(log))
				if err := controller.Apply(cmd.Context(), p); err != nil {
					return err
				}
				fmt.Printf("applied phase %s\n", p)
				return nil
			})
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <org-id>",
		Short: "Reconcile one organization against the external registry now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := id.ParseOrgID(args[0])
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), func(cfg config.Config, db *sql.DB) error {
				log := logger.New(cfg.Debug)
				roster := accounts.NewService(accounts.NewPostgres(db), accounts.WithLogger(log))
				reconciler := hub.NewReconciler(hub.NewClient(cfg.Hub),
					hub.NewDiskStore(cfg.Hub.FileRoot), org.NewPostgres(db),
					cities.NewPostgres(db), tx.NewSQLRunner(db), roster,
					hub.WithLogger(log))
				res, err := reconciler.Reconcile(cmd.Context(), orgID, "")
				if err != nil {
					return err
				}
				for _, w := range res.Warnings {
					fmt.Println("warning:", w)
				}
				for _, e := range res.Errors {
					fmt.Println("error:", e)
				}
				if res.Clean() {
					fmt.Println("sync clean")
				}
				return nil
			})
		},
	}
}

func resetTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-token <user-id>",
		Short: "Mint a confirmation-reset token for a committee member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := id.ParseUserID(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			fmt.Println(resettoken.Build(userID, time.Now(), cfg.SecretKey))
			return nil
		},
	}
}
