package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/medbliss/medbliss/internal/config"
	"github.com/medbliss/medbliss/internal/domain/catalog"
	"github.com/medbliss/medbliss/internal/platform/auth"
	"github.com/medbliss/medbliss/internal/platform/db"
	"github.com/medbliss/medbliss/internal/platform/sandbox"
	"github.com/medbliss/medbliss/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medbliss-server",
		Short: "MedBliss lab test booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// migrationSource returns dir when set, otherwise the embedded schema.
func migrationSource(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run Postgres migrations",
	}
	cmd.PersistentFlags().String("dir", "", "Read migrations from this directory instead of the embedded set")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("migration status: %w", err)
				}
				return printMigrations(cmd, statuses)
			})
		},
	})

	return cmd
}

// withMigrator connects to DATABASE_URL and hands fn a migrator over the
// embedded schema or the --dir override.
func withMigrator(cmd *cobra.Command, fn func(context.Context, *db.Migrator) error) error {
	dir, _ := cmd.Flags().GetString("dir")
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, migrationSource(dir)))
}

func printMigrations(cmd *cobra.Command, statuses []db.MigrationStatus) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		state, at := "pending", ""
		if s.Applied {
			state = "applied"
			if s.Modified {
				state = "modified"
			}
			at = s.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, s.Name, state, at)
	}
	return w.Flush()
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the test and package catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			kindFlag, _ := cmd.Flags().GetString("kind")
			kinds := []catalog.Kind{catalog.KindTest, catalog.KindPackage}
			if kindFlag != "" {
				k, err := catalog.ParseKind(kindFlag)
				if err != nil {
					return err
				}
				kinds = []catalog.Kind{k}
			}
			return printCatalog(cmd, catalog.Default(), kinds)
		},
	}
	cmd.Flags().String("kind", "", "Only print tests or packages")
	return cmd
}

func printCatalog(cmd *cobra.Command, cat *catalog.Catalog, kinds []catalog.Kind) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tID\tNAME\tCATEGORY\tPRICE\tMRP")
	for _, kind := range kinds {
		for _, item := range cat.All(kind) {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%d\n",
				kind, item.ID, item.Name, item.Category, item.Price, item.OriginalPrice)
		}
	}
	return w.Flush()
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed session token, e.g. for operators",
		RunE: func(cmd *cobra.Command, args []string) error {
			roles, _ := cmd.Flags().GetStringSlice("role")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.SigningKey()) == 0 {
				return errors.New("SESSION_SIGNING_KEY is required to sign tokens")
			}

			sess, err := auth.NewSessionIssuer(jwtConfig(cfg), cfg.SessionTTL).Issue(roles...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session: %s\nexpires: %s\ntoken:   %s\n",
				sess.SessionID, sess.ExpiresAt.Format("2006-01-02 15:04:05"), sess.Token)
			return nil
		},
	}
	cmd.Flags().StringSlice("role", []string{"customer"}, "Roles to grant")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate demo sessions, profiles and bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			seedCfg := sandbox.DefaultSeedConfig()
			seedCfg.Sessions, _ = cmd.Flags().GetInt("sessions")
			seedCfg.BookingsPerSession, _ = cmd.Flags().GetInt("bookings")
			seedCfg.SessionPrefix, _ = cmd.Flags().GetString("prefix")
			seedCfg.Seed, _ = cmd.Flags().GetInt64("seed")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StorageBackend == config.BackendMemory {
				return errors.New("seeding the memory backend has no lasting effect; set STORAGE_BACKEND to bolt or postgres")
			}
			return runSeed(cmd, cfg, seedCfg)
		},
	}
	cmd.Flags().Int("sessions", 5, "Number of demo sessions")
	cmd.Flags().Int("bookings", 2, "Confirmed bookings per session")
	cmd.Flags().String("prefix", "demo", "Session ID prefix")
	cmd.Flags().Int64("seed", 0, "Random seed; 0 picks one from the clock")
	return cmd
}

func runSeed(cmd *cobra.Command, cfg *config.Config, seedCfg sandbox.SeedConfig) error {
	logger, logCloser := newLogger(cfg)
	defer logCloser.Close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	a, err := newApp(ctx, cfg, logger, store)
	if err != nil {
		return err
	}
	res, err := a.seeder.Run(ctx, seedCfg)
	a.bus.Wait()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d session(s): %d booking(s), %d family member(s), revenue %d.\n",
		len(res.SessionIDs), res.Bookings, res.FamilyMembers, res.Revenue)
	return nil
}
