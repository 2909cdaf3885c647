package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/casedesk/internal/fixtures"
)

var (
	seedFile  string
	seedForce bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed sample cases and threads into the database",
	Long: `Seed sample cases and client threads into the SQLite database.
This is useful for local testing when the database is empty. Records are
upserted by id, so running seed twice does not duplicate anything.

Examples:
  # Built-in demo records
  casedesk seed

  # Records from a fixture file (JSON object or JSON lines)
  casedesk seed --file ./data/fixtures/firm.jsonl`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedFile, "file", "", "Fixture file to load instead of the built-in sample")
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "Seed even when the database already has cases")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	config := GetConfig()

	logger := newLogger(cmd.OutOrStdout(), "[seed] ", config.Log.Level)
	logger.Println("Seeding sample data...")

	st, err := openStore(config, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if !seedForce && seedFile == "" {
		cases, err := st.ListCases(ctx)
		if err != nil {
			return fmt.Errorf("failed to list cases: %w", err)
		}
		if len(cases) > 0 {
			logger.Printf("Database already has %d cases; use --force to seed anyway", len(cases))
			return nil
		}
	}

	set, err := seedSet(seedFile, time.Now(), logger)
	if err != nil {
		return err
	}
	n, err := fixtures.Apply(ctx, st, set)
	if err != nil {
		return fmt.Errorf("failed to seed: %w", err)
	}
	logger.Printf("Seeded %d records (%d cases, %d threads)", n, len(set.Cases), len(set.Threads))
	return nil
}

// seedSet returns the records to seed: the file when given, the sample set otherwise.
func seedSet(path string, now time.Time, logger *log.Logger) (fixtures.Set, error) {
	if path == "" {
		return fixtures.Sample(now), nil
	}
	if _, err := os.Stat(path); err != nil {
		return fixtures.Set{}, fmt.Errorf("fixture file: %w", err)
	}
	set, err := fixtures.LoadFile(path)
	if err != nil && set.Len() == 0 {
		return fixtures.Set{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if err != nil {
		logger.Printf("Partial load of %s: %v", path, err)
	}
	return set, nil
}
