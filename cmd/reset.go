package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/casedesk/internal/bus"
)

var (
	confirmReset bool
	resetBusOnly bool
	resetDBOnly  bool
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the database and/or the Redis streams",
	Long: `Reset clears every table in the SQLite database and deletes the Redis
streams casedesk publishes to.

By default both are reset. Use --bus-only or --db-only to pick one.

WARNING: This operation is irreversible and will permanently delete all data.

Examples:
  # Reset both (asks for confirmation)
  casedesk reset

  # Reset with automatic confirmation
  casedesk reset --yes

  # Reset only the database
  casedesk reset --db-only`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&confirmReset, "yes", "y", false, "Automatically confirm reset operation")
	resetCmd.Flags().BoolVar(&resetBusOnly, "bus-only", false, "Reset only the Redis streams")
	resetCmd.Flags().BoolVar(&resetDBOnly, "db-only", false, "Reset only the database")
}

// resetTargets resolves the flag pair; neither flag means both targets.
func resetTargets(busOnly, dbOnly bool) (resetBus, resetDB bool) {
	if !busOnly && !dbOnly {
		return true, true
	}
	return busOnly, dbOnly
}

// confirm reads a y/yes answer from r.
func confirm(w io.Writer, r io.Reader, prompt string) bool {
	fmt.Fprint(w, prompt)
	line, _ := bufio.NewReader(r).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	out := cmd.OutOrStdout()

	doBus, doDB := resetTargets(resetBusOnly, resetDBOnly)
	if doBus && config.Redis.URL == "" {
		if !doDB {
			return fmt.Errorf("no Redis URL configured; nothing to reset")
		}
		doBus = false
	}

	var targets []string
	if doBus {
		targets = append(targets, "Redis streams")
	}
	if doDB {
		targets = append(targets, "SQLite database")
	}
	fmt.Fprintf(out, "This will permanently delete: %s\n", strings.Join(targets, " and "))

	if !confirmReset && !confirm(out, cmd.InOrStdin(), "Are you sure you want to continue? (y/N): ") {
		fmt.Fprintln(out, "Reset operation cancelled.")
		return nil
	}

	if doBus {
		if err := resetStreams(ctx, config.Redis.URL); err != nil {
			if !doDB {
				return fmt.Errorf("failed to reset Redis streams: %w", err)
			}
			fmt.Fprintf(out, "Warning: Failed to reset Redis streams: %v\n", err)
		} else {
			fmt.Fprintln(out, "✓ Redis streams cleared")
		}
	}

	if doDB {
		logger := newLogger(io.Discard, "[reset] ", config.Log.Level)
		st, err := openStore(config, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
		fmt.Fprintln(out, "✓ Database cleared")
	}

	fmt.Fprintln(out, "Reset operation completed successfully!")
	return nil
}

func resetStreams(ctx context.Context, redisURL string) error {
	rb, err := bus.NewRedisBus(redisURL, nil)
	if err != nil {
		return err
	}
	defer rb.Close()
	return rb.Purge(ctx)
}
