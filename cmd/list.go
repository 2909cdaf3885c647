package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/review"
	"github.com/Ashfaaq98/casedesk/internal/triage"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [cases|threads]",
	Short: "List cases or communication threads",
	Long: `List cases or client threads through the same filter, sort and view
pipeline the TUI uses. This works in any terminal environment and is an
alternative to the TUI when terminal capabilities are limited.

Examples:
  # Cases needing review, most urgent first
  casedesk list cases --filter needs-review

  # Search threads and show them as kanban columns
  casedesk list threads --query lease --view kanban

  # Cases by client name
  casedesk list cases --sort name`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var (
	listType    string
	listQuery   string
	listFilters []string
	listSort    string
	listView    string
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listType, "type", "cases", "What to list: cases, threads")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Case-insensitive text search")
	listCmd.Flags().StringSliceVarP(&listFilters, "filter", "f", nil, "Filter ids, OR-combined (e.g. needs-review,high-priority)")
	listCmd.Flags().StringVar(&listSort, "sort", "priority", "Sort key: priority, name, recency, count")
	listCmd.Flags().StringVar(&listView, "view", "list", "View: list, compact, kanban")
}

// listOptions are the board inputs a list invocation applies.
type listOptions struct {
	Query   string
	Filters []string
	Sort    string
	View    string
}

func (o listOptions) apply(set interface {
	SetQuery(string)
	ToggleFilter(string) bool
	SetSort(triage.SortKey) triage.SortKey
	SetView(triage.ViewMode)
}) {
	set.SetQuery(o.Query)
	for _, f := range o.Filters {
		if f = strings.TrimSpace(f); f != "" {
			set.ToggleFilter(f)
		}
	}
	set.SetSort(triage.SortKey(o.Sort))
	set.SetView(triage.ParseViewMode(o.View))
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()

	logger := newLogger(io.Discard, "[list] ", config.Log.Level)
	st, err := openStore(config, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	target := strings.ToLower(listType)
	if len(args) > 0 {
		target = strings.ToLower(args[0])
	}
	opts := listOptions{Query: listQuery, Filters: listFilters, Sort: listSort, View: listView}
	out := cmd.OutOrStdout()

	switch target {
	case "cases", "case":
		return listCases(ctx, out, st, opts)
	case "threads", "thread", "comms":
		return listThreads(ctx, out, st, opts, time.Now)
	default:
		return fmt.Errorf("unknown list type: %s (use 'cases' or 'threads')", target)
	}
}

func listCases(ctx context.Context, w io.Writer, repo review.Repository, opts listOptions) error {
	cases, err := repo.ListCases(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cases: %w", err)
	}
	board := review.NewBoard(cases)
	opts.apply(board)
	printSnapshot(w, "cases", board.Snapshot(), func(c review.Case) string {
		line := fmt.Sprintf("[%s] %s  %s  %s", strings.ToUpper(c.Priority.String()), c.ClientName, c.CaseNumber, c.Status)
		if c.AssignedTo != "" {
			line += "  @" + c.AssignedTo
		}
		return line
	}, func(c review.Case) string {
		return fmt.Sprintf("%d%% complete, %d documents, last activity %s",
			c.Progress, c.DocumentCount, c.LastActivityAt.Format("2006-01-02 15:04"))
	})
	return nil
}

func listThreads(ctx context.Context, w io.Writer, repo comms.Repository, opts listOptions, now func() time.Time) error {
	threads, err := repo.ListThreads(ctx)
	if err != nil {
		return fmt.Errorf("failed to list threads: %w", err)
	}
	board := comms.NewBoard(threads, now)
	opts.apply(board)
	at := now()
	printSnapshot(w, "threads", board.Snapshot(), func(t comms.Thread) string {
		mark := " "
		if t.NeedsAttention() {
			mark = "!"
		}
		return fmt.Sprintf("%s %s  %s  %s  (%s)", mark, t.ClientName, t.CaseNumber, t.Subject, t.Status)
	}, func(t comms.Thread) string {
		line := fmt.Sprintf("%d messages, last activity %s", t.MessageCount(), t.LastActivityAt.Format("2006-01-02 15:04"))
		if age := t.QueueAge(at); age > 0 {
			line += fmt.Sprintf(", waiting %s", age.Truncate(time.Minute))
		}
		return line
	})
	return nil
}

// printSnapshot writes a board snapshot as text. Kanban views print one
// section per status, including empty ones.
func printSnapshot[T triage.Record](w io.Writer, noun string, snap triage.Snapshot[T], title, detail func(T) string) {
	fmt.Fprintf(w, "Showing %d of %d %s (sort: %s, view: %s)", len(snap.Visible), snap.Total, noun, snap.SortBy, snap.View)
	if snap.Query != "" {
		fmt.Fprintf(w, " query=%q", snap.Query)
	}
	if len(snap.Filters) > 0 {
		fmt.Fprintf(w, " filters=%s", strings.Join(snap.Filters, ","))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	if snap.View == triage.ViewKanban {
		for _, g := range snap.Groups {
			fmt.Fprintf(w, "== %s (%d) ==\n", g.Status, len(g.Records))
			if g.Empty {
				fmt.Fprintf(w, "   %s\n\n", g.Placeholder)
				continue
			}
			for _, r := range g.Records {
				fmt.Fprintf(w, "   %s\n", title(r))
			}
			fmt.Fprintln(w)
		}
		return
	}

	if len(snap.Visible) == 0 {
		fmt.Fprintf(w, "No %s found.\n", noun)
		return
	}
	for i, r := range snap.Visible {
		fmt.Fprintf(w, "%d. %s\n", i+1, title(r))
		if snap.View == triage.ViewCompact {
			continue
		}
		fmt.Fprintf(w, "   ID: %s\n", r.RecordID())
		fmt.Fprintf(w, "   %s\n\n", detail(r))
	}
}
