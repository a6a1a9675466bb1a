package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wfharness/wst/internal/history"
	"github.com/wfharness/wst/internal/status"
)

var (
	historyDB      string
	historyLimit   int
	historyTest    string
	historyJSON    bool
	historyNoColor bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded test outcomes",
	Long: `Show outcomes recorded by 'wst run --db'.

Without --test, prints every result of the most recent runs. With --test,
prints the latest outcomes of that one test.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyDB, "db", "", "history database (default from config)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 5, "number of runs (or results with --test)")
	historyCmd.Flags().StringVar(&historyTest, "test", "", "show only this test")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	historyCmd.Flags().BoolVar(&historyNoColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, baseDir, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		cfg.History.Database = historyDB
	}
	dbPath := cfg.HistoryPath(baseDir)
	if dbPath == "" {
		return commandError("no history database", fmt.Errorf("set [history] database in the config or pass --db"))
	}
	if historyLimit < 1 {
		return commandError("invalid --limit", fmt.Errorf("%d is not positive", historyLimit))
	}

	store, err := history.Open(dbPath)
	if err != nil {
		return commandError("opening history", err)
	}
	defer store.Close()

	ctx := context.Background()
	var records []history.Record
	if historyTest != "" {
		records, err = store.TestHistory(ctx, historyTest, historyLimit)
	} else {
		records, err = store.Recent(ctx, historyLimit)
	}
	if err != nil {
		return commandError("reading history", err)
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		if records == nil {
			records = []history.Record{}
		}
		return writeJSON(out, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No history")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRUN\tTEST\tSTATUS\tDURATION\tMESSAGE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Started.Format("2006-01-02 15:04:05"),
			shortID(r.RunID),
			r.Name,
			status.Colorize(r.Outcome.Status, r.Outcome.Status.String(), historyNoColor),
			r.Duration,
			firstLine(r.Outcome.Message),
		)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
