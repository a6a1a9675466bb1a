package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wfharness/wst/internal/runner"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list [dirs...]",
	Short: "List discovered tests",
	Long: `List the tests below the given roots (default: current directory)
with their GUI classification. Include, exclude and GUI filters come from
the config file.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(listCmd)
}

type listedTest struct {
	Name        string   `json:"name"`
	Dir         string   `json:"dir"`
	GUI         bool     `json:"gui"`
	Description string   `json:"description,omitempty"`
	Requires    []string `json:"requires,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}
	tests, err := runner.Discover(roots, cfg.Runner.ScenarioFile, cfg.Runner.Include, cfg.Runner.Exclude)
	if err != nil {
		return commandError("loading tests", err)
	}
	tests = runner.FilterGUI(tests, cfg.Runner.GUI)

	listed := make([]listedTest, len(tests))
	for i, t := range tests {
		listed[i] = listedTest{
			Name:        t.Name,
			Dir:         t.Dir,
			GUI:         t.GUI(),
			Description: t.Script.Description,
			Requires:    t.Script.Requires,
		}
	}

	out := cmd.OutOrStdout()
	if listJSON {
		return writeJSON(out, listed)
	}
	if len(listed) == 0 {
		fmt.Fprintln(out, "No tests found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGUI\tDESCRIPTION")
	for _, t := range listed {
		gui := "no"
		if t.GUI {
			gui = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, gui, t.Description)
	}
	return w.Flush()
}
