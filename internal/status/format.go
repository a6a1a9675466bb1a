package status

import (
	"fmt"
	"strings"
	"time"
)

// FormatOptions controls output formatting.
type FormatOptions struct {
	NoColor bool
	// Verbose prints messages of passing tests too.
	Verbose bool
}

// FormatEntry formats a single test line, followed by its message if any.
func FormatEntry(e Entry, opts FormatOptions) string {
	var b strings.Builder

	st := e.Outcome.Status
	b.WriteString(fmt.Sprintf("%s%s %-9s%s %s (%s)",
		getColor(st.Color(), opts.NoColor), getStatusIcon(st), st, resetColor(opts.NoColor),
		e.Name, formatDuration(e.Duration)))

	if e.Outcome.Message != "" && (opts.Verbose || !st.Passed()) {
		for _, line := range strings.Split(strings.TrimRight(e.Outcome.Message, "\n"), "\n") {
			b.WriteString("\n    ")
			b.WriteString(line)
		}
	}

	return b.String()
}

// FormatReport formats every entry followed by a summary line.
func FormatReport(entries []Entry, opts FormatOptions) string {
	var b strings.Builder

	for _, e := range entries {
		b.WriteString(FormatEntry(e, opts))
		b.WriteString("\n")
	}
	if len(entries) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(FormatSummary(Summarize(entries), opts))
	b.WriteString("\n")

	return b.String()
}

// FormatSummary formats the per-status counts of a run.
func FormatSummary(s Summary, opts FormatOptions) string {
	parts := []string{}
	for _, st := range All {
		n := s.Count(st)
		if n == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s%d %s%s",
			getColor(st.Color(), opts.NoColor), n, strings.ToLower(st.String()), resetColor(opts.NoColor)))
	}
	if len(parts) == 0 {
		return "No tests run"
	}
	return fmt.Sprintf("%d test(s): %s", s.Total, strings.Join(parts, ", "))
}

// Formatting helpers

func getStatusIcon(st Status) string {
	switch st {
	case OK:
		return "✓"
	case Wrong:
		return "✗"
	case GUIWrong:
		return "◐"
	case Crashed:
		return "■"
	case Skipped:
		return "⊘"
	default:
		return "?"
	}
}

// Colorize wraps text in the ANSI color of the status.
func Colorize(st Status, text string, noColor bool) string {
	return getColor(st.Color(), noColor) + text + resetColor(noColor)
}

func getColor(name string, noColor bool) string {
	if noColor {
		return ""
	}

	switch name {
	case "red":
		return "\033[31m"
	case "green":
		return "\033[32m"
	case "yellow":
		return "\033[33m"
	default:
		return ""
	}
}

func resetColor(noColor bool) string {
	if noColor {
		return ""
	}
	return "\033[0m"
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
