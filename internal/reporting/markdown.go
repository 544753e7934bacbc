package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Listener Run Report — %s / %s\n\n", r.Version, r.Day))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Volume\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Observations | %d |\n", r.Observations))
	sb.WriteString(fmt.Sprintf("| Accepted Ticks | %d |\n", r.AcceptedTicks))
	sb.WriteString(fmt.Sprintf("| Ordering Violations | %d |\n", r.Violations))
	sb.WriteString("\n")

	if len(r.PairCounts) > 0 {
		sb.WriteString("## Accepted Ticks by Pair\n\n")
		sb.WriteString("| Pair | Accepted |\n")
		sb.WriteString("|------|----------|\n")
		for _, row := range r.PairCounts {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", row.Pair, row.Accepted))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Events by Detector\n\n")
	sb.WriteString("| Detector | Fired |\n")
	sb.WriteString("|----------|-------|\n")
	for _, row := range r.EventCounts {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", row.Event, row.Count))
	}
	sb.WriteString("\n")

	sb.WriteString("## Integrity\n\n")
	sb.WriteString("| Check | Status | Detail |\n")
	sb.WriteString("|-------|--------|--------|\n")
	allPass := true
	for _, c := range r.Integrity {
		status := "FAIL"
		if c.Pass {
			status = "PASS"
		} else {
			allPass = false
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", c.Name, status, c.Detail))
	}
	sb.WriteString("\n")
	if allPass {
		sb.WriteString("**All integrity checks passed.**\n")
	} else {
		sb.WriteString("**Some integrity checks failed.** Investigate before trusting this run's data.\n")
	}

	return sb.String()
}
