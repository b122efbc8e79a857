package ui

import (
	"fmt"
	"sort"
	"strings"

	"e6pools/pkg/pipeline"
)

// maxListed caps the per-item lines in a summary.
const maxListed = 10

// RenderSummary formats a finished run.
func RenderSummary(r *pipeline.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Pools:"), valueStyle.Render(fmt.Sprintf("%d requested, %d archived", len(r.Requested), r.Archived())))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Media:"), valueStyle.Render(fmt.Sprintf("%d items, %d downloaded, %d cached", r.Items, r.Downloaded, r.Cached)))
	fmt.Fprintf(&b, "%s %s", labelStyle.Render("Time: "), valueStyle.Render(FormatDuration(r.Duration)))

	for _, g := range r.Galleries {
		b.WriteString("\n")
		switch {
		case g.Err != nil:
			fmt.Fprintf(&b, "%s %d %s: %v", errorStyle.Render("✗"), g.ID, g.Name, g.Err)
		case len(g.Missing) > 0:
			fmt.Fprintf(&b, "%s %s %s", warningStyle.Render("!"), g.Archive, dimStyle.Render(fmt.Sprintf("(%d posts, %d missing)", g.Posts, len(g.Missing))))
		default:
			fmt.Fprintf(&b, "%s %s %s", successStyle.Render("✓"), g.Archive, dimStyle.Render(fmt.Sprintf("(%d posts)", g.Posts)))
		}
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "\n%s pool %d skipped: %v", errorStyle.Render("✗"), s.ID, s.Err)
	}

	failed := append([]pipeline.ItemFailure(nil), r.FailedItems...)
	sort.Slice(failed, func(i, j int) bool { return failed[i].PostID < failed[j].PostID })
	for i, f := range failed {
		if i == maxListed {
			fmt.Fprintf(&b, "\n%s", dimStyle.Render(fmt.Sprintf("… and %d more failed items", len(failed)-maxListed)))
			break
		}
		fmt.Fprintf(&b, "\n%s post %d: %v", errorStyle.Render("✗"), f.PostID, f.Err)
	}

	border := success
	if r.Failed() {
		border = danger
	}
	return panelStyle.BorderForeground(border).Render(b.String())
}

// PrintSummary writes the run summary. It is shown even in quiet mode when
// the run had failures.
func PrintSummary(r *pipeline.Report) {
	write(r.Failed(), "%s\n", RenderSummary(r))
}
