package pipeline

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// FormatReport renders a run report as Telegram HTML.
func FormatReport(r Report, runErr error) string {
	var b strings.Builder

	status := "✅"
	if runErr != nil {
		status = "❌"
	}
	fmt.Fprintf(&b, "%s <b>News run</b> (%s)\n", status, html.EscapeString(r.Selection))
	b.WriteString("━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "📥 Fetched: %d, selected: %d\n", r.Fetched, r.Selected)
	fmt.Fprintf(&b, "🆕 Inserted: %d\n", r.Inserted)
	fmt.Fprintf(&b, "♻️ Updated: %d\n", r.Updated)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "⏭ Skipped: %d\n", r.Skipped)
	}
	if r.Failed > 0 {
		fmt.Fprintf(&b, "⚠️ Failed: %d\n", r.Failed)
	}
	if r.Demoted > 0 {
		fmt.Fprintf(&b, "📉 Demoted from breaking: %d\n", r.Demoted)
	}
	fmt.Fprintf(&b, "⏱ %s\n", r.Duration.Round(time.Second))

	if runErr != nil {
		fmt.Fprintf(&b, "\n<i>%s</i>\n", html.EscapeString(runErr.Error()))
	}
	return b.String()
}
