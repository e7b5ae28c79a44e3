package notifier

import (
	"fmt"
	"strings"

	"goalbot/internal/tracker"
)

const alertGlyph = "\U0001F6A8" // 🚨

// FormatGoal renders the announcement for a newly confirmed goal.
func FormatGoal(g tracker.Goal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GOAL! %s\n", alertGlyph)
	fmt.Fprintf(&b, "%s vs. %s\n", g.AwayTeam, g.HomeTeam)
	fmt.Fprintf(&b, "%s (%s) is the scorer!", g.Scorer, g.Team)
	if g.Assists != "" {
		fmt.Fprintf(&b, "\nAssists: %s", g.Assists)
	}
	fmt.Fprintf(&b, "\nTime: %s - %s", g.Clock, g.PeriodLabel)
	fmt.Fprintf(&b, "\nScore: %s", g.DisplayScore())
	return b.String()
}

// FormatCorrection renders a correction post. A scorer change is called out
// explicitly; the remaining lines use the new goal's values.
func FormatCorrection(old, cur tracker.Goal) string {
	var b strings.Builder
	b.WriteString("CORRECTION: ")
	if cur.Scorer != old.Scorer {
		fmt.Fprintf(&b, "Goal now credited to %s (previously %s)\n", cur.Scorer, old.Scorer)
	}
	fmt.Fprintf(&b, "%s vs. %s", cur.AwayTeam, cur.HomeTeam)
	if cur.Assists != "" {
		fmt.Fprintf(&b, "\nAssists: %s", cur.Assists)
	}
	fmt.Fprintf(&b, "\nTime: %s - %s", cur.Clock, cur.PeriodLabel)
	fmt.Fprintf(&b, "\nScore: %s", cur.DisplayScore())
	return b.String()
}
