package notifier

import (
	"strings"
	"testing"

	"goalbot/internal/tracker"
)

func formatGoalFixture() tracker.Goal {
	return tracker.Goal{
		EventID:     157,
		GameID:      2023020345,
		Scorer:      "Auston Matthews (#34)",
		Assists:     "Mitch Marner (#16), Morgan Rielly (#44)",
		Team:        "TOR",
		AwayTeam:    "TOR",
		HomeTeam:    "BOS",
		PeriodLabel: "2",
		Clock:       "04:12",
		Score:       tracker.Score{Away: 2, Home: 1},
	}
}

func TestFormatGoal(t *testing.T) {
	got := FormatGoal(formatGoalFixture())
	want := "GOAL! \U0001F6A8\n" +
		"TOR vs. BOS\n" +
		"Auston Matthews (#34) (TOR) is the scorer!\n" +
		"Assists: Mitch Marner (#16), Morgan Rielly (#44)\n" +
		"Time: 04:12 - 2\n" +
		"Score: 2 - 1"
	if got != want {
		t.Fatalf("FormatGoal mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatGoalUnassisted(t *testing.T) {
	g := formatGoalFixture()
	g.Assists = ""
	got := FormatGoal(g)
	if strings.Contains(got, "Assists:") {
		t.Fatalf("unassisted goal rendered an assists line:\n%s", got)
	}
}

func TestFormatCorrectionScorerChange(t *testing.T) {
	old := formatGoalFixture()
	cur := formatGoalFixture()
	cur.Scorer = "William Nylander (#88)"
	cur.Assists = "Auston Matthews (#34)"

	got := FormatCorrection(old, cur)
	want := "CORRECTION: Goal now credited to William Nylander (#88) (previously Auston Matthews (#34))\n" +
		"TOR vs. BOS\n" +
		"Assists: Auston Matthews (#34)\n" +
		"Time: 04:12 - 2\n" +
		"Score: 2 - 1"
	if got != want {
		t.Fatalf("FormatCorrection mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatCorrectionAssistsOnly(t *testing.T) {
	old := formatGoalFixture()
	cur := formatGoalFixture()
	cur.Assists = "Mitch Marner (#16)"

	got := FormatCorrection(old, cur)
	if strings.Contains(got, "previously") {
		t.Fatalf("assist-only correction called out a scorer change:\n%s", got)
	}
	if !strings.HasPrefix(got, "CORRECTION: TOR vs. BOS") {
		t.Fatalf("unexpected correction prefix:\n%s", got)
	}
	if !strings.Contains(got, "Assists: Mitch Marner (#16)") {
		t.Fatalf("new assists missing:\n%s", got)
	}
}
