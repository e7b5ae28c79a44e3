package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"goalbot/internal/tracker"
	logx "goalbot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("driver %q: %v", driver, err)
		}
		if st != nil {
			t.Fatalf("driver %q: expected nil store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}

func TestRecordAndPrune(t *testing.T) {
	path := filepath.Join(t.TempDir(), "announcements.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, KeepDays: 14}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	g := tracker.Goal{
		EventID: 157, GameID: 7,
		Scorer: "Auston Matthews (#34)", Team: "TOR",
		PeriodLabel: "1", Clock: "04:12",
		Score: tracker.Score{Away: 1},
	}
	if err := st.Record(context.Background(), "goal", g, "GOAL!"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	sq := st.(*sqliteStore)
	var count int
	if err := sq.db.QueryRow(`SELECT COUNT(*) FROM announcements`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}

	// Fresh rows survive the prune horizon.
	if n, err := st.Prune(context.Background()); err != nil || n != 0 {
		t.Fatalf("Prune = %d, %v", n, err)
	}

	// Backdate the row past the horizon and prune again.
	old := time.Now().UTC().AddDate(0, 0, -30).Format(time.RFC3339Nano)
	if _, err := sq.db.Exec(`UPDATE announcements SET at = ?`, old); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if n, err := st.Prune(context.Background()); err != nil || n != 1 {
		t.Fatalf("Prune after backdate = %d, %v", n, err)
	}
}
