package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "goalbot/pkg/logx"
)

func TestNewRejectsBadTimezone(t *testing.T) {
	if _, err := New(Config{Timezone: "Mars/Olympus"}, logx.Nop()); err == nil {
		t.Fatalf("bad timezone accepted")
	}
}

func TestNewDefaultsToUTC(t *testing.T) {
	s, err := New(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Location() != time.UTC {
		t.Fatalf("Location = %v, want UTC", s.Location())
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s, _ := New(Config{}, logx.Nop())
	s.Add("bad", "not a cron spec", func(ctx context.Context) {})
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("invalid spec accepted")
	}
}

func TestJobRunsAndStops(t *testing.T) {
	s, _ := New(Config{}, logx.Nop())

	var runs atomic.Int32
	s.Add("tick", "@every 10ms", func(ctx context.Context) { runs.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("job never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	s.Stop(stopCtx)

	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("job still running after Stop")
	}
}

func TestJobPanicIsContained(t *testing.T) {
	s, _ := New(Config{}, logx.Nop())

	var survived atomic.Bool
	s.Add("boom", "@every 10ms", func(ctx context.Context) { panic("boom") })
	s.Add("ok", "@every 10ms", func(ctx context.Context) { survived.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		s.Stop(stopCtx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !survived.Load() {
		if time.Now().After(deadline) {
			t.Fatalf("sibling job starved by panicking job")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
