package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "goalbot/pkg/logx"
)

func TestGoRecordsFirstError(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))

	wantErr := errors.New("boom")
	s.Go("worker", func(ctx context.Context) error { return wantErr })

	waitForErr(t, s)
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Err(); !errors.Is(err, wantErr) {
		t.Fatalf("Err = %v, want wrapped boom", err)
	}
}

func waitForErr(t *testing.T, s *Supervisor) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Err() == nil {
		if time.Now().After(deadline) {
			t.Fatalf("no error recorded")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGoRecoversPanic(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("panicky", func(ctx context.Context) error { panic("oops") })

	waitForErr(t, s)
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Err() == nil {
		t.Fatalf("panic not recorded as error")
	}
}

func TestCancelOnError(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()), WithCancelOnError(true))

	s.Go("failing", func(ctx context.Context) error { return errors.New("fail") })
	s.Go("waiting", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v (waiting goroutine not released)", err)
	}
}

func TestStopHonorsDeadline(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("stuck", func(ctx context.Context) error {
		time.Sleep(5 * time.Second)
		return nil
	})

	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Stop(stopCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop = %v, want deadline exceeded", err)
	}
}

func TestContextErrSuppressedOnShutdown(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("watcher", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err() // shutdown-induced; must not count as failure
	})

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("shutdown error recorded as failure: %v", err)
	}
}
