package health

import (
	"testing"

	logx "goalbot/pkg/logx"
)

func TestResolveAddr(t *testing.T) {
	if got := resolveAddr(Config{Addr: ":9090"}); got != ":9090" {
		t.Fatalf("explicit addr = %q", got)
	}

	t.Setenv("PORT", "3000")
	if got := resolveAddr(Config{}); got != ":3000" {
		t.Fatalf("PORT fallback = %q", got)
	}

	t.Setenv("PORT", "")
	if got := resolveAddr(Config{}); got != ":8080" {
		t.Fatalf("default addr = %q", got)
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	s := New(Config{Enabled: false}, logx.Nop())
	if err := s.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.srv != nil {
		t.Fatalf("disabled service bound a listener")
	}
	if err := s.Stop(t.Context()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
