package trackerd

import (
	"context"
	"testing"
	"time"

	"agent-coord/pkg/log"
)

func newSweeperLogger(t *testing.T) *log.Logger {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error", Format: "text", Output: "stderr"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return logger
}

func TestSweeper_Sweep_AbandonsOnlyStale(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	stale, _, _ := store.StartSession(ctx, newTestSession("claude-dev-box", now.Add(-2*time.Hour)))
	fresh, _, _ := store.StartSession(ctx, newTestSession("cursor-dev-box", now))

	sweeper := NewSweeper(store, 45*time.Minute, time.Minute, newSweeperLogger(t))
	if got := sweeper.Sweep(ctx); got != 1 {
		t.Fatalf("Sweep abandoned %d sessions, want 1", got)
	}

	if _, err := store.Heartbeat(ctx, stale.ID, now); err != ErrSessionNotActive {
		t.Errorf("stale session should be abandoned, got %v", err)
	}
	if _, err := store.Heartbeat(ctx, fresh.ID, now.Add(time.Minute)); err != nil {
		t.Errorf("fresh session should survive sweep: %v", err)
	}

	// 再扫一遍不应重复放弃
	if got := sweeper.Sweep(ctx); got != 0 {
		t.Errorf("second Sweep abandoned %d sessions, want 0", got)
	}
}

func TestSweeper_StartStop(t *testing.T) {
	store := NewMemoryStore()
	sweeper := NewSweeper(store, 45*time.Minute, 10*time.Millisecond, newSweeperLogger(t))

	sweeper.Start()
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
}

func TestSweeper_StopWithoutStart(t *testing.T) {
	sweeper := NewSweeper(NewMemoryStore(), 45*time.Minute, time.Minute, newSweeperLogger(t))
	// 未启动时 Stop 不应阻塞
	sweeper.Stop()
}
