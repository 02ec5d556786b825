package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"blocks/internal/core"
	"blocks/internal/storage"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	if config.Interval != 15*time.Minute {
		t.Errorf("expected Interval 15m, got %v", config.Interval)
	}
	if !config.RunOnStart {
		t.Error("expected RunOnStart to default to true")
	}
}

func TestNewSchedulerFillsInterval(t *testing.T) {
	s := NewScheduler(nil, SchedulerConfig{})
	if s.config.Interval != DefaultSchedulerConfig().Interval {
		t.Errorf("expected default interval, got %v", s.config.Interval)
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running initially")
	}
}

func TestSchedulerRunOnceOrder(t *testing.T) {
	store := storage.NewMemoryStore(storage.Snapshot{})
	o := NewOrchestrator(store, &fakeSource{categories: categoriesDoc, transactions: transactionsDoc}, nil)
	s := NewScheduler(o, DefaultSchedulerConfig())

	outcomes := s.RunOnce(context.Background())
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Kind != core.KindCategories || outcomes[1].Kind != core.KindTransactions {
		t.Fatalf("unexpected order %v, %v", outcomes[0].Kind, outcomes[1].Kind)
	}
	for _, out := range outcomes {
		if out.Err != nil {
			t.Fatalf("unexpected error: %v", out.Err)
		}
	}
}

func TestSchedulerStartStop(t *testing.T) {
	o := NewOrchestrator(storage.NewMemoryStore(storage.Snapshot{}), &fakeSource{categories: `[]`, transactions: `{"Categories": []}`}, nil)

	var mu sync.Mutex
	var seen []core.SyncKind
	got := make(chan struct{}, 8)
	config := SchedulerConfig{
		Interval:   time.Hour,
		RunOnStart: true,
		OnOutcome: func(_ context.Context, out Outcome) {
			mu.Lock()
			seen = append(seen, out.Kind)
			mu.Unlock()
			got <- struct{}{}
		},
	}
	s := NewScheduler(o, config)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second start should fail")
	}
	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for initial round")
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running after stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != core.KindCategories {
		t.Fatalf("unexpected outcomes %v", seen)
	}
}

func TestSchedulerRestartsAfterContextCancel(t *testing.T) {
	o := NewOrchestrator(storage.NewMemoryStore(storage.Snapshot{}), &fakeSource{categories: `[]`, transactions: `{"Categories": []}`}, nil)
	s := NewScheduler(o, SchedulerConfig{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancel()
	s.Wait()
	if s.IsRunning() {
		t.Fatal("scheduler should not be running after its context ended")
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if !s.IsRunning() {
		t.Error("scheduler should be running after restart")
	}
	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
