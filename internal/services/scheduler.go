package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"blocks/internal/core"
)

// Syncer starts sync passes. It is implemented by Orchestrator.
type Syncer interface {
	SyncCategories(ctx context.Context) <-chan Outcome
	SyncTransactions(ctx context.Context) <-chan Outcome
}

// SchedulerConfig holds configuration for the periodic sync loop
type SchedulerConfig struct {
	// Interval between two rounds (default: 15m)
	Interval time.Duration

	// RunOnStart runs a round immediately when the scheduler starts (default: true)
	RunOnStart bool

	// OnOutcome, when set, is called with every outcome.
	OnOutcome func(context.Context, Outcome)
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:   15 * time.Minute,
		RunOnStart: true,
	}
}

// Scheduler runs a categories pass followed by a transactions pass on a
// fixed interval.
type Scheduler struct {
	syncer Syncer
	config SchedulerConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a new scheduler
func NewScheduler(syncer Syncer, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	return &Scheduler{
		syncer: syncer,
		config: config,
	}
}

// Start begins the loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Sync scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop gracefully stops the scheduler and waits for the current round.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	if s.doneCh == doneCh {
		s.running = false
	}
	s.mu.Unlock()
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Wait blocks until the loop exits, either after Stop or because ctx ended.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	doneCh := s.doneCh
	s.mu.Unlock()
	if doneCh != nil {
		<-doneCh
	}
}

func (s *Scheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	// A loop ended by ctx leaves the scheduler restartable.
	defer func() {
		s.mu.Lock()
		if s.doneCh == doneCh {
			s.running = false
		}
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.RunOnce(ctx)
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs one categories pass and then one transactions pass, waiting
// for each outcome.
func (s *Scheduler) RunOnce(ctx context.Context) []Outcome {
	var outcomes []Outcome
	for _, kind := range []core.SyncKind{core.KindCategories, core.KindTransactions} {
		if ctx.Err() != nil {
			break
		}
		var ch <-chan Outcome
		if kind == core.KindCategories {
			ch = s.syncer.SyncCategories(ctx)
		} else {
			ch = s.syncer.SyncTransactions(ctx)
		}
		out := <-ch
		outcomes = append(outcomes, out)
		if s.config.OnOutcome != nil {
			s.config.OnOutcome(ctx, out)
		}
	}
	return outcomes
}
