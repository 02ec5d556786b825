package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"blocks/internal/core"
	"blocks/internal/feed"
	"blocks/internal/log"
	"blocks/internal/reconcile"
	"blocks/internal/storage"
)

// KindBudget labels outcomes of budget updates. It is not a sync kind that
// callers can request by name.
const KindBudget core.SyncKind = "budget"

// ErrSyncInProgress is reported when a pass of the same kind is already
// running.
var ErrSyncInProgress = errors.New("sync already in progress")

// State is the phase a pass is in.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateReconciling State = "reconciling"
	StateCommitting  State = "committing"
)

// Result classifies an Outcome.
type Result string

const (
	ResultSuccess        Result = "success"
	ResultPartialFailure Result = "partial_failure"
	ResultFailure        Result = "failure"
)

// Outcome is delivered exactly once for every requested pass. With neither
// Message nor Err set the pass succeeded. Message carries a server message and
// means nothing was changed. Err means the pass failed and staged changes
// were discarded.
type Outcome struct {
	Kind     core.SyncKind
	Message  string
	Err      error
	Stats    reconcile.Stats
	Finished time.Time
}

// Result classifies the outcome.
func (o Outcome) Result() Result {
	switch {
	case o.Err != nil:
		return ResultFailure
	case o.Message != "":
		return ResultPartialFailure
	default:
		return ResultSuccess
	}
}

// KindStatus describes one kind of pass.
type KindStatus struct {
	State       State
	LastOutcome *Outcome
	LastSuccess time.Time
}

// Status is a snapshot of the orchestrator.
type Status struct {
	Kinds map[core.SyncKind]KindStatus
	// Linked is set once a transactions pass has succeeded.
	Linked bool
}

type kindState struct {
	state       State
	last        *Outcome
	lastSuccess time.Time
}

// Orchestrator runs fetch, reconcile and commit for each pass and reports the
// result through a single-shot channel.
type Orchestrator struct {
	store  storage.Store
	source feed.Source
	logger *log.Logger
	now    func() time.Time

	mu     sync.Mutex
	kinds  map[core.SyncKind]*kindState
	linked bool

	// writeMu serializes every section from store.Begin to Commit, so each
	// pass reconciles against the latest committed state.
	writeMu sync.Mutex
}

// NewOrchestrator creates an orchestrator. A nil logger falls back to the
// default slog logger.
func NewOrchestrator(store storage.Store, source feed.Source, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default(log.ComponentSync)
	}
	o := &Orchestrator{
		store:  store,
		source: source,
		logger: logger,
		now:    time.Now,
		kinds:  make(map[core.SyncKind]*kindState),
	}
	for _, k := range []core.SyncKind{core.KindCategories, core.KindTransactions, KindBudget} {
		o.kinds[k] = &kindState{state: StateIdle}
	}
	return o
}

// Sync dispatches to SyncCategories or SyncTransactions.
func (o *Orchestrator) Sync(ctx context.Context, kind core.SyncKind) <-chan Outcome {
	switch kind {
	case core.KindCategories:
		return o.SyncCategories(ctx)
	case core.KindTransactions:
		return o.SyncTransactions(ctx)
	default:
		return done(Outcome{Kind: kind, Err: fmt.Errorf("unknown sync kind %q", kind), Finished: o.now()})
	}
}

// SyncCategories fetches the categories document and upserts every category
// it contains.
func (o *Orchestrator) SyncCategories(ctx context.Context) <-chan Outcome {
	return o.run(ctx, core.KindCategories, o.syncCategories)
}

// SyncTransactions fetches the transactions document and upserts its
// categories and transactions.
func (o *Orchestrator) SyncTransactions(ctx context.Context) <-chan Outcome {
	return o.run(ctx, core.KindTransactions, o.syncTransactions)
}

// SetCategoryBudget sends a new budget to the server and stores the amount
// the server confirms.
func (o *Orchestrator) SetCategoryBudget(ctx context.Context, categoryID int64, budget core.Money) <-chan Outcome {
	return o.run(ctx, KindBudget, func(ctx context.Context) Outcome {
		return o.setBudget(ctx, categoryID, budget)
	})
}

// ClearAll deletes every transaction and every category. It fails with
// ErrSyncInProgress while any pass is running.
func (o *Orchestrator) ClearAll(ctx context.Context) error {
	kinds := []core.SyncKind{core.KindCategories, core.KindTransactions, KindBudget}
	if !o.acquire(kinds...) {
		return ErrSyncInProgress
	}
	defer o.releaseIdle(kinds...)

	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	ws, err := o.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	ws.DeleteAll()
	if err := ws.Commit(ctx); err != nil {
		ws.Discard()
		return fmt.Errorf("clear store: %w", err)
	}
	o.logger.InfoContext(ctx, "Local data cleared", log.FieldOperation, log.OpClear)
	return nil
}

// Status returns a copy of the current state of every kind.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{Kinds: make(map[core.SyncKind]KindStatus, len(o.kinds)), Linked: o.linked}
	for k, ks := range o.kinds {
		entry := KindStatus{State: ks.state, LastSuccess: ks.lastSuccess}
		if ks.last != nil {
			last := *ks.last
			entry.LastOutcome = &last
		}
		st.Kinds[k] = entry
	}
	return st
}

func (o *Orchestrator) run(ctx context.Context, kind core.SyncKind, pass func(context.Context) Outcome) <-chan Outcome {
	if !o.acquire(kind) {
		o.logger.WarnContext(ctx, "Sync request rejected", log.FieldSyncKind, kind, log.FieldError, ErrSyncInProgress)
		return done(Outcome{Kind: kind, Err: ErrSyncInProgress, Finished: o.now()})
	}

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		res := pass(ctx)
		res.Kind = kind
		res.Finished = o.now()
		o.finish(ctx, res)
		out <- res
	}()
	return out
}

func (o *Orchestrator) syncCategories(ctx context.Context) Outcome {
	kind := core.KindCategories
	o.setState(kind, StateFetching)
	doc, err := o.source.FetchCategories(ctx)
	if err != nil {
		return Outcome{Err: fmt.Errorf("fetch categories: %w", err)}
	}
	records, skipped, err := feed.DecodeCategories(doc)
	if err != nil {
		return o.documentFailure(ctx, kind, doc, err)
	}

	return o.write(ctx, kind, func(ws *storage.WorkingSet) (reconcile.Stats, error) {
		stats, err := reconcile.Categories(ws, records)
		stats.Skipped = skipped
		if err != nil {
			return stats, fmt.Errorf("reconcile categories: %w", err)
		}
		return stats, nil
	})
}

func (o *Orchestrator) syncTransactions(ctx context.Context) Outcome {
	kind := core.KindTransactions
	o.setState(kind, StateFetching)
	doc, err := o.source.FetchTransactions(ctx)
	if err != nil {
		return Outcome{Err: fmt.Errorf("fetch transactions: %w", err)}
	}
	groups, skipped, err := feed.DecodeTransactions(doc)
	if err != nil {
		return o.documentFailure(ctx, kind, doc, err)
	}

	out := o.write(ctx, kind, func(ws *storage.WorkingSet) (reconcile.Stats, error) {
		stats, err := reconcile.Transactions(ws, groups)
		stats.Skipped = skipped
		if err != nil {
			return stats, fmt.Errorf("reconcile transactions: %w", err)
		}
		return stats, nil
	})
	if out.Err == nil {
		o.mu.Lock()
		o.linked = true
		o.mu.Unlock()
	}
	return out
}

func (o *Orchestrator) setBudget(ctx context.Context, categoryID int64, budget core.Money) Outcome {
	if err := o.requireCategory(ctx, categoryID); err != nil {
		return Outcome{Err: err}
	}

	o.setState(KindBudget, StateFetching)
	doc, err := o.source.SetCategoryBudget(ctx, categoryID, budget)
	if err != nil {
		return Outcome{Err: fmt.Errorf("set budget: %w", err)}
	}
	amount, err := feed.DecodeBudget(doc)
	if err != nil {
		return o.documentFailure(ctx, KindBudget, doc, err)
	}

	// The snapshot is taken after the remote call so passes that committed
	// meanwhile are kept.
	return o.write(ctx, KindBudget, func(ws *storage.WorkingSet) (reconcile.Stats, error) {
		c, ok := ws.CategoryByID(categoryID)
		if !ok {
			return reconcile.Stats{}, fmt.Errorf("category %d: %w", categoryID, storage.ErrNotFound)
		}
		if c.Budget == amount {
			return reconcile.Stats{}, nil
		}
		c.Budget = amount
		return reconcile.Stats{Updated: 1}, nil
	})
}

func (o *Orchestrator) requireCategory(ctx context.Context, categoryID int64) error {
	ws, err := o.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	defer ws.Discard()
	if _, ok := ws.CategoryByID(categoryID); !ok {
		return fmt.Errorf("category %d: %w", categoryID, storage.ErrNotFound)
	}
	return nil
}

// write loads a fresh working set, stages changes with stage and commits
// them while holding writeMu.
func (o *Orchestrator) write(ctx context.Context, kind core.SyncKind, stage func(*storage.WorkingSet) (reconcile.Stats, error)) Outcome {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	o.setState(kind, StateReconciling)
	ws, err := o.store.Begin(ctx)
	if err != nil {
		return Outcome{Err: fmt.Errorf("load store: %w", err)}
	}
	stats, err := stage(ws)
	if err != nil {
		ws.Discard()
		return Outcome{Err: err, Stats: stats}
	}
	return o.commit(ctx, kind, ws, stats)
}

func (o *Orchestrator) commit(ctx context.Context, kind core.SyncKind, ws *storage.WorkingSet, stats reconcile.Stats) Outcome {
	o.setState(kind, StateCommitting)
	if err := ws.Commit(ctx); err != nil {
		ws.Discard()
		return Outcome{Err: fmt.Errorf("commit %s: %w", kind, err), Stats: stats}
	}
	if kind != KindBudget {
		if err := o.store.MarkSynced(ctx, kind, o.now()); err != nil {
			o.logger.WarnContext(ctx, "Failed to record sync time", log.FieldSyncKind, kind, log.FieldError, err)
		}
	}
	return Outcome{Stats: stats}
}

// documentFailure turns a document that could not be decoded into an
// outcome. Server messages pass through untouched; other shapes are logged
// with the raw response.
func (o *Orchestrator) documentFailure(ctx context.Context, kind core.SyncKind, doc feed.Node, err error) Outcome {
	var msgErr *feed.MessageError
	if errors.As(err, &msgErr) {
		return Outcome{Message: msgErr.Message}
	}
	o.logger.WarnContext(ctx, "Unexpected feed response",
		log.FieldSyncKind, kind,
		log.FieldError, err,
		"response", doc.JSON())
	return Outcome{Err: fmt.Errorf("decode %s: %w", kind, err)}
}

func (o *Orchestrator) finish(ctx context.Context, res Outcome) {
	o.mu.Lock()
	ks := o.kinds[res.Kind]
	ks.state = StateIdle
	ks.last = &res
	if res.Result() == ResultSuccess {
		ks.lastSuccess = res.Finished
	}
	o.mu.Unlock()

	fields := log.NewFields().WithSync(string(res.Kind), res.Stats.Created, res.Stats.Updated, res.Stats.Skipped)
	switch res.Result() {
	case ResultSuccess:
		o.logger.InfoContext(ctx, "Sync pass completed", fields.ToSlice()...)
	case ResultPartialFailure:
		fields[log.FieldMessage] = res.Message
		o.logger.WarnContext(ctx, "Sync pass returned server message", fields.ToSlice()...)
	default:
		o.logger.LogError(ctx, "Sync pass failed", res.Err, log.OpSync, fields)
	}
}

func (o *Orchestrator) acquire(kinds ...core.SyncKind) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, k := range kinds {
		if o.kinds[k].state != StateIdle {
			return false
		}
	}
	for _, k := range kinds {
		o.kinds[k].state = StateFetching
	}
	return true
}

func (o *Orchestrator) releaseIdle(kinds ...core.SyncKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, k := range kinds {
		o.kinds[k].state = StateIdle
	}
}

func (o *Orchestrator) setState(kind core.SyncKind, s State) {
	o.mu.Lock()
	o.kinds[kind].state = s
	o.mu.Unlock()
}

// done returns a closed channel holding one outcome.
func done(out Outcome) <-chan Outcome {
	ch := make(chan Outcome, 1)
	ch <- out
	close(ch)
	return ch
}
