// Package engine implements the optimistic mutation engine: local counter
// edits that are applied immediately and reconciled against the store's
// change events.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"feedsync/internal/config"
	"feedsync/internal/domain"
	"feedsync/internal/metrics"
)

// Request describes a user action as a counter mutation.
type Request struct {
	Key       domain.CounterKey
	ActorID   string
	Delta     float64
	ConfirmOn domain.EventMatch
	Write     domain.WriteRequest
}

const (
	defaultMaxQueueDepth = 8
	defaultDedupWindow   = 10 * time.Minute
)

type entry struct {
	mut    domain.PendingMutation
	timer  *time.Timer
	cancel context.CancelFunc
}

// Engine owns the confirmed/pending counter state. All state transitions
// happen under mu; writes and notices run on their own goroutines.
type Engine struct {
	writer   Writer
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics

	pendingTimeout time.Duration
	maxQueueDepth  int
	matchWindow    time.Duration
	retry          config.RetryConfig
	now            func() time.Time
	resync         func(ctx context.Context)

	mu       sync.Mutex
	closed   bool
	counters map[domain.CounterKey]*counter
	queues   map[domain.EntityRef][]*entry
	byID     map[uuid.UUID]*entry
	seen     *cache.Cache
	history  *cache.Cache

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(
	writer Writer,
	notifier Notifier,
	cfg config.MutationConfig,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.MaxQueueDepthPerEntity < 1 {
		cfg.MaxQueueDepthPerEntity = defaultMaxQueueDepth
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = defaultDedupWindow
	}

	return &Engine{
		writer:         writer,
		notifier:       notifier,
		logger:         logger.With("component", "engine"),
		metrics:        m,
		pendingTimeout: cfg.PendingTimeout(),
		maxQueueDepth:  cfg.MaxQueueDepthPerEntity,
		matchWindow:    cfg.MatchWindow,
		retry:          cfg.Retry,
		now:            time.Now,
		counters:       make(map[domain.CounterKey]*counter),
		queues:         make(map[domain.EntityRef][]*entry),
		byID:           make(map[uuid.UUID]*entry),
		seen:           cache.New(cfg.DedupWindow, cfg.DedupWindow),
		history:        cache.New(cfg.DedupWindow, cfg.DedupWindow),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// SetResync registers the reconciliation fetch the engine asks for when its
// view of a counter can no longer be trusted: an acknowledged write whose
// event never came, or a delta that arrived below a compacted baseline.
func (e *Engine) SetResync(fn func(ctx context.Context)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resync = fn
}

// Apply applies req locally and schedules its authoritative write. The
// returned mutation is a snapshot; use Lookup to follow it.
//
// A request repeating the newest unresolved mutation on the same counter
// returns that mutation. A request undoing the newest queued mutation
// cancels both.
func (e *Engine) Apply(req Request) (domain.PendingMutation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return domain.PendingMutation{}, domain.ErrEngineClosed
	}

	now := e.now()
	mut := domain.PendingMutation{
		ID:          uuid.New(),
		Key:         req.Key,
		ActorID:     req.ActorID,
		Delta:       req.Delta,
		ConfirmOn:   req.ConfirmOn,
		Write:       req.Write,
		State:       domain.StatePending,
		SubmittedAt: now,
	}

	ref := req.Key.Ref()
	queue := e.queues[ref]
	if n := len(queue); n > 0 {
		newest := queue[n-1]
		if newest.mut.SameIntent(&mut) {
			e.logger.Debug("collapsed repeated mutation", "mutation_id", newest.mut.ID, "key", req.Key.String())
			return newest.mut, nil
		}
		if !newest.mut.Dispatched && newest.mut.Inverse(&mut) {
			e.remove(newest)
			e.finish(newest, domain.StateCancelled, nil)
			mut.State = domain.StateCancelled
			e.history.SetDefault(mut.ID.String(), mut)
			e.metrics.MutationResolved(string(req.Key.Entity), string(domain.StateCancelled))
			e.logger.Debug("cancelled queued toggle", "mutation_id", newest.mut.ID, "key", req.Key.String())
			return mut, nil
		}
	}

	if req.Key.Field == domain.FieldBalance && req.Delta < 0 {
		if balance := e.displayed(req.Key); balance < -req.Delta {
			mut.State = domain.StateRejected
			mut.Err = fmt.Errorf("%w: balance %.2f, requested %.2f", domain.ErrInsufficientBalance, balance, -req.Delta)
			e.notify(e.notice(&mut, domain.ReasonInsufficientFunds, "insufficient balance"))
			return mut, mut.Err
		}
	}

	if len(queue) >= e.maxQueueDepth {
		return domain.PendingMutation{}, fmt.Errorf("%w: %s", domain.ErrQueueFull, ref)
	}

	if _, ok := e.counters[req.Key]; !ok {
		e.counters[req.Key] = &counter{}
	}

	ent := &entry{mut: mut}
	e.queues[ref] = append(queue, ent)
	e.byID[mut.ID] = ent
	e.metrics.SetPending(len(e.byID))

	if len(queue) == 0 {
		e.dispatch(ent)
	}
	return ent.mut, nil
}

// HandleEvent reconciles one normalized change event.
func (e *Engine) HandleEvent(ev domain.ChangeEvent) domain.EventOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	outcome := e.handleEvent(ev)
	e.metrics.EventHandled(ev.Collection, string(outcome))
	return outcome
}

func (e *Engine) handleEvent(ev domain.ChangeEvent) domain.EventOutcome {
	if e.closed {
		return domain.OutcomeIgnored
	}

	dedupKey := ev.DedupKey()
	if _, found := e.seen.Get(dedupKey); found {
		return domain.OutcomeDuplicate
	}
	e.seen.SetDefault(dedupKey, struct{}{})

	outcome := domain.OutcomeIgnored
	note := func(o domain.EventOutcome) {
		if rank(o) > rank(outcome) {
			outcome = o
		}
	}

	for key, value := range ev.Absolute {
		c, ok := e.counters[key]
		if !ok {
			c = &counter{}
			e.counters[key] = c
		}
		if c.rebase(value, ev.Sequence) {
			note(domain.OutcomeApplied)
		} else {
			note(domain.OutcomeStale)
		}
	}

	if ev.Delta != nil {
		matched := e.match(ev)

		if c, ok := e.counters[ev.Delta.Key]; ok {
			switch {
			case c.fold(ev.Sequence, ev.Delta.Amount):
				note(domain.OutcomeApplied)
			case c.compacted(ev.Sequence):
				e.logger.Warn("delta below compacted baseline", "key", ev.Delta.Key.String(), "sequence", ev.Sequence)
				e.requestResync()
				note(domain.OutcomeStale)
			default:
				note(domain.OutcomeStale)
			}
		}

		if matched != nil {
			e.confirm(matched)
			note(domain.OutcomeConfirmed)
		}
	}

	return outcome
}

// match finds the dispatched mutation an event confirms: same counter,
// actor and operation, received within the match window of the write.
func (e *Engine) match(ev domain.ChangeEvent) *entry {
	now := e.now()
	for _, ent := range e.queues[ev.Delta.Key.Ref()] {
		m := &ent.mut
		if !m.Dispatched || m.State != domain.StatePending {
			continue
		}
		if m.Key != ev.Delta.Key ||
			m.Key.ID != ev.EntityID ||
			m.ActorID != ev.ActorID ||
			m.ConfirmOn.Collection != ev.Collection ||
			m.ConfirmOn.Operation != ev.Operation {
			continue
		}
		if e.matchWindow > 0 && now.Sub(m.DispatchedAt) > e.matchWindow {
			continue
		}
		return ent
	}
	return nil
}

// Reconcile rebases counters onto freshly read authoritative values.
// Pending mutations whose write was acknowledged are already part of a
// snapshot that advanced the counter and are dropped as confirmed.
func (e *Engine) Reconcile(snapshots []domain.CounterSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	keys := make(map[domain.CounterKey]bool, len(snapshots))
	for _, snap := range snapshots {
		c, ok := e.counters[snap.Key]
		if !ok {
			c = &counter{}
			e.counters[snap.Key] = c
		}
		prev := c.baseSeq
		if !c.rebase(snap.Value, snap.Sequence) {
			e.logger.Debug("ignored stale snapshot", "key", snap.Key.String(), "sequence", snap.Sequence)
			continue
		}
		// A snapshot that saw no new change cannot include a recent write.
		if snap.Sequence > prev {
			keys[snap.Key] = true
		}
	}

	var settled []*entry
	for _, ent := range e.byID {
		if ent.mut.Acked && keys[ent.mut.Key] {
			settled = append(settled, ent)
		}
	}
	for _, ent := range settled {
		e.logger.Debug("settled by reconciliation", "mutation_id", ent.mut.ID, "key", ent.mut.Key.String())
		e.confirm(ent)
	}
}

// Displayed is confirmed plus every pending delta on key.
func (e *Engine) Displayed(key domain.CounterKey) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.displayed(key)
}

func (e *Engine) View(key domain.CounterKey) domain.CounterView {
	e.mu.Lock()
	defer e.mu.Unlock()

	var confirmed float64
	if c, ok := e.counters[key]; ok {
		confirmed = c.confirmed()
	}
	pending := e.pendingDelta(key)
	return domain.CounterView{
		Key:       key,
		Confirmed: confirmed,
		Pending:   pending,
		Displayed: confirmed + pending,
	}
}

// TrackedKeys lists every counter the engine holds, in stable order.
func (e *Engine) TrackedKeys() []domain.CounterKey {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := make([]domain.CounterKey, 0, len(e.counters))
	for k := range e.counters {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Pending returns the unresolved mutations on ref, oldest first.
func (e *Engine) Pending(ref domain.EntityRef) []domain.PendingMutation {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.PendingMutation, 0, len(e.queues[ref]))
	for _, ent := range e.queues[ref] {
		out = append(out, ent.mut)
	}
	return out
}

// Lookup returns an unresolved mutation, or a recently resolved one.
func (e *Engine) Lookup(id uuid.UUID) (domain.PendingMutation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ent, ok := e.byID[id]; ok {
		return ent.mut, true
	}
	if v, ok := e.history.Get(id.String()); ok {
		return v.(domain.PendingMutation), true
	}
	return domain.PendingMutation{}, false
}

// Close abandons every outstanding mutation without rolling it back and
// waits for in-flight writes and notices to return.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	abandoned := len(e.byID)
	for _, ent := range e.byID {
		if ent.timer != nil {
			ent.timer.Stop()
		}
		if ent.cancel != nil {
			ent.cancel()
		}
	}
	e.queues = make(map[domain.EntityRef][]*entry)
	e.byID = make(map[uuid.UUID]*entry)
	e.metrics.SetPending(0)
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("engine closed", "abandoned", abandoned)
}

func (e *Engine) displayed(key domain.CounterKey) float64 {
	var v float64
	if c, ok := e.counters[key]; ok {
		v = c.confirmed()
	}
	return v + e.pendingDelta(key)
}

func (e *Engine) pendingDelta(key domain.CounterKey) float64 {
	var sum float64
	for _, ent := range e.queues[key.Ref()] {
		if ent.mut.Key == key && ent.mut.State == domain.StatePending {
			sum += ent.mut.Delta
		}
	}
	return sum
}

func (e *Engine) dispatch(ent *entry) {
	ent.mut.Dispatched = true
	ent.mut.DispatchedAt = e.now()

	ctx, cancel := context.WithCancel(e.ctx)
	ent.cancel = cancel

	id := ent.mut.ID
	if e.pendingTimeout > 0 {
		ent.timer = time.AfterFunc(e.pendingTimeout, func() {
			e.expire(id)
		})
	}

	req := ent.mut.Write
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		err := e.write(ctx, id, req)
		if ctx.Err() != nil && err != nil {
			return
		}
		e.writeDone(id, err)
	}()
}

func (e *Engine) write(ctx context.Context, id uuid.UUID, req domain.WriteRequest) error {
	var err error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		err = e.writer.Write(ctx, req)
		if err == nil || !domain.IsTransient(err) || attempt == e.retry.MaxAttempts {
			break
		}

		backoff := e.calculateBackoff(attempt)
		e.logger.Warn("write failed, retrying",
			"mutation_id", id,
			"collection", req.Collection,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

func (e *Engine) calculateBackoff(attempt int) time.Duration {
	backoff := e.retry.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if e.retry.MaxBackoff > 0 && backoff > e.retry.MaxBackoff {
		backoff = e.retry.MaxBackoff
	}
	return backoff
}

func (e *Engine) writeDone(id uuid.UUID, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.byID[id]
	if e.closed || !ok {
		return
	}
	if err == nil {
		ent.mut.Acked = true
		e.logger.Debug("write acknowledged", "mutation_id", id, "key", ent.mut.Key.String())
		return
	}
	e.reject(ent, fmt.Errorf("%w: %w", domain.ErrMutationRejected, err), domain.ReasonRejected)
}

func (e *Engine) expire(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.byID[id]
	if e.closed || !ok {
		return
	}
	if ent.mut.Acked {
		e.settleUnconfirmed(ent)
		return
	}
	e.reject(ent, fmt.Errorf("%w after %s", domain.ErrMutationTimeout, e.pendingTimeout), domain.ReasonTimeout)
}

// settleUnconfirmed resolves a mutation the store accepted but whose event
// never arrived. The write happened, so the user is not told it failed; its
// delta leaves the pending set and a fresh read brings the counter up to date.
// A late event still folds since the counter has not seen its sequence.
func (e *Engine) settleUnconfirmed(ent *entry) {
	e.logger.Info("acknowledged write not confirmed in time, resyncing",
		"mutation_id", ent.mut.ID,
		"key", ent.mut.Key.String(),
	)
	e.confirm(ent)
	e.requestResync()
}

func (e *Engine) requestResync() {
	if e.resync == nil || e.closed {
		return
	}
	fn := e.resync
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(e.ctx)
	}()
}

func (e *Engine) confirm(ent *entry) {
	next := e.remove(ent)
	e.finish(ent, domain.StateConfirmed, nil)
	if next != nil {
		e.dispatch(next)
	}
}

// reject rolls the mutation back. Dropping it from the queue takes its delta
// out of the displayed value. A queued inverse of it is cancelled since its
// intent already holds.
func (e *Engine) reject(ent *entry, cause error, reason domain.NoticeReason) {
	next := e.remove(ent)
	e.finish(ent, domain.StateRolledBack, cause)

	if next != nil && !next.mut.Dispatched && ent.mut.Inverse(&next.mut) {
		after := e.remove(next)
		e.finish(next, domain.StateCancelled, nil)
		next = after
	}
	if next != nil {
		e.dispatch(next)
	}

	e.notify(e.notice(&ent.mut, reason, "action failed, please retry"))
}

// remove unlinks ent and returns the new queue head if ent was the head.
func (e *Engine) remove(ent *entry) *entry {
	ref := ent.mut.Key.Ref()
	queue := e.queues[ref]
	wasHead := len(queue) > 0 && queue[0] == ent

	for i, q := range queue {
		if q == ent {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		delete(e.queues, ref)
	} else {
		e.queues[ref] = queue
	}
	delete(e.byID, ent.mut.ID)
	e.metrics.SetPending(len(e.byID))

	if wasHead && len(queue) > 0 {
		return queue[0]
	}
	return nil
}

func (e *Engine) finish(ent *entry, state domain.MutationState, cause error) {
	if ent.timer != nil {
		ent.timer.Stop()
	}
	if ent.cancel != nil {
		ent.cancel()
	}
	ent.mut.State = state
	ent.mut.Err = cause
	e.history.SetDefault(ent.mut.ID.String(), ent.mut)
	e.metrics.MutationResolved(string(ent.mut.Key.Entity), string(state))

	if cause != nil {
		e.logger.Warn("mutation rolled back", "mutation_id", ent.mut.ID, "key", ent.mut.Key.String(), "error", cause)
	}
}

func (e *Engine) notice(m *domain.PendingMutation, reason domain.NoticeReason, message string) domain.Notice {
	n := domain.Notice{
		MutationID:       m.ID,
		ActorID:          m.ActorID,
		Entity:           m.Key.Ref(),
		Reason:           reason,
		Message:          message,
		BalanceAffecting: m.Key.Field == domain.FieldBalance,
		At:               e.now(),
	}
	if n.BalanceAffecting {
		n.Amount = -m.Delta
	}
	if m.Err != nil {
		n.Cause = m.Err.Error()
	}
	return n
}

func (e *Engine) notify(n domain.Notice) {
	e.metrics.NoticeSent(string(n.Reason))
	if n.BalanceAffecting {
		e.logger.Error("balance change failed", "mutation_id", n.MutationID, "entity", n.Entity.String(), "reason", n.Reason, "amount", n.Amount)
	}
	if e.notifier == nil {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.notifier.Notify(e.ctx, n); err != nil {
			e.logger.Error("failed to deliver notice", "mutation_id", n.MutationID, "reason", n.Reason, "error", err)
		}
	}()
}

func rank(o domain.EventOutcome) int {
	switch o {
	case domain.OutcomeConfirmed:
		return 4
	case domain.OutcomeApplied:
		return 3
	case domain.OutcomeStale:
		return 2
	case domain.OutcomeDuplicate:
		return 1
	}
	return 0
}
