package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ignite/audience-engine/internal/domain"
	"github.com/ignite/audience-engine/internal/pkg/logger"
)

var (
	ErrPoolClosed  = errors.New("reconcile pool is not running")
	ErrInvalidTask = errors.New("invalid reconcile task")
)

// Reconciler runs membership passes. *membership.Service implements it.
type Reconciler interface {
	Reconcile(ctx context.Context, orgID, profileID uuid.UUID) (*domain.Transition, error)
	ReconcileForEvent(ctx context.Context, orgID, profileID uuid.UUID, eventName string) (*domain.Transition, error)
}

// TaskKind says which hook produced a task.
type TaskKind string

const (
	TaskProfileChanged TaskKind = "profile_changed"
	TaskEventTracked   TaskKind = "event_tracked"
)

// Task is one reconcile pass to run.
type Task struct {
	Kind           TaskKind
	OrganizationID uuid.UUID
	ProfileID      uuid.UUID
	EventName      string // TaskEventTracked only
}

func (t Task) validate() error {
	if t.OrganizationID == uuid.Nil || t.ProfileID == uuid.Nil {
		return fmt.Errorf("%w: organization and profile ids are required", ErrInvalidTask)
	}
	switch t.Kind {
	case TaskProfileChanged:
	case TaskEventTracked:
		if t.EventName == "" {
			return fmt.Errorf("%w: event name is required", ErrInvalidTask)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTask, t.Kind)
	}
	return nil
}

// Result is delivered once per submitted task. Transition may be set even
// when Err is non-nil (membership was persisted but dispatch failed).
type Result struct {
	Task       Task
	Transition *domain.Transition
	Err        error
}

// PoolConfig sizes a ReconcilePool.
type PoolConfig struct {
	Concurrency int
	QueueSize   int
}

type envelope struct {
	ctx    context.Context
	task   Task
	result chan Result
}

// ReconcilePool runs reconcile passes on a fixed number of goroutines fed by
// a bounded channel. Passes for different profiles run in parallel; nothing
// serializes passes for the same profile.
type ReconcilePool struct {
	reconciler Reconciler
	log        *logger.Logger
	cfg        PoolConfig

	tasks   chan envelope
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool

	// Stats
	submitted int64
	succeeded int64
	failed    int64
}

// NewReconcilePool creates a stopped pool. Call Start before Submit.
func NewReconcilePool(r Reconciler, cfg PoolConfig, log *logger.Logger) *ReconcilePool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if log == nil {
		log = logger.Default()
	}
	return &ReconcilePool{reconciler: r, log: log, cfg: cfg}
}

// Start launches the workers. Starting a running pool is a no-op.
func (p *ReconcilePool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.tasks = make(chan envelope, p.cfg.QueueSize)

	p.log.Info("reconcile pool starting", "workers", p.cfg.Concurrency, "queue_size", p.cfg.QueueSize)
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.worker(p.tasks)
	}
}

// Stop refuses new tasks, lets the workers finish everything already queued,
// and waits for them.
func (p *ReconcilePool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	stats := p.Stats()
	p.log.Info("reconcile pool stopped",
		"submitted", stats["submitted"], "succeeded", stats["succeeded"], "failed", stats["failed"])
}

// Submit queues task and returns a channel that receives exactly one Result.
// The channel is buffered, so callers that do not care may drop it. Submit
// blocks while the queue is full, until ctx is done. Once queued, the pass
// runs to completion even if ctx is cancelled.
func (p *ReconcilePool) Submit(ctx context.Context, task Task) (<-chan Result, error) {
	if err := task.validate(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return nil, ErrPoolClosed
	}

	env := envelope{ctx: context.WithoutCancel(ctx), task: task, result: make(chan Result, 1)}
	select {
	case p.tasks <- env:
		atomic.AddInt64(&p.submitted, 1)
		return env.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats returns current counters.
func (p *ReconcilePool) Stats() map[string]int64 {
	return map[string]int64{
		"submitted": atomic.LoadInt64(&p.submitted),
		"succeeded": atomic.LoadInt64(&p.succeeded),
		"failed":    atomic.LoadInt64(&p.failed),
	}
}

// QueueDepth returns the number of tasks waiting for a worker.
func (p *ReconcilePool) QueueDepth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return 0
	}
	return len(p.tasks)
}

// Capacity returns the configured queue size.
func (p *ReconcilePool) Capacity() int { return p.cfg.QueueSize }

// Running reports whether the pool accepts tasks.
func (p *ReconcilePool) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *ReconcilePool) worker(tasks <-chan envelope) {
	defer p.wg.Done()
	for env := range tasks {
		env.result <- p.run(env)
	}
}

func (p *ReconcilePool) run(env envelope) (res Result) {
	res.Task = env.task
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("reconcile panic: %v", r)
			p.log.Error("reconcile panicked", "kind", env.task.Kind, "profile_id", env.task.ProfileID, "panic", r)
		}
		if res.Err != nil {
			atomic.AddInt64(&p.failed, 1)
		} else {
			atomic.AddInt64(&p.succeeded, 1)
		}
	}()

	t := env.task
	switch t.Kind {
	case TaskEventTracked:
		res.Transition, res.Err = p.reconciler.ReconcileForEvent(env.ctx, t.OrganizationID, t.ProfileID, t.EventName)
	default:
		res.Transition, res.Err = p.reconciler.Reconcile(env.ctx, t.OrganizationID, t.ProfileID)
	}
	if res.Err != nil {
		p.log.Error("reconcile failed",
			"kind", t.Kind, "organization_id", t.OrganizationID, "profile_id", t.ProfileID, "error", res.Err)
		return res
	}
	if !res.Transition.IsEmpty() {
		p.log.Info("membership changed",
			"profile_id", t.ProfileID, "entered", len(res.Transition.Entered), "exited", len(res.Transition.Exited))
	}
	return res
}
