// Package workflow implements the durable, journaled execution primitives
// the curator pipeline is built on (spec §4.1): durable_step, set_state,
// durable_sleep, and invoke_workflow, backed by a Postgres-persisted journal
// so a crashed run resumes at its first unjournaled step instead of
// replaying LLM calls and database writes that already landed.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/mntogether/curator/pkg/curator/workflow")

// Journal persists step results and workflow state, and enforces the
// one-live-execution-per-(kind,key) contract. Implementations must be safe
// for concurrent use.
type Journal interface {
	// TryAcquire claims the (kind, key) execution slot. ok is false if a
	// live execution already holds it.
	TryAcquire(ctx context.Context, kind, key string) (ok bool, err error)
	// Release frees the (kind, key) slot when the workflow terminates.
	Release(ctx context.Context, kind, key string) error

	// GetStep returns a previously journaled step result, if present.
	GetStep(ctx context.Context, kind, key, stepKey string) (value []byte, found bool, err error)
	// PutStep journals a step's result.
	PutStep(ctx context.Context, kind, key, stepKey string, value []byte) error

	// SetState records workflow-observable state for status queries.
	SetState(ctx context.Context, kind, key, stateKey string, value []byte) error
	// GetState reads workflow-observable state without blocking execution.
	GetState(ctx context.Context, kind, key, stateKey string) (value []byte, found bool, err error)

	// MarkTerminal records the workflow's final outcome.
	MarkTerminal(ctx context.Context, kind, key string, failed bool, message string) error
}

// Invoker fires child workflows by kind. Implementations route to the
// orchestrator package's registered workflow kinds.
type Invoker interface {
	Invoke(ctx context.Context, kind, key string, request any) (<-chan InvokeResult, error)
}

// InvokeResult is delivered on the channel returned by Invoker.Invoke once
// the child workflow completes, for callers that choose to await it.
type InvokeResult struct {
	Output any
	Err    error
}

// Run is one execution context of a workflow: a (kind, key) pair bound to a
// journal, used to call the durable primitives in sequence.
type Run struct {
	kind    string
	key     string
	journal Journal
	invoker Invoker
	log     logr.Logger

	mu     sync.Mutex
	closed bool
}

// ErrAlreadyRunning is returned by Start when a live execution already holds
// the requested (kind, key) tuple (spec §4.1's one-live-execution guarantee).
var ErrAlreadyRunning = fmt.Errorf("workflow: already running for this kind/key")

// Start claims the (kind, key) execution slot and returns a Run bound to it.
// Re-invocation with the same key while a run is live returns
// ErrAlreadyRunning; callers that want to force a fresh run pass a
// time-suffixed key.
func Start(ctx context.Context, journal Journal, invoker Invoker, log logr.Logger, kind, key string) (*Run, error) {
	ok, err := journal.TryAcquire(ctx, kind, key)
	if err != nil {
		return nil, fmt.Errorf("workflow: acquire %s/%s: %w", kind, key, err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return &Run{
		kind:    kind,
		key:     key,
		journal: journal,
		invoker: invoker,
		log:     log.WithValues("workflow_kind", kind, "workflow_key", key),
	}, nil
}

// Finish releases the execution slot and records the terminal outcome. It
// must be called exactly once, typically deferred right after Start.
func (r *Run) Finish(ctx context.Context, err error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if mErr := r.journal.MarkTerminal(ctx, r.kind, r.key, err != nil, msg); mErr != nil {
		r.log.Error(mErr, "failed to record terminal workflow state")
	}
	if rErr := r.journal.Release(ctx, r.kind, r.key); rErr != nil {
		r.log.Error(rErr, "failed to release workflow execution slot")
	}
}

// DurableStep executes f and journals its result under stepKey, unless a
// result is already journaled, in which case f is not re-invoked and the
// journaled value is decoded and returned instead.
//
// T must be JSON-serializable. Use DurableStepVoid for steps with no
// meaningful return value.
func DurableStep[T any](ctx context.Context, r *Run, stepKey string, f func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	ctx, span := tracer.Start(ctx, "durable_step", trace.WithAttributes(
		attribute.String("workflow.kind", r.kind),
		attribute.String("workflow.key", r.key),
		attribute.String("step.key", stepKey),
	))
	defer span.End()

	if raw, found, err := r.journal.GetStep(ctx, r.kind, r.key, stepKey); err != nil {
		return zero, fmt.Errorf("workflow: read journal for step %q: %w", stepKey, err)
	} else if found {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return zero, fmt.Errorf("workflow: decode journaled step %q: %w", stepKey, err)
		}
		span.SetAttributes(attribute.Bool("step.replayed", true))
		return v, nil
	}

	result, err := f(ctx)
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return zero, fmt.Errorf("workflow: encode step %q result: %w", stepKey, err)
	}
	if err := r.journal.PutStep(ctx, r.kind, r.key, stepKey, raw); err != nil {
		return zero, fmt.Errorf("workflow: journal step %q: %w", stepKey, err)
	}
	return result, nil
}

// DurableStepVoid is DurableStep for steps whose only meaningful output is
// whether they succeeded.
func DurableStepVoid(ctx context.Context, r *Run, stepKey string, f func(ctx context.Context) error) error {
	_, err := DurableStep(ctx, r, stepKey, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f(ctx)
	})
	return err
}

// SetState updates workflow-observable state, readable via GetStatus
// without blocking the run.
func (r *Run) SetState(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("workflow: encode state %q: %w", key, err)
	}
	return r.journal.SetState(ctx, r.kind, r.key, key, raw)
}

// DurableSleep journals a wakeup deadline and blocks until it or ctx
// elapses. On replay after a crash past the deadline, it returns
// immediately.
func (r *Run) DurableSleep(ctx context.Context, stepKey string, d time.Duration) error {
	deadline, err := DurableStep(ctx, r, stepKey, func(ctx context.Context) (time.Time, error) {
		return time.Now().Add(d), nil
	})
	if err != nil {
		return err
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InvokeWorkflow fires a child workflow of the given kind. When await is
// false this is fire-and-forget: the returned channel is nil and the error
// reflects only whether dispatch succeeded.
func (r *Run) InvokeWorkflow(ctx context.Context, kind, key string, request any, await bool) (<-chan InvokeResult, error) {
	ch, err := r.invoker.Invoke(ctx, kind, key, request)
	if err != nil {
		return nil, fmt.Errorf("workflow: invoke child %s/%s: %w", kind, key, err)
	}
	if !await {
		return nil, nil
	}
	return ch, nil
}

// Status is the externally queryable snapshot of a workflow's progress
// (spec §4.2's status reporting requirement).
type Status struct {
	Kind    string `json:"kind"`
	Key     string `json:"key"`
	Phase   string `json:"phase"`
	Message string `json:"message,omitempty"`
}

const statusStateKey = "status"

// SetStatus is the curator orchestrator's human-readable phase marker,
// layered on SetState under a reserved key.
func (r *Run) SetStatus(ctx context.Context, phase, message string) error {
	return r.SetState(ctx, statusStateKey, Status{Kind: r.kind, Key: r.key, Phase: phase, Message: message})
}

// GetStatus reads the latest status set via SetStatus for (kind, key),
// without requiring the workflow to be running.
func GetStatus(ctx context.Context, journal Journal, kind, key string) (Status, bool, error) {
	raw, found, err := journal.GetState(ctx, kind, key, statusStateKey)
	if err != nil || !found {
		return Status{}, found, err
	}
	var s Status
	if err := json.Unmarshal(raw, &s); err != nil {
		return Status{}, false, fmt.Errorf("workflow: decode status: %w", err)
	}
	return s, true, nil
}
