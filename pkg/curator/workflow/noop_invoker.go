package workflow

import "context"

// NoopInvoker rejects every invocation. It satisfies Invoker for workflow
// kinds that never call InvokeWorkflow, so callers don't need a real child
// dispatcher wired in until one is.
type NoopInvoker struct{}

func (NoopInvoker) Invoke(ctx context.Context, kind, key string, request any) (<-chan InvokeResult, error) {
	return nil, ErrNoInvoker
}

// ErrNoInvoker is returned by NoopInvoker.Invoke.
var ErrNoInvoker = errNoInvoker{}

type errNoInvoker struct{}

func (errNoInvoker) Error() string { return "workflow: no child workflow invoker configured" }
