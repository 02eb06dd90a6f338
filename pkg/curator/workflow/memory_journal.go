package workflow

import (
	"context"
	"sync"
)

// MemoryJournal is an in-process Journal with no cross-restart durability,
// used by tests.
type MemoryJournal struct {
	mu      sync.Mutex
	running map[string]bool
	steps   map[string][]byte
	state   map[string][]byte
}

// NewMemoryJournal returns an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		running: make(map[string]bool),
		steps:   make(map[string][]byte),
		state:   make(map[string][]byte),
	}
}

func execKey(kind, key string) string { return kind + "/" + key }
func stepKey(kind, key, step string) string { return kind + "/" + key + "/" + step }

func (j *MemoryJournal) TryAcquire(_ context.Context, kind, key string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	k := execKey(kind, key)
	if j.running[k] {
		return false, nil
	}
	j.running[k] = true
	return true, nil
}

func (j *MemoryJournal) Release(_ context.Context, kind, key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.running, execKey(kind, key))
	return nil
}

func (j *MemoryJournal) GetStep(_ context.Context, kind, key, step string) ([]byte, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.steps[stepKey(kind, key, step)]
	return v, ok, nil
}

func (j *MemoryJournal) PutStep(_ context.Context, kind, key, step string, value []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.steps[stepKey(kind, key, step)] = value
	return nil
}

func (j *MemoryJournal) SetState(_ context.Context, kind, key, stateKey string, value []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state[execKey(kind, key)+"/"+stateKey] = value
	return nil
}

func (j *MemoryJournal) GetState(_ context.Context, kind, key, stateKey string) ([]byte, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.state[execKey(kind, key)+"/"+stateKey]
	return v, ok, nil
}

func (j *MemoryJournal) MarkTerminal(_ context.Context, kind, key string, failed bool, message string) error {
	return nil
}
