package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// mutation is one optimistic operation against the collection.
//
// apply runs under the collection lock: it makes the tentative local change
// and returns the closure that undoes it, or an error to abort before any
// network traffic. call performs the remote confirmation off-lock and
// returns the closure that reconciles the collection with the service's
// response; on error the rollback runs instead.
type mutation struct {
	key   string
	apply func() (rollback func(), err error)
	call  func(ctx context.Context) (commit func(), err error)
}

// perform runs the shared apply / confirm / commit-or-rollback sequence.
// Mutations with the same key are serialized: a second mutation on an alert
// with a call in flight waits for the first's reconciliation, so a revert
// from one call can never clobber the optimistic state of another.
func (e *Engine) perform(ctx context.Context, m mutation) error {
	release := e.locks.acquire(m.key)
	defer release()

	e.mu.Lock()
	rollback, err := m.apply()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.notify()

	commit, err := m.call(ctx)

	e.mu.Lock()
	if err != nil {
		rollback()
	} else if commit != nil {
		commit()
	}
	e.mu.Unlock()
	e.notify()

	return err
}

// idKey serializes mutations on a server-assigned id
func idKey(id int64) string {
	return fmt.Sprintf("id:%d", id)
}

// refKey serializes mutations on a provisional entry that has no id yet
func refKey(ref uuid.UUID) string {
	return "ref:" + ref.String()
}

// lockTable hands out one mutex per active key, dropping entries once the
// last holder releases
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the key's lock is held and returns the release func
func (t *lockTable) acquire(key string) func() {
	t.mu.Lock()
	entry, ok := t.entries[key]
	if !ok {
		entry = &lockEntry{}
		t.entries[key] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.entries, key)
		}
		t.mu.Unlock()
	}
}
