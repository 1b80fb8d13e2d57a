package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rede-alerta/alertsync/internal/alert"
)

// RemoteService is the contract the engine needs from the Rede Alerta
// client. It exists so engine tests can substitute a fake service.
type RemoteService interface {
	List(ctx context.Context) ([]alert.Alert, error)
	Create(ctx context.Context, d alert.Draft) (alert.Alert, error)
	UpdateStatus(ctx context.Context, id int64, status alert.Status) (alert.Alert, error)
	Delete(ctx context.Context, id int64) error
}

// DraftStore records the last successfully submitted report. Saving is
// best-effort; implementations log failures and never return them.
type DraftStore interface {
	Save(d alert.Draft)
}

// Health describes the engine's view of its own refresh loop
type Health struct {
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastError           string    `json:"lastError,omitempty"`
	LastAttempt         time.Time `json:"lastAttempt"`
	LastSuccess         time.Time `json:"lastSuccess"`
}

// Engine is the single source of truth for the displayed alert collection
// and the sole caller of the remote service. Every mutation is optimistic:
// the local collection changes first, then the remote call confirms or the
// change is rolled back.
type Engine struct {
	remote RemoteService
	drafts DraftStore
	logger *logrus.Logger

	mu          sync.Mutex
	collection  []alert.Alert
	health      Health
	subscribers map[uint64]chan struct{}
	nextSubID   uint64

	locks *lockTable
}

// New creates an engine with an empty collection
func New(remote RemoteService, drafts DraftStore, logger *logrus.Logger) *Engine {
	return &Engine{
		remote:      remote,
		drafts:      drafts,
		logger:      logger,
		subscribers: make(map[uint64]chan struct{}),
		locks:       newLockTable(),
	}
}

// Refresh replaces the whole collection with the service's current list.
// On failure the previous collection is retained unchanged (stale but
// available) and the error is returned for the presentation layer.
//
// A refresh completing while a mutation is in flight overwrites that
// mutation's optimistic edit. The service exposes no version or ETag to
// detect this, so the race is accepted rather than hidden; the next refresh
// converges on the authoritative state.
func (e *Engine) Refresh(ctx context.Context) error {
	log := e.logger.WithFields(logrus.Fields{
		"engine": "sync",
		"op":     "refresh",
	})

	list, err := e.remote.List(ctx)
	now := time.Now()

	e.mu.Lock()
	e.health.LastAttempt = now
	if err != nil {
		e.health.ConsecutiveFailures++
		e.health.LastError = err.Error()
		e.mu.Unlock()
		log.WithError(err).Warn("Refresh failed, keeping previous collection")
		return err
	}

	e.collection = dedupe(list)
	e.health.ConsecutiveFailures = 0
	e.health.LastError = ""
	e.health.LastSuccess = now
	count := len(e.collection)
	e.mu.Unlock()

	e.notify()
	log.WithField("count", count).Debug("Collection refreshed")
	return nil
}

// Submit appends a provisional entry immediately, then creates the report
// remotely. On success the provisional entry is replaced by the service's
// authoritative copy (matched by local ref, since the provisional has no id
// yet) and the draft is persisted. On failure the provisional entry is
// removed and the draft store is left untouched: only successful
// submissions are recorded.
func (e *Engine) Submit(ctx context.Context, d alert.Draft) (alert.Alert, error) {
	d.Normalize()

	provisional := alert.Alert{
		LocalRef:    uuid.New(),
		Title:       d.Title,
		Category:    d.Category,
		Description: d.Description,
		Location:    d.Location,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
		NoFix:       !d.HasFix,
		Status:      alert.StatusEnviado,
		Pending:     true,
	}
	if provisional.NoFix {
		provisional.Latitude = 0
		provisional.Longitude = 0
	}

	var created alert.Alert
	err := e.perform(ctx, mutation{
		key: refKey(provisional.LocalRef),
		apply: func() (func(), error) {
			e.collection = append(e.collection, provisional)
			return func() {
				if i := e.indexByRef(provisional.LocalRef); i >= 0 {
					e.collection = append(e.collection[:i], e.collection[i+1:]...)
				}
			}, nil
		},
		call: func(ctx context.Context) (func(), error) {
			got, err := e.remote.Create(ctx, d)
			if err != nil {
				return nil, err
			}
			got.LocalRef = provisional.LocalRef
			got.Location = d.Location
			got.Pending = false
			created = got
			return func() {
				if i := e.indexByRef(provisional.LocalRef); i >= 0 {
					e.collection[i] = created
				}
				// If a refresh replaced the collection mid-flight the
				// provisional entry is already gone; the authoritative copy
				// arrives with the next refresh.
			}, nil
		},
	})
	if err != nil {
		return alert.Alert{}, err
	}

	e.drafts.Save(d)

	e.logger.WithFields(logrus.Fields{
		"engine":   "sync",
		"op":       "submit",
		"alert_id": created.ID,
	}).Info("Report submitted")
	return created, nil
}

// ChangeStatus optimistically rewrites the local entry's status, then
// confirms with the service, reverting on failure. An alert already in the
// terminal Resolvido state is rejected locally without a network call.
func (e *Engine) ChangeStatus(ctx context.Context, id int64, status alert.Status) error {
	var prev alert.Status

	return e.perform(ctx, mutation{
		key: idKey(id),
		apply: func() (func(), error) {
			i := e.indexByID(id)
			if i < 0 {
				return nil, &alert.NotFoundError{ID: id}
			}
			if e.collection[i].Status.IsTerminal() {
				return nil, &alert.InvalidTransitionError{ID: id, From: e.collection[i].Status}
			}
			prev = e.collection[i].Status
			e.collection[i].Status = status
			return func() {
				if j := e.indexByID(id); j >= 0 {
					e.collection[j].Status = prev
				}
			}, nil
		},
		call: func(ctx context.Context) (func(), error) {
			updated, err := e.remote.UpdateStatus(ctx, id, status)
			if err != nil {
				return nil, err
			}
			return func() {
				if j := e.indexByID(id); j >= 0 {
					updated.LocalRef = e.collection[j].LocalRef
					updated.Location = e.collection[j].Location
					e.collection[j] = updated
				}
			}, nil
		},
	})
}

// Remove optimistically drops the entry, then deletes it remotely. Any
// failure, including the service reporting it already gone, re-inserts the
// entry at its original position and surfaces the error.
func (e *Engine) Remove(ctx context.Context, id int64) error {
	var removed alert.Alert
	var at int

	return e.perform(ctx, mutation{
		key: idKey(id),
		apply: func() (func(), error) {
			i := e.indexByID(id)
			if i < 0 {
				return nil, &alert.NotFoundError{ID: id}
			}
			removed = e.collection[i]
			at = i
			e.collection = append(e.collection[:i], e.collection[i+1:]...)
			return func() {
				pos := at
				if pos > len(e.collection) {
					pos = len(e.collection)
				}
				rest := append([]alert.Alert{removed}, e.collection[pos:]...)
				e.collection = append(e.collection[:pos], rest...)
			}, nil
		},
		call: func(ctx context.Context) (func(), error) {
			if err := e.remote.Delete(ctx, id); err != nil {
				return nil, err
			}
			return nil, nil
		},
	})
}

// Snapshot returns a copy of the current collection for display.
// Presentation code must never mutate engine state; the copy makes that
// structurally impossible.
func (e *Engine) Snapshot() []alert.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]alert.Alert, len(e.collection))
	copy(out, e.collection)
	return out
}

// Health returns the refresh-loop health counters
func (e *Engine) Health() Health {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health
}

// Subscribe returns a channel that receives a coalesced signal whenever the
// collection changes, plus a cancel function. Consumers read a fresh
// Snapshot on each signal.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = ch
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		delete(e.subscribers, id)
		e.mu.Unlock()
	}
	return ch, cancel
}

// notify signals all subscribers without blocking; a subscriber that has
// not drained its channel keeps the single pending signal
func (e *Engine) notify() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ch := range e.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// indexByID finds a collection entry by server id; callers hold e.mu
func (e *Engine) indexByID(id int64) int {
	for i := range e.collection {
		if e.collection[i].ID == id {
			return i
		}
	}
	return -1
}

// indexByRef finds a collection entry by local ref; callers hold e.mu
func (e *Engine) indexByRef(ref uuid.UUID) int {
	for i := range e.collection {
		if e.collection[i].LocalRef == ref {
			return i
		}
	}
	return -1
}

// dedupe enforces the collection invariant: no two entries share a non-zero
// id. The first occurrence wins, preserving the service's ordering. Entries
// arriving from the wire get a local ref assigned here.
func dedupe(list []alert.Alert) []alert.Alert {
	seen := make(map[int64]struct{}, len(list))
	out := make([]alert.Alert, 0, len(list))
	for _, a := range list {
		if a.ID != 0 {
			if _, dup := seen[a.ID]; dup {
				continue
			}
			seen[a.ID] = struct{}{}
		}
		if a.LocalRef == uuid.Nil {
			a.LocalRef = uuid.New()
		}
		out = append(out, a)
	}
	return out
}
