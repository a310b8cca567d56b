// Package timer implements the external timer wheel contract from
// spec.md §6 (`timer.set(handle, duration)`, `timer.unset(handle)`,
// one-shot, callback-on-expiry), exposing opaque handles per §9's
// "Timer callbacks as objects with identity" note rather than letting
// callers compare by pointer identity.
package timer

import (
	"sync"
	"sync/atomic"
	"time"
)

// ID is an opaque timer handle.
type ID uint64

// Wheel arms one-shot timers and delivers expiry as a callback. Expiry
// callbacks are invoked from their own goroutine (time.AfterFunc's
// contract); callers that need serialization with other events (as
// discover does) must have the callback merely enqueue onto their own
// dispatch channel rather than touch shared state directly.
type Wheel struct {
	mu     sync.Mutex
	timers map[ID]*time.Timer
	nextID atomic.Uint64
}

// New creates an empty timer wheel.
func New() *Wheel {
	return &Wheel{timers: make(map[ID]*time.Timer)}
}

// Set arms a new one-shot timer for d, invoking fn on expiry unless
// canceled first via Unset. Returns the handle to later Unset it.
func (w *Wheel) Set(d time.Duration, fn func()) ID {
	id := ID(w.nextID.Add(1))
	t := time.AfterFunc(d, func() {
		w.mu.Lock()
		_, live := w.timers[id]
		if live {
			delete(w.timers, id)
		}
		w.mu.Unlock()
		if live {
			fn()
		}
	})
	w.mu.Lock()
	w.timers[id] = t
	w.mu.Unlock()
	return id
}

// Unset cancels a pending timer. It is a no-op if the timer already
// fired or was already canceled — callers never need to guard this
// themselves (spec.md §5: "no leaks", cancellation races are harmless).
func (w *Wheel) Unset(id ID) {
	w.mu.Lock()
	t, ok := w.timers[id]
	if ok {
		delete(w.timers, id)
	}
	w.mu.Unlock()
	if ok {
		t.Stop()
	}
}

// Len reports the number of currently-armed timers (diagnostics only).
func (w *Wheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}
