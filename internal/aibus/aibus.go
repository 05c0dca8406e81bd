// Package aibus fans unsolicited CAT frames out to every connected
// rigctl session and any in-process subscriber, the way radio-pushed
// state reaches remote GUIs without polling.
package aibus

import (
	"sync"
	"sync/atomic"

	"github.com/w1cat/ftx1bridge/internal/catlink"
)

// Listener receives one decoded frame's wire text, e.g. "FA014074000;".
type Listener interface {
	DeliverAI(line string)
}

// Broadcaster fans out AI frames to a copy-on-write listener set, held
// in an atomic.Pointer so the CatLink reader goroutine can read the
// current set without ever blocking behind a subscribe/unsubscribe
// mutation or a slow consumer.
type Broadcaster struct {
	listeners atomic.Pointer[[]Listener]
	mu        sync.Mutex // serializes Subscribe/unsubscribe read-modify-write
}

// New returns an empty Broadcaster.
func New() *Broadcaster {
	b := &Broadcaster{}
	empty := []Listener{}
	b.listeners.Store(&empty)
	return b
}

// Subscribe registers l and returns an unsubscribe func.
func (b *Broadcaster) Subscribe(l Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := *b.listeners.Load()
	next := make([]Listener, len(cur)+1)
	copy(next, cur)
	next[len(cur)] = l
	b.listeners.Store(&next)

	return func() { b.unsubscribe(l) }
}

func (b *Broadcaster) unsubscribe(target Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := *b.listeners.Load()
	next := make([]Listener, 0, len(cur))
	for _, l := range cur {
		if l != target {
			next = append(next, l)
		}
	}
	b.listeners.Store(&next)
}

// snapshot returns the current listener slice without copying it again;
// callers must not mutate it. Safe to iterate without holding mu since
// Subscribe/unsubscribe always store a freshly built slice rather than
// mutate the one in flight.
func (b *Broadcaster) snapshot() []Listener {
	return *b.listeners.Load()
}

// HandleFrame is a catlink.AIHandler: it formats f as "AI:<raw>;\n" and
// delivers it to every current listener, best-effort.
func (b *Broadcaster) HandleFrame(f catlink.Frame) {
	line := "AI:" + f.Raw + ";\n"
	for _, l := range b.snapshot() {
		l.DeliverAI(line)
	}
}
