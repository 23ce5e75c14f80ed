package transfer

import "sync"

// Ledger is the authoritative record of currently-failing item ids. It
// is shared between the orchestrator workers and the wave controller;
// every mutation goes through the single internal mutex.
type Ledger struct {
	mu       sync.Mutex
	failures map[string]string
}

func NewLedger() *Ledger {
	return &Ledger{
		failures: make(map[string]string),
	}
}

// Put records the last-known failure detail for an item.
func (l *Ledger) Put(id, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[id] = detail
}

// Remove clears an item that has since succeeded.
func (l *Ledger) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, id)
}

// Snapshot returns a point-in-time copy of the ledger contents.
func (l *Ledger) Snapshot() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]string, len(l.failures))
	for id, detail := range l.failures {
		out[id] = detail
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.failures)
}
