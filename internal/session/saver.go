package session

import (
	"sync"
	"time"
)

// saver coalesces body writes per document id: each enqueue restarts
// that id's timer and replaces its payload, so a burst of edits becomes
// one storage write once the keyboard goes quiet.
type saver struct {
	delay time.Duration
	flush func(id, encoded string)

	mu      sync.Mutex
	closed  bool
	pending map[string]*pendingSave
}

type pendingSave struct {
	timer   *time.Timer
	encoded string
}

func newSaver(delay time.Duration, flush func(id, encoded string)) *saver {
	return &saver{
		delay:   delay,
		flush:   flush,
		pending: make(map[string]*pendingSave),
	}
}

func (sv *saver) enqueue(id, encoded string) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.closed {
		return
	}
	if p, ok := sv.pending[id]; ok {
		p.encoded = encoded
		p.timer.Reset(sv.delay)
		return
	}
	p := &pendingSave{encoded: encoded}
	p.timer = time.AfterFunc(sv.delay, func() { sv.fire(id) })
	sv.pending[id] = p
}

func (sv *saver) fire(id string) {
	sv.mu.Lock()
	p, ok := sv.pending[id]
	if !ok {
		sv.mu.Unlock()
		return
	}
	delete(sv.pending, id)
	encoded := p.encoded
	sv.mu.Unlock()

	sv.flush(id, encoded)
}

// pendingCount reports how many documents have an unflushed save.
func (sv *saver) pendingCount() int {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return len(sv.pending)
}

// drop discards any pending save for id without writing it.
func (sv *saver) drop(id string) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if p, ok := sv.pending[id]; ok {
		p.timer.Stop()
		delete(sv.pending, id)
	}
}

// flushAll writes every pending save immediately.
func (sv *saver) flushAll() {
	sv.mu.Lock()
	batch := make(map[string]string, len(sv.pending))
	for id, p := range sv.pending {
		p.timer.Stop()
		batch[id] = p.encoded
		delete(sv.pending, id)
	}
	sv.mu.Unlock()

	for id, encoded := range batch {
		sv.flush(id, encoded)
	}
}

func (sv *saver) close() {
	sv.mu.Lock()
	sv.closed = true
	sv.mu.Unlock()
	sv.flushAll()
}
