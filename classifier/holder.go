package classifier

import "sync/atomic"

// Holder publishes the current Engine. Readers call Load per request and
// never see a partially built engine.
type Holder struct {
	ptr atomic.Pointer[Engine]
}

// NewHolder returns a holder publishing e.
func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	h.ptr.Store(e)
	return h
}

// Load returns the current engine.
func (h *Holder) Load() *Engine {
	return h.ptr.Load()
}

// Swap publishes e and returns the previous engine.
func (h *Holder) Swap(e *Engine) *Engine {
	return h.ptr.Swap(e)
}
