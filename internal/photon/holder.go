package photon

import "sync/atomic"

// Holder publishes the currently active Instance so request-handling
// goroutines always see either the previous or the next fully-loaded
// instance, never a partially constructed one. A reload that fails leaves
// the previous instance in place, per the file watcher's "error
// notification, catalog remains the last successfully loaded one" rule.
type Holder struct {
	current atomic.Pointer[Instance]
}

// NewHolder constructs a Holder already carrying inst.
func NewHolder(inst *Instance) *Holder {
	h := &Holder{}
	h.current.Store(inst)
	return h
}

// Get returns the currently active instance.
func (h *Holder) Get() *Instance {
	return h.current.Load()
}

// Swap atomically replaces the active instance and returns the previous
// one, so the caller can Close it once any in-flight invocations against
// it have drained.
func (h *Holder) Swap(next *Instance) *Instance {
	return h.current.Swap(next)
}
