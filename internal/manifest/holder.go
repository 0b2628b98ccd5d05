package manifest

import (
	"sync/atomic"

	"github.com/tabi-dev/tabi/internal/types"
)

// Holder publishes the current manifest to concurrent readers. Snapshots
// are replaced wholesale, never mutated, so a reader always observes a
// complete consistent manifest even while a rescan is in flight.
type Holder struct {
	current atomic.Pointer[types.Manifest]
}

// NewHolder starts with the given snapshot.
func NewHolder(m *types.Manifest) *Holder {
	h := &Holder{}
	h.current.Store(m)

	return h
}

// Current returns the latest published snapshot.
func (h *Holder) Current() *types.Manifest {
	return h.current.Load()
}

// Replace swaps in a new snapshot and returns the one it displaced.
func (h *Holder) Replace(m *types.Manifest) *types.Manifest {
	return h.current.Swap(m)
}
