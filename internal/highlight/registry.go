package highlight

import (
	"sync/atomic"
	"time"
)

// Registry holds the installed check sequence. Replace swaps in a fully built
// sequence; readers never observe a partial one and never block.
type Registry struct {
	current    atomic.Pointer[Sequence]
	generation atomic.Uint64
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(&Sequence{})
	return r
}

// Replace installs seq and returns it stamped with its generation.
func (r *Registry) Replace(seq Sequence) Sequence {
	seq.generation = r.generation.Add(1)
	if seq.builtAt.IsZero() {
		seq.builtAt = time.Now()
	}
	r.current.Store(&seq)
	return seq
}

// Snapshot returns the sequence to use for one evaluation.
func (r *Registry) Snapshot() Sequence {
	if p := r.current.Load(); p != nil {
		return *p
	}
	return Sequence{}
}

func (r *Registry) Generation() uint64 {
	return r.generation.Load()
}
