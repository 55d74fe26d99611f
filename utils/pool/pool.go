package pool

import "sync"

// SlicePool keeps released slices for reuse. Released slices are truncated to
// zero length and their elements zeroed so pooled memory pins nothing.
type SlicePool[T any] struct {
	mu       sync.Mutex
	s        [][]T
	capacity int
	maxKept  int
}

func NewSlicePool[T any](capacity, maxKept int) *SlicePool[T] {
	return &SlicePool[T]{
		s:        make([][]T, 0, maxKept),
		capacity: capacity,
		maxKept:  maxKept,
	}
}

func (p *SlicePool[T]) Acquire() []T {
	p.mu.Lock()
	defer p.mu.Unlock()

	l := len(p.s)
	if l == 0 {
		return make([]T, 0, p.capacity)
	}

	v := p.s[l-1]
	p.s[l-1] = nil
	p.s = p.s[:l-1]
	return v
}

func (p *SlicePool[T]) Release(v []T) {
	if v == nil {
		return
	}
	clear(v)
	v = v[:0]

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.s) >= p.maxKept {
		return
	}
	p.s = append(p.s, v)
}

func (p *SlicePool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.s)
}
