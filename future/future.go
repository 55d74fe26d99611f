// Package future implements a write-once result cell. The first Complete or
// Fail wins; later writes report false so the writer can flag the contract
// violation.
package future

import (
	"context"
	"errors"
	"sync"

	"github.com/ozontech/bodyflow/flow/types"
)

var ErrNilError = errors.New("future: failed with nil error")

type continuation[T any] struct {
	exec types.Executor
	fn   func(T, error)
}

type Future[T any] struct {
	mu    sync.Mutex
	done  chan struct{}
	value T
	err   error
	conts []continuation[T]
}

func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns an already resolved future.
func Completed[T any](v T) *Future[T] {
	f := New[T]()
	f.Complete(v)
	return f
}

func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

func (f *Future[T]) Complete(v T) bool {
	return f.resolve(v, nil)
}

func (f *Future[T]) Fail(err error) bool {
	if err == nil {
		err = ErrNilError
	}
	var zero T
	return f.resolve(zero, err)
}

func (f *Future[T]) resolve(v T, err error) bool {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return false
	default:
	}
	f.value, f.err = v, err
	conts := f.conts
	f.conts = nil
	close(f.done)
	f.mu.Unlock()

	for _, c := range conts {
		c.exec.Execute(func() { c.fn(v, err) })
	}
	return true
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Join blocks until the future is resolved.
func (f *Future[T]) Join() (T, error) {
	<-f.done
	return f.value, f.err
}

// Get blocks until the future is resolved or ctx is done. A ctx error does not
// resolve the future.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnDone runs fn on exec once the future is resolved, immediately if it
// already is. Each continuation runs exactly once.
func (f *Future[T]) OnDone(exec types.Executor, fn func(T, error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		v, err := f.value, f.err
		exec.Execute(func() { fn(v, err) })
		return
	default:
	}
	f.conts = append(f.conts, continuation[T]{exec, fn})
	f.mu.Unlock()
}

// Map derives a future whose value is fn applied to f's value. Errors of f
// pass through untouched and fn is not called.
func Map[T, U any](f *Future[T], exec types.Executor, fn func(T) (U, error)) *Future[U] {
	out := New[U]()
	f.OnDone(exec, func(v T, err error) {
		if err != nil {
			out.Fail(err)
			return
		}
		u, err := fn(v)
		if err != nil {
			out.Fail(err)
			return
		}
		out.Complete(u)
	})
	return out
}
