package future_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ozontech/bodyflow/flow/policy"
	"github.com/ozontech/bodyflow/flow/types"
	"github.com/ozontech/bodyflow/future"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errBrand = errors.New("brand error")

func TestFirstWriteWins(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	f := future.New[int]()
	a.False(f.IsDone())
	a.True(f.Complete(1))
	a.False(f.Complete(2))
	a.False(f.Fail(errBrand))
	a.True(f.IsDone())

	v, err := f.Join()
	a.NoError(err)
	a.Equal(1, v)

	f = future.New[int]()
	a.True(f.Fail(errBrand))
	a.False(f.Complete(3))
	_, err = f.Join()
	a.ErrorIs(err, errBrand)
}

func TestFailNil(t *testing.T) {
	t.Parallel()
	_, err := future.Failed[int](nil).Join()
	assert.ErrorIs(t, err, future.ErrNilError)
}

func TestConcurrentResolve(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	f := future.New[int]()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Complete(i) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	a.Equal(int32(1), wins.Load())
	a.True(f.IsDone())
}

func TestGet(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	f := future.New[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Get(ctx)
	a.ErrorIs(err, context.DeadlineExceeded)
	a.False(f.IsDone(), "context expiry must not resolve the future")

	go f.Complete("ok")
	v, err := f.Get(context.Background())
	a.NoError(err)
	a.Equal("ok", v)
}

func TestOnDone(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	f := future.New[int]()
	var calls []int
	f.OnDone(policy.SyncExecutor, func(v int, err error) {
		a.NoError(err)
		calls = append(calls, v)
	})
	a.Empty(calls)

	f.Complete(7)
	a.Equal([]int{7}, calls)

	f.OnDone(policy.SyncExecutor, func(v int, _ error) { calls = append(calls, v*2) })
	a.Equal([]int{7, 14}, calls)

	f.Complete(8)
	a.Equal([]int{7, 14}, calls, "continuations run exactly once")
}

func TestOnDoneExecutor(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	async := types.ExecutorFunc(func(task func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task()
		}()
	})

	f := future.New[int]()
	got := make(chan error, 1)
	f.OnDone(async, func(_ int, err error) { got <- err })
	f.Fail(errBrand)

	select {
	case err := <-got:
		assert.ErrorIs(t, err, errBrand)
	case <-time.After(time.Second):
		t.Fatal("continuation did not run")
	}
	wg.Wait()
}

func TestMap(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	f := future.New[int]()
	s := future.Map(f, policy.SyncExecutor, func(v int) (string, error) {
		return strconv.Itoa(v), nil
	})
	a.False(s.IsDone())
	f.Complete(42)
	v, err := s.Join()
	a.NoError(err)
	a.Equal("42", v)

	called := false
	failed := future.Map(future.Failed[int](errBrand), policy.SyncExecutor, func(int) (string, error) {
		called = true
		return "", nil
	})
	_, err = failed.Join()
	a.ErrorIs(err, errBrand)
	a.False(called)

	mapErr := future.Map(future.Completed(1), policy.SyncExecutor, func(int) (int, error) {
		return 0, errBrand
	})
	_, err = mapErr.Join()
	require.Error(t, err)
	a.ErrorIs(err, errBrand)
}
