package exec_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/theme-lifecycle/themewave/exec"
	"github.com/stretchr/testify/require"
)

func TestSequential_RunsInOrder(t *testing.T) {
	t.Parallel()

	var order []int
	tasks := make([]func() error, 5)
	for i := 0; i < 5; i++ {
		i := i
		tasks[i] = func() error {
			order = append(order, i)
			return nil
		}
	}

	errs := exec.Sequential{}.Run(tasks)
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPool_RunCollectsErrorsByIndex(t *testing.T) {
	t.Parallel()

	p := exec.NewPool(4)
	defer p.Close()

	sentinel := errors.New("boom")
	var counter atomic.Int64
	tasks := []func() error{
		func() error { counter.Add(1); return nil },
		func() error { counter.Add(1); return sentinel },
		func() error { counter.Add(1); return nil },
	}

	errs := p.Run(tasks)
	require.Len(t, errs, 3)
	require.NoError(t, errs[0])
	require.ErrorIs(t, errs[1], sentinel)
	require.NoError(t, errs[2])
	require.EqualValues(t, 3, counter.Load())
}

func TestPool_EmptyTasks(t *testing.T) {
	t.Parallel()

	p := exec.NewPool(2)
	defer p.Close()

	errs := p.Run(nil)
	require.Empty(t, errs)
}

func TestPool_RunAfterClose(t *testing.T) {
	t.Parallel()

	p := exec.NewPool(2)
	p.Close()

	errs := p.Run([]func() error{func() error { return nil }})
	require.Len(t, errs, 1)
	require.NoError(t, errs[0])
}
