package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ReverseOrder(t *testing.T) {
	h := NewHandler(time.Second)

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		h.OnShutdown(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	require.NoError(t, h.Shutdown())
	assert.Equal(t, []int{3, 2, 1}, order)

	select {
	case <-h.Done():
	default:
		t.Fatal("Done not closed after shutdown")
	}
}

func TestHandler_LastError(t *testing.T) {
	h := NewHandler(time.Second)
	first := errors.New("first")
	second := errors.New("second")

	h.OnShutdown(func(context.Context) error { return first })
	h.OnShutdown(func(context.Context) error { return second })
	h.OnShutdown(func(context.Context) error { return nil })

	assert.ErrorIs(t, h.Shutdown(), first)
}

func TestHandler_HooksGetDeadline(t *testing.T) {
	h := NewHandler(50 * time.Millisecond)

	var deadline time.Time
	var ok bool
	h.OnShutdown(func(ctx context.Context) error {
		deadline, ok = ctx.Deadline()
		return nil
	})

	require.NoError(t, h.Shutdown())
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), deadline, time.Second)
}

func TestHandler_WaitOnContext(t *testing.T) {
	h := NewHandler(time.Second)
	called := make(chan struct{})
	h.OnShutdown(func(context.Context) error {
		close(called)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(ctx) }()

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
	<-called
}

func TestHandler_ShutdownTwice(t *testing.T) {
	h := NewHandler(time.Second)
	calls := 0
	h.OnShutdown(func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, h.Shutdown())
	require.NoError(t, h.Shutdown())
	assert.Equal(t, 1, calls)
}
