package async

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critiqdev/critiq/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestSafeGoRuns(t *testing.T) {
	done := make(chan struct{})
	SafeGo(testLogger(), time.Second, "test", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestSafeGoRecoversPanic(t *testing.T) {
	done := make(chan struct{})
	SafeGo(testLogger(), time.Second, "test", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	// give the deferred recover a moment; no crash means success
	time.Sleep(10 * time.Millisecond)
}

func TestWorkerPoolProcessesAll(t *testing.T) {
	pool := NewWorkerPool(context.Background(), testLogger(), 4, "test", time.Second)

	var count int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt64(&count, 1)
			return nil
		}))
	}
	wg.Wait()

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int64(20), atomic.LoadInt64(&count))
}

func TestWorkerPoolRejectsAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(context.Background(), testLogger(), 1, "test", time.Second)
	require.NoError(t, pool.Shutdown(time.Second))

	err := pool.Submit(func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestWorkerPoolRejectsDuringShutdownDrain(t *testing.T) {
	pool := NewWorkerPool(context.Background(), testLogger(), 1, "test", time.Second)

	// keep the worker busy so the drain window stays open
	release := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		<-release
		return nil
	}))

	shutdownDone := make(chan struct{})
	go func() {
		pool.Shutdown(5 * time.Second)
		close(shutdownDone)
	}()

	// once the work channel closes, Submit must report the shutdown
	// instead of silently dropping the task
	var err error
	require.Eventually(t, func() bool {
		err = pool.Submit(func(ctx context.Context) error { return nil })
		return err != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.EqualError(t, err, "worker pool shut down")

	close(release)
	select {
	case <-shutdownDone:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}

func TestWorkerPoolSurvivesPanic(t *testing.T) {
	pool := NewWorkerPool(context.Background(), testLogger(), 1, "test", time.Second)

	var ran int64
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		panic("boom")
	}))
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		atomic.AddInt64(&ran, 1)
		return nil
	}))

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
}
