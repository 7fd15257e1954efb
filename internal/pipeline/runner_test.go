package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingBatcher runs until release is closed and reports whether it saw a
// canceled context.
type blockingBatcher struct {
	started  chan struct{}
	release  chan struct{}
	finished atomic.Int32
	canceled atomic.Bool
}

func (b *blockingBatcher) Run(ctx context.Context, req Request) (Results, error) {
	b.started <- struct{}{}
	<-b.release
	if ctx.Err() != nil {
		b.canceled.Store(true)
	}
	b.finished.Add(1)
	out := Results{}
	for _, it := range req.Items {
		out[it.Key] = &Result{Key: it.Key}
	}
	return out, nil
}

func newBlocking() *blockingBatcher {
	return &blockingBatcher{started: make(chan struct{}, 4), release: make(chan struct{})}
}

func TestRunnerSubmit(t *testing.T) {
	r := newRig(t)
	run := NewRunner(r.orch, 2)
	defer run.Close()

	res, err := run.Submit(context.Background(), Request{Items: []Item{{Key: "1", Text: "forces"}}, Classify: true})
	require.NoError(t, err)
	assert.Equal(t, "Physics", res["1"].Subject)
}

func TestRunnerCallerGivesUp(t *testing.T) {
	b := newBlocking()
	run := NewRunner(b, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := run.Submit(ctx, Request{Items: []Item{{Key: "1"}}})
		errc <- err
	}()
	<-b.started
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit did not return after cancel")
	}

	close(b.release)
	run.Close()
	assert.EqualValues(t, 1, b.finished.Load())
	assert.False(t, b.canceled.Load())
}

func TestRunnerQueuesBeyondWorkers(t *testing.T) {
	b := newBlocking()
	run := NewRunner(b, 1)

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := run.Submit(context.Background(), Request{})
			assert.NoError(t, err)
			done <- struct{}{}
		}()
	}
	<-b.started
	select {
	case <-b.started:
		t.Fatal("second batch started with one worker busy")
	case <-time.After(50 * time.Millisecond):
	}
	close(b.release)
	<-done
	<-done
	run.Close()
	assert.EqualValues(t, 2, b.finished.Load())
}

func TestRunnerClosed(t *testing.T) {
	run := NewRunner(newBlocking(), 1)
	run.Close()
	run.Close()
	_, err := run.Submit(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrRunnerClosed)
}
