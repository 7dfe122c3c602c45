package asyncwork

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildbridge/internal/module"
)

func TestAwaitDrainWithoutWork(t *testing.T) {
	c := New(Options{})
	c.Begin()
	res, err := c.AwaitDrain(t.Context(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestAwaitDrainBeforeBegin(t *testing.T) {
	_, err := New(Options{}).AwaitDrain(t.Context(), time.Second)
	require.ErrorIs(t, err, ErrNotBegun)
}

func TestAwaitDrainSuccess(t *testing.T) {
	c := New(Options{Heartbeat: 10 * time.Millisecond})
	c.Begin()

	release := make(chan struct{})
	c.Go(t.Context(), "archive", func(context.Context) error {
		<-release
		return nil
	})
	tok := c.Register("fingerprint")
	assert.Equal(t, []string{"archive", "fingerprint"}, c.Pending())

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
		c.Resolve(tok, nil)
	}()

	res, err := c.AwaitDrain(t.Context(), 5*time.Second)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, c.Pending())
}

func TestAwaitDrainFailureOverrides(t *testing.T) {
	c := New(Options{})
	c.Begin()
	c.Go(t.Context(), "deploy", func(context.Context) error { return stderrors.New("upload rejected") })
	c.Go(t.Context(), "notify", func(context.Context) error { return nil })

	res, err := c.AwaitDrain(t.Context(), 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, module.ResultFailure, *res)
}

func TestAwaitDrainTimeoutAborts(t *testing.T) {
	c := New(Options{})
	c.Begin()

	var (
		mu        sync.Mutex
		cancelled bool
	)
	done := make(chan struct{})
	c.Go(t.Context(), "stuck", func(ctx context.Context) error {
		defer close(done)
		<-ctx.Done()
		mu.Lock()
		cancelled = true
		mu.Unlock()
		return ctx.Err()
	})

	res, err := c.AwaitDrain(t.Context(), 20*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, module.ResultAborted, *res)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("outstanding work was not cancelled")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, cancelled)
}

func TestAwaitDrainContextCancelAborts(t *testing.T) {
	c := New(Options{})
	c.Begin()
	c.Register("never resolved")

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res, err := c.AwaitDrain(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, module.ResultAborted, *res)
}

func TestBeginResetsState(t *testing.T) {
	c := New(Options{})
	c.Begin()
	tok := c.Register("old")
	c.Resolve(tok, stderrors.New("old failure"))

	c.Begin()
	c.Resolve(tok, nil) // unknown after reset
	res, err := c.AwaitDrain(t.Context(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, res)
}
