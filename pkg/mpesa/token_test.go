package mpesa

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCacheMargin(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTokenCache(60 * time.Second)
	c.now = func() time.Time { return now }

	_, ok := c.Get()
	assert.False(t, ok)

	c.Set("tok", 120*time.Second)
	tok, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)

	// inside the margin the token counts as expired
	now = now.Add(61 * time.Second)
	_, ok = c.Get()
	assert.False(t, ok)
}

func TestTokenCacheGetOrRefreshSharesOneCall(t *testing.T) {
	c := NewTokenCache(DefaultTokenMargin)
	var calls atomic.Int32
	release := make(chan struct{})

	refresh := func(ctx context.Context) (string, time.Duration, error) {
		calls.Add(1)
		<-release
		return "shared", time.Hour, nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := c.GetOrRefresh(context.Background(), refresh)
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestTokenCacheRefreshErrorIsNotCached(t *testing.T) {
	c := NewTokenCache(DefaultTokenMargin)
	boom := errors.New("boom")

	_, err := c.GetOrRefresh(context.Background(), func(context.Context) (string, time.Duration, error) {
		return "", 0, boom
	})
	require.ErrorIs(t, err, boom)

	tok, err := c.GetOrRefresh(context.Background(), func(context.Context) (string, time.Duration, error) {
		return "ok", time.Hour, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", tok)

	c.Invalidate()
	_, ok := c.Get()
	assert.False(t, ok)
}

func TestTokenCacheRefreshSurvivesFirstCallerCancel(t *testing.T) {
	c := NewTokenCache(DefaultTokenMargin)
	started := make(chan struct{})
	release := make(chan struct{})

	refresh := func(ctx context.Context) (string, time.Duration, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		return "fresh", time.Hour, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrRefresh(firstCtx, refresh)
		firstErr <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		tok, err := c.GetOrRefresh(context.Background(), refresh)
		assert.NoError(t, err)
		second <- tok
	}()

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	select {
	case tok := <-second:
		assert.Equal(t, "fresh", tok)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never got the token")
	}

	tok, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, "fresh", tok)
}

func TestTokenCacheRefreshTimeout(t *testing.T) {
	c := NewTokenCache(DefaultTokenMargin)
	c.refreshTimeout = 10 * time.Millisecond

	_, err := c.GetOrRefresh(context.Background(), func(ctx context.Context) (string, time.Duration, error) {
		<-ctx.Done()
		return "", 0, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
