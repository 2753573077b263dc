package enginectl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(srv.URL)
	assert.True(t, p.Probe(context.Background()))
}

func TestProbeNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProber(srv.URL)
	assert.False(t, p.Probe(context.Background()))
}

func TestProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	p := NewProber(srv.URL)
	assert.False(t, p.Probe(context.Background()))
}

func TestWaitUntilReadyNeverReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := NewProber(srv.URL)
	start := time.Now()
	err := p.WaitUntilReady(context.Background(), 300*time.Millisecond, 50*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAPINotReachable)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestWaitUntilReadySucceedsOnThirdProbe(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(srv.URL)
	err := p.WaitUntilReady(context.Background(), 2*time.Second, 20*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWaitUntilReadyCancelled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewProber(srv.URL)

	go func() {
		time.Sleep(80 * time.Millisecond)
		cancel()
	}()
	err := p.WaitUntilReady(ctx, 10*time.Second, 30*time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)

	// No probe may be issued after cancellation.
	settled := calls.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, settled, calls.Load())
}
