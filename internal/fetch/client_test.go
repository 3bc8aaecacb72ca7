package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/region-data-service/internal/observability"
)

func testClient(clock clockwork.Clock) *Client {
	return NewClient(clock, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{Timeout: time.Second, MaxRetries: maxRetries, RetryDelay: time.Millisecond}
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "data=q", string(body))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := testClient(nil).Fetch(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Body:    []byte("data=q"),
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Policy:  fastPolicy(2),
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "ok", string(resp.Body))
}

func TestFetch_ServerErrorExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(nil).Fetch(context.Background(), Request{URL: srv.URL, Policy: fastPolicy(2)})
	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "3 attempts failed")
}

func TestFetch_ClientErrorReturnedImmediately(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusTooManyRequests} {
		var attempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			attempts.Add(1)
			w.WriteHeader(status)
		}))

		resp, err := testClient(nil).Fetch(context.Background(), Request{URL: srv.URL, Policy: fastPolicy(2)})
		srv.Close()

		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode)
		assert.False(t, resp.OK())
		assert.Equal(t, int32(1), attempts.Load(), "status %d must not be retried", status)
	}
}

func TestFetch_RecoversAfterServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := testClient(nil).Fetch(context.Background(), Request{URL: srv.URL, Policy: fastPolicy(2)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestFetch_TimeoutCountsAsFailedAttempt(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	policy := RetryPolicy{Timeout: 50 * time.Millisecond, MaxRetries: 1, RetryDelay: time.Millisecond}
	_, err := testClient(nil).Fetch(context.Background(), Request{URL: srv.URL, Policy: policy})
	require.Error(t, err)
	assert.Equal(t, int32(2), attempts.Load())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testClient(nil).Fetch(context.Background(), Request{URL: url, Policy: fastPolicy(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 attempts failed")
}

// hitRecorder records the fake-clock time of every request it serves.
type hitRecorder struct {
	mu    sync.Mutex
	clock clockwork.Clock
	times []time.Time
}

func (h *hitRecorder) record() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.times = append(h.times, h.clock.Now())
	return len(h.times)
}

func (h *hitRecorder) snapshot() []time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Time(nil), h.times...)
}

func TestFetch_RateLimitWaitsThirtySeconds(t *testing.T) {
	clock := clockwork.NewFakeClock()
	hits := &hitRecorder{clock: clock}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.record() == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := testClient(clock).Fetch(ctx, Request{
			URL:    srv.URL,
			Policy: RetryPolicy{Timeout: time.Second, MaxRetries: 2, RetryDelay: time.Second, SpecialRetryFor429: true},
		})
		done <- result{resp, err}
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(29 * time.Second)
	assert.Len(t, hits.snapshot(), 1, "must not retry before the rate-limit wait elapses")
	clock.Advance(time.Second)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.resp.StatusCode)

	times := hits.snapshot()
	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), RateLimitWait)
}

func TestFetch_ExponentialBackoffSchedule(t *testing.T) {
	clock := clockwork.NewFakeClock()
	hits := &hitRecorder{clock: clock}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.record() < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := testClient(clock).Fetch(ctx, Request{
			URL:    srv.URL,
			Policy: RetryPolicy{Timeout: time.Second, MaxRetries: 2, RetryDelay: time.Second},
		})
		done <- err
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)
	require.NoError(t, <-done)

	times := hits.snapshot()
	require.Len(t, times, 3)
	assert.Equal(t, time.Second, times[1].Sub(times[0]))
	assert.Equal(t, 2*time.Second, times[2].Sub(times[1]))
}

func TestFetch_ContextCancelledDuringWait(t *testing.T) {
	clock := clockwork.NewFakeClock()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := testClient(clock).Fetch(ctx, Request{URL: srv.URL, Policy: fastPolicy(2)})
		done <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_Normalized(t *testing.T) {
	p := RetryPolicy{MaxRetries: -1}.normalized()
	assert.Equal(t, DefaultTimeout, p.Timeout)
	assert.Equal(t, DefaultRetryDelay, p.RetryDelay)
	assert.Equal(t, 0, p.MaxRetries)

	assert.Equal(t, RetryPolicy{Timeout: 10 * time.Second, MaxRetries: 2, RetryDelay: 2 * time.Second}, DefaultRetryPolicy())
}
