// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "agent-coord/pkg/errors"
)

// newRecordingClient 构造一个把重试等待记录下来而不真正睡眠的客户端
func newRecordingClient(baseURL string, slept *[]time.Duration) *Client {
	return New(baseURL, "test-token", 5*time.Second).WithSleep(func(d time.Duration) {
		*slept = append(*slept, d)
	})
}

func TestBackoffSchedule(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoffFor(1))
	assert.Equal(t, 4*time.Second, backoffFor(2))
	assert.Equal(t, 8*time.Second, backoffFor(3))
}

func TestFirstAttemptSuccessSleepsNever(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"last_heartbeat_at":"2026-02-11T09:00:00Z","next_heartbeat_at":"2026-02-11T09:15:00Z","heartbeat_interval_seconds":900}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newRecordingClient(srv.URL, &slept)

	out, err := c.Heartbeat(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 900, out.HeartbeatIntervalSeconds)
	assert.Equal(t, int64(1), calls.Load())
	assert.Empty(t, slept)
}

func TestRetrySucceedsWithinBudget(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"updated_at":"2026-02-11T09:05:00Z","heartbeat_interval_seconds":900}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newRecordingClient(srv.URL, &slept)

	out, err := c.Update(context.Background(), UpdateRequest{SessionID: "sess-1", Branch: "feature/x"})
	require.NoError(t, err)
	assert.Equal(t, 900, out.HeartbeatIntervalSeconds)
	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
}

func TestRetryStopsAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newRecordingClient(srv.URL, &slept)

	_, err := c.Sod(context.Background(), SodRequest{Agent: "claude-host1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNetwork(err))
	assert.Equal(t, int64(3), calls.Load())
	// 最后一次失败后不再等待
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)

	var netErr *pkgerrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "POST /sod", netErr.Endpoint)
	assert.Equal(t, 3, netErr.Attempts)
	assert.Contains(t, netErr.Err.Error(), "boom")
}

func TestConnectionFailureCarriesRawError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // 立刻关掉，拿一个必然拒绝连接的地址

	var slept []time.Duration
	c := newRecordingClient(srv.URL, &slept)

	_, err := c.Heartbeat(context.Background(), "sess-1")
	require.Error(t, err)

	var netErr *pkgerrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 3, netErr.Attempts)
	require.NotNil(t, netErr.Err)
	assert.Contains(t, netErr.Err.Error(), "connection refused")
}

func TestSessionNotFoundNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"session not found"}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newRecordingClient(srv.URL, &slept)

	_, err := c.Heartbeat(context.Background(), "sess-gone")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsSessionNotFound(err))
	assert.Equal(t, int64(1), calls.Load())
	assert.Empty(t, slept)

	var nf *pkgerrors.SessionNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "sess-gone", nf.SessionID)
}

func TestSessionNotActiveMapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"session not active"}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newRecordingClient(srv.URL, &slept)

	_, err := c.Update(context.Background(), UpdateRequest{SessionID: "sess-done"})
	require.Error(t, err)

	var na *pkgerrors.SessionNotActiveError
	require.ErrorAs(t, err, &na)
	assert.Equal(t, "sess-done", na.SessionID)
}

func TestAuthorizationHeaderSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(headerRequestID))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ventures":[{"org":"acme","code":"AC"}]}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newRecordingClient(srv.URL, &slept)

	registry, err := c.Ventures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"acme": "AC"}, registry)
}

func TestActiveQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "claude-host1", r.URL.Query().Get("agent"))
		assert.Equal(t, "AC", r.URL.Query().Get("venture"))
		assert.Equal(t, "acme/widget", r.URL.Query().Get("repo"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessions":[{"id":"sess-b","agent":"claude-host1","status":"active"},{"id":"sess-a","agent":"claude-host1","status":"active"}]}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newRecordingClient(srv.URL, &slept)

	out, err := c.Active(context.Background(), "claude-host1", "AC", "acme/widget")
	require.NoError(t, err)
	require.Len(t, out.Sessions, 2)
}
