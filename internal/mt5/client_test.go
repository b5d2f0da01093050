package mt5

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

func newTestClient(t *testing.T, handler http.Handler, statusTTL time.Duration) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "test-token", 5*time.Second, statusTTL)
	require.NoError(t, err)
	return client
}

func TestGetDeploymentStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("auth-token"))
		assert.Equal(t, "/users/current/accounts/ext-1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id":"ext-1","state":"DEPLOYED","connectionStatus":"CONNECTED"}`))
	})

	client := newTestClient(t, handler, time.Minute)

	status, err := client.GetDeploymentStatus(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, StateDeployed, status.State)
	assert.Equal(t, ConnectionConnected, status.Connection)
}

func TestGetDeploymentStatusCached(t *testing.T) {
	var calls int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		_, _ = w.Write([]byte(`{"state":"DEPLOYING","connectionStatus":""}`))
	})

	client := newTestClient(t, handler, time.Minute)

	_, err := client.GetDeploymentStatus(context.Background(), "ext-1")
	require.NoError(t, err)

	// Ristretto admits entries asynchronously
	require.Eventually(t, func() bool {
		_, ok := client.statusCache.get("ext-1")
		return ok
	}, time.Second, 10*time.Millisecond)

	_, err = client.GetDeploymentStatus(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls), "second lookup served from cache")

	client.InvalidateStatus("ext-1")
	_, err = client.GetDeploymentStatus(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&calls), "invalidation forces a refetch")
}

func TestGetDeploymentStatusUpstreamError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	client := newTestClient(t, handler, time.Minute)

	_, err := client.GetDeploymentStatus(context.Background(), "ext-1")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestGetAccountInfo(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/current/accounts/ext-1/account-information", r.URL.Path)
		_, _ = w.Write([]byte(`{"balance":2500.5,"equity":2600.25}`))
	})

	client := newTestClient(t, handler, time.Minute)

	info, err := client.GetAccountInfo(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.InDelta(t, 2500.5, info.Balance, 1e-9)
	assert.InDelta(t, 2600.25, info.Equity, 1e-9)
}

func TestGetDealHistory(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"d1","type":"DEAL_TYPE_BUY","volume":1.5,"profit":10},
			{"id":"d2","type":"DEAL_TYPE_BALANCE","volume":0,"profit":100}
		]`))
	})

	client := newTestClient(t, handler, time.Minute)

	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	deals, err := client.GetDealHistory(context.Background(), "ext-1", start, start.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, deals, 2)

	assert.True(t, deals[0].IsTrade())
	assert.False(t, deals[1].IsTrade())
	assert.InDelta(t, 1.5, deals[0].Volume, 1e-9)
}

func TestCreateDeploymentQuotaExceeded(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "billing required", http.StatusPaymentRequired)
	})

	client := newTestClient(t, handler, time.Minute)

	_, err := client.CreateDeployment(context.Background(), "my account")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestCreateDeployment(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ext-new"}`))
	})

	client := newTestClient(t, handler, time.Minute)

	id, err := client.CreateDeployment(context.Background(), "my account")
	require.NoError(t, err)
	assert.Equal(t, "ext-new", id)
}
