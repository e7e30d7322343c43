package membership

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CurrentMembershipExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/membership-settings/current", r.URL.Path)
		w.Write([]byte(`{"membership_expires_on": "2026-09-30"}`))
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig(server.URL))

	expiry, err := client.CurrentMembershipExpiry(context.Background())
	require.NoError(t, err)
	require.NotNil(t, expiry)

	// Inclusive date: the returned instant is the very end of that day.
	assert.Equal(t, 2026, expiry.Year())
	assert.Equal(t, "September", expiry.Month().String())
	assert.Equal(t, 30, expiry.Day())
	assert.Equal(t, 23, expiry.Hour())
}

func TestClient_CurrentMembershipExpiry_NotConfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"membership_expires_on": ""}`))
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig(server.URL))

	expiry, err := client.CurrentMembershipExpiry(context.Background())
	require.NoError(t, err)
	assert.Nil(t, expiry)
}

func TestClient_CurrentMembershipExpiry_NoSettingsRow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig(server.URL))

	expiry, err := client.CurrentMembershipExpiry(context.Background())
	require.NoError(t, err)
	assert.Nil(t, expiry)
}

func TestClient_CurrentMembershipExpiry_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"membership_expires_on": "2026-01-15"}`))
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig(server.URL))

	expiry, err := client.CurrentMembershipExpiry(context.Background())
	require.NoError(t, err)
	require.NotNil(t, expiry)
	assert.Equal(t, 2, calls)
}

func TestClient_CurrentMembershipExpiry_BadDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"membership_expires_on": "30/09/2026"}`))
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig(server.URL))

	_, err := client.CurrentMembershipExpiry(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "30/09/2026")
}

func TestClient_IsHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig(server.URL))
	assert.True(t, client.IsHealthy(context.Background()))
}
