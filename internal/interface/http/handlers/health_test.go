package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

type stubReachable struct{ healthy bool }

func (s *stubReachable) IsHealthy(context.Context) bool { return s.healthy }

func TestCompositeHealthChecker_AllHealthy(t *testing.T) {
	checker := NewCompositeHealthChecker("test")
	checker.AddCheck("run_ledger", NewPingCheck(&stubPinger{}))
	checker.AddCheck("record_store", NewReachableCheck("record store", &stubReachable{healthy: true}))

	status := checker.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	require.Len(t, status.Checks, 2)
	assert.True(t, status.Checks["run_ledger"].Healthy)
	assert.True(t, status.Checks["record_store"].Healthy)
}

func TestCompositeHealthChecker_OneFailureMarksUnhealthy(t *testing.T) {
	checker := NewCompositeHealthChecker("test")
	checker.AddCheck("run_ledger", NewPingCheck(&stubPinger{err: errors.New("connection refused")}))
	checker.AddCheck("membership_api", NewReachableCheck("membership API", &stubReachable{healthy: true}))

	status := checker.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.False(t, status.Checks["run_ledger"].Healthy)
	assert.Contains(t, status.Checks["run_ledger"].Message, "connection refused")
	assert.True(t, status.Checks["membership_api"].Healthy)
	assert.Contains(t, status.Message, "run_ledger")
}

func TestCompositeHealthChecker_NoChecksRegistered(t *testing.T) {
	checker := NewCompositeHealthChecker("test")

	status := checker.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.Equal(t, "No health checks registered", status.Message)
}

func TestReachableCheck_Unreachable(t *testing.T) {
	check := NewReachableCheck("record store", &stubReachable{healthy: false})

	err := check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record store")
}
