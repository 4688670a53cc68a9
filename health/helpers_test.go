package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		state   string
		healthy bool
	}{
		{"healthy", NewHealthy("store", "ok"), "healthy", true},
		{"unhealthy", NewUnhealthy("store", "down"), "unhealthy", false},
		{"degraded", NewDegraded("store", "fallback"), "degraded", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "store", tt.status.Component)
			assert.Equal(t, tt.state, tt.status.Status)
			assert.Equal(t, tt.healthy, tt.status.Healthy)
			assert.False(t, tt.status.Timestamp.IsZero())
		})
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name  string
		subs  []Status
		state string
	}{
		{"empty", nil, "healthy"},
		{"all healthy", []Status{NewHealthy("store", ""), NewHealthy("pubsub", "")}, "healthy"},
		{"one degraded", []Status{NewHealthy("store", ""), NewDegraded("pubsub", "")}, "degraded"},
		{"unhealthy wins", []Status{NewDegraded("store", ""), NewUnhealthy("pubsub", "")}, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Aggregate("ipc", tt.subs)

			assert.Equal(t, "ipc", result.Component)
			assert.Equal(t, tt.state, result.Status)
			assert.Len(t, result.SubStatuses, len(tt.subs))
		})
	}
}

func TestAggregate_DoesNotModifyInput(t *testing.T) {
	subs := []Status{NewHealthy("store", ""), NewHealthy("pubsub", "")}

	result := Aggregate("ipc", subs)
	require.Len(t, result.SubStatuses, 2)

	result.SubStatuses[0].Status = "unhealthy"
	assert.Equal(t, "healthy", subs[0].Status)
}

func TestAggregate_NamesFailingChildren(t *testing.T) {
	result := Aggregate("ipc", []Status{NewUnhealthy("store", ""), NewUnhealthy("pubsub", "")})
	assert.Equal(t, "unhealthy: store, pubsub", result.Message)
}
