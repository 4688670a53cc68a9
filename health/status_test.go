package health

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "Unix file path",
			input:    "failed to open /etc/ga/config.yaml",
			expected: "failed to open [PATH]",
		},
		{
			name:     "Windows file path",
			input:    "cannot read C:\\Users\\Admin\\config.json",
			expected: "cannot read [PATH]",
		},
		{
			name:     "HTTP URL",
			input:    "connection failed to https://api.example.com/v1/health",
			expected: "connection failed to [URL]",
		},
		{
			name:     "NATS URL",
			input:    "cannot connect to nats://localhost:4222",
			expected: "cannot connect to [URL]",
		},
		{
			name:     "WebSocket URL",
			input:    "dial ws://127.0.0.1:8765/: connection refused",
			expected: "dial [URL] connection refused",
		},
		{
			name:     "IP address",
			input:    "timeout connecting to 192.168.1.100",
			expected: "timeout connecting to [IP]",
		},
		{
			name:     "Port number",
			input:    "failed to bind to :8080",
			expected: "failed to bind to [PORT]",
		},
		{
			name:     "Credentials in error",
			input:    "auth failed with password:secretpass123",
			expected: "auth failed with [REDACTED]",
		},
		{
			name:     "Complex error with multiple sensitive items",
			input:    "failed to connect to https://192.168.1.1:8080/api with token=abc123def",
			expected: "failed to connect to [URL] with [REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeErrorMessage(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestWithSubStatus_SliceIsolation(t *testing.T) {
	// Create original status with sub-statuses
	original := Status{
		Component: "parent",
		Status:    "healthy",
		SubStatuses: []Status{
			{Component: "child1", Status: "healthy"},
		},
	}

	// Add a new sub-status
	modified := original.WithSubStatus(Status{
		Component: "child2",
		Status:    "unhealthy",
	})

	// Verify original is unchanged
	assert.Len(t, original.SubStatuses, 1, "Original should still have 1 sub-status")
	assert.Len(t, modified.SubStatuses, 2, "Modified should have 2 sub-statuses")

	// Verify they don't share the underlying array
	assert.Equal(t, "child1", original.SubStatuses[0].Component)
	assert.Equal(t, "child1", modified.SubStatuses[0].Component)
	assert.Equal(t, "child2", modified.SubStatuses[1].Component)

	// Modify the original's sub-status
	original.SubStatuses[0].Status = "degraded"

	// Verify modified is unaffected
	assert.Equal(t, "degraded", original.SubStatuses[0].Status)
	assert.Equal(t, "healthy", modified.SubStatuses[0].Status, "Modified should not be affected by changes to original")
}

func TestStatus_StateHelpers(t *testing.T) {
	assert.True(t, NewHealthy("store", "ok").IsHealthy())
	assert.True(t, NewDegraded("store", "slow").IsDegraded())
	assert.True(t, NewUnhealthy("store", "down").IsUnhealthy())
	assert.False(t, NewDegraded("store", "slow").Healthy)
}

func TestFromProbe(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		status := FromProbe("pubsub", nil, 3*time.Millisecond)

		assert.True(t, status.IsHealthy())
		assert.Equal(t, "pubsub", status.Component)
		require.NotNil(t, status.Metrics)
		assert.Equal(t, 3*time.Millisecond, status.Metrics.Latency)
		assert.False(t, status.Metrics.CheckedAt.IsZero())
	})

	t.Run("failure is sanitized", func(t *testing.T) {
		status := FromProbe("store", errors.New("dial tcp 10.0.0.7 refused"), time.Second)

		assert.True(t, status.IsUnhealthy())
		assert.Equal(t, "dial tcp [IP] refused", status.Message)
	})
}
