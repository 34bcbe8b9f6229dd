package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		input    string
		expected State
	}{
		{"pending", StatePending},
		{"processing", StateProcessing},
		{"completed", StateCompleted},
		{"dlq", StateDLQ},
		{"bogus", StatePending},
		{"", StatePending},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseState(tt.input))
		})
	}
}

func TestJob_CanRetry(t *testing.T) {
	j := &Job{Attempts: 2, MaxRetries: 3}
	assert.True(t, j.CanRetry())

	j.Attempts = 3
	assert.False(t, j.CanRetry())
}

func TestJob_MetadataJSON_RoundTrip(t *testing.T) {
	j := &Job{Metadata: map[string]string{"customer": "acme", "region": "eu"}}

	raw, err := j.MetadataJSON()
	require.NoError(t, err)

	got, err := ParseMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, j.Metadata, got)
}

func TestJob_MetadataJSON_Nil(t *testing.T) {
	j := &Job{}
	raw, err := j.MetadataJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", raw)

	got, err := ParseMetadata(raw)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseMetadata_Empty(t *testing.T) {
	got, err := ParseMetadata("")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
