package launcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Success(t *testing.T) {
	result, err := Run(context.Background(), "echo hello", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "hello")
	assert.False(t, result.TimedOut)
}

func TestRun_NonZeroExit(t *testing.T) {
	result, err := Run(context.Background(), "exit 7", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, result.ExitCode)
}

func TestRun_Stderr(t *testing.T) {
	result, err := Run(context.Background(), "echo oops 1>&2", time.Second)
	require.NoError(t, err)
	assert.Contains(t, result.Stderr, "oops")
}

func TestRun_Timeout(t *testing.T) {
	result, err := Run(context.Background(), "sleep 5", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
}

func TestRun_OutputTruncated(t *testing.T) {
	result, err := Run(context.Background(), "yes | head -c 100000", 2*time.Second)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Stdout), maxCapturedOutput)
}

func TestRun_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := Run(ctx, "sleep 5", time.Second)
	require.NoError(t, err)
	assert.Equal(t, -1, result.ExitCode)
	assert.False(t, result.TimedOut, "cancellation is not a timeout")
}
