package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
)

func TestRunStreamingCollectsBothStreams(t *testing.T) {
	var lines []string
	err := runStreaming(context.Background(), t.TempDir(),
		[]string{"sh", "-c", "echo out; echo err >&2"}, nil,
		func(line string) { lines = append(lines, line) })
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"out", "err"}, lines)
}

func TestRunStreamingNonZeroExit(t *testing.T) {
	var lines []string
	err := runStreaming(context.Background(), t.TempDir(),
		[]string{"sh", "-c", "echo before failure; exit 3"}, nil,
		func(line string) { lines = append(lines, line) })
	require.Error(t, err)

	var he *hosterr.HostError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, hosterr.CategoryBuildTool, he.Category)

	// Output produced before the failure is still delivered.
	assert.Equal(t, []string{"before failure"}, lines)
}

func TestRunStreamingPassesExtraEnv(t *testing.T) {
	var lines []string
	err := runStreaming(context.Background(), t.TempDir(),
		[]string{"sh", "-c", "echo $DOCS_TEST_VAR"},
		[]string{"DOCS_TEST_VAR=from-env"},
		func(line string) { lines = append(lines, line) })
	require.NoError(t, err)
	assert.Equal(t, []string{"from-env"}, lines)
}

func TestRunStreamingMissingBinary(t *testing.T) {
	err := runStreaming(context.Background(), t.TempDir(),
		[]string{"definitely-not-a-real-tool-xyz"}, nil, nil)
	var he *hosterr.HostError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, hosterr.CategoryBuildTool, he.Category)
}

func TestRunStreamingHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := runStreaming(ctx, t.TempDir(), []string{"sleep", "10"}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunStreamingEmptyCommand(t *testing.T) {
	assert.Error(t, runStreaming(context.Background(), t.TempDir(), nil, nil, nil))
}
