package build

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docshost/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	store, err := NewStore(conn)
	require.NoError(t, err)
	return store
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		b, err := store.Create(ctx, "alice", "demo")
		require.NoError(t, err)
		assert.Equal(t, want, b.Seq)
		assert.Equal(t, StatusUnknown, b.Status)
	}

	// Sequences are per project.
	other, err := store.Create(ctx, "alice", "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Seq)
}

func TestConcurrentCreateIsGapless(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	seqs := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := store.Create(ctx, "alice", "demo")
			if err != nil {
				t.Error(err)
				return
			}
			seqs <- b.Seq
		}()
	}
	wg.Wait()
	close(seqs)

	var got []int64
	for s := range seqs {
		got = append(got, s)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	require.Len(t, got, n)
	for i, s := range got {
		assert.Equal(t, int64(i+1), s, "sequence numbers must be 1..N with no gaps or repeats")
	}
}

func TestAppendOutputAccumulates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b, err := store.Create(ctx, "alice", "demo")
	require.NoError(t, err)

	require.NoError(t, store.AppendOutput(ctx, b.ID, "line one\n"))
	require.NoError(t, store.AppendOutput(ctx, b.ID, "line two\n"))

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", got.Unwrap().Output)

	assert.Error(t, store.AppendOutput(ctx, "missing", "x"))
}

func TestFinishTransitionsExactlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b, err := store.Create(ctx, "alice", "demo")
	require.NoError(t, err)

	require.NoError(t, store.Finish(ctx, b.ID, StatusSuccess))

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Unwrap().Status)
	assert.False(t, got.Unwrap().Finished.IsZero())

	// A terminal build cannot transition again.
	assert.Error(t, store.Finish(ctx, b.ID, StatusFailure))

	// Non-terminal target is rejected outright.
	b2, err := store.Create(ctx, "alice", "demo")
	require.NoError(t, err)
	assert.Error(t, store.Finish(ctx, b2.ID, StatusUnknown))
}

func TestListOrdersBySeqDescending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, "alice", "demo")
		require.NoError(t, err)
	}

	builds, err := store.List(ctx, "alice", "demo", 0)
	require.NoError(t, err)
	require.Len(t, builds, 3)
	assert.Equal(t, int64(3), builds[0].Seq)
	assert.Equal(t, int64(1), builds[2].Seq)
}

func TestGetMissingIsNone(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.True(t, got.IsNone())
}

func TestSetWorkDir(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b, err := store.Create(ctx, "alice", "demo")
	require.NoError(t, err)
	require.NoError(t, store.SetWorkDir(ctx, b.ID, "/tmp/work/alice-demo"))

	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/work/alice-demo", got.Unwrap().WorkDir)
}
