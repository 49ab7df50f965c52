package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readServed(t *testing.T, h *FSHost, slug, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(h.Location(slug), name))
	require.NoError(t, err)
	return string(b)
}

func TestFSHostStageCommitPrune(t *testing.T) {
	ctx := context.Background()
	h, err := NewFSHost(t.TempDir())
	require.NoError(t, err)

	first, err := h.Stage(ctx, "resume-builder", Files{"index.html": []byte("v1")})
	require.NoError(t, err)

	// staged but not yet served
	_, err = os.Stat(h.Location("resume-builder"))
	assert.True(t, os.IsNotExist(err))

	prev, err := h.Commit(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "", prev)
	assert.Equal(t, "v1", readServed(t, h, "resume-builder", "index.html"))

	second, err := h.Stage(ctx, "resume-builder", Files{"index.html": []byte("v2")})
	require.NoError(t, err)
	prev, err = h.Commit(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, prev)
	assert.Equal(t, "v2", readServed(t, h, "resume-builder", "index.html"))

	// a newer release staged by a concurrent publish survives pruning
	third, err := h.Stage(ctx, "resume-builder", Files{"index.html": []byte("v3")})
	require.NoError(t, err)
	require.NoError(t, h.Prune(ctx, "resume-builder"))
	entries, err := os.ReadDir(filepath.Join(h.root, "resume-builder", releasesDir))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].Name())
	assert.Equal(t, third.ID, entries[1].Name())
}

func TestFSHostRestore(t *testing.T) {
	ctx := context.Background()
	h, err := NewFSHost(t.TempDir())
	require.NoError(t, err)

	first, _ := h.Stage(ctx, "quiz", Files{"index.html": []byte("v1")})
	_, err = h.Commit(ctx, first)
	require.NoError(t, err)
	second, _ := h.Stage(ctx, "quiz", Files{"index.html": []byte("v2")})
	prev, err := h.Commit(ctx, second)
	require.NoError(t, err)

	require.NoError(t, h.Restore(ctx, "quiz", prev))
	assert.Equal(t, "v1", readServed(t, h, "quiz", "index.html"))
	require.NoError(t, h.Discard(ctx, second))

	require.NoError(t, h.Restore(ctx, "quiz", ""))
	_, err = os.Stat(h.Location("quiz"))
	assert.True(t, os.IsNotExist(err))
}

func TestFSHostRemoveAndList(t *testing.T) {
	ctx := context.Background()
	h, err := NewFSHost(t.TempDir())
	require.NoError(t, err)

	for _, slug := range []string{"b-tool", "a-tool"} {
		rel, err := h.Stage(ctx, slug, Files{"index.html": []byte(slug)})
		require.NoError(t, err)
		_, err = h.Commit(ctx, rel)
		require.NoError(t, err)
	}
	listed, err := h.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "a-tool", listed[0].Slug)
	assert.Equal(t, "b-tool", listed[1].Slug)
	assert.False(t, listed[0].UpdatedAt.IsZero())

	require.NoError(t, h.Remove(ctx, "a-tool"))
	listed, _ = h.List(ctx)
	require.Len(t, listed, 1)
	assert.Equal(t, "b-tool", listed[0].Slug)
}

func TestFSHostRejectsEscapingPaths(t *testing.T) {
	h, err := NewFSHost(t.TempDir())
	require.NoError(t, err)
	_, err = h.Stage(context.Background(), "x", Files{"../../etc/passwd": []byte("no")})
	assert.Error(t, err)
}
