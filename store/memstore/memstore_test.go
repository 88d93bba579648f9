package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
	"github.com/go-git/go-memfs/store"
)

func TestInsertBlobIsContentAddressed(t *testing.T) {
	ctx := context.Background()
	s := New(plumbing.SHA1)

	id1, err := s.InsertBlob(ctx, []byte("hello"))
	require.NoError(t, err)
	id2, err := s.InsertBlob(ctx, []byte("hello"))
	require.NoError(t, err)
	id3, err := s.InsertBlob(ctx, []byte("world"))
	require.NoError(t, err)

	assert.True(t, id1.Equal(id2))
	assert.False(t, id1.Equal(id3))

	data, err := s.ReadBlob(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestInsertTreeAndWalk(t *testing.T) {
	ctx := context.Background()
	s := New(plumbing.SHA1)

	blobID, err := s.InsertBlob(ctx, []byte("hi"))
	require.NoError(t, err)

	innerTree, err := s.InsertTree(ctx, []store.TreeEntry{
		{Name: "b.txt", Mode: filemode.Regular, ID: blobID},
	})
	require.NoError(t, err)

	rootTree, err := s.InsertTree(ctx, []store.TreeEntry{
		{Name: "a", Mode: filemode.Dir, ID: innerTree},
	})
	require.NoError(t, err)

	mode, id, ok, err := s.WalkTree(ctx, rootTree, "a/b.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filemode.Regular, mode)
	assert.True(t, id.Equal(blobID))

	_, _, ok, err = s.WalkTree(ctx, rootTree, "a/missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateRefRejectsStaleExpectedOld(t *testing.T) {
	ctx := context.Background()
	s := New(plumbing.SHA1)

	id1, _ := s.InsertBlob(ctx, []byte("x"))
	err := s.UpdateRef(ctx, "refs/heads/main", id1, plumbing.ZeroID, false, "init")
	require.NoError(t, err)

	id2, _ := s.InsertBlob(ctx, []byte("y"))
	err = s.UpdateRef(ctx, "refs/heads/main", id2, plumbing.ZeroID, false, "stale")
	assert.Error(t, err)

	err = s.UpdateRef(ctx, "refs/heads/main", id2, id1, false, "ok")
	assert.NoError(t, err)

	got, ok, err := s.ReadRef(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(id2))
}

func TestUsableSpaceShrinksAsBlobsAreWritten(t *testing.T) {
	ctx := context.Background()
	s := New(plumbing.SHA1)
	s.Capacity = 10

	before, err := s.UsableSpace(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, before)

	_, err = s.InsertBlob(ctx, []byte("01234"))
	require.NoError(t, err)

	after, err := s.UsableSpace(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, after)
}
