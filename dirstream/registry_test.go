package dirstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-memfs/dircache"
)

func TestHasOpenAncestorDetectsSelfAndAncestors(t *testing.T) {
	r := NewRegistry()
	s := r.Open("src/pkg", nil)
	defer s.Close()

	assert.True(t, r.HasOpenAncestor("src/pkg"))
	assert.True(t, r.HasOpenAncestor("src/pkg/file.go"))
	assert.False(t, r.HasOpenAncestor("src/other"))
	assert.False(t, r.HasOpenAncestor(""))
}

func TestRootStreamBlocksEverything(t *testing.T) {
	r := NewRegistry()
	s := r.Open("", nil)
	defer s.Close()

	assert.True(t, r.HasOpenAncestor("anything/at/all"))
}

func TestCloseDeregisters(t *testing.T) {
	r := NewRegistry()
	s := r.Open("src", nil)
	require.NoError(t, s.Close())
	assert.False(t, r.HasOpenAncestor("src"))

	require.NoError(t, s.Close()) // idempotent
}

func TestStreamNextYieldsAllEntriesInOrder(t *testing.T) {
	r := NewRegistry()
	entries := []dircache.Entry{{Path: "a"}, {Path: "b"}}
	s := r.Open("dir", entries)
	defer s.Close()

	e, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, "a", e.Path)

	e, ok = s.Next()
	require.True(t, ok)
	assert.Equal(t, "b", e.Path)

	_, ok = s.Next()
	assert.False(t, ok)
}

func TestMultipleOpensOnSamePathRequireMultipleCloses(t *testing.T) {
	r := NewRegistry()
	s1 := r.Open("dir", nil)
	s2 := r.Open("dir", nil)

	require.NoError(t, s1.Close())
	assert.True(t, r.HasOpenAncestor("dir"))

	require.NoError(t, s2.Close())
	assert.False(t, r.HasOpenAncestor("dir"))
}
