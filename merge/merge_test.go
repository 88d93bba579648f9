package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobsCleanMerge(t *testing.T) {
	base := []byte("line1\nline2\n")
	ours := []byte("LINE1\nline2\n")
	theirs := []byte("line1\nLINE2\n")

	r := Blobs(base, ours, theirs, DefaultLabels)
	assert.False(t, r.HasConflicts)
	assert.Equal(t, "LINE1\nLINE2\n", string(r.Content))
}

func TestBlobsBothSidesIdenticalEdit(t *testing.T) {
	base := []byte("a\nb\n")
	edited := []byte("a\nB\n")

	r := Blobs(base, edited, edited, DefaultLabels)
	assert.False(t, r.HasConflicts)
	assert.Equal(t, string(edited), string(r.Content))
}

func TestBlobsOneSideUnchanged(t *testing.T) {
	base := []byte("a\nb\nc\n")
	theirs := []byte("a\nx\nc\n")

	r := Blobs(base, base, theirs, DefaultLabels)
	assert.False(t, r.HasConflicts)
	assert.Equal(t, string(theirs), string(r.Content))

	r = Blobs(base, theirs, base, DefaultLabels)
	assert.False(t, r.HasConflicts)
	assert.Equal(t, string(theirs), string(r.Content))
}

func TestBlobsConflict(t *testing.T) {
	base := []byte("x\n")
	ours := []byte("y\n")
	theirs := []byte("z\n")

	r := Blobs(base, ours, theirs, DefaultLabels)
	require.True(t, r.HasConflicts)

	want := "<<<<<<< OURS\n" +
		"y\n" +
		"||||||| BASE\n" +
		"x\n" +
		"=======\n" +
		"z\n" +
		">>>>>>> THEIRS\n"
	assert.Equal(t, want, string(r.Content))
}

func TestBlobsCustomLabels(t *testing.T) {
	r := Blobs([]byte("x\n"), []byte("y\n"), []byte("z\n"),
		Labels{Base: "ancestor", Ours: "mine", Theirs: "yours"})
	require.True(t, r.HasConflicts)
	assert.Contains(t, string(r.Content), "<<<<<<< mine\n")
	assert.Contains(t, string(r.Content), "||||||| ancestor\n")
	assert.Contains(t, string(r.Content), ">>>>>>> yours\n")
}

func TestBlobsAgainstEmptyBase(t *testing.T) {
	// Add/add with identical content merges clean.
	r := Blobs(nil, []byte("new\n"), []byte("new\n"), DefaultLabels)
	assert.False(t, r.HasConflicts)
	assert.Equal(t, "new\n", string(r.Content))

	// Add/add with different content conflicts.
	r = Blobs(nil, []byte("a\n"), []byte("b\n"), DefaultLabels)
	assert.True(t, r.HasConflicts)
}

func TestBlobsUnterminatedFinalLine(t *testing.T) {
	r := Blobs([]byte("x"), []byte("y"), []byte("z"), DefaultLabels)
	require.True(t, r.HasConflicts)
	assert.Contains(t, string(r.Content), "y\n||||||| BASE\nx\n=======\nz\n")
}

func TestBlobsDisjointEdits(t *testing.T) {
	base := []byte("one\ntwo\nthree\nfour\nfive\n")
	ours := []byte("ONE\ntwo\nthree\nfour\nfive\n")
	theirs := []byte("one\ntwo\nthree\nfour\nFIVE\n")

	r := Blobs(base, ours, theirs, DefaultLabels)
	assert.False(t, r.HasConflicts)
	assert.Equal(t, "ONE\ntwo\nthree\nfour\nFIVE\n", string(r.Content))
}

func TestBlobsDeterministic(t *testing.T) {
	base := []byte("a\nb\nc\n")
	ours := []byte("a\nB\nc\n")
	theirs := []byte("a\nbee\nc\n")

	first := Blobs(base, ours, theirs, DefaultLabels)
	for i := 0; i < 5; i++ {
		again := Blobs(base, ours, theirs, DefaultLabels)
		assert.Equal(t, first.HasConflicts, again.HasConflicts)
		assert.Equal(t, string(first.Content), string(again.Content))
	}
}
