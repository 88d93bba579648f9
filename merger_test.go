package memfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-memfs/merge"
	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
	"github.com/go-git/go-memfs/store/memstore"
)

// buildTree persists files as a tree in st, going through a throwaway
// detached filesystem so the test trees are written the same way the
// code under test writes its own.
func buildTree(ctx context.Context, t *testing.T, st *memstore.Store, files map[string]string) plumbing.ObjectID {
	t.Helper()
	fs := NewDetached("/repo", st, plumbing.ZeroID)
	defer fs.Close()
	for path, content := range files {
		writeFile(ctx, t, fs, path, content)
	}
	tree, changed, err := fs.WriteAndUpdateTree(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	return tree
}

func mergeFixture(ctx context.Context, t *testing.T, base, ours, theirs map[string]string) (*Filesystem, *memstore.Store, MergeResult) {
	t.Helper()
	st := memstore.New(plumbing.SHA1)
	baseTree := buildTree(ctx, t, st, base)
	ourTree := buildTree(ctx, t, st, ours)
	theirTree := buildTree(ctx, t, st, theirs)

	fs := NewDetached("/repo", st, ourTree)
	res, err := fs.MergeTrees(ctx, baseTree, theirTree, MergeOptions{})
	require.NoError(t, err)
	return fs, st, res
}

func TestMergeCleanTextual(t *testing.T) {
	ctx := context.Background()
	fs, st, res := mergeFixture(ctx, t,
		map[string]string{"f": "line1\nline2\n"},
		map[string]string{"f": "LINE1\nline2\n"},
		map[string]string{"f": "line1\nLINE2\n"},
	)
	defer fs.Close()

	require.True(t, res.Clean)
	assert.Zero(t, res.Conflicts.Len())
	assert.Equal(t, "LINE1\nLINE2\n", readTreeFile(ctx, t, st, res.TreeID, "f"))
}

func TestMergeTextualConflict(t *testing.T) {
	ctx := context.Background()
	fs, _, res := mergeFixture(ctx, t,
		map[string]string{"f": "x\n"},
		map[string]string{"f": "y\n"},
		map[string]string{"f": "z\n"},
	)
	defer fs.Close()

	require.False(t, res.Clean)
	require.Equal(t, 1, res.Conflicts.Len())

	entry, ok := res.Conflicts.Get("f")
	require.True(t, ok)
	assert.Equal(t, filemode.Regular, entry.BaseMode)
	assert.Equal(t, filemode.Regular, entry.OurMode)
	assert.Equal(t, filemode.Regular, entry.TheirMode)
	assert.False(t, entry.BaseID.IsZero())
	assert.False(t, entry.OurID.IsZero())
	assert.False(t, entry.TheirID.IsZero())

	// The partially merged blob with markers is left staged at f.
	id, isFile, err := fs.GetFileBlobID(ctx, "f")
	require.NoError(t, err)
	require.True(t, isFile)
	data, err := fs.store.ReadBlob(ctx, id)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "<<<<<<< OURS\n")
	assert.Contains(t, content, "||||||| BASE\n")
	assert.Contains(t, content, ">>>>>>> THEIRS\n")
}

func TestMergeOursUnchangedAdoptsTheirs(t *testing.T) {
	ctx := context.Background()
	base := map[string]string{"a": "1\n", "b": "2\n"}
	theirs := map[string]string{"a": "1 changed\n", "c/new": "3\n"}

	fs, st, res := mergeFixture(ctx, t, base, base, theirs)
	defer fs.Close()

	require.True(t, res.Clean)

	theirTree := buildTree(ctx, t, st, theirs)
	assert.True(t, res.TreeID.Equal(theirTree), "ours==base must merge to exactly theirs")
}

func TestMergeTheirsUnchangedKeepsOurs(t *testing.T) {
	ctx := context.Background()
	base := map[string]string{"a": "1\n"}
	ours := map[string]string{"a": "1 changed\n", "b": "2\n"}

	fs, st, res := mergeFixture(ctx, t, base, ours, base)
	defer fs.Close()

	require.True(t, res.Clean)

	ourTree := buildTree(ctx, t, st, ours)
	assert.True(t, res.TreeID.Equal(ourTree), "theirs==base must merge to exactly ours")
}

func TestMergeDisjointEdits(t *testing.T) {
	ctx := context.Background()
	fs, st, res := mergeFixture(ctx, t,
		map[string]string{"shared": "s\n"},
		map[string]string{"shared": "s\n", "ours-only": "o\n"},
		map[string]string{"shared": "s\n", "theirs-only": "t\n"},
	)
	defer fs.Close()

	require.True(t, res.Clean)
	assert.Equal(t, "o\n", readTreeFile(ctx, t, st, res.TreeID, "ours-only"))
	assert.Equal(t, "t\n", readTreeFile(ctx, t, st, res.TreeID, "theirs-only"))
	assert.Equal(t, "s\n", readTreeFile(ctx, t, st, res.TreeID, "shared"))
}

func TestMergeTheirsDeletesDirectory(t *testing.T) {
	ctx := context.Background()
	fs, st, res := mergeFixture(ctx, t,
		map[string]string{"dir/a": "A\n", "dir/b": "B\n", "keep": "K\n"},
		map[string]string{"dir/a": "A\n", "dir/b": "B\n", "keep": "K\n"},
		map[string]string{"keep": "K\n"},
	)
	defer fs.Close()

	require.True(t, res.Clean)
	_, _, ok, err := st.WalkTree(ctx, res.TreeID, "dir")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "K\n", readTreeFile(ctx, t, st, res.TreeID, "keep"))
}

func TestMergeBothAddIdentical(t *testing.T) {
	ctx := context.Background()
	fs, _, res := mergeFixture(ctx, t,
		map[string]string{"seed": "s\n"},
		map[string]string{"seed": "s\n", "new": "same\n"},
		map[string]string{"seed": "s\n", "new": "same\n"},
	)
	defer fs.Close()

	require.True(t, res.Clean)
	assert.Zero(t, res.Conflicts.Len())
}

func TestMergeDeleteVersusModify(t *testing.T) {
	ctx := context.Background()
	fs, _, res := mergeFixture(ctx, t,
		map[string]string{"f": "orig\n", "seed": "s\n"},
		map[string]string{"seed": "s\n"},
		map[string]string{"f": "edited\n", "seed": "s\n"},
	)
	defer fs.Close()

	require.False(t, res.Clean)
	entry, ok := res.Conflicts.Get("f")
	require.True(t, ok)
	assert.Equal(t, filemode.Missing, entry.OurMode)
	assert.Equal(t, filemode.Regular, entry.TheirMode)

	// Ours (the deletion) is kept in the working state.
	exists, err := fs.IsRegularFile(ctx, "f")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMergeFileDirectoryMismatch(t *testing.T) {
	ctx := context.Background()
	fs, _, res := mergeFixture(ctx, t,
		map[string]string{"p": "base\n", "seed": "s\n"},
		map[string]string{"p": "ours\n", "seed": "s\n"},
		map[string]string{"p/child": "theirs\n", "seed": "s\n"},
	)
	defer fs.Close()

	require.False(t, res.Clean)
	_, ok := res.Conflicts.Get("p")
	assert.True(t, ok)

	// Ours wins in the working state.
	exists, err := fs.IsRegularFile(ctx, "p")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMergeNestedConflictPath(t *testing.T) {
	ctx := context.Background()
	fs, _, res := mergeFixture(ctx, t,
		map[string]string{"dir/sub/f": "x\n"},
		map[string]string{"dir/sub/f": "y\n"},
		map[string]string{"dir/sub/f": "z\n"},
	)
	defer fs.Close()

	require.False(t, res.Clean)
	assert.Equal(t, []string{"dir/sub/f"}, res.Conflicts.Paths())
}

func TestMergeDeterministic(t *testing.T) {
	ctx := context.Background()
	base := map[string]string{"a": "x\n", "b": "x\n", "c": "x\n"}
	ours := map[string]string{"a": "y\n", "b": "y\n", "c": "x\n"}
	theirs := map[string]string{"a": "z\n", "b": "z\n", "c": "z changed\n"}

	var firstTree plumbing.ObjectID
	var firstPaths []string
	for i := 0; i < 3; i++ {
		fs, _, res := mergeFixture(ctx, t, base, ours, theirs)
		require.False(t, res.Clean)

		treeID, changed, err := fs.WriteAndUpdateTree(ctx)
		require.NoError(t, err)
		require.True(t, changed)

		if i == 0 {
			firstTree = treeID
			firstPaths = res.Conflicts.Paths()
			assert.Equal(t, []string{"a", "b"}, firstPaths)
		} else {
			assert.True(t, treeID.Equal(firstTree))
			assert.Equal(t, firstPaths, res.Conflicts.Paths())
		}
		fs.Close()
	}
}

func TestMergeCustomLabels(t *testing.T) {
	ctx := context.Background()
	st := memstore.New(plumbing.SHA1)
	baseTree := buildTree(ctx, t, st, map[string]string{"f": "x\n"})
	ourTree := buildTree(ctx, t, st, map[string]string{"f": "y\n"})
	theirTree := buildTree(ctx, t, st, map[string]string{"f": "z\n"})

	fs := NewDetached("/repo", st, ourTree)
	defer fs.Close()

	res, err := fs.MergeTrees(ctx, baseTree, theirTree, MergeOptions{
		Labels: merge.Labels{Base: "base", Ours: "HEAD", Theirs: "feature"},
	})
	require.NoError(t, err)
	require.False(t, res.Clean)

	id, _, err := fs.GetFileBlobID(ctx, "f")
	require.NoError(t, err)
	data, err := fs.store.ReadBlob(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<<<<<<< HEAD\n")
	assert.Contains(t, string(data), ">>>>>>> feature\n")
}

func TestMergeModes(t *testing.T) {
	cases := []struct {
		name               string
		base, ours, theirs filemode.FileMode
		want               filemode.FileMode
		ok                 bool
	}{
		{"all equal", filemode.Regular, filemode.Regular, filemode.Regular, filemode.Regular, true},
		{"ours at base", filemode.Regular, filemode.Regular, filemode.Executable, filemode.Executable, true},
		{"theirs at base", filemode.Regular, filemode.Executable, filemode.Regular, filemode.Executable, true},
		{"both diverged", filemode.Regular, filemode.Executable, filemode.Gitlink, filemode.Missing, false},
		{"theirs missing ignored", filemode.Regular, filemode.Regular, filemode.Missing, filemode.Regular, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := mergeModes(c.base, c.ours, c.theirs)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, got)
		})
	}
}
