package memfs

import (
	"context"
	"sort"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/go-git/go-memfs/fserr"
	"github.com/go-git/go-memfs/merge"
	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
	"github.com/go-git/go-memfs/store"
)

// ConflictEntry records the three sides of one unresolved merge position.
type ConflictEntry struct {
	BaseMode  filemode.FileMode
	BaseID    plumbing.ObjectID
	OurMode   filemode.FileMode
	OurID     plumbing.ObjectID
	TheirMode filemode.FileMode
	TheirID   plumbing.ObjectID
}

// Conflicts is an insertion-ordered map of path to ConflictEntry; the
// order is the merger's deterministic walk order, so two merges of
// identical inputs report their conflicts identically.
type Conflicts struct {
	m *linkedhashmap.Map
}

func newConflicts() *Conflicts {
	return &Conflicts{m: linkedhashmap.New()}
}

func (c *Conflicts) record(path string, e ConflictEntry) {
	c.m.Put(path, e)
}

// Len returns the number of conflicting paths.
func (c *Conflicts) Len() int { return c.m.Size() }

// Get returns the conflict recorded for path, if any.
func (c *Conflicts) Get(path string) (ConflictEntry, bool) {
	v, ok := c.m.Get(path)
	if !ok {
		return ConflictEntry{}, false
	}
	return v.(ConflictEntry), true
}

// Paths returns every conflicting path in recording order.
func (c *Conflicts) Paths() []string {
	keys := c.m.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.(string)
	}
	return out
}

// MergeOptions configures a tree merge.
type MergeOptions struct {
	// Labels names the sides in textual conflict markers; the zero value
	// means merge.DefaultLabels.
	Labels merge.Labels
}

// MergeResult is the outcome of MergeTrees: a new tree id when the merge
// was clean, or the non-empty conflict map when it was not. On conflict
// the filesystem is left holding the best-effort merged state, including
// marker-bearing blobs at each textually conflicting path.
type MergeResult struct {
	TreeID    plumbing.ObjectID
	Clean     bool
	Conflicts *Conflicts
}

// merger carries one MergeTrees run's fixed inputs.
type merger struct {
	fs     *Filesystem
	labels merge.Labels
	con    *Conflicts
}

// MergeTrees three-way merges theirs into this filesystem, which plays
// the "ours" side, against their common ancestor base. Trivial positions
// resolve straight into the staged state; positions where both sides
// edited the same blob go through the textual three-way merge. If any
// position fails to resolve the merge stops short of persisting and
// returns the conflict map instead of a tree id.
func (fs *Filesystem) MergeTrees(ctx context.Context, base, theirs plumbing.ObjectID, opts MergeOptions) (MergeResult, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return MergeResult{}, err
	}

	labels := opts.Labels
	if labels == (merge.Labels{}) {
		labels = merge.DefaultLabels
	}
	m := &merger{fs: fs, labels: labels, con: newConflicts()}

	if err := fs.ensureCache(ctx); err != nil {
		return MergeResult{}, err
	}
	if err := m.mergeLevel(ctx, "", base, fs.baseTree, theirs); err != nil {
		return MergeResult{}, err
	}

	if m.con.Len() > 0 {
		return MergeResult{Clean: false, Conflicts: m.con}, nil
	}

	treeID, changed, err := fs.writeAndUpdateTree(ctx)
	if err != nil {
		return MergeResult{}, err
	}
	if !changed {
		treeID = fs.baseTree
	}
	return MergeResult{TreeID: treeID, Clean: true, Conflicts: m.con}, nil
}

// position is one name's three-sided view during the lockstep walk.
type position struct {
	baseMode, ourMode, theirMode filemode.FileMode
	baseID, ourID, theirID       plumbing.ObjectID
}

// mergeLevel walks one directory level of the three trees in lockstep:
// the sorted union of child names, each name classified through the
// decision ladder.
func (m *merger) mergeLevel(ctx context.Context, prefix string, base, ours, theirs plumbing.ObjectID) error {
	byName := make(map[string]*position)
	var names []string
	at := func(name string) *position {
		p, ok := byName[name]
		if !ok {
			p = &position{baseMode: filemode.Missing, ourMode: filemode.Missing, theirMode: filemode.Missing}
			byName[name] = p
			names = append(names, name)
		}
		return p
	}

	if err := m.listSide(ctx, base, func(e store.TreeEntry) {
		p := at(e.Name)
		p.baseMode, p.baseID = e.Mode, e.ID
	}); err != nil {
		return err
	}
	if err := m.listSide(ctx, ours, func(e store.TreeEntry) {
		p := at(e.Name)
		p.ourMode, p.ourID = e.Mode, e.ID
	}); err != nil {
		return err
	}
	if err := m.listSide(ctx, theirs, func(e store.TreeEntry) {
		p := at(e.Name)
		p.theirMode, p.theirID = e.Mode, e.ID
	}); err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}
		if err := m.mergePosition(ctx, path, *byName[name]); err != nil {
			return err
		}
	}
	return nil
}

func (m *merger) listSide(ctx context.Context, tree plumbing.ObjectID, visit func(store.TreeEntry)) error {
	if tree.IsZero() {
		return nil
	}
	entries, err := m.fs.store.ListTree(ctx, tree)
	if err != nil {
		return fserr.NewIO(tree.String(), err)
	}
	for _, e := range entries {
		visit(e)
	}
	return nil
}

// mergePosition classifies one walk position and resolves it. The ladder
// runs top to bottom, first match wins.
func (m *merger) mergePosition(ctx context.Context, path string, p position) error {
	switch {
	case p.baseMode == p.ourMode && p.baseID.Equal(p.ourID):
		// Ours untouched since base: whatever theirs did, adopt it.
		return m.adoptTheirs(ctx, path, p)

	case p.baseMode == p.theirMode && p.baseID.Equal(p.theirID):
		// Theirs untouched: ours already holds the merged state.
		return nil

	case p.ourID.Equal(p.theirID):
		return m.mergeSameContent(ctx, path, p)

	case isBlobSide(p.ourMode) && isBlobSide(p.theirMode):
		return m.mergeBlobs(ctx, path, p)

	case p.ourMode == filemode.Dir && p.theirMode == filemode.Dir:
		baseChild := plumbing.ZeroID
		if p.baseMode == filemode.Dir {
			baseChild = p.baseID
		}
		return m.mergeLevel(ctx, path, baseChild, p.ourID, p.theirID)

	default:
		// File on one side, directory on the other: keep ours, flag it.
		m.con.record(path, conflictOf(p))
		return nil
	}
}

// isBlobSide reports whether mode is a present non-tree entry: a blob or
// a gitlink. Gitlinks still reach the blob rung of the ladder, where they
// are rejected as conflicts rather than textually merged.
func isBlobSide(mode filemode.FileMode) bool {
	return mode != filemode.Missing && mode != filemode.Dir
}

// adoptTheirs replaces whatever ours holds at path with theirs' side,
// including removing it when theirs deleted it.
func (m *merger) adoptTheirs(ctx context.Context, path string, p position) error {
	if p.theirMode == p.ourMode && p.theirID.Equal(p.ourID) {
		return nil
	}

	switch {
	case p.theirMode == filemode.Missing:
		return m.removeOurs(ctx, path, p.ourMode)

	case p.theirMode == filemode.Dir:
		if err := m.removeOurs(ctx, path, p.ourMode); err != nil {
			return err
		}
		return m.insertSubtree(ctx, path, p.theirID)

	default:
		if p.ourMode == filemode.Dir {
			if err := m.removeOurs(ctx, path, p.ourMode); err != nil {
				return err
			}
		}
		return m.fs.stageFileInsertion(ctx, path, p.theirID, p.theirMode)
	}
}

// mergeSameContent handles both sides arriving at the identical id: the
// content agrees, only the modes may still disagree.
func (m *merger) mergeSameContent(ctx context.Context, path string, p position) error {
	mode, ok := mergeModes(p.baseMode, p.ourMode, p.theirMode)
	if !ok {
		m.con.record(path, conflictOf(p))
		return nil
	}
	if mode == p.ourMode || mode == filemode.Missing {
		return nil
	}
	return m.fs.stageFileInsertion(ctx, path, p.ourID, mode)
}

// mergeBlobs runs the textual three-way merge on two diverging blobs. A
// gitlink on any side is never merged textually and conflicts outright.
func (m *merger) mergeBlobs(ctx context.Context, path string, p position) error {
	if p.baseMode == filemode.Gitlink || p.ourMode == filemode.Gitlink || p.theirMode == filemode.Gitlink {
		m.con.record(path, conflictOf(p))
		return nil
	}

	baseBytes, err := m.readBlobOrEmpty(ctx, path, p.baseMode, p.baseID)
	if err != nil {
		return err
	}
	ourBytes, err := m.readBlobOrEmpty(ctx, path, p.ourMode, p.ourID)
	if err != nil {
		return err
	}
	theirBytes, err := m.readBlobOrEmpty(ctx, path, p.theirMode, p.theirID)
	if err != nil {
		return err
	}

	merged := merge.Blobs(baseBytes, ourBytes, theirBytes, m.labels)
	blobID, err := m.fs.store.InsertBlob(ctx, merged.Content)
	if err != nil {
		return fserr.NewIO(path, err)
	}

	mode, ok := mergeModes(p.baseMode, p.ourMode, p.theirMode)
	if !ok || mode == filemode.Missing {
		mode = p.ourMode
		if mode == filemode.Missing {
			mode = p.theirMode
		}
	}
	if err := m.fs.stageFileInsertion(ctx, path, blobID, mode); err != nil {
		return err
	}
	if merged.HasConflicts || !ok {
		m.con.record(path, conflictOf(p))
	}
	return nil
}

func (m *merger) readBlobOrEmpty(ctx context.Context, path string, mode filemode.FileMode, id plumbing.ObjectID) ([]byte, error) {
	if !mode.IsFile() || id.IsZero() {
		return nil, nil
	}
	data, err := m.fs.store.ReadBlob(ctx, id)
	if err != nil {
		return nil, fserr.NewIO(path, err)
	}
	return data, nil
}

// removeOurs drops ours' entry at path: a single staged deletion for a
// file, a sweep over every cache entry underneath for a directory.
func (m *merger) removeOurs(ctx context.Context, path string, mode filemode.FileMode) error {
	if mode == filemode.Missing {
		return nil
	}
	if mode != filemode.Dir {
		delete(m.fs.channels, path)
		return m.fs.stageFileDeletion(ctx, path)
	}

	if err := m.fs.flushStagedChanges(ctx); err != nil {
		return err
	}
	for _, e := range m.fs.cache.EntriesWithin(path) {
		delete(m.fs.channels, e.Path)
		if err := m.fs.stageFileDeletion(ctx, e.Path); err != nil {
			return err
		}
	}
	return nil
}

// insertSubtree stages every file reachable under tree at its path below
// root, used when adopting a whole directory from theirs.
func (m *merger) insertSubtree(ctx context.Context, root string, tree plumbing.ObjectID) error {
	entries, err := m.fs.store.ListTree(ctx, tree)
	if err != nil {
		return fserr.NewIO(root, err)
	}
	for _, e := range entries {
		path := root + "/" + e.Name
		if e.Mode == filemode.Dir {
			if err := m.insertSubtree(ctx, path, e.ID); err != nil {
				return err
			}
			continue
		}
		if err := m.fs.stageFileInsertion(ctx, path, e.ID, e.Mode); err != nil {
			return err
		}
	}
	return nil
}

// mergeModes reconciles the three sides' entry types: agreement wins, a
// side that stayed at base yields to the other, anything else fails.
func mergeModes(base, ours, theirs filemode.FileMode) (filemode.FileMode, bool) {
	if ours == theirs {
		return ours, true
	}
	if base == ours {
		if theirs == filemode.Missing {
			return ours, true
		}
		return theirs, true
	}
	if base == theirs {
		if ours == filemode.Missing {
			return theirs, true
		}
		return ours, true
	}
	return filemode.Missing, false
}

func conflictOf(p position) ConflictEntry {
	return ConflictEntry{
		BaseMode:  p.baseMode,
		BaseID:    p.baseID,
		OurMode:   p.ourMode,
		OurID:     p.ourID,
		TheirMode: p.theirMode,
		TheirID:   p.theirID,
	}
}
