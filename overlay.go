package memfs

import (
	"context"

	"github.com/go-git/go-memfs/dircache"
	"github.com/go-git/go-memfs/fserr"
	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
)

// ensureCache performs the lazy cache initialization: the first call after
// opening (or after the cache was last cleared) builds the full
// directory-cache view from the base tree. Every later read goes through
// the cache instead of falling back to the base tree, even reads that would
// not themselves have required it.
func (fs *Filesystem) ensureCache(ctx context.Context) error {
	if fs.cache != nil {
		return nil
	}
	c, err := dircache.ForTree(ctx, fs.store, fs.baseTree)
	if err != nil {
		return fserr.NewIO("", err)
	}
	fs.cache = c
	return nil
}

// stageFileInsertion records path as a pending insertion of blob id with
// the given mode, flushing any pending deletions first (the two overlays
// are never simultaneously non-empty) and marking every ancestor
// directory of path as implicitly created.
func (fs *Filesystem) stageFileInsertion(ctx context.Context, path string, id plumbing.ObjectID, mode filemode.FileMode) error {
	if err := fs.flushDeletions(ctx); err != nil {
		return err
	}
	if err := fs.ensureCache(ctx); err != nil {
		return err
	}

	if fs.insertions == nil {
		fs.insertions = make(map[string]stagedFile)
		fs.insertedDirs = make(map[string]struct{})
	}
	fs.insertions[path] = stagedFile{id: id, mode: mode}

	for _, a := range ancestorsOf(path) {
		if _, ok := fs.insertedDirs[a]; ok {
			break
		}
		fs.insertedDirs[a] = struct{}{}
	}
	return nil
}

// stageFileDeletion records path as a pending deletion, flushing any
// pending insertions first and decrementing each ancestor's deletion
// counter, seeded on first touch from the cache's current entry count
// under that ancestor. A counter already at zero means the bookkeeping
// has diverged from the cache and the operation aborts.
func (fs *Filesystem) stageFileDeletion(ctx context.Context, path string) error {
	if err := fs.flushInsertions(ctx); err != nil {
		return err
	}
	if err := fs.ensureCache(ctx); err != nil {
		return err
	}

	if fs.deletions == nil {
		fs.deletions = make(map[string]struct{})
		fs.deletedDirs = make(map[string]int)
	}
	fs.deletions[path] = struct{}{}

	for _, a := range ancestorsOf(path) {
		if _, seeded := fs.deletedDirs[a]; !seeded {
			fs.deletedDirs[a] = len(fs.cache.EntriesWithin(a))
		}
		if fs.deletedDirs[a] <= 0 {
			return fserr.NewIllegalState("deletedDirs underflow at " + a)
		}
		fs.deletedDirs[a]--
	}
	return nil
}

// flushInsertions applies every pending insertion to the cache via its
// builder, which preserves existing entries and adds the new blobs with
// their staged file modes, then clears the insertion overlay.
func (fs *Filesystem) flushInsertions(ctx context.Context) error {
	if fs.insertions == nil {
		return nil
	}
	if err := fs.ensureCache(ctx); err != nil {
		return err
	}

	b := fs.cache.Builder()
	for path, sf := range fs.insertions {
		b.Add(path, sf.mode, sf.id)
	}
	b.Finish()

	fs.insertions = nil
	fs.insertedDirs = nil
	return nil
}

// flushDeletions applies every pending deletion to the cache via its
// editor, then clears the deletion overlay.
func (fs *Filesystem) flushDeletions(ctx context.Context) error {
	if fs.deletions == nil {
		return nil
	}
	if err := fs.ensureCache(ctx); err != nil {
		return err
	}

	e := fs.cache.Editor()
	for path := range fs.deletions {
		e.Delete(path)
	}
	e.Finish()

	fs.deletions = nil
	fs.deletedDirs = nil
	return nil
}

// flushStagedChanges flushes whichever overlay is currently populated.
// Invariant I1 guarantees at most one of the two calls below does real
// work.
func (fs *Filesystem) flushStagedChanges(ctx context.Context) error {
	if err := fs.flushInsertions(ctx); err != nil {
		return err
	}
	return fs.flushDeletions(ctx)
}
