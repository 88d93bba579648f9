package memfs

import (
	"context"
	"strings"

	"go.uber.org/multierr"

	"github.com/go-git/go-memfs/fserr"
	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
	"github.com/go-git/go-memfs/store"
)

// blobUpdate is a modified channel's flushed-to-blob result, collected
// before touching the cache so a mid-flush I/O failure never leaves the
// cache half-updated.
type blobUpdate struct {
	path string
	mode filemode.FileMode
	id   plumbing.ObjectID
}

// WriteAndUpdateTree materializes every staged insertion, deletion and
// modified in-memory channel into a new tree object. It returns ok=false
// if nothing changed since the last write-out: the cache was never
// initialized, or its written-out tree hashes identical to the current
// base tree.
func (fs *Filesystem) WriteAndUpdateTree(ctx context.Context) (plumbing.ObjectID, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return plumbing.ObjectID{}, false, err
	}
	return fs.writeAndUpdateTree(ctx)
}

func (fs *Filesystem) writeAndUpdateTree(ctx context.Context) (plumbing.ObjectID, bool, error) {
	if fs.cache == nil {
		return plumbing.ObjectID{}, false, nil
	}
	if err := fs.flushStagedChanges(ctx); err != nil {
		return plumbing.ObjectID{}, false, err
	}

	updates, err := fs.flushChannels(ctx)
	if err != nil {
		return plumbing.ObjectID{}, false, err
	}

	b := fs.cache.Builder()
	for _, u := range updates {
		b.Add(u.path, u.mode, u.id)
	}
	b.Finish()

	for _, u := range updates {
		ch, ok := fs.channels[u.path]
		if !ok {
			continue
		}
		ch.ClearModified()
		if ch.HandleCount() == 0 {
			delete(fs.channels, u.path)
		}
	}

	treeID, err := fs.cache.WriteTree(ctx, fs.store)
	if err != nil {
		return plumbing.ObjectID{}, false, fserr.NewIO("", err)
	}

	if fs.haveTree && treeID.Equal(fs.baseTree) {
		return plumbing.ObjectID{}, false, nil
	}
	fs.baseTree, fs.haveTree = treeID, true
	return treeID, true, nil
}

// flushChannels inserts the raw bytes of every modified memory channel as
// a new blob, under that channel's own buffer lock, without touching the
// cache yet. Per-channel failures are aggregated with multierr rather
// than abandoned at the first one, so a caller sees every blob that
// failed to flush in one pass.
func (fs *Filesystem) flushChannels(ctx context.Context) ([]blobUpdate, error) {
	var (
		updates []blobUpdate
		errs    error
	)
	for path, ch := range fs.channels {
		if !ch.Modified() {
			continue
		}
		mode := filemode.Regular
		if e, ok := fs.cache.Lookup(path); ok && e.Mode.IsFile() {
			mode = e.Mode
		}
		id, err := fs.store.InsertBlob(ctx, ch.Bytes())
		if err != nil {
			errs = multierr.Append(errs, fserr.NewIO(path, err))
			continue
		}
		updates = append(updates, blobUpdate{path: path, mode: mode, id: id})
	}
	if errs != nil {
		return nil, errs
	}
	return updates, nil
}

// WriteAndUpdateCommit calls WriteAndUpdateTree and, if it produced a new
// tree, wraps it in a commit and (for an attached filesystem) advances
// the branch reference. amend reuses the base commit's parent list
// instead of pointing at the base commit itself, and requires a base
// commit to already exist.
func (fs *Filesystem) WriteAndUpdateCommit(ctx context.Context, author, committer Identity, message string, amend bool) (plumbing.ObjectID, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return plumbing.ObjectID{}, false, err
	}
	if amend && !fs.haveCommit {
		return plumbing.ObjectID{}, false, fserr.NewIllegalState("amend requested with no base commit")
	}

	treeID, changed, err := fs.writeAndUpdateTree(ctx)
	if err != nil {
		return plumbing.ObjectID{}, false, err
	}
	if !changed {
		return plumbing.ObjectID{}, false, nil
	}

	parents, err := fs.commitParents(ctx, amend)
	if err != nil {
		return plumbing.ObjectID{}, false, err
	}

	commitID, err := fs.store.InsertCommit(ctx, store.Commit{
		Tree:      treeID,
		Parents:   parents,
		Author:    author,
		Committer: committer,
		Message:   message,
	})
	if err != nil {
		return plumbing.ObjectID{}, false, fserr.NewIO("", err)
	}
	if err := fs.store.Flush(ctx); err != nil {
		return plumbing.ObjectID{}, false, fserr.NewIO("", err)
	}

	if fs.branch != "" {
		expectedOld := plumbing.ZeroID
		if fs.haveCommit {
			expectedOld = fs.baseCommitID
		}
		reflogMsg, force := refUpdatePolicy(fs.haveCommit, amend, message)
		if err := fs.store.UpdateRef(ctx, fs.branch, commitID, expectedOld, force, reflogMsg); err != nil {
			return plumbing.ObjectID{}, false, fserr.NewIO(fs.branch, err)
		}
	}

	fs.baseCommitID, fs.haveCommit = commitID, true
	if fs.log != nil {
		fs.log.Info().Str("branch", fs.branch).Str("commit", commitID.String()).Bool("amend", amend).Msg("committed")
	}
	return commitID, true, nil
}

func (fs *Filesystem) commitParents(ctx context.Context, amend bool) ([]plumbing.ObjectID, error) {
	if !amend {
		if fs.haveCommit {
			return []plumbing.ObjectID{fs.baseCommitID}, nil
		}
		return nil, nil
	}
	c, err := fs.store.ReadCommit(ctx, fs.baseCommitID)
	if err != nil {
		return nil, fserr.NewIO(fs.baseCommitID.String(), err)
	}
	return c.Parents, nil
}

// refUpdatePolicy picks the reflog message and force-update policy for a
// branch-head advance, distinguishing the init (no previous commit),
// plain commit and amend variants the way a real VCS's branch-update
// helpers do.
func refUpdatePolicy(hadCommit, amend bool, message string) (string, bool) {
	summary := message
	if idx := strings.IndexByte(summary, '\n'); idx >= 0 {
		summary = summary[:idx]
	}
	switch {
	case amend:
		return "commit (amend): " + summary, true
	case !hadCommit:
		return "commit (initial): " + summary, false
	default:
		return "commit: " + summary, false
	}
}
