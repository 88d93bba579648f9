package memfs

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/go-git/go-memfs/dircache"
	"github.com/go-git/go-memfs/dirstream"
	"github.com/go-git/go-memfs/fserr"
	"github.com/go-git/go-memfs/internal/logging"
	"github.com/go-git/go-memfs/memchan"
	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
	"github.com/go-git/go-memfs/store"
)

// Identity names a commit's author or committer.
type Identity = store.Identity

// Filesystem is an in-memory POSIX-flavored view over a base tree held in a
// backing store.Store. All public operations take the same exclusive lock
// (the "filesystem lock"); the finer-grained buffer lock inside memchan
// guards only a single channel's bytes and is always acquired after it, per
// the canonical lock order described alongside the staging engine.
type Filesystem struct {
	mu sync.Mutex

	repoDir string
	store   store.Store
	branch  string // "" means detached: no branch reference is advanced.

	haveCommit   bool
	baseCommitID plumbing.ObjectID
	haveTree     bool
	baseTree     plumbing.ObjectID

	cache    *dircache.Cache
	channels map[string]*memchan.Channel
	streams  *dirstream.Registry

	closed bool
	state  State
	log    *logging.Logger

	insertions   map[string]stagedFile
	insertedDirs map[string]struct{}
	deletions    map[string]struct{}
	deletedDirs  map[string]int
}

// stagedFile is a pending insertion: the blob it should point at and the
// file mode (regular vs executable) it should carry once flushed.
type stagedFile struct {
	id   plumbing.ObjectID
	mode filemode.FileMode
}

// New opens a filesystem attached to branch in st. If the branch reference
// does not yet exist the filesystem starts out with no base tree (an empty
// repository); the first commit will create the branch.
func New(ctx context.Context, repoDir string, st store.Store, branch string) (*Filesystem, error) {
	fs := &Filesystem{
		repoDir:  repoDir,
		store:    st,
		branch:   branch,
		channels: make(map[string]*memchan.Channel),
		streams:  dirstream.NewRegistry(),
	}

	if branch == "" {
		return fs, nil
	}

	id, ok, err := st.ReadRef(ctx, branch)
	if err != nil {
		return nil, fserr.NewIO(branch, err)
	}
	if !ok {
		return fs, nil
	}

	c, err := st.ReadCommit(ctx, id)
	if err != nil {
		return nil, fserr.NewIO(branch, err)
	}
	fs.baseCommitID, fs.haveCommit = id, true
	fs.baseTree, fs.haveTree = c.Tree, true
	return fs, nil
}

// NewDetached opens a filesystem rooted directly at tree, with no branch
// reference attached. A commit written through this filesystem is never
// reachable from any ref unless the caller advances one itself.
func NewDetached(repoDir string, st store.Store, tree plumbing.ObjectID) *Filesystem {
	fs := &Filesystem{
		repoDir:  repoDir,
		store:    st,
		channels: make(map[string]*memchan.Channel),
		streams:  dirstream.NewRegistry(),
	}
	if !tree.IsZero() {
		fs.baseTree, fs.haveTree = tree, true
	}
	return fs
}

// SetLogger attaches a diagnostic logger. A nil logger (the default)
// disables logging entirely; this is an optional hook, never consulted on
// the hot path of any operation's correctness.
func (fs *Filesystem) SetLogger(l *logging.Logger) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.log = l
}

func (fs *Filesystem) checkOpen() error {
	if fs.closed {
		return fserr.NewClosed()
	}
	return nil
}

// Type reports "attached" if this filesystem advances a branch reference on
// commit, or "detached" otherwise.
func (fs *Filesystem) Type() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.branch != "" {
		return "attached"
	}
	return "detached"
}

// StoreName identifies the filesystem's backing store and current position
// within it, for diagnostics: "<repoDir>:<branch>:<commit>:<tree>".
func (fs *Filesystem) StoreName() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	commitHex, treeHex := "", ""
	if fs.haveCommit {
		commitHex = fs.baseCommitID.String()
	}
	if fs.haveTree {
		treeHex = fs.baseTree.String()
	}
	return fmt.Sprintf("%s:%s:%s:%s", fs.repoDir, fs.branch, commitHex, treeHex)
}

// FileStoreAttribute reports a named aggregate size from the backing store.
// Recognized names are "totalSpace", "usableSpace" and "unallocatedSpace".
func (fs *Filesystem) FileStoreAttribute(ctx context.Context, name string) (uint64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return 0, err
	}

	switch name {
	case "totalSpace":
		v, err := fs.store.TotalSpace(ctx)
		return v, wrapIO(name, err)
	case "usableSpace":
		v, err := fs.store.UsableSpace(ctx)
		return v, wrapIO(name, err)
	case "unallocatedSpace":
		v, err := fs.store.UnallocatedSpace(ctx)
		return v, wrapIO(name, err)
	default:
		return 0, fserr.NewUnsupportedOperation(name)
	}
}

func wrapIO(path string, err error) error {
	if err == nil {
		return nil
	}
	return fserr.NewIO(path, err)
}

// Close discards every in-memory channel and open directory stream and
// releases the backing store. Close is idempotent and permanent: every
// error-returning operation on a closed filesystem other than Close itself
// fails with a closed-filesystem error. Type, StoreName, State, SetState
// and SetLogger do not check the closed flag and keep working.
func (fs *Filesystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil
	}
	fs.closed = true

	var errs error

	for _, ch := range fs.channels {
		ch.Close()
	}
	fs.channels = nil
	fs.streams.CloseAll()
	fs.cache = nil
	fs.insertions, fs.insertedDirs = nil, nil
	fs.deletions, fs.deletedDirs = nil, nil

	if err := fs.store.Close(); err != nil {
		errs = multierr.Append(errs, fserr.NewIO("", err))
	}
	if errs != nil && fs.log != nil {
		fs.log.Error().Err(errs).Msg("close failed")
	}
	return errs
}
