// Package store declares the contract the staging engine and the merger
// use to talk to the underlying Git-family object store: reading blobs and
// trees, inserting new ones, and advancing a branch reference. This
// package never implements the contract itself beyond the in-memory
// reference adapter under store/memstore — production callers plug in
// their own backing store.
package store

import (
	"context"

	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
)

// TreeEntry is one child of a tree object about to be inserted.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	ID   plumbing.ObjectID
}

// Commit is the payload needed to insert a new commit object.
type Commit struct {
	Tree      plumbing.ObjectID
	Parents   []plumbing.ObjectID
	Author    Identity
	Committer Identity
	Message   string
}

// Identity names a commit's author or committer.
type Identity struct {
	Name  string
	Email string
}

// Store is the object-store adapter the staging engine and merger consume.
// Implementations own their own retry/validation policy and must surface
// terminal failures wrapped so callers can recognize them as I/O errors.
type Store interface {
	// ReadBlob returns the full contents of the blob identified by id.
	ReadBlob(ctx context.Context, id plumbing.ObjectID) ([]byte, error)
	// ReadBlobSize returns the stored size of a blob without reading its
	// content.
	ReadBlobSize(ctx context.Context, id plumbing.ObjectID) (int64, error)
	// WalkTree resolves path (slash-separated, relative to tree) and
	// reports the mode and id of whatever is found there, or ok=false if
	// nothing exists at that path.
	WalkTree(ctx context.Context, tree plumbing.ObjectID, path string) (mode filemode.FileMode, id plumbing.ObjectID, ok bool, err error)
	// ListTree returns the immediate children of the tree identified by
	// id, used to seed a directory-cache view from a base tree.
	ListTree(ctx context.Context, id plumbing.ObjectID) ([]TreeEntry, error)
	// InsertBlob stores data as a new blob and returns its id. Storing
	// identical content twice yields the same id.
	InsertBlob(ctx context.Context, data []byte) (plumbing.ObjectID, error)
	// InsertTree stores entries (already sorted by Name) as a new tree and
	// returns its id.
	InsertTree(ctx context.Context, entries []TreeEntry) (plumbing.ObjectID, error)
	// ReadCommit loads a commit object.
	ReadCommit(ctx context.Context, id plumbing.ObjectID) (Commit, error)
	// InsertCommit stores a new commit object and returns its id.
	InsertCommit(ctx context.Context, c Commit) (plumbing.ObjectID, error)
	// Flush makes all objects inserted so far durable/visible, the way a
	// packfile writer would flush before a ref update.
	Flush(ctx context.Context) error

	// UpdateRef moves name to newID. If force is false, the update fails
	// unless the ref currently holds expectedOldID. reflogMessage is
	// recorded against the update.
	UpdateRef(ctx context.Context, name string, newID, expectedOldID plumbing.ObjectID, force bool, reflogMessage string) error
	// ReadRef returns the id name currently points at, or ok=false if the
	// reference does not exist.
	ReadRef(ctx context.Context, name string) (id plumbing.ObjectID, ok bool, err error)

	// TotalSpace, UsableSpace and UnallocatedSpace report byte counts of
	// the backing storage directory, surfaced through
	// Filesystem.FileStoreAttribute.
	TotalSpace(ctx context.Context) (uint64, error)
	UsableSpace(ctx context.Context) (uint64, error)
	UnallocatedSpace(ctx context.Context) (uint64, error)

	// Close releases any resources the adapter holds open.
	Close() error
}
