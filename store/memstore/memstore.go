// Package memstore is a minimal in-memory reference implementation of
// store.Store, used by this module's own tests and by cmd/gitfsdemo. It is
// modeled on go-git's storage/memory package: objects live in plain maps
// keyed by their content hash, and a hash is always recomputed from
// content rather than trusted from the caller.
package memstore

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-memfs/fserr"
	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
	"github.com/go-git/go-memfs/store"
)

// Store is an in-memory, non-durable object store. It is safe for
// concurrent use.
type Store struct {
	mu      sync.Mutex
	format  plumbing.Format
	blobs   map[plumbing.ObjectID][]byte
	trees   map[plumbing.ObjectID][]store.TreeEntry
	commits map[plumbing.ObjectID]store.Commit
	refs    map[string]plumbing.ObjectID

	// Capacity, when non-zero, is reported as TotalSpace; UsableSpace
	// reflects bytes not yet consumed by stored objects.
	Capacity uint64
}

// New returns an empty store hashing objects with format (defaults to
// plumbing.SHA1 for the zero value).
func New(format plumbing.Format) *Store {
	return &Store{
		format:  format,
		blobs:   make(map[plumbing.ObjectID][]byte),
		trees:   make(map[plumbing.ObjectID][]store.TreeEntry),
		commits: make(map[plumbing.ObjectID]store.Commit),
		refs:    make(map[string]plumbing.ObjectID),
	}
}

func (s *Store) newHasher() hash.Hash {
	if s.format == plumbing.SHA256 {
		return sha256.New()
	}
	return sha1.New()
}

// hashObject reproduces Git's content-addressing scheme: the hash covers
// "<kind> <size>\x00<content>", never just the raw content.
func (s *Store) hashObject(kind string, content []byte) plumbing.ObjectID {
	h := s.newHasher()
	fmt.Fprintf(h, "%s %d\x00", kind, len(content))
	h.Write(content)
	id, _ := plumbing.FromBytes(h.Sum(nil))
	return id
}

// ReadBlob implements store.Store.
func (s *Store) ReadBlob(_ context.Context, id plumbing.ObjectID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[id]
	if !ok {
		return nil, fserr.NewNotFound(id.String())
	}
	return append([]byte(nil), data...), nil
}

// ReadBlobSize implements store.Store.
func (s *Store) ReadBlobSize(_ context.Context, id plumbing.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[id]
	if !ok {
		return 0, fserr.NewNotFound(id.String())
	}
	return int64(len(data)), nil
}

// WalkTree implements store.Store.
func (s *Store) WalkTree(ctx context.Context, tree plumbing.ObjectID, path string) (filemode.FileMode, plumbing.ObjectID, bool, error) {
	if path == "" {
		return filemode.Dir, tree, true, nil
	}

	segments := strings.Split(path, "/")
	cur := tree
	for i, seg := range segments {
		s.mu.Lock()
		entries, ok := s.trees[cur]
		s.mu.Unlock()
		if !ok {
			return filemode.Missing, plumbing.ObjectID{}, false, nil
		}

		var found *store.TreeEntry
		for i := range entries {
			if entries[i].Name == seg {
				found = &entries[i]
				break
			}
		}
		if found == nil {
			return filemode.Missing, plumbing.ObjectID{}, false, nil
		}

		if i == len(segments)-1 {
			return found.Mode, found.ID, true, nil
		}
		if found.Mode != filemode.Dir {
			return filemode.Missing, plumbing.ObjectID{}, false, nil
		}
		cur = found.ID
	}

	return filemode.Missing, plumbing.ObjectID{}, false, nil
}

// ListTree implements store.Store.
func (s *Store) ListTree(_ context.Context, id plumbing.ObjectID) ([]store.TreeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.trees[id]
	if !ok {
		return nil, fserr.NewNotFound(id.String())
	}
	return append([]store.TreeEntry(nil), entries...), nil
}

// InsertBlob implements store.Store.
func (s *Store) InsertBlob(_ context.Context, data []byte) (plumbing.ObjectID, error) {
	id := s.hashObject("blob", data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = append([]byte(nil), data...)
	return id, nil
}

// InsertTree implements store.Store.
func (s *Store) InsertTree(_ context.Context, entries []store.TreeEntry) (plumbing.ObjectID, error) {
	sorted := append([]store.TreeEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var body strings.Builder
	for _, e := range sorted {
		fmt.Fprintf(&body, "%o %s\x00%s", treeModeBits(e.Mode), e.Name, e.ID.Bytes())
	}

	id := s.hashObject("tree", []byte(body.String()))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees[id] = sorted
	return id, nil
}

func treeModeBits(m filemode.FileMode) int {
	switch m {
	case filemode.Dir:
		return 0o40000
	case filemode.Executable:
		return 0o100755
	case filemode.Gitlink:
		return 0o160000
	default:
		return 0o100644
	}
}

// ReadCommit implements store.Store.
func (s *Store) ReadCommit(_ context.Context, id plumbing.ObjectID) (store.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commits[id]
	if !ok {
		return store.Commit{}, fserr.NewNotFound(id.String())
	}
	return c, nil
}

// InsertCommit implements store.Store.
func (s *Store) InsertCommit(_ context.Context, c store.Commit) (plumbing.ObjectID, error) {
	var body strings.Builder
	fmt.Fprintf(&body, "tree %s\n", c.Tree.String())
	for _, p := range c.Parents {
		fmt.Fprintf(&body, "parent %s\n", p.String())
	}
	fmt.Fprintf(&body, "author %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(&body, "committer %s <%s>\n", c.Committer.Name, c.Committer.Email)
	fmt.Fprintf(&body, "\n%s", c.Message)

	id := s.hashObject("commit", []byte(body.String()))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits[id] = c
	return id, nil
}

// Flush implements store.Store; the in-memory store has nothing to flush.
func (s *Store) Flush(context.Context) error { return nil }

// UpdateRef implements store.Store.
func (s *Store) UpdateRef(_ context.Context, name string, newID, expectedOldID plumbing.ObjectID, force bool, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.refs[name]
	if !force {
		if exists && !current.Equal(expectedOldID) {
			return fserr.NewIllegalState(fmt.Sprintf("ref %q: expected %s, found %s", name, expectedOldID, current))
		}
		if !exists && !expectedOldID.IsZero() {
			return fserr.NewIllegalState(fmt.Sprintf("ref %q: expected %s, found none", name, expectedOldID))
		}
	}

	s.refs[name] = newID
	return nil
}

// ReadRef implements store.Store.
func (s *Store) ReadRef(_ context.Context, name string) (plumbing.ObjectID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refs[name]
	return id, ok, nil
}

// TotalSpace implements store.Store.
func (s *Store) TotalSpace(context.Context) (uint64, error) {
	return s.Capacity, nil
}

// UsableSpace implements store.Store.
func (s *Store) UsableSpace(context.Context) (uint64, error) {
	if s.Capacity == 0 {
		return 0, nil
	}
	used := s.usedBytes()
	if used >= s.Capacity {
		return 0, nil
	}
	return s.Capacity - used, nil
}

// UnallocatedSpace implements store.Store; for this adapter it is the same
// figure as UsableSpace since there is no filesystem-level reservation.
func (s *Store) UnallocatedSpace(ctx context.Context) (uint64, error) {
	return s.UsableSpace(ctx)
}

func (s *Store) usedBytes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n uint64
	for _, b := range s.blobs {
		n += uint64(len(b))
	}
	return n
}

// Close implements store.Store; nothing to release for the in-memory
// adapter.
func (s *Store) Close() error { return nil }
