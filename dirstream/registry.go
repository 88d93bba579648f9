// Package dirstream tracks currently open directory iterators so the
// staging engine can refuse a mutation whose effect would invalidate
// one. It also implements the iterator itself: a snapshot of a
// directory's direct children taken at open time, the way go-git's
// merkletrie node types present a directory as an ordered list of
// children without claiming to track later mutations.
package dirstream

import (
	"strings"
	"sync"

	"github.com/go-git/go-memfs/dircache"
)

// Filter decides whether an entry should be surfaced by a Stream.
type Filter func(e dircache.Entry) bool

// Registry is a per-path multiset of currently open directory iterators.
type Registry struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{counts: make(map[string]int)}
}

// HasOpenAncestor reports whether path or any of its ancestors (including
// the root) currently has an open iterator registered against it.
func (r *Registry) HasOpenAncestor(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range ancestorsInclusive(path) {
		if r.counts[a] > 0 {
			return true
		}
	}
	return false
}

// ancestorsInclusive returns path itself followed by each proper ancestor
// up to and including the root ("").
func ancestorsInclusive(path string) []string {
	out := []string{path}
	for path != "" {
		idx := strings.LastIndexByte(path, '/')
		if idx < 0 {
			path = ""
		} else {
			path = path[:idx]
		}
		out = append(out, path)
	}
	return out
}

// Open registers a new iterator over path's direct children (entries must
// already be filtered and ordered by the caller) and returns a Stream
// whose Close deregisters it.
func (r *Registry) Open(path string, entries []dircache.Entry) *Stream {
	r.mu.Lock()
	r.counts[path]++
	r.mu.Unlock()

	return &Stream{registry: r, path: path, entries: entries}
}

// CloseAll forcibly closes every outstanding stream, used by
// Filesystem.Close. It only clears the bookkeeping; individual Stream
// values already handed out become no-ops on their next Close.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = make(map[string]int)
}

// Stream is an open directory iterator: an ordered, immutable snapshot of
// a directory's direct children as of the moment it was opened.
type Stream struct {
	registry *Registry
	path     string
	entries  []dircache.Entry
	idx      int
	closed   bool
}

// Next returns the next entry in the stream, or ok=false once exhausted.
func (s *Stream) Next() (dircache.Entry, bool) {
	if s.idx >= len(s.entries) {
		return dircache.Entry{}, false
	}
	e := s.entries[s.idx]
	s.idx++
	return e, true
}

// Close deregisters the stream. Close is idempotent.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	if s.registry.counts[s.path] > 0 {
		s.registry.counts[s.path]--
		if s.registry.counts[s.path] == 0 {
			delete(s.registry.counts, s.path)
		}
	}
	return nil
}
