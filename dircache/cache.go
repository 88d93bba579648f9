// Package dircache implements the directory-cache view: a flat, sorted
// index of (path, mode, blob-id) entries standing in for a base tree while
// it is being edited. It is modeled on go-git's in-memory index node
// (utils/merkletrie/index) crossed with a real sorted container instead of
// a linear scan: entries are kept in an emirpasic/gods red-black tree keyed
// by path, the same tree family go-git itself pulls in for commit-graph
// traversal.
package dircache

import (
	"context"
	"sort"
	"strings"

	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
	"github.com/go-git/go-memfs/store"
)

// Entry is one file recorded in the cache. The cache never stores tree
// entries explicitly: a directory exists implicitly wherever some entry's
// path has it as a strict prefix.
type Entry struct {
	Path string
	Mode filemode.FileMode
	ID   plumbing.ObjectID
}

// Cache is a sorted set of Entry, ordered by Path.
type Cache struct {
	tree *redblacktree.Tree
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{tree: redblacktree.NewWithStringComparator()}
}

// ForTree builds a cache by recursively listing tree from st. It is the
// "lazy cache initialization" step: called once, on the first mutation
// against a filesystem that had been reading straight from the base tree.
func ForTree(ctx context.Context, st store.Store, tree plumbing.ObjectID) (*Cache, error) {
	c := New()
	if tree.IsZero() {
		return c, nil
	}
	if err := walkInto(ctx, st, tree, "", c); err != nil {
		return nil, err
	}
	return c, nil
}

func walkInto(ctx context.Context, st store.Store, tree plumbing.ObjectID, prefix string, c *Cache) error {
	children, err := st.ListTree(ctx, tree)
	if err != nil {
		return err
	}
	for _, child := range children {
		path := child.Name
		if prefix != "" {
			path = prefix + "/" + child.Name
		}
		if child.Mode == filemode.Dir {
			if err := walkInto(ctx, st, child.ID, path, c); err != nil {
				return err
			}
			continue
		}
		c.tree.Put(path, Entry{Path: path, Mode: child.Mode, ID: child.ID})
	}
	return nil
}

// Lookup returns the entry recorded at path, if any.
func (c *Cache) Lookup(path string) (Entry, bool) {
	v, found := c.tree.Get(path)
	if !found {
		return Entry{}, false
	}
	return v.(Entry), true
}

// FileExists reports whether path names a regular or executable file in
// the cache.
func (c *Cache) FileExists(path string) bool {
	e, ok := c.Lookup(path)
	return ok && e.Mode.IsFile()
}

// IsNonTrivialDirectory reports whether at least one entry has a path
// strictly starting with prefix + "/".
func (c *Cache) IsNonTrivialDirectory(prefix string) bool {
	entries := c.sortedEntries()
	lower := childPrefix(prefix)
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Path >= lower })
	return i < len(entries) && strings.HasPrefix(entries[i].Path, lower)
}

// EntriesWithin returns, in path order, every entry whose path starts with
// prefix + "/".
func (c *Cache) EntriesWithin(prefix string) []Entry {
	entries := c.sortedEntries()
	lower := childPrefix(prefix)
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Path >= lower })

	var out []Entry
	for ; i < len(entries) && strings.HasPrefix(entries[i].Path, lower); i++ {
		out = append(out, entries[i])
	}
	return out
}

func childPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (c *Cache) sortedEntries() []Entry {
	values := c.tree.Values()
	out := make([]Entry, len(values))
	for i, v := range values {
		out[i] = v.(Entry)
	}
	return out
}

// Size returns the number of entries in the cache.
func (c *Cache) Size() int { return c.tree.Size() }

// Clear removes every entry from the cache.
func (c *Cache) Clear() { c.tree.Clear() }

// DeleteDirectory removes every entry whose path starts with prefix + "/".
func (c *Cache) DeleteDirectory(prefix string) {
	for _, e := range c.EntriesWithin(prefix) {
		c.tree.Remove(e.Path)
	}
}

// Builder accumulates additive mutations (new or replaced file entries)
// to apply to a Cache in one batch.
type Builder struct {
	cache   *Cache
	pending []Entry
}

// Builder starts an additive mutation against c.
func (c *Cache) Builder() *Builder {
	return &Builder{cache: c}
}

// Add stages path to be written (or overwritten) as a file entry.
func (b *Builder) Add(path string, mode filemode.FileMode, id plumbing.ObjectID) {
	b.pending = append(b.pending, Entry{Path: path, Mode: mode, ID: id})
}

// Finish applies every staged addition to the underlying cache.
func (b *Builder) Finish() {
	for _, e := range b.pending {
		b.cache.tree.Put(e.Path, e)
	}
	b.pending = nil
}

// Editor accumulates path-keyed deletions to apply to a Cache in one
// batch.
type Editor struct {
	cache   *Cache
	pending []string
}

// Editor starts a deletion mutation against c.
func (c *Cache) Editor() *Editor {
	return &Editor{cache: c}
}

// Delete stages path for removal.
func (e *Editor) Delete(path string) {
	e.pending = append(e.pending, path)
}

// Finish applies every staged deletion to the underlying cache.
func (e *Editor) Finish() {
	for _, p := range e.pending {
		e.cache.tree.Remove(p)
	}
	e.pending = nil
}

// WriteTree serializes the cache into nested tree objects via st,
// returning the root tree id. Identical cache content always yields an
// identical id, since the backing store hashes by content.
func (c *Cache) WriteTree(ctx context.Context, st store.Store) (plumbing.ObjectID, error) {
	return writeSubtree(ctx, st, c.sortedEntries(), "")
}

func writeSubtree(ctx context.Context, st store.Store, entries []Entry, prefix string) (plumbing.ObjectID, error) {
	type group struct {
		name     string
		isDir    bool
		file     Entry
		children []Entry
	}

	var order []string
	groups := make(map[string]*group)

	for _, e := range entries {
		rel := e.Path
		if prefix != "" {
			rel = strings.TrimPrefix(e.Path, prefix+"/")
		}
		parts := strings.SplitN(rel, "/", 2)
		name := parts[0]

		g, ok := groups[name]
		if !ok {
			g = &group{name: name}
			groups[name] = g
			order = append(order, name)
		}

		if len(parts) == 1 {
			g.isDir = false
			g.file = e
		} else {
			g.isDir = true
			g.children = append(g.children, e)
		}
	}

	treeEntries := make([]store.TreeEntry, 0, len(order))
	for _, name := range order {
		g := groups[name]
		if !g.isDir {
			treeEntries = append(treeEntries, store.TreeEntry{Name: g.name, Mode: g.file.Mode, ID: g.file.ID})
			continue
		}

		childPrefix := g.name
		if prefix != "" {
			childPrefix = prefix + "/" + g.name
		}
		subID, err := writeSubtree(ctx, st, g.children, childPrefix)
		if err != nil {
			return plumbing.ObjectID{}, err
		}
		treeEntries = append(treeEntries, store.TreeEntry{Name: g.name, Mode: filemode.Dir, ID: subID})
	}

	return st.InsertTree(ctx, treeEntries)
}
