package memfs

import (
	"context"
	"strings"

	"github.com/go-git/go-memfs/dircache"
	"github.com/go-git/go-memfs/dirstream"
	"github.com/go-git/go-memfs/fserr"
	"github.com/go-git/go-memfs/plumbing/filemode"
)

// DirectoryStream is an open iterator over a single directory's direct
// children, snapshotted at the moment it was opened. While it stays open,
// no mutation of its path or of any path beneath it is allowed.
type DirectoryStream struct {
	stream *dirstream.Stream
}

// Next returns the next child entry, or ok=false once exhausted.
func (d *DirectoryStream) Next() (dircache.Entry, bool) {
	return d.stream.Next()
}

// Close deregisters the stream. Close is idempotent.
func (d *DirectoryStream) Close() error {
	return d.stream.Close()
}

// NewDirectoryStream opens an iterator over path's direct children. Any
// staged insertions or deletions are flushed first so the snapshot the
// stream hands out is complete, per the staging engine's documented
// behavior; filter, if non-nil, excludes entries it reports false for.
func (fs *Filesystem) NewDirectoryStream(ctx context.Context, path string, filter dirstream.Filter) (*DirectoryStream, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return nil, err
	}

	isDir, err := fs.isDirectory(ctx, path)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, fserr.NewNotADirectory(path)
	}

	if err := fs.flushStagedChanges(ctx); err != nil {
		return nil, err
	}

	var entries []dircache.Entry
	if fs.cache != nil {
		entries = directChildren(fs.cache.EntriesWithin(path), path)
	} else {
		entries, err = fs.directChildrenFromTree(ctx, path)
		if err != nil {
			return nil, err
		}
	}

	if filter != nil {
		filtered := make([]dircache.Entry, 0, len(entries))
		for _, e := range entries {
			if filter(e) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	return &DirectoryStream{stream: fs.streams.Open(path, entries)}, nil
}

// directChildren collapses a recursive listing of entries strictly under
// prefix into the immediate children of prefix: a file entry passes
// through unchanged, while everything nested one or more levels deeper
// collapses into a single synthetic directory entry (the cache never
// stores tree ids for directories, so these carry the zero id).
func directChildren(recursive []dircache.Entry, prefix string) []dircache.Entry {
	strip := prefix
	if strip != "" {
		strip += "/"
	}

	var out []dircache.Entry
	seenDirs := make(map[string]struct{})
	for _, e := range recursive {
		rel := strings.TrimPrefix(e.Path, strip)
		if idx := strings.IndexByte(rel, '/'); idx >= 0 {
			name := rel[:idx]
			if _, ok := seenDirs[name]; ok {
				continue
			}
			seenDirs[name] = struct{}{}
			out = append(out, dircache.Entry{Path: strip + name, Mode: filemode.Dir})
			continue
		}
		out = append(out, e)
	}
	return out
}

// directChildrenFromTree lists the immediate children of path by walking
// straight into the base tree, used when no cache has been built yet.
func (fs *Filesystem) directChildrenFromTree(ctx context.Context, path string) ([]dircache.Entry, error) {
	if !fs.haveTree {
		return nil, nil
	}

	mode, id, ok, err := fs.store.WalkTree(ctx, fs.baseTree, path)
	if err != nil {
		return nil, fserr.NewIO(path, err)
	}
	treeID := fs.baseTree
	if path != "" {
		if !ok || mode != filemode.Dir {
			return nil, nil
		}
		treeID = id
	}

	children, err := fs.store.ListTree(ctx, treeID)
	if err != nil {
		return nil, fserr.NewIO(path, err)
	}

	prefix := path
	if prefix != "" {
		prefix += "/"
	}
	out := make([]dircache.Entry, 0, len(children))
	for _, c := range children {
		out = append(out, dircache.Entry{Path: prefix + c.Name, Mode: c.Mode, ID: c.ID})
	}
	return out, nil
}
