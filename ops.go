package memfs

import (
	"context"

	"github.com/go-git/go-memfs/fserr"
	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
)

// IsRegularFile reports whether path currently names a regular file,
// consulting the insertion/deletion overlays first, then the directory
// cache if one has been built, and otherwise the base tree directly.
func (fs *Filesystem) IsRegularFile(ctx context.Context, path string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return false, err
	}
	return fs.isRegularFile(ctx, path)
}

func (fs *Filesystem) isRegularFile(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, deleted := fs.deletions[path]; deleted {
		return false, nil
	}
	if sf, inserted := fs.insertions[path]; inserted {
		return sf.mode.IsFile(), nil
	}
	if fs.cache != nil {
		return fs.cache.FileExists(path), nil
	}

	mode, _, ok, err := fs.store.WalkTree(ctx, fs.baseTree, path)
	if err != nil {
		return false, fserr.NewIO(path, err)
	}
	return ok && mode.IsFile(), nil
}

// IsDirectory reports whether path currently names a directory (the root
// always does), consulting the overlays, then the cache, then the base
// tree.
func (fs *Filesystem) IsDirectory(ctx context.Context, path string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return false, err
	}
	return fs.isDirectory(ctx, path)
}

func (fs *Filesystem) isDirectory(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return true, nil
	}
	if n, tracked := fs.deletedDirs[path]; tracked && n == 0 {
		return false, nil
	}
	if _, inserted := fs.insertedDirs[path]; inserted {
		return true, nil
	}
	if fs.cache != nil {
		return fs.cache.IsNonTrivialDirectory(path), nil
	}

	mode, _, ok, err := fs.store.WalkTree(ctx, fs.baseTree, path)
	if err != nil {
		return false, fserr.NewIO(path, err)
	}
	return ok && mode == filemode.Dir, nil
}

// getFileBlobID resolves path to the blob id and mode it currently stages
// to, preferring an overlay insertion, reporting mode=filemode.Dir with no
// error if path names a directory, and otherwise consulting the cache or
// base tree. A path that resolves to nothing at all is a NewNotFound
// error.
func (fs *Filesystem) getFileBlobID(ctx context.Context, path string) (id plumbing.ObjectID, mode filemode.FileMode, err error) {
	if sf, ok := fs.insertions[path]; ok {
		return sf.id, sf.mode, nil
	}

	dir, err := fs.isDirectory(ctx, path)
	if err != nil {
		return plumbing.ObjectID{}, filemode.Missing, err
	}
	if dir {
		return plumbing.ObjectID{}, filemode.Dir, nil
	}

	if fs.cache != nil {
		e, ok := fs.cache.Lookup(path)
		if !ok || !e.Mode.IsFile() {
			return plumbing.ObjectID{}, filemode.Missing, fserr.NewNotFound(path)
		}
		return e.ID, e.Mode, nil
	}

	treeMode, blobID, ok, err := fs.store.WalkTree(ctx, fs.baseTree, path)
	if err != nil {
		return plumbing.ObjectID{}, filemode.Missing, fserr.NewIO(path, err)
	}
	if !ok || !treeMode.IsFile() {
		return plumbing.ObjectID{}, filemode.Missing, fserr.NewNotFound(path)
	}
	return blobID, treeMode, nil
}

// GetFileBlobID is the public form of getFileBlobID: it returns the zero id
// and ok=false if path names a directory rather than a file.
func (fs *Filesystem) GetFileBlobID(ctx context.Context, path string) (id plumbing.ObjectID, ok bool, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return plumbing.ObjectID{}, false, err
	}
	blobID, mode, err := fs.getFileBlobID(ctx, path)
	if err != nil {
		return plumbing.ObjectID{}, false, err
	}
	if !mode.IsFile() {
		return plumbing.ObjectID{}, false, nil
	}
	return blobID, true, nil
}

// GetFileSize reports a file's current size: the live buffer length if it
// has an open in-memory channel, or the stored blob's size otherwise.
// Directories report size zero.
func (fs *Filesystem) GetFileSize(ctx context.Context, path string) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return 0, err
	}

	if ch, ok := fs.channels[path]; ok {
		return ch.Len(), nil
	}

	id, mode, err := fs.getFileBlobID(ctx, path)
	if err != nil {
		return 0, err
	}
	if !mode.IsFile() || id.IsZero() {
		return 0, nil
	}

	size, err := fs.store.ReadBlobSize(ctx, id)
	if err != nil {
		return 0, fserr.NewIO(path, err)
	}
	return size, nil
}
