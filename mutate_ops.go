package memfs

import (
	"context"
	"strings"

	"github.com/go-git/go-memfs/fserr"
	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
)

// Delete removes a regular file. Deleting a directory always fails with a
// directory-not-empty error: this filesystem's staging engine only ever
// removes files one at a time, recursive directory removal is expressed as
// a Move of its children out followed by individual file deletes.
func (fs *Filesystem) Delete(ctx context.Context, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return err
	}
	if fs.streams.HasOpenAncestor(path) {
		return fserr.NewAccessDenied(path, "an ancestor directory has an open iterator")
	}

	isDir, err := fs.isDirectory(ctx, path)
	if err != nil {
		return err
	}
	if isDir {
		return fserr.NewDirectoryNotEmpty(path)
	}

	isFile, err := fs.isRegularFile(ctx, path)
	if err != nil {
		return err
	}
	if !isFile {
		return fserr.NewNotFound(path)
	}

	if ch, ok := fs.channels[path]; ok {
		if ch.HandleCount() > 0 {
			return fserr.NewAccessDenied(path, "file has an open handle")
		}
		delete(fs.channels, path)
	}

	return fs.stageFileDeletion(ctx, path)
}

// Copy duplicates source's content to target. If target already exists,
// replaceExisting must be set or the call fails with an already-exists
// error. Copying a directory is not supported.
func (fs *Filesystem) Copy(ctx context.Context, source, target string, replaceExisting bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return err
	}
	if source == target {
		return nil
	}
	if fs.streams.HasOpenAncestor(target) {
		return fserr.NewAccessDenied(target, "an ancestor directory has an open iterator")
	}

	id, mode, err := fs.getFileBlobID(ctx, source)
	if err != nil {
		return err
	}
	if mode == filemode.Dir {
		return fserr.NewAccessDenied(source, "copying a directory is not supported")
	}

	if err := fs.checkCopyMoveTarget(ctx, target, replaceExisting); err != nil {
		return err
	}

	delete(fs.channels, target)
	if src, ok := fs.channels[source]; ok {
		fs.channels[target] = cloneChannel(target, src)
		return fs.stageFileInsertion(ctx, target, plumbing.ZeroID, mode)
	}
	return fs.stageFileInsertion(ctx, target, id, mode)
}

// Move renames source to target, recursing through a directory's children
// when source names a directory. Moving a path into its own subtree is
// rejected.
func (fs *Filesystem) Move(ctx context.Context, source, target string, replaceExisting bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return err
	}
	if source == target {
		return nil
	}
	if isDescendantOrSelf(target, source) {
		return fserr.NewAccessDenied(target, "move target is nested under its source")
	}
	if fs.streams.HasOpenAncestor(source) || fs.streams.HasOpenAncestor(target) {
		return fserr.NewAccessDenied(target, "an ancestor directory has an open iterator")
	}

	isFile, err := fs.isRegularFile(ctx, source)
	if err != nil {
		return err
	}
	isDir, err := fs.isDirectory(ctx, source)
	if err != nil {
		return err
	}
	if !isFile && !isDir {
		return fserr.NewNotFound(source)
	}

	if isFile {
		return fs.moveFile(ctx, source, target, replaceExisting)
	}
	return fs.moveDirectory(ctx, source, target)
}

func (fs *Filesystem) moveFile(ctx context.Context, source, target string, replaceExisting bool) error {
	if ch, ok := fs.channels[source]; ok && ch.HandleCount() > 0 {
		return fserr.NewAccessDenied(source, "file has an open handle")
	}

	id, mode, err := fs.getFileBlobID(ctx, source)
	if err != nil {
		return err
	}
	if err := fs.checkCopyMoveTarget(ctx, target, replaceExisting); err != nil {
		return err
	}

	delete(fs.channels, target)
	if src, ok := fs.channels[source]; ok {
		fs.channels[target] = cloneChannel(target, src)
		delete(fs.channels, source)
		if err := fs.stageFileInsertion(ctx, target, plumbing.ZeroID, mode); err != nil {
			return err
		}
	} else if err := fs.stageFileInsertion(ctx, target, id, mode); err != nil {
		return err
	}

	return fs.stageFileDeletion(ctx, source)
}

func (fs *Filesystem) moveDirectory(ctx context.Context, source, target string) error {
	if err := fs.flushStagedChanges(ctx); err != nil {
		return err
	}
	if err := fs.ensureCache(ctx); err != nil {
		return err
	}

	entries := fs.cache.EntriesWithin(source)
	for _, e := range entries {
		if ch, ok := fs.channels[e.Path]; ok && ch.HandleCount() > 0 {
			return fserr.NewAccessDenied(e.Path, "file has an open handle")
		}
	}

	for _, e := range entries {
		rel := strings.TrimPrefix(e.Path, source+"/")
		newPath := target + "/" + rel

		delete(fs.channels, newPath)
		if src, ok := fs.channels[e.Path]; ok {
			fs.channels[newPath] = cloneChannel(newPath, src)
			delete(fs.channels, e.Path)
			if err := fs.stageFileInsertion(ctx, newPath, plumbing.ZeroID, e.Mode); err != nil {
				return err
			}
			continue
		}
		if err := fs.stageFileInsertion(ctx, newPath, e.ID, e.Mode); err != nil {
			return err
		}
	}

	for _, e := range entries {
		if err := fs.stageFileDeletion(ctx, e.Path); err != nil {
			return err
		}
	}
	return nil
}

// checkCopyMoveTarget validates a copy/move destination: a directory there
// is always a hard error, an existing file requires replaceExisting, and a
// file with an attached handle may not be replaced at all.
func (fs *Filesystem) checkCopyMoveTarget(ctx context.Context, target string, replaceExisting bool) error {
	targetIsDir, err := fs.isDirectory(ctx, target)
	if err != nil {
		return err
	}
	if targetIsDir {
		return fserr.NewDirectoryNotEmpty(target)
	}

	targetIsFile, err := fs.isRegularFile(ctx, target)
	if err != nil {
		return err
	}
	if targetIsFile && !replaceExisting {
		return fserr.NewAlreadyExists(target)
	}
	if ch, ok := fs.channels[target]; ok && ch.HandleCount() > 0 {
		return fserr.NewAccessDenied(target, "file has an open handle")
	}
	return nil
}
