package memfs

import (
	"context"
	"io"

	"github.com/go-git/go-memfs/fserr"
	"github.com/go-git/go-memfs/memchan"
	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/plumbing/filemode"
)

// OpenOptions mirrors the handful of POSIX open(2) flags this filesystem
// recognizes. Create, CreateNew, Append and Truncate all imply write
// access even if Write itself is left false, matching how a caller would
// never expect O_APPEND without O_WRONLY to be meaningful.
type OpenOptions struct {
	Read      bool
	Write     bool
	Create    bool
	CreateNew bool
	Append    bool
	Truncate  bool
}

func (o OpenOptions) wantsWrite() bool {
	return o.Write || o.Create || o.CreateNew || o.Append || o.Truncate
}

// NewByteChannel opens path for reading and/or writing according to opts
// and returns a seekable handle. A read-only open of an existing path
// never allocates the directory cache: it is answered straight from the
// base tree when the cache has not already been built for some other
// reason.
func (fs *Filesystem) NewByteChannel(ctx context.Context, path string, opts OpenOptions) (*memchan.Handle, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.checkOpen(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fserr.NewAccessDenied(path, "cannot open the root as a file")
	}

	// Any open that can write is a mutation path: the cache must exist
	// before write-out can observe the channel. Read-only opens stay on
	// the cheaper base-tree walk.
	if opts.wantsWrite() {
		if err := fs.ensureCache(ctx); err != nil {
			return nil, err
		}
	}

	if ch, ok := fs.channels[path]; ok {
		if opts.CreateNew {
			return nil, fserr.NewAlreadyExists(path)
		}
		if opts.Truncate {
			ch.Truncate()
		}
		return fs.attachHandle(ch, opts), nil
	}

	isDir, err := fs.isDirectory(ctx, path)
	if err != nil {
		return nil, err
	}
	if isDir {
		return nil, fserr.NewAccessDenied(path, "is a directory")
	}

	exists, err := fs.isRegularFile(ctx, path)
	if err != nil {
		return nil, err
	}

	var ch *memchan.Channel
	switch {
	case !exists:
		if !opts.Create && !opts.CreateNew {
			return nil, fserr.NewNotFound(path)
		}
		// The staged insertion carries the zero id; the empty channel is
		// born modified so the next write-out flushes it as a real
		// (possibly empty) blob.
		ch = memchan.New(path, nil)
		ch.MarkModified()
		if err := fs.stageFileInsertion(ctx, path, plumbing.ZeroID, filemode.Regular); err != nil {
			return nil, err
		}

	case opts.CreateNew:
		return nil, fserr.NewAlreadyExists(path)

	default:
		id, _, err := fs.getFileBlobID(ctx, path)
		if err != nil {
			return nil, err
		}
		var data []byte
		if !id.IsZero() {
			data, err = fs.store.ReadBlob(ctx, id)
			if err != nil {
				return nil, fserr.NewIO(path, err)
			}
		}
		ch = memchan.New(path, data)
		if opts.Truncate {
			ch.Truncate()
		}
	}

	fs.channels[path] = ch
	return fs.attachHandle(ch, opts), nil
}

func (fs *Filesystem) attachHandle(ch *memchan.Channel, opts OpenOptions) *memchan.Handle {
	h := ch.Attach(opts.wantsWrite())
	if opts.Append {
		h.Seek(0, io.SeekEnd)
	}
	path := ch.Path()
	h.OnClose = func() {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.collectChannel(path)
	}
	return h
}

// collectChannel drops an unmodified, unreferenced channel from the handle
// table. It must be called with fs.mu held.
func (fs *Filesystem) collectChannel(path string) {
	ch, ok := fs.channels[path]
	if !ok {
		return
	}
	if ch.HandleCount() == 0 && !ch.Modified() {
		delete(fs.channels, path)
	}
}

// cloneChannel copies src's current bytes into a brand-new channel bound to
// newPath and marks it modified, since it has no blob id of its own until
// the next flush. Used by Copy and Move to carry an in-flight, not-yet-
// flushed write across a rename without forcing a blob round-trip through
// the store.
func cloneChannel(newPath string, src *memchan.Channel) *memchan.Channel {
	ch := memchan.New(newPath, src.Bytes())
	ch.MarkModified()
	return ch
}
