// Package memchan implements the in-memory, growable byte buffer backing
// an open writable file before its blob is persisted, and the seekable
// handle type user code reads and writes through.
//
// A Channel outlives any single Handle: it is addressed by path from the
// filesystem's handle table and stays alive across opens and closes until
// it is deleted, moved, or garbage-collected for being unmodified with no
// attached handles. A Handle never needs to reach back into its owning
// filesystem directly — it only ever touches its Channel — which keeps the
// cyclic channel/filesystem lifetime manageable: ownership flows from the
// table, not from a back-pointer.
package memchan

import (
	"io"
	"sync"
)

// Channel is a growable byte buffer with a modification flag and a count
// of attached user-facing handles. All access to the buffer and the
// bookkeeping fields is serialized by its own lock (the "buffer lock"),
// distinct from the filesystem's exclusive lock; callers higher up the
// stack always take the filesystem lock first.
type Channel struct {
	mu       sync.Mutex
	path     string
	buf      []byte
	modified bool
	handles  int
	closed   bool
}

// New creates a channel seeded with initial content. initial is copied.
func New(path string, initial []byte) *Channel {
	return &Channel{path: path, buf: append([]byte(nil), initial...)}
}

// Path returns the path this channel shadows.
func (c *Channel) Path() string { return c.path }

// Len returns the current buffer length.
func (c *Channel) Len() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.buf))
}

// Bytes returns a snapshot copy of the buffer's current content.
func (c *Channel) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf...)
}

// Modified reports whether the buffer has been written to since it was
// last flushed to a blob.
func (c *Channel) Modified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modified
}

// ClearModified resets the modified flag, done after a flush has made the
// buffer's content consistent with the directory cache.
func (c *Channel) ClearModified() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modified = false
}

// HandleCount returns the number of currently attached handles.
func (c *Channel) HandleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles
}

// Truncate empties the buffer and marks it modified; used when a handle is
// opened with the truncate option.
func (c *Channel) Truncate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = c.buf[:0]
	c.modified = true
}

// MarkModified flags the buffer as modified without changing its content,
// used when a channel is cloned into a new path by copy or move: the
// content is unchanged but it has no blob id of its own yet.
func (c *Channel) MarkModified() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modified = true
}

// Attach returns a new seekable Handle over the channel, incrementing its
// attached-handle count. canWrite gates Write; a read-only handle still
// observes live writes from sibling handles.
func (c *Channel) Attach(canWrite bool) *Handle {
	c.mu.Lock()
	c.handles++
	c.mu.Unlock()
	return &Handle{channel: c, canWrite: canWrite}
}

func (c *Channel) release() {
	c.mu.Lock()
	c.handles--
	c.mu.Unlock()
}

// Close terminates the channel: every handle still attached to it fails
// its next Read, Write or Seek. Used when the owning filesystem closes
// while handles are outstanding.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Handle is a user-facing seekable view over a Channel's buffer. It
// implements io.ReadWriteSeeker and io.Closer.
type Handle struct {
	channel  *Channel
	pos      int64
	canWrite bool
	closed   bool
	// OnClose, if set, runs after the handle detaches from its channel.
	// The filesystem uses it to garbage-collect channels that end up
	// unmodified with zero attached handles.
	OnClose func()
}

// Read implements io.Reader.
func (h *Handle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, io.ErrClosedPipe
	}
	c := h.channel
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}

	if h.pos >= int64(len(c.buf)) {
		return 0, io.EOF
	}
	n := copy(p, c.buf[h.pos:])
	h.pos += int64(n)
	return n, nil
}

// Write implements io.Writer. Writing past the current end grows the
// buffer, zero-filling any gap, and always marks the channel modified.
func (h *Handle) Write(p []byte) (int, error) {
	if h.closed {
		return 0, io.ErrClosedPipe
	}
	if !h.canWrite {
		return 0, io.ErrClosedPipe
	}
	c := h.channel
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}

	end := h.pos + int64(len(p))
	if end > int64(len(c.buf)) {
		grown := make([]byte, end)
		copy(grown, c.buf)
		c.buf = grown
	}
	copy(c.buf[h.pos:end], p)
	h.pos = end
	c.modified = true
	return len(p), nil
}

// Seek implements io.Seeker.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	if h.closed {
		return 0, io.ErrClosedPipe
	}
	c := h.channel
	c.mu.Lock()
	closed := c.closed
	length := int64(len(c.buf))
	c.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = h.pos + offset
	case io.SeekEnd:
		newPos = length + offset
	default:
		return 0, io.ErrUnexpectedEOF
	}
	if newPos < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	h.pos = newPos
	return newPos, nil
}

// Close detaches the handle from its channel. Close is idempotent.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.channel.release()
	if h.OnClose != nil {
		h.OnClose()
	}
	return nil
}
