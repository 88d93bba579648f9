// Package plumbing defines the low-level value types shared by the staging
// engine, the directory cache and the three-way merger: content hashes and
// file modes.
package plumbing

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Format identifies the hash function an ObjectID was computed with.
type Format int8

const (
	// SHA1 is the default object format used by the Git object model.
	SHA1 Format = iota
	// SHA256 is the newer, larger object format.
	SHA256
)

const (
	sha1Size   = 20
	sha256Size = 32
)

// Size returns the number of raw bytes a hash of this format occupies.
func (f Format) Size() int {
	if f == SHA256 {
		return sha256Size
	}
	return sha1Size
}

// ObjectID is an opaque content hash identifying a blob, tree or commit in
// the object store. The zero value is the distinguished "no content yet"
// id. ObjectID is comparable and usable as a map key.
type ObjectID struct {
	format Format
	hash   [sha256Size]byte
}

// ZeroID is the distinguished id meaning "no content yet".
var ZeroID ObjectID

// FromBytes builds an ObjectID from raw hash bytes, inferring the format
// from their length. It reports false for any other length.
func FromBytes(b []byte) (ObjectID, bool) {
	var id ObjectID
	switch len(b) {
	case sha1Size:
		id.format = SHA1
	case sha256Size:
		id.format = SHA256
	default:
		return ObjectID{}, false
	}
	copy(id.hash[:], b)
	return id, true
}

// FromHex parses a hexadecimal id, inferring the format from the string
// length. An invalid string yields the zero id and false.
func FromHex(s string) (ObjectID, bool) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ObjectID{}, false
	}
	return FromBytes(b)
}

// Format reports which hash function produced this id.
func (id ObjectID) Format() Format { return id.format }

// Bytes returns the raw hash bytes, sized according to the id's format.
func (id ObjectID) Bytes() []byte {
	return append([]byte(nil), id.hash[:id.format.Size()]...)
}

// String returns the canonical lowercase hexadecimal representation.
func (id ObjectID) String() string {
	return hex.EncodeToString(id.hash[:id.format.Size()])
}

// IsZero reports whether id is the distinguished "no content" value.
func (id ObjectID) IsZero() bool {
	return bytes.Equal(id.hash[:id.format.Size()], make([]byte, id.format.Size()))
}

// Equal reports whether two ids refer to the same content.
func (id ObjectID) Equal(other ObjectID) bool {
	if id.format != other.format {
		return false
	}
	return id.hash == other.hash
}

// Compare orders two ids of the same format lexicographically by their raw
// bytes.
func (id ObjectID) Compare(other ObjectID) int {
	return bytes.Compare(id.Bytes(), other.Bytes())
}

// GoString supports %#v debugging output.
func (id ObjectID) GoString() string {
	return fmt.Sprintf("plumbing.ObjectID(%q)", id.String())
}
