// Package memfs implements an in-memory, POSIX-flavored filesystem layered
// over a content-addressed, Git-family object store. A Filesystem stages
// file inserts and deletes against a cached view of a base tree without
// touching the backing store until writeAndUpdateTree or
// writeAndUpdateCommit is called, the way a Git working tree's index
// defers every change until the next commit.
//
// The package is organized the way go-git organizes its own storer-backed
// types: plumbing value types live in their own subpackages (plumbing,
// plumbing/filemode), the pluggable backend is an interface (store.Store)
// with an in-memory reference implementation (store/memstore), and the
// root package wires the pieces into one coarse-locked aggregate type.
package memfs
