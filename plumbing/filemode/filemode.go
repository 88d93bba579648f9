// Package filemode defines the small set of entry types a directory cache
// entry or tree entry can carry: regular file, executable file, tree,
// gitlink and the "missing" sentinel used during three-way merges.
package filemode

// FileMode represents the type of a DirCache or tree entry. Unlike a POSIX
// mode it carries no permission bits beyond the executable flag.
type FileMode int8

const (
	// Missing marks the absence of an entry on one side of a merge.
	Missing FileMode = iota
	// Regular is an ordinary, non-executable file.
	Regular
	// Executable is a file with the executable bit set.
	Executable
	// Dir is a tree (directory) entry.
	Dir
	// Gitlink is a submodule commit reference; opaque to this filesystem.
	Gitlink
)

// String returns a short human-readable name, used in error messages and
// conflict records.
func (m FileMode) String() string {
	switch m {
	case Missing:
		return "missing"
	case Regular:
		return "regular-file"
	case Executable:
		return "executable-file"
	case Dir:
		return "tree"
	case Gitlink:
		return "gitlink"
	default:
		return "unknown"
	}
}

// IsFile reports whether m denotes a blob (regular or executable), as
// opposed to a tree, a gitlink or the missing sentinel.
func (m FileMode) IsFile() bool {
	return m == Regular || m == Executable
}

// IsDir reports whether m denotes a tree entry.
func (m FileMode) IsDir() bool {
	return m == Dir
}
