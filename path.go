package memfs

import "strings"

// splitParent returns the parent of path and true, or ("", false) if path
// is already the root. The parent of a top-level entry ("a.txt") is the
// root (""), not an error.
func splitParent(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[:idx], true
	}
	return "", true
}

// ancestorsOf returns every proper ancestor of path, nearest first, ending
// with the root (""). The root itself has no ancestors.
func ancestorsOf(path string) []string {
	var out []string
	cur := path
	for {
		parent, ok := splitParent(cur)
		if !ok {
			break
		}
		out = append(out, parent)
		if parent == "" {
			break
		}
		cur = parent
	}
	return out
}

// isDescendantOrSelf reports whether path is ancestor itself or nested
// under it. Every path is nested under the root ("").
func isDescendantOrSelf(path, ancestor string) bool {
	if path == ancestor {
		return true
	}
	if ancestor == "" {
		return true
	}
	return strings.HasPrefix(path, ancestor+"/")
}
