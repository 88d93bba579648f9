// Package merge implements the textual three-way merge used to combine
// two divergent edits of the same blob against their common ancestor. The
// line-level matching underneath is computed with sergi/go-diff's
// diffmatchpatch in line mode; on top of it, the two sides' edit scripts
// against the base are walked in parallel: hunks touching disjoint base
// ranges apply cleanly, hunks overlapping the same base range combine
// into a single conflict region wrapped in markers.
package merge

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Labels names the three sides in a conflict hunk's markers.
type Labels struct {
	Base   string
	Ours   string
	Theirs string
}

// DefaultLabels are the marker labels used when the caller does not
// configure its own.
var DefaultLabels = Labels{Base: "BASE", Ours: "OURS", Theirs: "THEIRS"}

// Result is the outcome of a textual three-way merge: the merged content,
// which contains conflict markers iff HasConflicts is set.
type Result struct {
	Content      []byte
	HasConflicts bool
}

// Blobs merges ours and theirs against their common ancestor base. The
// zero-length slice is a valid input on any side (an added or deleted
// file merges against empty content).
func Blobs(base, ours, theirs []byte, labels Labels) Result {
	if labels == (Labels{}) {
		labels = DefaultLabels
	}

	baseLines := splitLines(base)
	ourLines := splitLines(ours)
	theirLines := splitLines(theirs)

	ourHunks := sideHunks(string(base), string(ours))
	theirHunks := sideHunks(string(base), string(theirs))

	m := &merger{
		labels: labels,
		base:   baseLines,
		ours:   ourLines,
		theirs: theirLines,
		a:      ourHunks,
		b:      theirHunks,
	}
	m.run()
	return Result{Content: m.out.Bytes(), HasConflicts: m.conflict}
}

// hunk is one contiguous change against the base: base[baseStart:baseEnd)
// was replaced by side[sideStart:sideEnd). A pure insertion has an empty
// base range; a pure deletion an empty side range.
type hunk struct {
	baseStart, baseEnd int
	sideStart, sideEnd int
}

type merger struct {
	labels Labels
	base   []string
	ours   []string
	theirs []string
	a, b   []hunk

	out      bytes.Buffer
	basePos  int
	conflict bool
}

func (m *merger) run() {
	i, j := 0, 0
	for i < len(m.a) || j < len(m.b) {
		switch {
		case i < len(m.a) && j < len(m.b) && overlaps(m.a[i], m.b[j]):
			i, j = m.conflictRegion(i, j)
		case j >= len(m.b) || (i < len(m.a) && m.a[i].baseStart <= m.b[j].baseStart):
			m.apply(m.a[i], m.ours)
			i++
		default:
			m.apply(m.b[j], m.theirs)
			j++
		}
	}
	writeLines(&m.out, m.base[m.basePos:])
	m.basePos = len(m.base)
}

// overlaps reports whether two hunks contend for the same base lines.
// Hunks touching only at a boundary stay independent; a pure insertion
// contends with any hunk starting at the same point, since there is no
// base line to order the two by.
func overlaps(x, y hunk) bool {
	if x.baseStart < y.baseEnd && y.baseStart < x.baseEnd {
		return true
	}
	return x.baseStart == y.baseStart &&
		(x.baseEnd == x.baseStart || y.baseEnd == y.baseStart)
}

// apply writes one clean, uncontended hunk: the untouched base lines
// before it, then the side's replacement lines.
func (m *merger) apply(h hunk, side []string) {
	writeLines(&m.out, m.base[m.basePos:h.baseStart])
	writeLines(&m.out, side[h.sideStart:h.sideEnd])
	m.basePos = h.baseEnd
}

// conflictRegion absorbs every hunk from either side overlapping the
// combined base range starting at a[i]/b[j], then emits the region: once
// if both sides made the identical change, as a marker-wrapped conflict
// otherwise. Returns the advanced hunk indices.
func (m *merger) conflictRegion(i, j int) (int, int) {
	firstA, firstB := m.a[i], m.b[j]
	lastA, lastB := firstA, firstB

	s := minInt(firstA.baseStart, firstB.baseStart)
	e := maxInt(firstA.baseEnd, firstB.baseEnd)
	i, j = i+1, j+1

	for {
		extended := false
		if i < len(m.a) && m.a[i].baseStart < e {
			lastA = m.a[i]
			e = maxInt(e, lastA.baseEnd)
			i++
			extended = true
		}
		if j < len(m.b) && m.b[j].baseStart < e {
			lastB = m.b[j]
			e = maxInt(e, lastB.baseEnd)
			j++
			extended = true
		}
		if !extended {
			break
		}
	}

	// Outside its own hunks a side tracks the base line for line, so the
	// region's borders map through the nearest hunk on each side.
	ourStart := firstA.sideStart - (firstA.baseStart - s)
	ourEnd := lastA.sideEnd + (e - lastA.baseEnd)
	theirStart := firstB.sideStart - (firstB.baseStart - s)
	theirEnd := lastB.sideEnd + (e - lastB.baseEnd)

	writeLines(&m.out, m.base[m.basePos:s])
	m.basePos = e

	ourChunk := m.ours[ourStart:ourEnd]
	theirChunk := m.theirs[theirStart:theirEnd]
	if linesEqual(ourChunk, theirChunk) {
		writeLines(&m.out, ourChunk)
		return i, j
	}

	m.conflict = true
	m.out.WriteString("<<<<<<< " + m.labels.Ours + "\n")
	writeChunk(&m.out, ourChunk)
	m.out.WriteString("||||||| " + m.labels.Base + "\n")
	writeChunk(&m.out, m.base[s:e])
	m.out.WriteString("=======\n")
	writeChunk(&m.out, theirChunk)
	m.out.WriteString(">>>>>>> " + m.labels.Theirs + "\n")
	return i, j
}

// sideHunks diffs base against one side and returns its edit script in
// base line coordinates. The texts are first re-encoded one-rune-per-line
// so diffmatchpatch's character diff becomes a line diff, its documented
// line-mode recipe.
func sideHunks(base, side string) []hunk {
	dmp := diffmatchpatch.New()
	c1, c2, _ := dmp.DiffLinesToChars(base, side)
	diffs := dmp.DiffMain(c1, c2, false)

	var out []hunk
	a, b := 0, 0
	ha, hb := 0, 0 // start of the in-progress hunk
	inHunk := false
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		if d.Type == diffmatchpatch.DiffEqual {
			if inHunk {
				out = append(out, hunk{ha, a, hb, b})
				inHunk = false
			}
			a, b = a+n, b+n
			continue
		}
		if !inHunk {
			ha, hb = a, b
			inHunk = true
		}
		if d.Type == diffmatchpatch.DiffDelete {
			a += n
		} else {
			b += n
		}
	}
	if inHunk {
		out = append(out, hunk{ha, a, hb, b})
	}
	return out
}

// splitLines splits content into lines, each retaining its trailing
// newline; a final unterminated line is kept as-is.
func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	var lines []string
	s := string(content)
	for len(s) > 0 {
		idx := strings.IndexByte(s, '\n')
		if idx < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:idx+1])
		s = s[idx+1:]
	}
	return lines
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeLines(out *bytes.Buffer, lines []string) {
	for _, l := range lines {
		out.WriteString(l)
	}
}

// writeChunk writes one side of a conflict hunk; a final line with no
// trailing newline gets one so the next marker starts on its own line.
func writeChunk(out *bytes.Buffer, lines []string) {
	writeLines(out, lines)
	if n := len(lines); n > 0 && !strings.HasSuffix(lines[n-1], "\n") {
		out.WriteByte('\n')
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
