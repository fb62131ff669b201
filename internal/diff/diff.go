// Package diff computes the character-level change between two versions of
// the description for display.
package diff

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

type Op int

const (
	Equal Op = iota
	Insert
	Delete
)

func (o Op) String() string {
	switch o {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return "equal"
	}
}

type Segment struct {
	Op   Op
	Text string
}

// Compute returns the segments turning before into after, cleaned up so
// that edits align with readable chunks rather than single characters.
func Compute(before, after string) []Segment {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	segments := make([]Segment, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		segments = append(segments, Segment{Op: toOp(d.Type), Text: d.Text})
	}
	return segments
}

func toOp(t diffmatchpatch.Operation) Op {
	switch t {
	case diffmatchpatch.DiffInsert:
		return Insert
	case diffmatchpatch.DiffDelete:
		return Delete
	default:
		return Equal
	}
}

// Stats counts inserted and deleted characters.
func Stats(segments []Segment) (inserted, deleted int) {
	for _, s := range segments {
		n := len([]rune(s.Text))
		switch s.Op {
		case Insert:
			inserted += n
		case Delete:
			deleted += n
		}
	}
	return inserted, deleted
}

// Changed reports whether any segment is an insertion or deletion.
func Changed(segments []Segment) bool {
	for _, s := range segments {
		if s.Op != Equal {
			return true
		}
	}
	return false
}

// Before and After rebuild the two inputs from the segments.
func Before(segments []Segment) string {
	return join(segments, Insert)
}

func After(segments []Segment) string {
	return join(segments, Delete)
}

func join(segments []Segment, skip Op) string {
	var out []byte
	for _, s := range segments {
		if s.Op != skip {
			out = append(out, s.Text...)
		}
	}
	return string(out)
}
