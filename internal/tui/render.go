package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/thinkaloud/thinkaloud/internal/correction"
	"github.com/thinkaloud/thinkaloud/internal/diff"
	"github.com/thinkaloud/thinkaloud/internal/pipeline"
)

// RenderDiff draws segments inline. Without color, insertions are wrapped
// in {+ +} and deletions in [- -].
func RenderDiff(segments []diff.Segment, color bool) string {
	var b strings.Builder
	for _, s := range segments {
		switch s.Op {
		case diff.Insert:
			if color {
				b.WriteString(StyleInsert.Render(s.Text))
			} else {
				b.WriteString("{+" + s.Text + "+}")
			}
		case diff.Delete:
			if color {
				b.WriteString(StyleDelete.Render(s.Text))
			} else {
				b.WriteString("[-" + s.Text + "-]")
			}
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// RenderDiffSummary is the one-line "+N -M" counter shown under a diff.
func RenderDiffSummary(segments []diff.Segment) string {
	if !diff.Changed(segments) {
		return StyleMuted.Render("no changes")
	}
	ins, del := diff.Stats(segments)
	return StyleSuccess.Render(fmt.Sprintf("+%d", ins)) + " " + StyleError.Render(fmt.Sprintf("-%d", del))
}

// RenderHistory lists each correction with the change it made relative to
// the text before it.
func RenderHistory(original string, entries []correction.HistoryEntry, color bool) string {
	if len(entries) == 0 {
		return StyleMuted.Render("No corrections yet.")
	}

	var b strings.Builder
	prev := original
	for i, e := range entries {
		fmt.Fprintf(&b, "%s %s\n", StyleHighlight.Render(fmt.Sprintf("#%d", i+1)), StyleLabel.Render(e.Utterance))
		if e.EditPlan != "" {
			fmt.Fprintf(&b, "   %s\n", StyleSubtle.Render(e.EditPlan))
		}
		segs := diff.Compute(prev, e.ModifiedText)
		fmt.Fprintf(&b, "   %s\n", RenderDiff(segs, color))
		prev = e.ModifiedText
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderStatus(s pipeline.Session) string {
	var b strings.Builder

	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", StyleLabel.Render(fmt.Sprintf("%-10s", label)), value)
	}

	row("Session", orDash(s.SessionID))
	row("Mode", renderMode(s))
	row("Edits", fmt.Sprintf("%d", s.HistoryLen))
	if !s.StartedAt.IsZero() {
		row("Elapsed", s.Duration.Round(time.Second).String())
	}
	if s.Transcript != "" {
		row("Heard", s.Transcript)
	}
	if s.Buffer != "" {
		row("Buffered", StyleMuted.Render(s.Buffer))
	}
	if s.PendingPlan != "" {
		row("Plan", StyleSubtle.Render(s.PendingPlan))
	}

	b.WriteString("\n")
	if s.CurrentText == "" {
		b.WriteString(StyleMuted.Render("No text loaded. Use `thinkaloud load <file>`."))
	} else {
		b.WriteString(StyleBox.Render(s.CurrentText))
	}
	return b.String()
}

func renderMode(s pipeline.Session) string {
	switch {
	case !s.CompletedAt.IsZero():
		return StyleSuccess.Render("completed")
	case s.Mode == pipeline.Correction && s.IsStreaming:
		return StyleWarning.Render("correction (listening)")
	case s.Mode == pipeline.Correction:
		return StyleWarning.Render("correction")
	default:
		return string(s.Mode)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
