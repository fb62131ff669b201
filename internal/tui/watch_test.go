package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thinkaloud/thinkaloud/internal/pipeline"
)

func TestWatchModelPolls(t *testing.T) {
	calls := 0
	fetch := func() (pipeline.Session, error) {
		calls++
		return pipeline.Session{
			Mode:         pipeline.Correction,
			CurrentText:  "サイズはLです。",
			PreviousText: "サイズはMです。",
		}, nil
	}
	model := newWatchModel(fetch, 0)

	if !strings.Contains(model.View(), "Connecting") {
		t.Errorf("initial view = %q", model.View())
	}

	msg := model.Init()()
	if calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls)
	}

	updated, cmd := model.Update(msg)
	model = updated.(watchModel)
	if cmd == nil {
		t.Error("a session update should schedule the next tick")
	}

	view := model.View()
	for _, want := range []string{"correction", "サイズは", "Last change"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q in:\n%s", want, view)
		}
	}
}

func TestWatchModelError(t *testing.T) {
	model := newWatchModel(func() (pipeline.Session, error) {
		return pipeline.Session{}, errors.New("connection refused")
	}, 0)

	updated, _ := model.Update(model.Init()())
	model = updated.(watchModel)
	if !strings.Contains(model.View(), "connection refused") {
		t.Errorf("View() = %q", model.View())
	}
}

func TestWatchModelQuit(t *testing.T) {
	model := newWatchModel(func() (pipeline.Session, error) { return pipeline.Session{}, nil }, 0)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce tea.QuitMsg")
	}
}
