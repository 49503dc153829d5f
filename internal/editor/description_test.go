package editor

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeCompletions struct {
	chunks []string
	err    error
}

func (f *fakeCompletions) StreamDescription(ctx context.Context, _ string, onChunk func(string) error) error {
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return f.err
}

// step runs cmd and feeds the resulting message back into d.
func step(t *testing.T, d *DescriptionInput, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a pending command")
	}
	return d.Update(cmd())
}

func TestDescriptionInputWritesAccumulatedText(t *testing.T) {
	d := NewDescriptionInput(&fakeCompletions{chunks: []string{"Hello", " world", "."}}, "v1", "draft")

	cmd := d.start()
	if !d.Busy() {
		t.Fatal("input must be busy while generating")
	}

	cmd = step(t, d, cmd)
	if d.Value() != "Hello" {
		t.Fatalf("value = %q", d.Value())
	}

	// edits made mid-generation are overwritten by the next chunk
	d.textarea.SetValue("typed by hand")
	cmd = step(t, d, cmd)
	if d.Value() != "Hello world" {
		t.Fatalf("value = %q", d.Value())
	}

	cmd = step(t, d, cmd)
	if next := step(t, d, cmd); next != nil {
		t.Fatal("done message must end the stream")
	}
	if d.Busy() || d.Err() != nil {
		t.Fatalf("busy=%v err=%v after success", d.Busy(), d.Err())
	}
	if d.Value() != "Hello world." {
		t.Fatalf("value = %q", d.Value())
	}
}

func TestDescriptionInputRestoresValueOnFailure(t *testing.T) {
	failure := errors.New("server returned 502: Failed to generate description")
	d := NewDescriptionInput(&fakeCompletions{chunks: []string{"partial"}, err: failure}, "v1", "draft")

	cmd := d.start()
	cmd = step(t, d, cmd)
	if d.Value() != "partial" {
		t.Fatalf("value = %q", d.Value())
	}
	step(t, d, cmd)

	if d.Value() != "draft" {
		t.Fatalf("value = %q; want the value from before generation", d.Value())
	}
	if !errors.Is(d.Err(), failure) {
		t.Fatalf("err = %v", d.Err())
	}
	if !strings.Contains(d.View(), "Generation failed") {
		t.Fatal("error must be shown under the field")
	}
}

func TestDescriptionInputCancelStopsWrites(t *testing.T) {
	d := NewDescriptionInput(&fakeCompletions{chunks: []string{"one", "two"}}, "v1", "draft")

	cmd := d.start()
	msg := cmd()

	d.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if d.Busy() {
		t.Fatal("esc must stop the generation")
	}
	if next := d.Update(msg); next != nil {
		t.Fatal("a cancelled stream must not be read further")
	}
	if d.Value() != "draft" {
		t.Fatalf("value = %q; cancelled chunks must be discarded", d.Value())
	}
}

func TestDescriptionInputNewGenerationSupersedesOld(t *testing.T) {
	completions := &fakeCompletions{chunks: []string{"first"}}
	d := NewDescriptionInput(completions, "v1", "")

	stale := d.start()()

	completions.chunks = []string{"second"}
	cmd := d.start()

	if next := d.Update(stale); next != nil {
		t.Fatal("messages from a superseded generation must be ignored")
	}
	if d.Value() != "" {
		t.Fatalf("value = %q", d.Value())
	}

	cmd = step(t, d, cmd)
	step(t, d, cmd)
	if d.Value() != "second" {
		t.Fatalf("value = %q", d.Value())
	}
}

func TestDescriptionInputDisabledWhileBusy(t *testing.T) {
	d := NewDescriptionInput(&fakeCompletions{chunks: []string{"text"}}, "v1", "draft")
	d.Focus()

	d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if !strings.Contains(d.Value(), "x") {
		t.Fatalf("idle input must accept typing, value %q", d.Value())
	}
	before := d.Value()

	d.start()
	d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	if d.Value() != before {
		t.Fatalf("busy input accepted typing: %q", d.Value())
	}
	gen := d.gen
	if cmd := d.Update(tea.KeyMsg{Type: tea.KeyCtrlG}); cmd != nil || d.gen != gen {
		t.Fatal("trigger must be disabled while a generation is in flight")
	}
	d.Cancel()
}
