package editor

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
)

// Completions streams a generated description for a video.
type Completions interface {
	StreamDescription(ctx context.Context, videoID string, onChunk func(chunk string) error) error
}

var (
	generateKey = key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "generate with AI"))
	cancelKey   = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop generating"))
)

// DescriptionInput is a multi-line description field with a "Generate with AI"
// action. While a generation runs the field is read-only and every streamed
// chunk replaces its content with the text accumulated so far, overwriting
// anything typed before. A failed generation puts back the value the field had
// when it started. Only the latest generation may write to the field.
type DescriptionInput struct {
	client  Completions
	videoID string

	textarea textarea.Model
	spinner  spinner.Model

	gen         int
	cancel      context.CancelFunc
	busy        bool
	accumulated strings.Builder
	previous    string
	err         error
}

func NewDescriptionInput(client Completions, videoID, value string) *DescriptionInput {
	ta := textarea.New()
	ta.Placeholder = "Describe the video..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(72)
	ta.SetHeight(6)
	ta.SetValue(value)

	return &DescriptionInput{
		client:   client,
		videoID:  videoID,
		textarea: ta,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(statusStyle)),
	}
}

func (d *DescriptionInput) Value() string { return d.textarea.Value() }

// Busy reports whether a generation is in flight.
func (d *DescriptionInput) Busy() bool { return d.busy }

// Err returns the error of the last failed generation.
func (d *DescriptionInput) Err() error { return d.err }

func (d *DescriptionInput) Focus() tea.Cmd { return d.textarea.Focus() }

func (d *DescriptionInput) Blur() { d.textarea.Blur() }

// Generate starts a new generation, superseding any running one.
func (d *DescriptionInput) Generate() tea.Cmd {
	if d.client == nil || d.videoID == "" {
		return nil
	}
	return tea.Batch(d.start(), d.spinner.Tick)
}

// Cancel stops the running generation. Text already written stays in the field.
func (d *DescriptionInput) Cancel() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	// later messages from the stopped stream no longer match
	d.gen++
	d.busy = false
}

func (d *DescriptionInput) start() tea.Cmd {
	d.Cancel()

	gen := d.gen
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.busy = true
	d.err = nil
	d.previous = d.textarea.Value()
	d.accumulated.Reset()

	client, videoID := d.client, d.videoID
	events := make(chan any, 16)
	go func() {
		defer close(events)
		err := client.StreamDescription(ctx, videoID, func(chunk string) error {
			select {
			case events <- completionChunkMsg{gen: gen, chunk: chunk, next: events}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		select {
		case events <- completionDoneMsg{gen: gen, err: err}:
		case <-ctx.Done():
		}
	}()
	return waitForCompletion(events)
}

func waitForCompletion(events <-chan any) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (d *DescriptionInput) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case completionChunkMsg:
		if msg.gen != d.gen || !d.busy {
			return nil
		}
		d.accumulated.WriteString(msg.chunk)
		d.textarea.SetValue(d.accumulated.String())
		return waitForCompletion(msg.next)

	case completionDoneMsg:
		if msg.gen != d.gen || !d.busy {
			return nil
		}
		d.busy = false
		d.cancel()
		d.cancel = nil
		if msg.err != nil {
			d.err = msg.err
			d.textarea.SetValue(d.previous)
		}
		return nil

	case spinner.TickMsg:
		if !d.busy {
			return nil
		}
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, generateKey):
			if d.busy {
				return nil
			}
			return d.Generate()
		case key.Matches(msg, cancelKey) && d.busy:
			d.Cancel()
			return nil
		}
		if d.busy {
			return nil
		}
	}

	var cmd tea.Cmd
	d.textarea, cmd = d.textarea.Update(msg)
	return cmd
}

func (d *DescriptionInput) View() string {
	var b strings.Builder
	b.WriteString(d.textarea.View())
	b.WriteString("\n")

	if d.busy {
		b.WriteString(disabledButtonStyle.Render(d.spinner.View() + " Generate with AI"))
		b.WriteString(" " + infoStyle.Render(cancelKey.Help().Key+" to stop"))
	} else {
		b.WriteString(buttonStyle.Render("✨ Generate with AI"))
		b.WriteString(" " + infoStyle.Render(generateKey.Help().Key))
	}
	if d.err != nil {
		b.WriteString("\n" + errorStyle.Render("Generation failed: "+d.err.Error()))
	}
	return b.String()
}
