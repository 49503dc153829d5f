package editor

import (
	"context"
	"strings"

	"videohub/internal/models"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// VideoSaver persists the edited fields of a video.
type VideoSaver interface {
	UpdateVideo(ctx context.Context, id string, update VideoUpdate) error
}

const (
	fieldTitle = iota
	fieldDescription
	fieldTags
	fieldCommitURL
	fieldCount
)

var (
	saveKey     = key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save"))
	nextKey     = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field"))
	previousKey = key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field"))
	quitKey     = key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))
)

// EditForm edits title, description, tags and commit URL of one video.
type EditForm struct {
	videoID string
	saver   VideoSaver

	title       textinput.Model
	description *DescriptionInput
	tags        textinput.Model
	commitURL   textinput.Model

	focus  int
	saving bool
	status string
	err    error
}

func NewEditForm(video *models.Video, saver VideoSaver, completions Completions) *EditForm {
	title := textinput.New()
	title.Placeholder = "Title"
	title.SetValue(video.Title)

	tags := textinput.New()
	tags.Placeholder = "go, postgres, webhooks"
	tags.SetValue(strings.Join(video.TagSlugs(), ", "))

	commitURL := textinput.New()
	commitURL.Placeholder = "https://github.com/org/repo/commit/..."
	if video.CommitURL != nil {
		commitURL.SetValue(*video.CommitURL)
	}

	description := ""
	if video.Description != nil {
		description = *video.Description
	}

	return &EditForm{
		videoID:     video.ID,
		saver:       saver,
		title:       title,
		description: NewDescriptionInput(completions, video.ID, description),
		tags:        tags,
		commitURL:   commitURL,
	}
}

func (f *EditForm) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, f.setFocus(fieldTitle))
}

func (f *EditForm) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKey):
			f.description.Cancel()
			return f, tea.Quit
		case key.Matches(msg, nextKey):
			return f, f.setFocus((f.focus + 1) % fieldCount)
		case key.Matches(msg, previousKey):
			return f, f.setFocus((f.focus + fieldCount - 1) % fieldCount)
		case key.Matches(msg, saveKey):
			return f, f.save()
		case key.Matches(msg, generateKey), key.Matches(msg, cancelKey) && f.description.Busy():
			return f, f.description.Update(msg)
		}

	case videoSavedMsg:
		f.saving = false
		f.err = msg.err
		if msg.err == nil {
			f.status = "Saved"
		}
		return f, nil

	case completionChunkMsg, completionDoneMsg, spinner.TickMsg:
		return f, f.description.Update(msg)
	}

	return f, f.updateFocused(msg)
}

func (f *EditForm) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focus {
	case fieldTitle:
		f.title, cmd = f.title.Update(msg)
	case fieldDescription:
		cmd = f.description.Update(msg)
	case fieldTags:
		f.tags, cmd = f.tags.Update(msg)
	case fieldCommitURL:
		f.commitURL, cmd = f.commitURL.Update(msg)
	}
	return cmd
}

func (f *EditForm) setFocus(field int) tea.Cmd {
	f.focus = field
	f.title.Blur()
	f.description.Blur()
	f.tags.Blur()
	f.commitURL.Blur()

	switch field {
	case fieldTitle:
		return f.title.Focus()
	case fieldDescription:
		return f.description.Focus()
	case fieldTags:
		return f.tags.Focus()
	default:
		return f.commitURL.Focus()
	}
}

func (f *EditForm) save() tea.Cmd {
	if f.saving {
		return nil
	}
	if f.description.Busy() {
		f.status = "Wait for the description to finish generating"
		return nil
	}
	f.saving = true
	f.status = ""
	f.err = nil

	saver, id, update := f.saver, f.videoID, f.payload()
	return func() tea.Msg {
		return videoSavedMsg{err: saver.UpdateVideo(context.Background(), id, update)}
	}
}

// payload converts the fields into an update body. Empty optional fields are
// sent as null.
func (f *EditForm) payload() VideoUpdate {
	update := VideoUpdate{
		Title: strings.TrimSpace(f.title.Value()),
		Tags:  splitTags(f.tags.Value()),
	}
	if d := f.description.Value(); strings.TrimSpace(d) != "" {
		update.Description = &d
	}
	if u := strings.TrimSpace(f.commitURL.Value()); u != "" {
		update.CommitURL = &u
	}
	return update
}

func splitTags(raw string) []string {
	tags := []string{}
	for _, part := range strings.Split(raw, ",") {
		if slug := strings.TrimSpace(part); slug != "" {
			tags = append(tags, slug)
		}
	}
	return tags
}

func (f *EditForm) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Edit video"))
	b.WriteString("\n")

	f.field(&b, fieldTitle, "Title", f.title.View())
	f.field(&b, fieldDescription, "Description", f.description.View())
	f.field(&b, fieldTags, "Tags", f.tags.View())
	f.field(&b, fieldCommitURL, "Commit URL", f.commitURL.View())

	switch {
	case f.saving:
		b.WriteString(infoStyle.Render("Saving..."))
	case f.err != nil:
		b.WriteString(errorStyle.Render("Save failed: " + f.err.Error()))
	case f.status != "":
		b.WriteString(statusStyle.Render(f.status))
	}
	b.WriteString("\n\n")
	b.WriteString(infoStyle.Render("tab/shift+tab move | ctrl+g generate description | ctrl+s save | ctrl+c quit"))
	return b.String()
}

func (f *EditForm) field(b *strings.Builder, field int, label, view string) {
	style := labelStyle
	if f.focus == field {
		style = focusedLabelStyle
	}
	b.WriteString(style.Render(label))
	b.WriteString("\n")
	b.WriteString(view)
	b.WriteString("\n\n")
}
