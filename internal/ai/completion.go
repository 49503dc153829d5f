// Package ai produces streamed text completions for video metadata.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"videohub/internal/config"
	"videohub/internal/models"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// ErrNotConfigured is returned when no completion provider has been set up.
var ErrNotConfigured = errors.New("completion provider not configured")

// Completer streams a completion for prompt, calling emit with each text chunk
// in order. Streaming stops at the first emit error.
type Completer interface {
	Stream(ctx context.Context, prompt Prompt, emit func(chunk string) error) error
}

// Prompt is a system preamble plus the user message sent to the provider.
type Prompt struct {
	Preamble string
	Message  string
}

const descriptionPreamble = `You write descriptions for videos on a developer video platform.
Answer with the description only, in plain text, no more than three short paragraphs.
Do not invent features that are not suggested by the title, tags or commit.`

// DescriptionPrompt builds the prompt used to generate a description for v.
// Tags must be loaded on v.
func DescriptionPrompt(v *models.Video) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", v.Title)
	if slugs := v.TagSlugs(); len(slugs) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(slugs, ", "))
	}
	if v.CommitURL != nil && *v.CommitURL != "" {
		fmt.Fprintf(&b, "Commit: %s\n", *v.CommitURL)
	}
	if v.Description != nil && strings.TrimSpace(*v.Description) != "" {
		fmt.Fprintf(&b, "Current description (improve it):\n%s\n", *v.Description)
	}
	b.WriteString("\nWrite a description for this video.")

	return Prompt{Preamble: descriptionPreamble, Message: b.String()}
}

// CohereCompleter streams completions from the Cohere chat API.
type CohereCompleter struct {
	client *cohereclient.Client
	model  string
}

func NewCohereCompleter(cfg config.CohereConfig) (*CohereCompleter, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	httpClient := &http.Client{Timeout: 2 * time.Minute}
	client := cohereclient.NewClient(
		cohereclient.WithToken(cfg.APIKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereCompleter{client: client, model: cfg.Model}, nil
}

func (c *CohereCompleter) Stream(ctx context.Context, prompt Prompt, emit func(chunk string) error) error {
	req := &cohere.ChatStreamRequest{Message: prompt.Message}
	if prompt.Preamble != "" {
		req.Preamble = cohere.String(prompt.Preamble)
	}
	if c.model != "" {
		req.Model = cohere.String(c.model)
	}

	stream, err := c.client.ChatStream(ctx, req)
	if err != nil {
		return fmt.Errorf("cohere chat stream: %w", err)
	}
	defer stream.Close()

	for {
		message, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cohere stream receive: %w", err)
		}
		if message.TextGeneration == nil || message.TextGeneration.Text == "" {
			continue
		}
		if err := emit(message.TextGeneration.Text); err != nil {
			return err
		}
	}
}
