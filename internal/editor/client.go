package editor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"videohub/internal/models"
)

// VideoUpdate is the body sent to PUT /videos/:id.
type VideoUpdate struct {
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
	CommitURL   *string  `json:"commitUrl"`
}

// Client talks to the videohub API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// no Timeout: completion streams are bounded by ctx
		client: &http.Client{},
	}
}

// GetVideo loads a video with its tags.
func (c *Client) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to load video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var video models.Video
	if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
		return nil, fmt.Errorf("failed to decode video: %w", err)
	}
	return &video, nil
}

// UpdateVideo saves the form fields of video id.
func (c *Client) UpdateVideo(ctx context.Context, id string, update VideoUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/videos/"+url.PathEscape(id), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to save video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	return nil
}

// StreamDescription requests a generated description for videoID and calls
// onChunk with text as it arrives. Chunks never split a UTF-8 sequence; bytes
// that are not valid UTF-8 arrive as U+FFFD.
func (c *Client) StreamDescription(ctx context.Context, videoID string, onChunk func(chunk string) error) error {
	endpoint := c.baseURL + "/ai/generate/description?videoId=" + url.QueryEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to request description: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	r := bufio.NewReader(resp.Body)
	var pending strings.Builder
	for {
		ch, _, err := r.ReadRune()
		if errors.Is(err, io.EOF) {
			if pending.Len() > 0 {
				return onChunk(pending.String())
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("description stream: %w", err)
		}
		pending.WriteRune(ch)
		// emit whatever has arrived so far
		if r.Buffered() == 0 {
			if err := onChunk(pending.String()); err != nil {
				return err
			}
			pending.Reset()
		}
	}
}

// responseError turns a non-200 API response into an error carrying the
// server's message.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
