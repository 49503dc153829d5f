package editor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStreamDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ai/generate/description" || r.URL.Query().Get("videoId") != "v1" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, part := range []string{"Déployer ", "en ", "production ✨"} {
			w.Write([]byte(part))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	var chunks []string
	err := NewClient(srv.URL).StreamDescription(context.Background(), "v1", func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamDescription() = %v", err)
	}
	if got := strings.Join(chunks, ""); got != "Déployer en production ✨" {
		t.Fatalf("text = %q", got)
	}
}

func TestStreamDescriptionReplacesInvalidUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok \xff done"))
	}))
	defer srv.Close()

	var text strings.Builder
	err := NewClient(srv.URL).StreamDescription(context.Background(), "v1", func(chunk string) error {
		text.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamDescription() = %v", err)
	}
	if got := text.String(); got != "ok \uFFFD done" {
		t.Fatalf("text = %q", got)
	}
}

func TestStreamDescriptionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"error","message":"Description generation is not configured"}`))
	}))
	defer srv.Close()

	called := false
	err := NewClient(srv.URL).StreamDescription(context.Background(), "v1", func(string) error {
		called = true
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("err = %v", err)
	}
	if called {
		t.Fatal("no chunk may be delivered for a failed request")
	}
}

func TestUpdateVideoSendsPayload(t *testing.T) {
	var got VideoUpdate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/videos/v1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	desc := "walkthrough"
	err := NewClient(srv.URL+"/").UpdateVideo(context.Background(), "v1", VideoUpdate{
		Title:       "Intro",
		Description: &desc,
		Tags:        []string{"go"},
	})
	if err != nil {
		t.Fatalf("UpdateVideo() = %v", err)
	}
	if got.Title != "Intro" || got.Description == nil || *got.Description != desc || got.CommitURL != nil {
		t.Fatalf("payload = %+v", got)
	}
}

func TestUpdateVideoReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"status":"error","message":"Unknown tags","unknownTags":["nope"]}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).UpdateVideo(context.Background(), "v1", VideoUpdate{Title: "t", Tags: []string{"nope"}})
	if err == nil || !strings.Contains(err.Error(), "422") || !strings.Contains(err.Error(), "Unknown tags") {
		t.Fatalf("err = %v", err)
	}
}

func TestGetVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"v1","title":"Intro","description":null,"commitUrl":null,"tags":[{"id":"t1","slug":"go","title":"Go"}]}`))
	}))
	defer srv.Close()

	video, err := NewClient(srv.URL).GetVideo(context.Background(), "v1")
	if err != nil {
		t.Fatalf("GetVideo() = %v", err)
	}
	if video.Title != "Intro" || len(video.Tags) != 1 || video.Tags[0].Slug != "go" {
		t.Fatalf("video = %+v", video)
	}
}
