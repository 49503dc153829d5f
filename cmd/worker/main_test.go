package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"videohub/internal/database/databasetest"
	"videohub/internal/models"
	"videohub/internal/processing"
	"videohub/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func TestNotificationHandler(t *testing.T) {
	db := databasetest.Open(t)
	store := storage.NewMemory()
	log := logrus.New()
	log.SetOutput(io.Discard)

	ready := uuid.NewString()
	store.Put("incoming/a.mp4", []byte("video"))
	store.Put("incoming/a.mp3", []byte("audio"))
	databasetest.SeedVideo(t, db, models.Video{ID: ready, UploadBatchID: "b1", StorageKey: "incoming/a.mp4", AudioStorageKey: "incoming/a.mp3"})

	broken := uuid.NewString()
	databasetest.SeedVideo(t, db, models.Video{ID: broken, UploadBatchID: "b1", StorageKey: "incoming/gone.mp4", AudioStorageKey: "incoming/gone.mp3"})

	h := notificationHandler(processing.NewService(processing.Deps{DB: db, Storage: store, Logger: log}), log)

	cases := []struct {
		name     string
		message  string
		wantMark bool
		wantErr  bool
	}{
		{"processes", `{"videoId":"` + ready + `"}`, true, false},
		{"already processed", `{"videoId":"` + ready + `"}`, true, false},
		{"unknown video", `{"videoId":"` + uuid.NewString() + `"}`, true, false},
		{"invalid id", `{"videoId":"v1"}`, true, false},
		{"copy failure is retried", `{"videoId":"` + broken + `"}`, false, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mark, err := h.HandleMessage(context.Background(), []byte(c.message))
			if mark != c.wantMark {
				t.Fatalf("shouldMark = %v; want %v", mark, c.wantMark)
			}
			if (err != nil) != c.wantErr {
				t.Fatalf("err = %v", err)
			}
			if c.wantErr && !errors.Is(err, processing.ErrCopyFailed) {
				t.Fatalf("err = %v; want ErrCopyFailed", err)
			}
		})
	}
}
