// Package events publishes and consumes the Kafka messages exchanged around video
// processing.
package events

import (
	"context"
	"time"
)

// VideoProcessed is published once a video's objects have been copied to their
// batch keys and the record marked processed.
type VideoProcessed struct {
	VideoID         string    `json:"videoId"`
	StorageKey      string    `json:"storageKey"`
	AudioStorageKey string    `json:"audioStorageKey"`
	ProcessedAt     time.Time `json:"processedAt"`
}

// ProcessingNotification asks the worker to process a video. It carries the same
// payload as the webhook body.
type ProcessingNotification struct {
	VideoID string `json:"videoId"`
}

// Publisher emits processing events.
type Publisher interface {
	PublishVideoProcessed(ctx context.Context, evt VideoProcessed) error
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishVideoProcessed(context.Context, VideoProcessed) error { return nil }
