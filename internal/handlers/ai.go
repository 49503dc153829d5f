package handlers

import (
	"context"
	"errors"
	"net/http"

	"videohub/internal/ai"
	"videohub/internal/metrics"
	"videohub/internal/models"
	"videohub/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GenerateDescription streams an AI-written description for the video named by
// the videoId query parameter as plain text. Once the first chunk is written the
// status is committed, so later failures only end the stream.
func (h *Handler) GenerateDescription(c *gin.Context) {
	videoID := c.Query("videoId")
	if videoID == "" {
		utils.RespondWithError(c, http.StatusBadRequest, "videoId is required")
		return
	}
	if h.completer == nil {
		metrics.CompletionStreams.WithLabelValues("unavailable").Inc()
		utils.RespondWithError(c, http.StatusServiceUnavailable, "Description generation is not configured")
		return
	}

	ctx := c.Request.Context()
	var video models.Video
	if err := h.db.WithContext(ctx).Preload("Tags").First(&video, "id = ?", videoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Video not found")
			return
		}
		utils.RespondWithServerError(c, h.log, http.StatusInternalServerError, "Failed to load video", err)
		return
	}

	log := h.log.WithField("video_id", videoID)
	started := false
	err := h.completer.Stream(ctx, ai.DescriptionPrompt(&video), func(chunk string) error {
		if !started {
			c.Header("Content-Type", "text/plain; charset=utf-8")
			c.Header("Cache-Control", "no-cache")
			c.Header("X-Content-Type-Options", "nosniff")
			c.Status(http.StatusOK)
			started = true
		}
		if _, err := c.Writer.WriteString(chunk); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})

	switch {
	case err == nil:
		if !started {
			c.Status(http.StatusOK)
		}
		metrics.CompletionStreams.WithLabelValues("ok").Inc()
	case errors.Is(err, context.Canceled):
		metrics.CompletionStreams.WithLabelValues("aborted").Inc()
		log.Debug("Client cancelled description generation")
	case started:
		metrics.CompletionStreams.WithLabelValues("failed").Inc()
		log.WithError(err).Error("Description stream interrupted")
	default:
		metrics.CompletionStreams.WithLabelValues("failed").Inc()
		utils.RespondWithServerError(c, log, http.StatusBadGateway, "Failed to generate description", err)
	}
}
