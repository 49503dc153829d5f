package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"videohub/internal/metrics"
	"videohub/internal/processing"
	"videohub/internal/signature"
	"videohub/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"
)

const (
	maxWebhookBody = 64 << 10
	webhookSource  = "webhook"
)

// ProcessVideoRequest is the notification body delivered by QStash.
type ProcessVideoRequest struct {
	VideoID string `json:"videoId" binding:"required,uuid"`
}

// ProcessVideo handles POST /webhooks/process-video. In production the raw body
// must carry a valid Upstash-Signature before it is even decoded.
func (h *Handler) ProcessVideo(c *gin.Context) {
	log := h.log.WithField("request_id", c.GetString(utils.RequestIDKey))

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		metrics.ProcessingOutcomes.WithLabelValues(webhookSource, metrics.OutcomeInvalidPayload).Inc()
		utils.RespondWithError(c, http.StatusBadRequest, "Failed to read request body.")
		return
	}

	if h.verifySignatures {
		if !h.verifyDelivery(c, log, body) {
			metrics.ProcessingOutcomes.WithLabelValues(webhookSource, metrics.OutcomeUnauthenticated).Inc()
			return
		}
	}

	var req ProcessVideoRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		metrics.ProcessingOutcomes.WithLabelValues(webhookSource, metrics.OutcomeInvalidPayload).Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
			"errors":  utils.FormatValidationErrors(err),
		})
		return
	}

	log = log.WithField("video_id", req.VideoID)
	_, err = h.processor.Process(c.Request.Context(), req.VideoID)
	metrics.ProcessingOutcomes.WithLabelValues(webhookSource, processing.Outcome(err)).Inc()

	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case errors.Is(err, processing.ErrVideoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Video not found."})
	case errors.Is(err, processing.ErrAlreadyProcessed):
		c.JSON(http.StatusConflict, gin.H{"message": "Video has already been processed."})
	case errors.Is(err, processing.ErrProcessingInProgress):
		c.JSON(http.StatusConflict, gin.H{"message": "Video is already being processed."})
	case errors.Is(err, processing.ErrCopyFailed):
		utils.RespondWithServerError(c, log, http.StatusBadGateway, "Failed to copy video objects.", err)
	default:
		utils.RespondWithServerError(c, log, http.StatusInternalServerError, "Failed to process video.", err)
	}
}

// verifyDelivery writes the 401 response itself and reports whether the request
// may continue.
func (h *Handler) verifyDelivery(c *gin.Context, log logrus.FieldLogger, body []byte) bool {
	sig := strings.TrimSpace(c.GetHeader(signature.HeaderName))
	if sig == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "QStash signature not found."})
		return false
	}

	err := h.verifier.Verify(signature.VerifyRequest{
		Signature: sig,
		Body:      body,
		URL:       h.webhookURL,
	})
	if err != nil {
		log.WithError(err).Warn("Rejected webhook delivery")
		c.JSON(http.StatusUnauthorized, gin.H{"message": "QStash signature is invalid."})
		return false
	}
	return true
}
