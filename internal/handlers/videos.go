package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"videohub/internal/metrics"
	"videohub/internal/models"
	"videohub/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// --- Structs for Request Binding ---

// UpdateVideoRequest is the body of PUT /videos/:id. A missing description or
// commitUrl clears the stored value, the same as an explicit null.
type UpdateVideoRequest struct {
	Title       string   `json:"title" binding:"required,min=1"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags" binding:"required,min=1,dive,required"`
	CommitURL   *string  `json:"commitUrl" binding:"omitempty,url"`
}

type unknownTagsError struct {
	slugs []string
}

func (e *unknownTagsError) Error() string {
	return "unknown tags"
}

// --- Handler Functions ---

// GetVideo handles GET /videos/:id and returns the video with its tags.
func (h *Handler) GetVideo(c *gin.Context) {
	var video models.Video
	if err := h.db.WithContext(c.Request.Context()).Preload("Tags").First(&video, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Video not found")
			return
		}
		utils.RespondWithServerError(c, h.log, http.StatusInternalServerError, "Failed to load video", err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// UpdateVideo sets title, description and commit URL and replaces the tag set of
// a video in one transaction. Every tag slug must already exist.
func (h *Handler) UpdateVideo(c *gin.Context) {
	defer func() {
		metrics.VideoUpdates.WithLabelValues(strconv.Itoa(c.Writer.Status())).Inc()
	}()

	var req UpdateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
			"errors":  utils.FormatValidationErrors(err),
		})
		return
	}

	videoID := c.Param("id")
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var video models.Video
		if err := tx.First(&video, "id = ?", videoID).Error; err != nil {
			return err
		}

		tags, err := resolveTags(tx, req.Tags)
		if err != nil {
			return err
		}

		if err := tx.Model(&video).Updates(map[string]interface{}{
			"title":       req.Title,
			"description": req.Description,
			"commit_url":  req.CommitURL,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&video).Association("Tags").Replace(tags)
	})

	var unknown *unknownTagsError
	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondWithError(c, http.StatusNotFound, "Video not found")
	case errors.As(err, &unknown):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status":      "error",
			"message":     "Unknown tags",
			"unknownTags": unknown.slugs,
		})
	default:
		utils.RespondWithServerError(c, h.log.WithField("video_id", videoID), http.StatusInternalServerError, "Failed to update video", err)
	}
}

// resolveTags loads the tags for slugs, ignoring duplicates. Unknown slugs are
// reported in request order.
func resolveTags(tx *gorm.DB, slugs []string) ([]models.Tag, error) {
	unique := make([]string, 0, len(slugs))
	seen := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		unique = append(unique, s)
	}

	var tags []models.Tag
	if err := tx.Where("slug IN ?", unique).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) == len(unique) {
		return tags, nil
	}

	found := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		found[t.Slug] = struct{}{}
	}
	var missing []string
	for _, s := range unique {
		if _, ok := found[s]; !ok {
			missing = append(missing, s)
		}
	}
	return nil, &unknownTagsError{slugs: missing}
}
