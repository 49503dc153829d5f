// Package processing moves an uploaded video and its audio track to their batch
// keys and marks the video processed, at most once per video.
package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"videohub/internal/events"
	"videohub/internal/metrics"
	"videohub/internal/models"
	"videohub/internal/storage"
	"videohub/internal/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrVideoNotFound        = errors.New("video not found")
	ErrAlreadyProcessed     = errors.New("video has already been processed")
	ErrProcessingInProgress = errors.New("video is being processed")
	ErrCopyFailed           = errors.New("copying video objects failed")
)

const defaultCopyTimeout = 60 * time.Second

// Result describes a completed processing run.
type Result struct {
	VideoID         string
	StorageKey      string
	AudioStorageKey string
	ProcessedAt     time.Time
}

type Deps struct {
	DB          *gorm.DB
	Storage     storage.Copier
	Claims      Claimer
	Events      events.Publisher
	Logger      logrus.FieldLogger
	CopyTimeout time.Duration
	Now         func() time.Time
}

type Service struct {
	db          *gorm.DB
	storage     storage.Copier
	claims      Claimer
	events      events.Publisher
	log         logrus.FieldLogger
	copyTimeout time.Duration
	now         func() time.Time
}

func NewService(deps Deps) *Service {
	s := &Service{
		db:          deps.DB,
		storage:     deps.Storage,
		claims:      deps.Claims,
		events:      deps.Events,
		log:         deps.Logger,
		copyTimeout: deps.CopyTimeout,
		now:         deps.Now,
	}
	if s.claims == nil {
		s.claims = NewMemoryClaimer()
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.copyTimeout <= 0 {
		s.copyTimeout = defaultCopyTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Process copies the recorded objects of videoID to
// uploads/batch-{batch}/{id}.mp4 and .mp3, then stores the new keys together
// with processed_at. A failed copy leaves the record untouched so the
// notification can be redelivered.
func (s *Service) Process(ctx context.Context, videoID string) (*Result, error) {
	log := s.log.WithField("video_id", videoID)

	if _, err := s.loadUnprocessed(ctx, videoID); err != nil {
		return nil, err
	}

	token, ok, err := s.claims.Claim(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProcessingInProgress
	}
	defer func() {
		// the request context may already be gone
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.claims.Release(releaseCtx, videoID, token); err != nil {
			log.WithError(err).Warn("Failed to release processing claim")
		}
	}()

	// a run that finished between the load and the claim has already released it
	video, err := s.loadUnprocessed(ctx, videoID)
	if err != nil {
		return nil, err
	}

	videoKey, audioKey := utils.BatchStorageKeys(video.UploadBatchID, video.ID)
	if err := s.copyObjects(ctx, video, videoKey, audioKey); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCopyFailed, err)
	}

	processedAt := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ? AND processed_at IS NULL", videoID).
		Updates(map[string]interface{}{
			"storage_key":       videoKey,
			"audio_storage_key": audioKey,
			"processed_at":      processedAt,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("mark video %s processed: %w", videoID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyProcessed
	}

	result := &Result{
		VideoID:         videoID,
		StorageKey:      videoKey,
		AudioStorageKey: audioKey,
		ProcessedAt:     processedAt,
	}
	log.WithFields(logrus.Fields{
		"storage_key":       videoKey,
		"audio_storage_key": audioKey,
	}).Info("Video processed")

	if err := s.events.PublishVideoProcessed(ctx, events.VideoProcessed{
		VideoID:         result.VideoID,
		StorageKey:      result.StorageKey,
		AudioStorageKey: result.AudioStorageKey,
		ProcessedAt:     result.ProcessedAt,
	}); err != nil {
		log.WithError(err).Error("Failed to publish video processed event")
	}

	return result, nil
}

func (s *Service) loadUnprocessed(ctx context.Context, videoID string) (*models.Video, error) {
	var video models.Video
	if err := s.db.WithContext(ctx).First(&video, "id = ?", videoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("load video %s: %w", videoID, err)
	}
	if video.IsProcessed() {
		return nil, ErrAlreadyProcessed
	}
	return &video, nil
}

func (s *Service) copyObjects(ctx context.Context, video *models.Video, videoKey, audioKey string) error {
	ctx, cancel := context.WithTimeout(ctx, s.copyTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CopyDuration.Observe(time.Since(start).Seconds()) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.storage.Copy(gctx, video.StorageKey, videoKey); err != nil {
			return fmt.Errorf("copy video object %s: %w", video.StorageKey, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.storage.Copy(gctx, video.AudioStorageKey, audioKey); err != nil {
			return fmt.Errorf("copy audio object %s: %w", video.AudioStorageKey, err)
		}
		return nil
	})
	return g.Wait()
}

// Outcome maps a Process error to the label recorded in
// metrics.ProcessingOutcomes.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeProcessed
	case errors.Is(err, ErrVideoNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrAlreadyProcessed):
		return metrics.OutcomeAlreadyProcessed
	case errors.Is(err, ErrProcessingInProgress):
		return metrics.OutcomeInProgress
	case errors.Is(err, ErrCopyFailed):
		return metrics.OutcomeCopyFailed
	default:
		return metrics.OutcomeError
	}
}
