// Package app assembles the processing pipeline shared by the server and the
// worker.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"videohub/internal/config"
	"videohub/internal/events"
	"videohub/internal/processing"
	"videohub/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Processing is a ready processing service plus the resources it owns.
type Processing struct {
	Service *processing.Service
	closers []io.Closer
}

// Close releases the Redis client and the Kafka producer, if any.
func (p *Processing) Close() error {
	var first error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewProcessing picks concrete backends from cfg. Without a bucket objects are
// copied in memory, without REDIS_ADDR claims are process-local and without
// KAFKA_BROKERS events are dropped.
func NewProcessing(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logrus.Logger) (*Processing, error) {
	p := &Processing{}

	var copier storage.Copier
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		copier = s3Store
		log.WithField("bucket", s3Store.Bucket()).Info("Using S3 object storage")
	} else {
		copier = storage.NewMemory()
		log.Warn("STORAGE_BUCKET not set, copying objects in memory")
	}

	var claims processing.Claimer
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		p.closers = append(p.closers, rdb)
		claims = processing.NewRedisClaimer(rdb, cfg.ProcessingClaimTTL)
	} else {
		claims = processing.NewMemoryClaimer()
		log.Warn("REDIS_ADDR not set, processing claims are local to this instance")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.ProcessedTopic)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, kp)
		publisher = kp
	}

	p.Service = processing.NewService(processing.Deps{
		DB:          db,
		Storage:     copier,
		Claims:      claims,
		Events:      publisher,
		Logger:      log,
		CopyTimeout: cfg.Storage.CopyTimeout,
	})
	return p, nil
}
