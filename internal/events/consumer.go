package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// MessageHandler processes one consumed message value.
// A message is committed only when shouldMark is true. A non-nil error makes
// the consumer retry the same message before moving on; (false, nil) skips it
// without committing.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// Consumer runs a sarama consumer group over a single topic.
type Consumer struct {
	group      sarama.ConsumerGroup
	handler    MessageHandler
	topic      string
	groupID    string
	minBackoff time.Duration
	maxBackoff time.Duration
	log        logrus.FieldLogger
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
	Logger  logrus.FieldLogger
	// RetryBackoff is the first delay between attempts on a failing message;
	// it doubles up to MaxRetryBackoff. Defaults: 1s and 30s.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// NewConsumer joins the consumer group described by cfg.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	minBackoff := cfg.RetryBackoff
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	maxBackoff := cfg.MaxRetryBackoff
	if maxBackoff < minBackoff {
		maxBackoff = max(30*time.Second, minBackoff)
	}

	return &Consumer{
		group:      group,
		handler:    cfg.Handler,
		topic:      cfg.Topic,
		groupID:    cfg.GroupID,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		log:        log.WithFields(logrus.Fields{"topic": cfg.Topic, "group": cfg.GroupID}),
	}, nil
}

// Run consumes until ctx is cancelled. Consume returns on every rebalance, so it
// is called in a loop.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.log.WithError(err).Error("Kafka consumer error")
		}
	}()

	handler := &groupHandler{
		handler:    c.handler,
		minBackoff: c.minBackoff,
		maxBackoff: c.maxBackoff,
		log:        c.log,
	}
	c.log.Info("Kafka consumer started")
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.WithError(err).Error("Kafka consume failed")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	c.log.Info("Closing Kafka consumer")
	return c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler. Marking commits
// everything below the marked offset, so a failing message blocks its
// partition until it succeeds or the session ends.
type groupHandler struct {
	handler    MessageHandler
	minBackoff time.Duration
	maxBackoff time.Duration
	log        logrus.FieldLogger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !h.consume(session, message) {
				// unmarked: the next session resumes from the committed offset
				return nil
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// consume handles message until it succeeds or is skipped, backing off between
// failed attempts. It returns false when the session ended first.
func (h *groupHandler) consume(session sarama.ConsumerGroupSession, message *sarama.ConsumerMessage) bool {
	ctx := session.Context()
	entry := h.log.WithFields(logrus.Fields{
		"partition": message.Partition,
		"offset":    message.Offset,
		"key":       string(message.Key),
	})
	entry.Debug("Received Kafka message")

	backoff := h.minBackoff
	for attempt := 1; ; attempt++ {
		shouldMark, err := h.handler.HandleMessage(ctx, message.Value)
		if err == nil {
			if shouldMark {
				session.MarkMessage(message, "")
			}
			return true
		}

		entry.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"backoff": backoff.String(),
		}).Warn("Failed to handle message, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		backoff = min(backoff*2, h.maxBackoff)
	}
}

// TypedMessageHandler decodes JSON messages into T before handing them to
// Process.
type TypedMessageHandler[T any] struct {
	// Validate reports whether msg should be processed at all.
	Validate func(msg *T) bool
	Process  func(ctx context.Context, msg *T) error
	// AlwaysMark commits undecodable and invalid messages instead of skipping
	// them uncommitted.
	AlwaysMark bool
	Logger     logrus.FieldLogger
}

func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		h.logger().WithError(err).Warn("Failed to unmarshal message")
		return h.AlwaysMark, nil
	}

	if h.Validate != nil && !h.Validate(&msg) {
		return h.AlwaysMark, nil
	}

	if err := h.Process(ctx, &msg); err != nil {
		return false, err
	}
	return true, nil
}

func (h *TypedMessageHandler[T]) logger() logrus.FieldLogger {
	if h.Logger == nil {
		return logrus.StandardLogger()
	}
	return h.Logger
}
