package handlers

import (
	"context"

	"videohub/internal/ai"
	"videohub/internal/config"
	"videohub/internal/processing"
	"videohub/internal/signature"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Processor runs the processing of one uploaded video.
type Processor interface {
	Process(ctx context.Context, videoID string) (*processing.Result, error)
}

// SignatureVerifier authenticates webhook deliveries.
type SignatureVerifier interface {
	Verify(req signature.VerifyRequest) error
}

// Deps holds shared dependencies for handlers. Completer may be nil when no
// completion provider is configured.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Processor Processor
	Verifier  SignatureVerifier
	Completer ai.Completer
	Logger    logrus.FieldLogger
}

type Handler struct {
	db         *gorm.DB
	processor  Processor
	verifier   SignatureVerifier
	completer  ai.Completer
	log        logrus.FieldLogger
	webhookURL string
	// verifySignatures is only enabled in production.
	verifySignatures bool
}

func NewHandler(deps Deps) *Handler {
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		db:               deps.DB,
		processor:        deps.Processor,
		verifier:         deps.Verifier,
		completer:        deps.Completer,
		log:              log,
		webhookURL:       deps.Config.QStash.WebhookURL,
		verifySignatures: deps.Config.IsProduction(),
	}
}
