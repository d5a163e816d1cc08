package email

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/config"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

type Message struct {
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	Priority Priority
}

// Result is returned for every send. Delivery failures never surface as
// errors; callers branch on Success.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Dispatcher sends one email through whichever transport was selected at
// startup. Implementations must not panic on delivery failure.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) Result
	Configured() bool
}

// NewFromConfig selects the transport once at process start. An empty or
// unusable provider yields the disabled dispatcher so batch jobs degrade to
// success:false results instead of crashing. Real transports are wrapped in
// the bulk-delay throttle so fan-out callers cannot hammer the provider.
func NewFromConfig(cfg config.EmailConfig, logger zerolog.Logger) Dispatcher {
	switch cfg.Provider {
	case "smtp":
		if cfg.SMTP.Host == "" || cfg.SMTP.Username == "" {
			logger.Warn().Msg("SMTP transport selected but credentials missing, email disabled")
			return NewDisabledDispatcher()
		}
		return NewThrottledDispatcher(NewSMTPDispatcher(cfg, logger), cfg.BulkDelay)
	case "sendgrid":
		if cfg.SendGrid.APIKey == "" {
			logger.Warn().Msg("SendGrid transport selected but API key missing, email disabled")
			return NewDisabledDispatcher()
		}
		return NewThrottledDispatcher(NewSendGridDispatcher(cfg, logger), cfg.BulkDelay)
	default:
		logger.Info().Msg("No email provider configured, email disabled")
		return NewDisabledDispatcher()
	}
}

type disabledDispatcher struct{}

func NewDisabledDispatcher() Dispatcher {
	return &disabledDispatcher{}
}

func (d *disabledDispatcher) Send(ctx context.Context, msg Message) Result {
	return Result{Success: false, Error: "not configured"}
}

func (d *disabledDispatcher) Configured() bool {
	return false
}
