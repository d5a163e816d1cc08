package email

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/acadence/notification-service/internal/config"
)

type sendgridDispatcher struct {
	client *sendgrid.Client
	from   *sgmail.Email
	logger zerolog.Logger
}

func NewSendGridDispatcher(cfg config.EmailConfig, logger zerolog.Logger) Dispatcher {
	return &sendgridDispatcher{
		client: sendgrid.NewSendClient(cfg.SendGrid.APIKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

func (d *sendgridDispatcher) Configured() bool {
	return true
}

func (d *sendgridDispatcher) Send(ctx context.Context, msg Message) Result {
	if msg.To == "" {
		return Result{Success: false, Error: "no recipient"}
	}

	to := sgmail.NewEmail(msg.ToName, msg.To)
	m := sgmail.NewSingleEmail(d.from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := d.client.SendWithContext(ctx, m)
	if err != nil {
		d.logger.Error().Err(err).Str("to", msg.To).Msg("SendGrid send failed")
		return Result{Success: false, Error: err.Error()}
	}

	if resp.StatusCode >= 400 {
		d.logger.Error().
			Int("status", resp.StatusCode).
			Str("to", msg.To).
			Msg("SendGrid rejected message")
		return Result{Success: false, Error: resp.Body}
	}

	messageID := resp.Headers["X-Message-Id"]
	var id string
	if len(messageID) > 0 {
		id = messageID[0]
	}

	d.logger.Debug().Str("to", msg.To).Str("message_id", id).Msg("Email sent via SendGrid")
	return Result{Success: true, MessageID: id}
}
