package email

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/config"
	"github.com/acadence/notification-service/pkg/utils"
)

type smtpDispatcher struct {
	host     string
	port     int
	username string
	password string
	from     mail.Address
	logger   zerolog.Logger
}

func NewSMTPDispatcher(cfg config.EmailConfig, logger zerolog.Logger) Dispatcher {
	return &smtpDispatcher{
		host:     cfg.SMTP.Host,
		port:     cfg.SMTP.Port,
		username: cfg.SMTP.Username,
		password: cfg.SMTP.Password,
		from:     mail.Address{Name: cfg.FromName, Address: cfg.FromEmail},
		logger:   logger,
	}
}

func (d *smtpDispatcher) Configured() bool {
	return true
}

func (d *smtpDispatcher) Send(ctx context.Context, msg Message) Result {
	if msg.To == "" {
		return Result{Success: false, Error: "no recipient"}
	}

	messageID := utils.GenerateUUID()
	body := d.buildMessage(msg, messageID)

	addr := fmt.Sprintf("%s:%d", d.host, d.port)
	auth := smtp.PlainAuth("", d.username, d.password, d.host)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, d.from.Address, []string{msg.To}, []byte(body))
	}()

	select {
	case <-ctx.Done():
		return Result{Success: false, Error: ctx.Err().Error()}
	case err := <-done:
		if err != nil {
			d.logger.Error().Err(err).Str("to", msg.To).Msg("SMTP send failed")
			return Result{Success: false, Error: err.Error()}
		}
	}

	d.logger.Debug().Str("to", msg.To).Str("message_id", messageID).Msg("Email sent via SMTP")
	return Result{Success: true, MessageID: messageID}
}

func (d *smtpDispatcher) buildMessage(msg Message, messageID string) string {
	body := new(strings.Builder)
	to := mail.Address{Name: msg.ToName, Address: msg.To}

	altW := multipart.NewWriter(body)

	fmt.Fprintf(body, "From: %s\r\n", d.from.String())
	fmt.Fprintf(body, "To: %s\r\n", to.String())
	fmt.Fprintf(body, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(body, "Message-ID: <%s@acadence>\r\n", messageID)
	fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	if msg.Priority == PriorityHigh {
		fmt.Fprint(body, "X-Priority: 1\r\n")
	}
	fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n", altW.Boundary())
	fmt.Fprint(body, "\r\n")

	w, _ := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=UTF-8"}})
	fmt.Fprintf(w, "%s\r\n", msg.Text)

	if msg.HTML != "" {
		w, _ = altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=UTF-8"}})
		fmt.Fprintf(w, "%s\r\n", msg.HTML)
	}

	altW.Close()
	return body.String()
}
