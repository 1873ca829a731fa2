package mailer

import (
	"bytes"
	"context"
	"io"

	mail "github.com/go-mail/mail"
	"github.com/lettermill/lettermill/internal/config"
	"go.uber.org/zap"
)

// SMTP delivers mail through a plain SMTP relay.
type SMTP struct {
	log    *zap.Logger
	dialer *mail.Dialer
	from   string
}

func NewSMTP(cfg config.Config, log *zap.Logger) *SMTP {
	return &SMTP{
		log:    log.Named("mailer.smtp"),
		dialer: mail.NewDialer(cfg.Mailer.SMTPHost, cfg.Mailer.SMTPPort, cfg.Mailer.SMTPUsername, cfg.Mailer.SMTPPassword),
		from:   cfg.Mailer.From,
	}
}

func (p *SMTP) Send(_ context.Context, msg Message) Result {
	m := mail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", splitAddresses(msg.To)...)
	if cc := splitAddresses(msg.Cc); len(cc) > 0 {
		m.SetHeader("Cc", cc...)
	}
	if bcc := splitAddresses(msg.Bcc); len(bcc) > 0 {
		m.SetHeader("Bcc", bcc...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.BodyHTML)

	for _, att := range msg.Attachments {
		data := att.Data
		copyFn := mail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(data))
			return err
		})
		settings := []mail.FileSetting{copyFn}
		if att.ContentType != "" {
			settings = append(settings, mail.SetHeader(map[string][]string{
				"Content-Type": {att.ContentType},
			}))
		}
		if att.Inline {
			// Embed derives the Content-ID from the file name, so inline
			// parts are embedded under their cid to keep cid: references
			// in the HTML body resolvable.
			name := att.CID
			if name == "" {
				name = att.Name
			}
			m.Embed(name, settings...)
		} else {
			m.Attach(att.Name, settings...)
		}
	}

	if err := p.dialer.DialAndSend(m); err != nil {
		p.log.Warn("smtp send failed",
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return Result{OK: false, Detail: "smtp send failed"}
	}

	return Result{OK: true}
}
