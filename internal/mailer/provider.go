package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Attachment is an opaque file carried on an outgoing message. Inline
// attachments additionally carry a content id so the HTML body can
// reference them through a cid: URL.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
	Inline      bool
	CID         string
}

// Message is a fully resolved outgoing email. Recipient fields hold the
// already-expanded address values; empty Cc and Bcc are omitted.
type Message struct {
	To          string
	Cc          string
	Bcc         string
	Subject     string
	BodyHTML    string
	Attachments []Attachment
}

// Result reports one send attempt. Providers never return an error:
// transport failures are logged and folded into OK=false so a failing
// row cannot abort a running batch.
type Result struct {
	OK     bool
	Detail string
}

// Provider attempts a single send.
type Provider interface {
	Send(ctx context.Context, msg Message) Result
}

// NoOp accepts every message without sending anything. Used in
// development and as the default when no provider is configured.
type NoOp struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOp {
	return &NoOp{log: log.Named("mailer.noop")}
}

func (p *NoOp) Send(_ context.Context, msg Message) Result {
	p.log.Info("discarding outgoing mail",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return Result{OK: true, Detail: "noop"}
}
