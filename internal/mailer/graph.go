package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lettermill/lettermill/internal/config"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

const graphScope = "https://graph.microsoft.com/.default"

// Graph sends mail through the Microsoft Graph sendMail endpoint using
// client-credentials auth.
type Graph struct {
	log     *zap.Logger
	client  *http.Client
	baseURL string
	sender  string
	from    string
}

func NewGraph(cfg config.Config, log *zap.Logger) *Graph {
	creds := clientcredentials.Config{
		ClientID:     cfg.Mailer.GraphClientID,
		ClientSecret: cfg.Mailer.GraphClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.Mailer.GraphTenantID),
		Scopes:       []string{graphScope},
	}

	client := creds.Client(context.Background())
	client.Timeout = 30 * time.Second

	baseURL := strings.TrimRight(cfg.Mailer.GraphBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}

	return &Graph{
		log:     log.Named("mailer.graph"),
		client:  client,
		baseURL: baseURL,
		sender:  cfg.Mailer.GraphSender,
		from:    cfg.Mailer.From,
	}
}

type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
	IsInline     bool   `json:"isInline,omitempty"`
	ContentID    string `json:"contentId,omitempty"`
}

type graphMessage struct {
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ToRecipients  []graphRecipient  `json:"toRecipients"`
	CcRecipients  []graphRecipient  `json:"ccRecipients,omitempty"`
	BccRecipients []graphRecipient  `json:"bccRecipients,omitempty"`
	Attachments   []graphAttachment `json:"attachments,omitempty"`
}

type graphSendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

func (p *Graph) Send(ctx context.Context, msg Message) Result {
	payload := graphSendMailRequest{SaveToSentItems: true}
	payload.Message.Subject = msg.Subject
	payload.Message.Body.ContentType = "HTML"
	payload.Message.Body.Content = msg.BodyHTML
	payload.Message.ToRecipients = toRecipients(msg.To)
	payload.Message.CcRecipients = toRecipients(msg.Cc)
	payload.Message.BccRecipients = toRecipients(msg.Bcc)

	for _, att := range msg.Attachments {
		payload.Message.Attachments = append(payload.Message.Attachments, graphAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         att.Name,
			ContentType:  att.ContentType,
			ContentBytes: base64.StdEncoding.EncodeToString(att.Data),
			IsInline:     att.Inline,
			ContentID:    att.CID,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("marshal sendMail payload", zap.Error(err))
		return Result{OK: false, Detail: "payload encoding failed"}
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", p.baseURL, url.PathEscape(p.sender))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		p.log.Error("build sendMail request", zap.Error(err))
		return Result{OK: false, Detail: "request build failed"}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn("graph sendMail transport error",
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return Result{OK: false, Detail: "transport error"}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.log.Warn("graph sendMail rejected",
			zap.String("to", msg.To),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail),
		)
		return Result{OK: false, Detail: fmt.Sprintf("graph returned %d", resp.StatusCode)}
	}

	return Result{OK: true}
}

func toRecipients(raw string) []graphRecipient {
	var out []graphRecipient
	for _, addr := range splitAddresses(raw) {
		var r graphRecipient
		r.EmailAddress.Address = addr
		out = append(out, r)
	}
	return out
}

func splitAddresses(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
