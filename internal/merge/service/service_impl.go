package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/lettermill/lettermill/internal/auth/domain"
	"github.com/lettermill/lettermill/internal/clock"
	"github.com/lettermill/lettermill/internal/config"
	emaildomain "github.com/lettermill/lettermill/internal/email/domain"
	"github.com/lettermill/lettermill/internal/mailer"
	"github.com/lettermill/lettermill/internal/merge/domain"
	"github.com/lettermill/lettermill/internal/merge/progress"
	"github.com/lettermill/lettermill/internal/observability/metrics"
	projectdomain "github.com/lettermill/lettermill/internal/project/domain"
	"github.com/lettermill/lettermill/internal/ratelimit"
	"github.com/lettermill/lettermill/internal/spreadsheet"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	msgSending   = "Sending emails"
	msgSent      = "Email sent successfully"
	msgFailed    = "Failed to send"
	msgSkipped   = "No recipient resolved; skipped"
	runLockTTL   = 30 * time.Minute
	pingSubject  = "Lettermill connectivity test"
	pingBodyHTML = "<p>This message confirms your mail provider is configured correctly.</p>"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Holder   *config.MergeConfigHolder
	Hub      *progress.Hub
	Sender   mailer.Provider
	Users    authdomain.Repository
	Emails   emaildomain.Repository
	Projects projectdomain.Repository
	Limiter  ratelimit.RunLimiter
	Locker   *ratelimit.Locker `optional:"true"`
	Metrics  *metrics.Metrics  `optional:"true"`
	GenID    *snowflake.Node
	Clock    clock.Clock
}

type Service struct {
	log      *zap.Logger
	provider string
	holder   *config.MergeConfigHolder
	hub      *progress.Hub
	sender   mailer.Provider
	users    authdomain.Repository
	emails   emaildomain.Repository
	projects projectdomain.Repository
	limiter  ratelimit.RunLimiter
	locker   *ratelimit.Locker
	metrics  *metrics.Metrics
	genID    *snowflake.Node
	clk      clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("merge.service"),
		provider: p.Cfg.Mailer.Provider,
		holder:   p.Holder,
		hub:      p.Hub,
		sender:   p.Sender,
		users:    p.Users,
		emails:   p.Emails,
		projects: p.Projects,
		limiter:  p.Limiter,
		locker:   p.Locker,
		metrics:  p.Metrics,
		genID:    p.GenID,
		clk:      p.Clock,
	}
}

func (s *Service) Run(ctx context.Context, userID snowflake.ID, req domain.RunRequest) error {
	allowed, err := s.limiter.AllowRun(ctx, userID)
	if err != nil {
		return err
	}
	if !allowed {
		return domain.ErrRateLimited
	}

	sheet, err := spreadsheet.Parse(req.Spreadsheet, req.SpreadsheetContentType)
	if err != nil {
		return err
	}

	var lockKey, lockToken string
	if s.locker != nil && req.ProjectID != nil {
		lockKey = fmt.Sprintf("lettermill:run:project:%s", req.ProjectID)
		token, ok, err := s.locker.TryLock(ctx, lockKey, runLockTTL)
		if err != nil {
			s.log.Warn("run lock unavailable, continuing unlocked", zap.Error(err))
		} else if !ok {
			return domain.ErrRunInProgress
		} else {
			lockToken = token
		}
	}

	runID := ulid.Make().String()
	s.log.Info("merge run accepted",
		zap.String("run_id", runID),
		zap.String("user_id", userID.String()),
		zap.Int("rows", len(sheet.Rows)),
	)
	s.metrics.RecordMergeRun(ctx, "batch")

	// The caller only learns about precondition failures; everything
	// from here on is reported through the progress stream.
	bg := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if lockToken != "" {
				if err := s.locker.Release(bg, lockKey, lockToken); err != nil {
					s.log.Warn("run lock release failed", zap.String("run_id", runID), zap.Error(err))
				}
			}
		}()
		s.runBatch(bg, runID, sheet, req)
	}()

	return nil
}

func (s *Service) runBatch(ctx context.Context, runID string, sheet *spreadsheet.Sheet, req domain.RunRequest) {
	log := s.log.With(zap.String("run_id", runID))
	total := len(sheet.Rows)

	s.hub.Publish(domain.ProgressEvent{
		Success:    true,
		SentCount:  0,
		TotalCount: total,
		Message:    msgSending,
	})

	sent := 0
	anySuccess := false
	for i, row := range sheet.Rows {
		start := s.clk.Now()
		event := s.processRow(ctx, log, req, row, i)
		sent++
		event.SentCount = sent
		event.TotalCount = total

		if event.Success {
			anySuccess = true
		}
		s.hub.Publish(event)
		s.metrics.RecordRowDuration(ctx, s.clk.Now().Sub(start))

		if i < total-1 {
			s.clk.Sleep(s.holder.Current().Throttle())
		}
	}

	log.Info("merge run finished",
		zap.Int("rows", total),
		zap.Bool("any_success", anySuccess),
	)

	if req.ProjectID != nil {
		status := emaildomain.StatusSent
		if total > 0 && !anySuccess {
			status = emaildomain.StatusFailed
		}
		if err := s.markProjectSent(ctx, *req.ProjectID, status); err != nil {
			log.Warn("update project status failed", zap.Error(err))
		}
	}
}

// processRow resolves and sends one row. It never lets a row-level
// failure escape: any panic or error becomes a failed event so the rest
// of the batch still runs.
func (s *Service) processRow(ctx context.Context, log *zap.Logger, req domain.RunRequest, row spreadsheet.RowData, index int) (event domain.ProgressEvent) {
	recipient := domain.UnknownRecipient
	defer func() {
		if r := recover(); r != nil {
			log.Error("row processing panicked",
				zap.Int("row", index),
				zap.Any("panic", r),
			)
			event = domain.ProgressEvent{
				Email:   recipient,
				Success: false,
				Message: msgFailed,
			}
		}
	}()

	to := strings.TrimSpace(domain.ExpandTemplate(req.ToTemplate, row))
	if to == "" {
		log.Info("skipping row without recipient", zap.Int("row", index))
		s.metrics.RecordMergeRow(ctx, "skipped")
		return domain.ProgressEvent{
			Email:   domain.SkippedRecipient,
			Success: false,
			Message: msgSkipped,
		}
	}
	recipient = to

	msg := mailer.Message{
		To:          to,
		Cc:          strings.TrimSpace(domain.ExpandTemplate(req.CcTemplate, row)),
		Bcc:         strings.TrimSpace(domain.ExpandTemplate(req.BccTemplate, row)),
		Subject:     domain.ExpandTemplate(req.SubjectTemplate, row),
		BodyHTML:    domain.ExpandTemplate(req.BodyTemplate, row),
		Attachments: buildAttachments(req),
	}

	result := s.sender.Send(ctx, msg)
	s.metrics.RecordMailSend(ctx, s.provider, result.OK)

	outcome := "sent"
	message := msgSent
	if !result.OK {
		outcome = "failed"
		message = msgFailed
		if result.Detail != "" {
			message = fmt.Sprintf("%s: %s", msgFailed, result.Detail)
		}
	}
	s.metrics.RecordMergeRow(ctx, outcome)

	if req.ProjectID != nil {
		s.persistEmail(ctx, log, *req.ProjectID, msg, row, result.OK)
	}

	return domain.ProgressEvent{
		Email:   to,
		Success: result.OK,
		Message: message,
	}
}

func (s *Service) RunTest(ctx context.Context, userID snowflake.ID, req domain.RunRequest) error {
	sheet, err := spreadsheet.Parse(req.Spreadsheet, req.SpreadsheetContentType)
	if err != nil {
		return err
	}
	if len(sheet.Rows) == 0 {
		return domain.ErrInsufficientData
	}

	recipient, err := s.resolveSelfRecipient(ctx, userID)
	if err != nil {
		return err
	}

	row := sheet.Rows[0]
	msg := mailer.Message{
		To:          recipient,
		Subject:     domain.TestSubjectPrefix + domain.ExpandTemplate(req.SubjectTemplate, row),
		BodyHTML:    domain.ExpandTemplate(req.BodyTemplate, row),
		Attachments: buildAttachments(req),
	}

	runID := ulid.Make().String()
	s.log.Info("test send accepted",
		zap.String("run_id", runID),
		zap.String("user_id", userID.String()),
	)
	s.metrics.RecordMergeRun(ctx, "test")

	bg := context.WithoutCancel(ctx)
	go func() {
		result := s.sender.Send(bg, msg)
		s.metrics.RecordMailSend(bg, s.provider, result.OK)

		message := msgSent
		if !result.OK {
			message = msgFailed
			if result.Detail != "" {
				message = fmt.Sprintf("%s: %s", msgFailed, result.Detail)
			}
		}
		s.hub.Publish(domain.ProgressEvent{
			Email:      recipient,
			Success:    result.OK,
			SentCount:  1,
			TotalCount: 1,
			Message:    message,
		})
	}()

	return nil
}

func (s *Service) Ping(ctx context.Context, userID snowflake.ID) error {
	recipient, err := s.resolveSelfRecipient(ctx, userID)
	if err != nil {
		return err
	}

	s.metrics.RecordMergeRun(ctx, "ping")

	bg := context.WithoutCancel(ctx)
	go func() {
		result := s.sender.Send(bg, mailer.Message{
			To:       recipient,
			Subject:  pingSubject,
			BodyHTML: pingBodyHTML,
		})
		s.metrics.RecordMailSend(bg, s.provider, result.OK)

		message := msgSent
		if !result.OK {
			message = msgFailed
			if result.Detail != "" {
				message = fmt.Sprintf("%s: %s", msgFailed, result.Detail)
			}
		}
		s.hub.Publish(domain.ProgressEvent{
			Email:      recipient,
			Success:    result.OK,
			SentCount:  domain.CountNotApplicable,
			TotalCount: domain.CountNotApplicable,
			Message:    message,
		})
	}()

	return nil
}

// resolveSelfRecipient finds a safe address belonging to the calling
// user: their stored email, or their login when the login itself is an
// email address. Test traffic never goes anywhere else.
func (s *Service) resolveSelfRecipient(ctx context.Context, userID snowflake.ID) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	email := strings.TrimSpace(user.Email)
	if email != "" {
		return email, nil
	}

	login := strings.TrimSpace(user.Login)
	if _, err := mail.ParseAddress(login); err == nil {
		return login, nil
	}

	return "", domain.ErrNoRecipient
}

func (s *Service) persistEmail(ctx context.Context, log *zap.Logger, projectID snowflake.ID, msg mailer.Message, row spreadsheet.RowData, ok bool) {
	status := emaildomain.StatusSent
	var sentAt *time.Time
	if ok {
		now := time.Now().UTC()
		sentAt = &now
	} else {
		status = emaildomain.StatusFailed
	}

	var variables *string
	if encoded, err := json.Marshal(row); err == nil {
		v := string(encoded)
		variables = &v
	}

	record := &emaildomain.Email{
		ID:            s.genID.Generate(),
		ProjectID:     projectID,
		EmailAddress:  msg.To,
		Content:       msg.BodyHTML,
		VariablesJSON: variables,
		Status:        status,
		SentAt:        sentAt,
	}
	if err := s.emails.Create(ctx, record); err != nil {
		log.Warn("persist email record failed",
			zap.String("to", msg.To),
			zap.Error(err),
		)
	}
}

func (s *Service) markProjectSent(ctx context.Context, projectID snowflake.ID, status emaildomain.Status) error {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	project.Status = status
	project.SentAt = &now
	project.UpdatedAt = now
	return s.projects.Update(ctx, project)
}

func buildAttachments(req domain.RunRequest) []mailer.Attachment {
	out := make([]mailer.Attachment, 0, len(req.Attachments)+len(req.InlineImages))
	for _, att := range req.Attachments {
		out = append(out, mailer.Attachment{
			Name:        att.Name,
			ContentType: att.ContentType,
			Data:        att.Data,
		})
	}
	for _, img := range req.InlineImages {
		out = append(out, mailer.Attachment{
			Name:        img.Name,
			ContentType: img.ContentType,
			Data:        img.Data,
			Inline:      true,
			CID:         img.CID,
		})
	}
	return out
}
