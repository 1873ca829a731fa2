package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/lettermill/lettermill/internal/auth/domain"
	authrepository "github.com/lettermill/lettermill/internal/auth/repository"
	"github.com/lettermill/lettermill/internal/clock"
	"github.com/lettermill/lettermill/internal/config"
	emaildomain "github.com/lettermill/lettermill/internal/email/domain"
	emailrepository "github.com/lettermill/lettermill/internal/email/repository"
	"github.com/lettermill/lettermill/internal/mailer"
	"github.com/lettermill/lettermill/internal/merge/domain"
	"github.com/lettermill/lettermill/internal/merge/progress"
	projectdomain "github.com/lettermill/lettermill/internal/project/domain"
	projectrepository "github.com/lettermill/lettermill/internal/project/repository"
	"github.com/lettermill/lettermill/internal/ratelimit"
	"github.com/lettermill/lettermill/pkg/db"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubSender struct {
	mu     sync.Mutex
	sent   []mailer.Message
	failTo map[string]bool
}

func (s *stubSender) Send(_ context.Context, msg mailer.Message) mailer.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	if s.failTo[msg.To] {
		return mailer.Result{OK: false, Detail: "stubbed failure"}
	}
	return mailer.Result{OK: true}
}

func (s *stubSender) messages() []mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mailer.Message(nil), s.sent...)
}

type panickingSender struct {
	inner   *stubSender
	panicTo string
}

func (s *panickingSender) Send(ctx context.Context, msg mailer.Message) mailer.Result {
	if msg.To == s.panicTo {
		panic("transport wiring blew up")
	}
	return s.inner.Send(ctx, msg)
}

type denyLimiter struct{}

func (denyLimiter) AllowRun(context.Context, snowflake.ID) (bool, error) { return false, nil }

type fixture struct {
	svc   *Service
	hub   *progress.Hub
	send  *stubSender
	conn  *gorm.DB
	users authdomain.Repository
	node  *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&projectdomain.Project{},
		&projectdomain.Heading{},
		&emaildomain.Email{},
		&emaildomain.Attachment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder := config.NewStaticMergeConfigHolder(config.MergeConfig{
		ThrottleMillis:    0,
		SubscriberBuffer:  64,
		SendRatePerMinute: 60,
		SendBurst:         10,
	})
	hub := progress.NewHub(64)
	sender := &stubSender{failTo: map[string]bool{}}
	users := authrepository.Provide(conn)

	svc := New(Params{
		Log:      zap.NewNop(),
		Cfg:      config.Config{},
		Holder:   holder,
		Hub:      hub,
		Sender:   sender,
		Users:    users,
		Emails:   emailrepository.Provide(conn),
		Projects: projectrepository.Provide(conn),
		Limiter:  ratelimit.NewRunLimiter(zap.NewNop(), nil, holder),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Now()),
	}).(*Service)

	return &fixture{svc: svc, hub: hub, send: sender, conn: conn, users: users, node: node}
}

func (f *fixture) createUser(t *testing.T, login, email string) snowflake.ID {
	t.Helper()
	user := &authdomain.User{ID: f.node.Generate(), Login: login, Email: email}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user.ID
}

func workbook(t *testing.T, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func collectEvents(t *testing.T, sub *progress.Subscription, n int) []domain.ProgressEvent {
	t.Helper()

	events := make([]domain.ProgressEvent, 0, n)
	timeout := time.After(5 * time.Second)
	for len(events) < n {
		select {
		case ev := <-sub.Events():
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d of %d", len(events), n)
		}
	}
	return events
}

func TestRunPublishesEventPerRowInOrder(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "alice", "alice@example.com")

	sub := f.hub.Subscribe()
	defer sub.Close()

	err := f.svc.Run(context.Background(), userID, domain.RunRequest{
		SubjectTemplate: "Hello {{name}}",
		BodyTemplate:    "Hi {{name}}",
		ToTemplate:      "{{email}}",
		Spreadsheet: workbook(t, [][]string{
			{"name", "email"},
			{"Alice", "a@x.com"},
			{"Bob", "b@x.com"},
			{"Carol", "c@x.com"},
		}),
	})
	require.NoError(t, err)

	events := collectEvents(t, sub, 4)

	require.Equal(t, msgSending, events[0].Message)
	require.Equal(t, 0, events[0].SentCount)
	require.Equal(t, 3, events[0].TotalCount)

	recipients := []string{events[1].Email, events[2].Email, events[3].Email}
	require.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, recipients)

	for i, ev := range events[1:] {
		require.True(t, ev.Success)
		require.Equal(t, i+1, ev.SentCount)
		require.Equal(t, 3, ev.TotalCount)
		require.Equal(t, msgSent, ev.Message)
	}

	msgs := f.send.messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "Hi Alice", msgs[0].BodyHTML)
	require.Equal(t, "Hello Alice", msgs[0].Subject)
}

func TestRunSkipsRowsWithoutRecipient(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "alice", "alice@example.com")

	sub := f.hub.Subscribe()
	defer sub.Close()

	err := f.svc.Run(context.Background(), userID, domain.RunRequest{
		BodyTemplate: "Hi {{name}}",
		ToTemplate:   "{{email}}",
		Spreadsheet: workbook(t, [][]string{
			{"name", "email"},
			{"Alice", "a@x.com"},
			{"Bob", ""},
		}),
	})
	require.NoError(t, err)

	events := collectEvents(t, sub, 3)

	require.Equal(t, "a@x.com", events[1].Email)
	require.True(t, events[1].Success)

	require.Equal(t, domain.SkippedRecipient, events[2].Email)
	require.False(t, events[2].Success)
	require.Equal(t, 2, events[2].SentCount)
	require.Equal(t, 2, events[2].TotalCount)

	// The skipped row never reaches the sender.
	require.Len(t, f.send.messages(), 1)
}

func TestRunFailingRowDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "alice", "alice@example.com")
	f.send.failTo["b@x.com"] = true

	sub := f.hub.Subscribe()
	defer sub.Close()

	err := f.svc.Run(context.Background(), userID, domain.RunRequest{
		ToTemplate: "{{email}}",
		Spreadsheet: workbook(t, [][]string{
			{"email"},
			{"a@x.com"},
			{"b@x.com"},
			{"c@x.com"},
		}),
	})
	require.NoError(t, err)

	events := collectEvents(t, sub, 4)

	require.True(t, events[1].Success)
	require.False(t, events[2].Success)
	require.Contains(t, events[2].Message, msgFailed)
	require.True(t, events[3].Success)
	require.Equal(t, 3, events[3].SentCount)
	require.Equal(t, 3, events[3].TotalCount)
}

func TestRunPanickingRowBecomesFailedEvent(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "alice", "alice@example.com")
	f.svc.sender = &panickingSender{inner: f.send, panicTo: "b@x.com"}

	sub := f.hub.Subscribe()
	defer sub.Close()

	err := f.svc.Run(context.Background(), userID, domain.RunRequest{
		ToTemplate: "{{email}}",
		Spreadsheet: workbook(t, [][]string{
			{"email"},
			{"a@x.com"},
			{"b@x.com"},
			{"c@x.com"},
		}),
	})
	require.NoError(t, err)

	events := collectEvents(t, sub, 4)

	require.True(t, events[1].Success)

	require.False(t, events[2].Success)
	require.Equal(t, "b@x.com", events[2].Email)
	require.Equal(t, msgFailed, events[2].Message)
	require.Equal(t, 2, events[2].SentCount)
	require.Equal(t, 3, events[2].TotalCount)

	require.True(t, events[3].Success)
	require.Equal(t, "c@x.com", events[3].Email)
	require.Equal(t, 3, events[3].SentCount)

	// Only the two surviving rows reached the underlying transport.
	msgs := f.send.messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "a@x.com", msgs[0].To)
	require.Equal(t, "c@x.com", msgs[1].To)
}

func TestRunZeroDataRowsIsNoOp(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "alice", "alice@example.com")

	sub := f.hub.Subscribe()
	defer sub.Close()

	err := f.svc.Run(context.Background(), userID, domain.RunRequest{
		ToTemplate: "{{email}}",
		Spreadsheet: workbook(t, [][]string{
			{"email"},
		}),
	})
	require.NoError(t, err)

	events := collectEvents(t, sub, 1)
	require.Equal(t, 0, events[0].TotalCount)
	require.Empty(t, f.send.messages())
}

func TestRunRejectsGarbageSpreadsheet(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "alice", "alice@example.com")

	err := f.svc.Run(context.Background(), userID, domain.RunRequest{
		Spreadsheet: []byte("not a workbook"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidSpreadsheet)
}

func TestRunRateLimited(t *testing.T) {
	f := newFixture(t)
	f.svc.limiter = denyLimiter{}
	userID := f.createUser(t, "alice", "alice@example.com")

	err := f.svc.Run(context.Background(), userID, domain.RunRequest{
		Spreadsheet: workbook(t, [][]string{{"email"}, {"a@x.com"}}),
	})
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestRunPersistsEmailRecords(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "alice", "alice@example.com")
	f.send.failTo["b@x.com"] = true

	project := &projectdomain.Project{
		ID:     f.node.Generate(),
		UserID: userID,
		Name:   "Campaign",
		Slug:   "campaign",
		Status: emaildomain.StatusPending,
	}
	require.NoError(t, projectrepository.Provide(f.conn).Create(context.Background(), project))

	sub := f.hub.Subscribe()
	defer sub.Close()

	err := f.svc.Run(context.Background(), userID, domain.RunRequest{
		ProjectID:    &project.ID,
		BodyTemplate: "Hi {{name}}",
		ToTemplate:   "{{email}}",
		Spreadsheet: workbook(t, [][]string{
			{"name", "email"},
			{"Alice", "a@x.com"},
			{"Bob", "b@x.com"},
		}),
	})
	require.NoError(t, err)
	collectEvents(t, sub, 3)

	records, err := emailrepository.Provide(f.conn).ListByProject(context.Background(), project.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, emaildomain.StatusSent, records[0].Status)
	require.Equal(t, "Hi Alice", records[0].Content)
	require.NotNil(t, records[0].SentAt)
	require.Equal(t, emaildomain.StatusFailed, records[1].Status)
	require.Nil(t, records[1].SentAt)

	stored, err := projectrepository.Provide(f.conn).FindByID(context.Background(), project.ID)
	require.NoError(t, err)
	require.Equal(t, emaildomain.StatusSent, stored.Status)
	require.NotNil(t, stored.SentAt)
}

func TestRunTestTargetsOwnAddress(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "carol", "me@example.com")

	sub := f.hub.Subscribe()
	defer sub.Close()

	err := f.svc.RunTest(context.Background(), userID, domain.RunRequest{
		SubjectTemplate: "Hello {{name}}",
		BodyTemplate:    "Hi {{name}}",
		ToTemplate:      "{{email}}",
		Spreadsheet: workbook(t, [][]string{
			{"name", "email"},
			{"Carol", "irrelevant@x.com"},
		}),
	})
	require.NoError(t, err)

	events := collectEvents(t, sub, 1)
	require.Equal(t, "me@example.com", events[0].Email)
	require.True(t, events[0].Success)
	require.Equal(t, 1, events[0].SentCount)
	require.Equal(t, 1, events[0].TotalCount)

	msgs := f.send.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "me@example.com", msgs[0].To)
	require.Equal(t, domain.TestSubjectPrefix+"Hello Carol", msgs[0].Subject)
}

func TestRunTestNoDataRow(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "carol", "me@example.com")

	err := f.svc.RunTest(context.Background(), userID, domain.RunRequest{
		Spreadsheet: workbook(t, [][]string{{"name", "email"}}),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestRunTestLoginFallback(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "carol@login.example", "")

	sub := f.hub.Subscribe()
	defer sub.Close()

	err := f.svc.RunTest(context.Background(), userID, domain.RunRequest{
		Spreadsheet: workbook(t, [][]string{{"email"}, {"x@x.com"}}),
	})
	require.NoError(t, err)

	events := collectEvents(t, sub, 1)
	require.Equal(t, "carol@login.example", events[0].Email)
}

func TestRunTestNoRecipientResolved(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "carol", "")

	err := f.svc.RunTest(context.Background(), userID, domain.RunRequest{
		Spreadsheet: workbook(t, [][]string{{"email"}, {"x@x.com"}}),
	})
	require.ErrorIs(t, err, domain.ErrNoRecipient)
	require.Empty(t, f.send.messages())
}

func TestPingUsesSentinelCounts(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "alice", "alice@example.com")

	sub := f.hub.Subscribe()
	defer sub.Close()

	require.NoError(t, f.svc.Ping(context.Background(), userID))

	events := collectEvents(t, sub, 1)
	require.Equal(t, "alice@example.com", events[0].Email)
	require.Equal(t, domain.CountNotApplicable, events[0].SentCount)
	require.Equal(t, domain.CountNotApplicable, events[0].TotalCount)

	msgs := f.send.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, pingSubject, msgs[0].Subject)
}

func TestRunAttachmentsSharedAcrossRows(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "alice", "alice@example.com")

	sub := f.hub.Subscribe()
	defer sub.Close()

	err := f.svc.Run(context.Background(), userID, domain.RunRequest{
		ToTemplate: "{{email}}",
		Spreadsheet: workbook(t, [][]string{
			{"email"},
			{"a@x.com"},
			{"b@x.com"},
		}),
		Attachments: []domain.AttachmentRef{
			{Name: "terms.pdf", ContentType: "application/pdf", Data: []byte("pdf")},
		},
		InlineImages: []domain.InlineImageRef{
			{CID: "logo", Name: "logo.png", ContentType: "image/png", Data: []byte("png")},
		},
	})
	require.NoError(t, err)
	collectEvents(t, sub, 3)

	for _, msg := range f.send.messages() {
		require.Len(t, msg.Attachments, 2)
		require.False(t, msg.Attachments[0].Inline)
		require.True(t, msg.Attachments[1].Inline)
		require.Equal(t, "logo", msg.Attachments[1].CID)
	}
}
