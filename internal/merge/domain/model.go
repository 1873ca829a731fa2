package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/lettermill/lettermill/internal/spreadsheet"
)

const (
	// SkippedRecipient marks a progress event for a row whose expanded
	// "to" address was empty.
	SkippedRecipient = "(skipped)"

	// UnknownRecipient marks a failed progress event for a row that
	// broke before its "to" address could be resolved.
	UnknownRecipient = "(unknown)"

	// CountNotApplicable is the sent/total counter value on single-shot
	// events that are not part of a counted batch, such as a raw ping.
	CountNotApplicable = -1

	// TestSubjectPrefix marks test-send subjects so they are
	// distinguishable from real campaign mail in an inbox.
	TestSubjectPrefix = "[TEST] "
)

// ProgressEvent is one unit of the live progress stream. The JSON field
// names are part of the wire contract consumed by the frontend.
type ProgressEvent struct {
	Email      string `json:"email"`
	Success    bool   `json:"success"`
	SentCount  int    `json:"sentCount"`
	TotalCount int    `json:"totalCount"`
	Message    string `json:"message"`
}

// AttachmentRef is a decoded attachment shared by every send of a run.
type AttachmentRef struct {
	Name        string
	ContentType string
	Data        []byte
}

// InlineImageRef is a decoded inline image referenced from the body
// through a cid: URL.
type InlineImageRef struct {
	CID         string
	Name        string
	ContentType string
	Data        []byte
}

// RunRequest is the immutable input of one merge run. Spreadsheet holds
// the already base64-decoded workbook bytes.
type RunRequest struct {
	ProjectID *snowflake.ID

	SubjectTemplate string
	BodyTemplate    string
	ToTemplate      string
	CcTemplate      string
	BccTemplate     string

	Spreadsheet            []byte
	SpreadsheetContentType string

	Attachments  []AttachmentRef
	InlineImages []InlineImageRef
}

type Service interface {
	// Run validates the request and, once preconditions pass, processes
	// the batch on a background goroutine. Outcomes are observable only
	// through the progress stream.
	Run(ctx context.Context, userID snowflake.ID, req RunRequest) error

	// RunTest sends the first data row to the calling user's own
	// address, never to the row's recipients.
	RunTest(ctx context.Context, userID snowflake.ID, req RunRequest) error

	// Ping sends a minimal hardcoded message to the calling user to
	// verify the mail provider is reachable and configured.
	Ping(ctx context.Context, userID snowflake.ID) error
}

// Batch precondition failures. Anything past these is reported through
// the progress stream instead of the synchronous call path.
var (
	ErrInvalidSpreadsheet = spreadsheet.ErrInvalidSpreadsheet
	ErrInsufficientData   = spreadsheet.ErrInsufficientData
	ErrNoRecipient        = errors.New("no_recipient_resolved")
	ErrRateLimited        = errors.New("merge_rate_limited")
	ErrRunInProgress      = errors.New("merge_run_in_progress")
)
