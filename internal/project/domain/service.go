package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	emaildomain "github.com/lettermill/lettermill/internal/email/domain"
)

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateRequest) (*Response, error)
	List(ctx context.Context, userID snowflake.ID) ([]Response, error)
	Get(ctx context.Context, id snowflake.ID) (*Response, error)
	GetModel(ctx context.Context, id snowflake.ID) (*Project, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id snowflake.ID) error

	// UploadSpreadsheet stores the workbook bytes on the project and
	// refreshes its headings from the header row.
	UploadSpreadsheet(ctx context.Context, id snowflake.ID, req UploadSpreadsheetRequest) (*Response, error)
	ListHeadings(ctx context.Context, id snowflake.ID) ([]HeadingResponse, error)
	MarkSent(ctx context.Context, id snowflake.ID, status emaildomain.Status, sentAt time.Time) error
}

type CreateRequest struct {
	Name     string `json:"name"`
	ToField  string `json:"to_field"`
	CcField  string `json:"cc_field"`
	BccField string `json:"bcc_field"`
	Header   string `json:"header"`
	Content  string `json:"content"`
}

type UpdateRequest struct {
	Name     *string `json:"name"`
	ToField  *string `json:"to_field"`
	CcField  *string `json:"cc_field"`
	BccField *string `json:"bcc_field"`
	Header   *string `json:"header"`
	Content  *string `json:"content"`
}

type UploadSpreadsheetRequest struct {
	FileName    string
	ContentType string
	Data        []byte
}

type Response struct {
	ID                     string             `json:"id"`
	UserID                 string             `json:"user_id"`
	Name                   string             `json:"name"`
	Slug                   string             `json:"slug"`
	SpreadsheetName        string             `json:"spreadsheet_name,omitempty"`
	SpreadsheetContentType string             `json:"spreadsheet_content_type,omitempty"`
	HasSpreadsheet         bool               `json:"has_spreadsheet"`
	ToField                string             `json:"to_field"`
	CcField                string             `json:"cc_field"`
	BccField               string             `json:"bcc_field"`
	Header                 string             `json:"header"`
	Content                string             `json:"content"`
	Status                 emaildomain.Status `json:"status"`
	SentAt                 *time.Time         `json:"sent_at,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

type HeadingResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

var (
	ErrInvalidName = errors.New("invalid_name")
	ErrNotFound    = errors.New("project_not_found")
)
