package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lettermill/lettermill/pkg/db/pagination"
)

type Service interface {
	Get(ctx context.Context, id snowflake.ID) (*EmailResponse, error)
	ListByProject(ctx context.Context, projectID snowflake.ID, page pagination.Pagination) (*EmailPage, error)
	Delete(ctx context.Context, id snowflake.ID) error

	CreateAttachment(ctx context.Context, req CreateAttachmentRequest) (*AttachmentResponse, error)
	GetAttachment(ctx context.Context, id snowflake.ID) (*Attachment, error)
	ListAttachmentsByProject(ctx context.Context, projectID snowflake.ID) ([]AttachmentResponse, error)
	DeleteAttachment(ctx context.Context, id snowflake.ID) error
}

type CreateAttachmentRequest struct {
	ProjectID       *snowflake.ID
	EmailID         *snowflake.ID
	Name            string
	File            []byte
	FileContentType string
}

// EmailPage is one page of a project's email history.
type EmailPage struct {
	Emails   []EmailResponse     `json:"emails"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type EmailResponse struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	EmailAddress  string     `json:"email_address"`
	Content       string     `json:"content"`
	VariablesJSON *string    `json:"variables_json,omitempty"`
	Status        Status     `json:"status"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type AttachmentResponse struct {
	ID              string    `json:"id"`
	ProjectID       *string   `json:"project_id,omitempty"`
	EmailID         *string   `json:"email_id,omitempty"`
	Name            string    `json:"name"`
	FileContentType string    `json:"file_content_type"`
	Size            *int64    `json:"size,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

var (
	ErrNotFound          = errors.New("email_not_found")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrAttachmentMissing = errors.New("attachment_not_found")
	ErrInvalidAttachment = errors.New("invalid_attachment")
)
