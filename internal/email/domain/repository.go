package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, email *Email) error
	FindByID(ctx context.Context, id snowflake.ID) (*Email, error)
	// ListByProject returns up to limit emails with an id greater than
	// afterID, in id order. afterID zero starts from the beginning.
	ListByProject(ctx context.Context, projectID, afterID snowflake.ID, limit int) ([]Email, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status Status, sentAt *time.Time) error
	Delete(ctx context.Context, id snowflake.ID) error
}

type AttachmentRepository interface {
	Create(ctx context.Context, attachment *Attachment) error
	FindByID(ctx context.Context, id snowflake.ID) (*Attachment, error)
	ListByProject(ctx context.Context, projectID snowflake.ID) ([]Attachment, error)
	Delete(ctx context.Context, id snowflake.ID) error
}
