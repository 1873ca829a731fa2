package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status tracks the delivery state of a single merged email.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

type Email struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	ProjectID     snowflake.ID `json:"project_id" gorm:"column:project_id;not null;index"`
	EmailAddress  string       `json:"email_address" gorm:"type:text;not null"`
	Content       string       `json:"content" gorm:"type:text;not null"`
	VariablesJSON *string      `json:"variables_json,omitempty" gorm:"column:variables_json;type:text"`
	Status        Status       `json:"status" gorm:"type:text;not null;default:'PENDING';index"`
	SentAt        *time.Time   `json:"sent_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Email) TableName() string { return "emails" }

// Attachment stores an uploaded file. It belongs either to a project,
// where it is attached to every outgoing mail of a run, or to a single
// stored email.
type Attachment struct {
	ID              snowflake.ID  `json:"id" gorm:"primaryKey"`
	ProjectID       *snowflake.ID `json:"project_id,omitempty" gorm:"column:project_id;index"`
	EmailID         *snowflake.ID `json:"email_id,omitempty" gorm:"column:email_id;index"`
	Name            string        `json:"name" gorm:"type:text;not null"`
	File            []byte        `json:"file" gorm:"type:bytea;not null"`
	FileContentType string        `json:"file_content_type" gorm:"type:text;not null"`
	Size            *int64        `json:"size,omitempty"`
	CreatedAt       time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Attachment) TableName() string { return "attachments" }
