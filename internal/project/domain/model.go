package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	emaildomain "github.com/lettermill/lettermill/internal/email/domain"
)

// Project is a mail-merge campaign: the uploaded spreadsheet, the
// address-line templates, and the message body template.
type Project struct {
	ID                     snowflake.ID       `json:"id" gorm:"primaryKey"`
	UserID                 snowflake.ID       `json:"user_id" gorm:"column:user_id;not null;index"`
	Name                   string             `json:"name" gorm:"type:text;not null"`
	Slug                   string             `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	SpreadsheetName        string             `json:"spreadsheet_name" gorm:"type:text"`
	Spreadsheet            []byte             `json:"-" gorm:"type:bytea"`
	SpreadsheetContentType string             `json:"spreadsheet_content_type" gorm:"type:text"`
	ToField                string             `json:"to_field" gorm:"column:to_field;type:text"`
	CcField                string             `json:"cc_field" gorm:"column:cc_field;type:text"`
	BccField               string             `json:"bcc_field" gorm:"column:bcc_field;type:text"`
	Header                 string             `json:"header" gorm:"type:text"`
	Content                string             `json:"content" gorm:"type:text"`
	Status                 emaildomain.Status `json:"status" gorm:"type:text;not null;default:'PENDING'"`
	SentAt                 *time.Time         `json:"sent_at,omitempty"`
	CreatedAt              time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time          `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Project) TableName() string { return "projects" }

// Heading is one column header of the project spreadsheet, kept so the
// template editor can offer the available placeholders.
type Heading struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	ProjectID snowflake.ID `json:"project_id" gorm:"column:project_id;not null;index"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Position  int          `json:"position" gorm:"not null;default:0"`
}

func (Heading) TableName() string { return "headings" }
