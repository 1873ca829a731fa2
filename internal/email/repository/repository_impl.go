package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lettermill/lettermill/internal/email/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, email *domain.Email) error {
	return r.db.WithContext(ctx).Create(email).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Email, error) {
	var email domain.Email
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &email, nil
}

func (r *repo) ListByProject(ctx context.Context, projectID, afterID snowflake.ID, limit int) ([]domain.Email, error) {
	query := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("id asc")
	if afterID > 0 {
		query = query.Where("id > ?", afterID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var emails []domain.Email
	if err := query.Find(&emails).Error; err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *repo) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.Status, sentAt *time.Time) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if sentAt != nil {
		updates["sent_at"] = *sentAt
	}
	return r.db.WithContext(ctx).
		Model(&domain.Email{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repo) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Email{}).Error
}

type attachmentRepo struct {
	db *gorm.DB
}

func ProvideAttachment(db *gorm.DB) domain.AttachmentRepository {
	return &attachmentRepo{db: db}
}

func (r *attachmentRepo) Create(ctx context.Context, attachment *domain.Attachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

func (r *attachmentRepo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Attachment, error) {
	var attachment domain.Attachment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAttachmentMissing
		}
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepo) ListByProject(ctx context.Context, projectID snowflake.ID) ([]domain.Attachment, error) {
	var attachments []domain.Attachment
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at asc, id asc").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *attachmentRepo) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Attachment{}).Error
}
