package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/lettermill/lettermill/internal/email/domain"
	"github.com/lettermill/lettermill/pkg/db/pagination"
	"go.uber.org/zap"
)

type service struct {
	log         *zap.Logger
	repo        domain.Repository
	attachments domain.AttachmentRepository
	genID       *snowflake.Node
}

func New(log *zap.Logger, repo domain.Repository, attachments domain.AttachmentRepository, genID *snowflake.Node) domain.Service {
	return &service{
		log:         log.Named("email.service"),
		repo:        repo,
		attachments: attachments,
		genID:       genID,
	}
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*domain.EmailResponse, error) {
	email, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toEmailResponse(*email)
	return &resp, nil
}

func (s *service) ListByProject(ctx context.Context, projectID snowflake.ID, page pagination.Pagination) (*domain.EmailPage, error) {
	var afterID snowflake.ID
	if token := strings.TrimSpace(page.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		afterID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
	}

	limit := page.Limit()
	emails, err := s.repo.ListByProject(ctx, projectID, afterID, limit+1)
	if err != nil {
		return nil, err
	}

	emails, pageInfo, err := pagination.BuildPageInfo(emails, limit, func(email domain.Email) string {
		return email.ID.String()
	})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.EmailResponse, 0, len(emails))
	for _, email := range emails {
		resp = append(resp, toEmailResponse(email))
	}
	return &domain.EmailPage{Emails: resp, PageInfo: pageInfo}, nil
}

func (s *service) Delete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) CreateAttachment(ctx context.Context, req domain.CreateAttachmentRequest) (*domain.AttachmentResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(req.File) == 0 || strings.TrimSpace(req.FileContentType) == "" {
		return nil, domain.ErrInvalidAttachment
	}
	if req.ProjectID == nil && req.EmailID == nil {
		return nil, domain.ErrInvalidAttachment
	}

	size := int64(len(req.File))
	attachment := &domain.Attachment{
		ID:              s.genID.Generate(),
		ProjectID:       req.ProjectID,
		EmailID:         req.EmailID,
		Name:            name,
		File:            req.File,
		FileContentType: strings.TrimSpace(req.FileContentType),
		Size:            &size,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		return nil, err
	}
	resp := toAttachmentResponse(*attachment)
	return &resp, nil
}

func (s *service) GetAttachment(ctx context.Context, id snowflake.ID) (*domain.Attachment, error) {
	return s.attachments.FindByID(ctx, id)
}

func (s *service) ListAttachmentsByProject(ctx context.Context, projectID snowflake.ID) ([]domain.AttachmentResponse, error) {
	attachments, err := s.attachments.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.AttachmentResponse, 0, len(attachments))
	for _, attachment := range attachments {
		resp = append(resp, toAttachmentResponse(attachment))
	}
	return resp, nil
}

func (s *service) DeleteAttachment(ctx context.Context, id snowflake.ID) error {
	if _, err := s.attachments.FindByID(ctx, id); err != nil {
		return err
	}
	return s.attachments.Delete(ctx, id)
}

func toEmailResponse(email domain.Email) domain.EmailResponse {
	return domain.EmailResponse{
		ID:            email.ID.String(),
		ProjectID:     email.ProjectID.String(),
		EmailAddress:  email.EmailAddress,
		Content:       email.Content,
		VariablesJSON: email.VariablesJSON,
		Status:        email.Status,
		SentAt:        email.SentAt,
		CreatedAt:     email.CreatedAt,
	}
}

func toAttachmentResponse(attachment domain.Attachment) domain.AttachmentResponse {
	resp := domain.AttachmentResponse{
		ID:              attachment.ID.String(),
		Name:            attachment.Name,
		FileContentType: attachment.FileContentType,
		Size:            attachment.Size,
		CreatedAt:       attachment.CreatedAt,
	}
	if attachment.ProjectID != nil {
		id := attachment.ProjectID.String()
		resp.ProjectID = &id
	}
	if attachment.EmailID != nil {
		id := attachment.EmailID.String()
		resp.EmailID = &id
	}
	return resp
}
