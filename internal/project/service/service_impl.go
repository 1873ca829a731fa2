package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	emaildomain "github.com/lettermill/lettermill/internal/email/domain"
	"github.com/lettermill/lettermill/internal/project/domain"
	"github.com/lettermill/lettermill/internal/spreadsheet"
	"github.com/lettermill/lettermill/pkg/db"
	"go.uber.org/zap"
)

type service struct {
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

func New(log *zap.Logger, repo domain.Repository, genID *snowflake.Node) domain.Service {
	return &service{
		log:   log.Named("project.service"),
		repo:  repo,
		genID: genID,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	project := &domain.Project{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Name:      name,
		Slug:      slug.Make(name),
		ToField:   req.ToField,
		CcField:   req.CcField,
		BccField:  req.BccField,
		Header:    req.Header,
		Content:   req.Content,
		Status:    emaildomain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, project); err != nil {
		if db.IsDuplicateKeyErr(err) {
			project.Slug = fmt.Sprintf("%s-%s", project.Slug, strings.ToLower(project.ID.Base36()))
			if err := s.repo.Create(ctx, project); err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	resp := toResponse(*project)
	return &resp, nil
}

func (s *service) List(ctx context.Context, userID snowflake.ID) ([]domain.Response, error) {
	projects, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(projects))
	for _, project := range projects {
		resp = append(resp, toResponse(project))
	}
	return resp, nil
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*domain.Response, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(*project)
	return &resp, nil
}

func (s *service) GetModel(ctx context.Context, id snowflake.ID) (*domain.Project, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateRequest) (*domain.Response, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		project.Name = name
	}
	if req.ToField != nil {
		project.ToField = *req.ToField
	}
	if req.CcField != nil {
		project.CcField = *req.CcField
	}
	if req.BccField != nil {
		project.BccField = *req.BccField
	}
	if req.Header != nil {
		project.Header = *req.Header
	}
	if req.Content != nil {
		project.Content = *req.Content
	}
	project.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}

	resp := toResponse(*project)
	return &resp, nil
}

func (s *service) Delete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) UploadSpreadsheet(ctx context.Context, id snowflake.ID, req domain.UploadSpreadsheetRequest) (*domain.Response, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sheet, err := spreadsheet.Parse(req.Data, req.ContentType)
	if err != nil {
		return nil, err
	}

	project.Spreadsheet = req.Data
	project.SpreadsheetName = strings.TrimSpace(req.FileName)
	project.SpreadsheetContentType = strings.TrimSpace(req.ContentType)
	project.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}

	headings := make([]domain.Heading, 0, len(sheet.Headers))
	for i, name := range sheet.Headers {
		if name == "" {
			continue
		}
		headings = append(headings, domain.Heading{
			ID:        s.genID.Generate(),
			ProjectID: project.ID,
			Name:      name,
			Position:  i,
		})
	}
	if err := s.repo.ReplaceHeadings(ctx, project.ID, headings); err != nil {
		return nil, err
	}

	s.log.Info("spreadsheet uploaded",
		zap.String("project_id", project.ID.String()),
		zap.Int("headings", len(headings)),
		zap.Int("rows", len(sheet.Rows)),
	)

	resp := toResponse(*project)
	return &resp, nil
}

func (s *service) ListHeadings(ctx context.Context, id snowflake.ID) ([]domain.HeadingResponse, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	headings, err := s.repo.ListHeadings(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.HeadingResponse, 0, len(headings))
	for _, heading := range headings {
		resp = append(resp, domain.HeadingResponse{
			ID:       heading.ID.String(),
			Name:     heading.Name,
			Position: heading.Position,
		})
	}
	return resp, nil
}

func (s *service) MarkSent(ctx context.Context, id snowflake.ID, status emaildomain.Status, sentAt time.Time) error {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	project.Status = status
	project.SentAt = &sentAt
	project.UpdatedAt = time.Now().UTC()
	return s.repo.Update(ctx, project)
}

func toResponse(project domain.Project) domain.Response {
	return domain.Response{
		ID:                     project.ID.String(),
		UserID:                 project.UserID.String(),
		Name:                   project.Name,
		Slug:                   project.Slug,
		SpreadsheetName:        project.SpreadsheetName,
		SpreadsheetContentType: project.SpreadsheetContentType,
		HasSpreadsheet:         len(project.Spreadsheet) > 0,
		ToField:                project.ToField,
		CcField:                project.CcField,
		BccField:               project.BccField,
		Header:                 project.Header,
		Content:                project.Content,
		Status:                 project.Status,
		SentAt:                 project.SentAt,
		CreatedAt:              project.CreatedAt,
		UpdatedAt:              project.UpdatedAt,
	}
}
