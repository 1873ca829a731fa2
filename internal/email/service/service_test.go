package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/lettermill/lettermill/internal/email/domain"
	"github.com/lettermill/lettermill/internal/email/repository"
	"github.com/lettermill/lettermill/pkg/db"
	"github.com/lettermill/lettermill/pkg/db/pagination"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Email{}, &domain.Attachment{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(zap.NewNop(), repository.Provide(conn), repository.ProvideAttachment(conn), node)
	return svc, conn, node
}

func seedEmails(t *testing.T, conn *gorm.DB, node *snowflake.Node, projectID snowflake.ID, count int) {
	t.Helper()
	repo := repository.Provide(conn)
	for i := 0; i < count; i++ {
		require.NoError(t, repo.Create(context.Background(), &domain.Email{
			ID:           node.Generate(),
			ProjectID:    projectID,
			EmailAddress: "recipient@example.com",
			Content:      "<p>hi</p>",
			Status:       domain.StatusSent,
		}))
	}
}

func TestListByProjectPaginates(t *testing.T) {
	svc, conn, node := newTestService(t)
	projectID := node.Generate()
	seedEmails(t, conn, node, projectID, 7)

	first, err := svc.ListByProject(context.Background(), projectID, pagination.Pagination{PageSize: 3})
	require.NoError(t, err)
	require.Len(t, first.Emails, 3)
	require.True(t, first.PageInfo.HasMore)
	require.NotEmpty(t, first.PageInfo.NextPageToken)

	second, err := svc.ListByProject(context.Background(), projectID, pagination.Pagination{
		PageSize:  3,
		PageToken: first.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, second.Emails, 3)
	require.True(t, second.PageInfo.HasMore)

	third, err := svc.ListByProject(context.Background(), projectID, pagination.Pagination{
		PageSize:  3,
		PageToken: second.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, third.Emails, 1)
	require.False(t, third.PageInfo.HasMore)
	require.Empty(t, third.PageInfo.NextPageToken)

	seen := map[string]bool{}
	for _, page := range [][]domain.EmailResponse{first.Emails, second.Emails, third.Emails} {
		for _, email := range page {
			require.False(t, seen[email.ID], "email %s returned twice", email.ID)
			seen[email.ID] = true
		}
	}
	require.Len(t, seen, 7)
}

func TestListByProjectRejectsGarbageToken(t *testing.T) {
	svc, _, node := newTestService(t)

	_, err := svc.ListByProject(context.Background(), node.Generate(), pagination.Pagination{PageToken: "not-base64!"})
	require.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestListByProjectScopesToProject(t *testing.T) {
	svc, conn, node := newTestService(t)
	projectA := node.Generate()
	projectB := node.Generate()
	seedEmails(t, conn, node, projectA, 2)
	seedEmails(t, conn, node, projectB, 1)

	page, err := svc.ListByProject(context.Background(), projectA, pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, page.Emails, 2)
}

func TestCreateAttachmentValidation(t *testing.T) {
	svc, _, node := newTestService(t)
	projectID := node.Generate()

	_, err := svc.CreateAttachment(context.Background(), domain.CreateAttachmentRequest{
		ProjectID:       &projectID,
		Name:            "",
		File:            []byte("x"),
		FileContentType: "text/plain",
	})
	require.ErrorIs(t, err, domain.ErrInvalidAttachment)

	_, err = svc.CreateAttachment(context.Background(), domain.CreateAttachmentRequest{
		Name:            "orphan.txt",
		File:            []byte("x"),
		FileContentType: "text/plain",
	})
	require.ErrorIs(t, err, domain.ErrInvalidAttachment)

	created, err := svc.CreateAttachment(context.Background(), domain.CreateAttachmentRequest{
		ProjectID:       &projectID,
		Name:            "ok.txt",
		File:            []byte("payload"),
		FileContentType: "text/plain",
	})
	require.NoError(t, err)
	require.NotNil(t, created.Size)
	require.Equal(t, int64(7), *created.Size)
}

func TestDeleteMissingEmail(t *testing.T) {
	svc, _, node := newTestService(t)

	err := svc.Delete(context.Background(), node.Generate())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
