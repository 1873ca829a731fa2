package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	emaildomain "github.com/lettermill/lettermill/internal/email/domain"
	"github.com/lettermill/lettermill/internal/project/domain"
	"github.com/lettermill/lettermill/internal/project/repository"
	"github.com/lettermill/lettermill/internal/spreadsheet"
	"github.com/lettermill/lettermill/pkg/db"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Project{}, &domain.Heading{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(zap.NewNop(), repository.Provide(conn), node)
}

func workbook(t *testing.T, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestCreateProject(t *testing.T) {
	svc := newTestService(t)
	userID := snowflake.ID(42)

	resp, err := svc.Create(context.Background(), userID, domain.CreateRequest{
		Name:    "Holiday Party",
		ToField: "{{email}}",
		Content: "Hi {{name}}",
	})
	require.NoError(t, err)
	require.Equal(t, "Holiday Party", resp.Name)
	require.Equal(t, "holiday-party", resp.Slug)
	require.Equal(t, emaildomain.StatusPending, resp.Status)
	require.False(t, resp.HasSpreadsheet)
}

func TestCreateProjectEmptyName(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), snowflake.ID(42), domain.CreateRequest{Name: "   "})
	require.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestCreateProjectDuplicateNameGetsUniqueSlug(t *testing.T) {
	svc := newTestService(t)
	userID := snowflake.ID(42)

	first, err := svc.Create(context.Background(), userID, domain.CreateRequest{Name: "Newsletter"})
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), userID, domain.CreateRequest{Name: "Newsletter"})
	require.NoError(t, err)
	require.NotEqual(t, first.Slug, second.Slug)
}

func TestListScopedToUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), snowflake.ID(1), domain.CreateRequest{Name: "Mine"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), snowflake.ID(2), domain.CreateRequest{Name: "Theirs"})
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), snowflake.ID(1))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "Mine", mine[0].Name)
}

func TestUpdateProjectPartial(t *testing.T) {
	svc := newTestService(t)
	userID := snowflake.ID(42)

	created, err := svc.Create(context.Background(), userID, domain.CreateRequest{
		Name:    "Original",
		Content: "Hello {{name}}",
	})
	require.NoError(t, err)

	id, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	newTo := "{{to}}"
	updated, err := svc.Update(context.Background(), id, domain.UpdateRequest{ToField: &newTo})
	require.NoError(t, err)
	require.Equal(t, "{{to}}", updated.ToField)
	require.Equal(t, "Hello {{name}}", updated.Content)
	require.Equal(t, "Original", updated.Name)
}

func TestUploadSpreadsheetRefreshesHeadings(t *testing.T) {
	svc := newTestService(t)
	userID := snowflake.ID(42)

	created, err := svc.Create(context.Background(), userID, domain.CreateRequest{Name: "Campaign"})
	require.NoError(t, err)

	id, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	data := workbook(t, [][]string{
		{"to", "name"},
		{"alice@example.com", "Alice"},
	})
	resp, err := svc.UploadSpreadsheet(context.Background(), id, domain.UploadSpreadsheetRequest{
		FileName:    "people.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	})
	require.NoError(t, err)
	require.True(t, resp.HasSpreadsheet)
	require.Equal(t, "people.xlsx", resp.SpreadsheetName)

	headings, err := svc.ListHeadings(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, headings, 2)
	require.Equal(t, "to", headings[0].Name)
	require.Equal(t, "name", headings[1].Name)

	// Re-upload replaces the heading set instead of appending.
	data = workbook(t, [][]string{
		{"email"},
		{"bob@example.com"},
	})
	_, err = svc.UploadSpreadsheet(context.Background(), id, domain.UploadSpreadsheetRequest{
		FileName: "other.xlsx",
		Data:     data,
	})
	require.NoError(t, err)

	headings, err = svc.ListHeadings(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, headings, 1)
	require.Equal(t, "email", headings[0].Name)
}

func TestUploadSpreadsheetRejectsGarbage(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.Create(context.Background(), snowflake.ID(42), domain.CreateRequest{Name: "Campaign"})
	require.NoError(t, err)

	id, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	_, err = svc.UploadSpreadsheet(context.Background(), id, domain.UploadSpreadsheetRequest{
		FileName: "bad.xlsx",
		Data:     []byte("not a workbook"),
	})
	require.ErrorIs(t, err, spreadsheet.ErrInvalidSpreadsheet)
}

func TestDeleteProject(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.Create(context.Background(), snowflake.ID(42), domain.CreateRequest{Name: "Doomed"})
	require.NoError(t, err)

	id, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), id))

	_, err = svc.Get(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
