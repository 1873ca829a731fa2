package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	projectdomain "github.com/lettermill/lettermill/internal/project/domain"
	"github.com/lettermill/lettermill/pkg/db/pagination"
)

func idParam(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	if raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ownedProject loads the project and checks it belongs to the caller.
func (s *Server) ownedProject(c *gin.Context) (*projectdomain.Project, bool) {
	userID, ok := s.currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return nil, false
	}

	id, ok := idParam(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return nil, false
	}

	model, err := s.projectSvc.GetModel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if model.UserID != userID {
		AbortWithError(c, projectdomain.ErrNotFound)
		return nil, false
	}
	return model, true
}

func (s *Server) ListProjects(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	projects, err := s.projectSvc.List(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) CreateProject(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req projectdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	project, err := s.projectSvc.Create(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

func (s *Server) GetProjectByID(c *gin.Context) {
	model, ok := s.ownedProject(c)
	if !ok {
		return
	}

	project, err := s.projectSvc.Get(c.Request.Context(), model.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

func (s *Server) UpdateProject(c *gin.Context) {
	model, ok := s.ownedProject(c)
	if !ok {
		return
	}

	var req projectdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	project, err := s.projectSvc.Update(c.Request.Context(), model.ID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

func (s *Server) DeleteProject(c *gin.Context) {
	model, ok := s.ownedProject(c)
	if !ok {
		return
	}

	if err := s.projectSvc.Delete(c.Request.Context(), model.ID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadProjectSpreadsheet stores the uploaded workbook on the project
// and refreshes its headings from the header row.
func (s *Server) UploadProjectSpreadsheet(c *gin.Context) {
	model, ok := s.ownedProject(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "spreadsheet file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	project, err := s.projectSvc.UploadSpreadsheet(c.Request.Context(), model.ID, projectdomain.UploadSpreadsheetRequest{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

func (s *Server) ListProjectHeadings(c *gin.Context) {
	model, ok := s.ownedProject(c)
	if !ok {
		return
	}

	headings, err := s.projectSvc.ListHeadings(c.Request.Context(), model.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"headings": headings})
}

func (s *Server) ListProjectEmails(c *gin.Context) {
	model, ok := s.ownedProject(c)
	if !ok {
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	emails, err := s.emailSvc.ListByProject(c.Request.Context(), model.ID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, emails)
}

func (s *Server) ListProjectAttachments(c *gin.Context) {
	model, ok := s.ownedProject(c)
	if !ok {
		return
	}

	attachments, err := s.emailSvc.ListAttachmentsByProject(c.Request.Context(), model.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attachments": attachments})
}
