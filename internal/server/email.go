package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	emaildomain "github.com/lettermill/lettermill/internal/email/domain"
)

func (s *Server) GetEmailByID(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	email, err := s.emailSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, email)
}

func (s *Server) DeleteEmail(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.emailSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateAttachment accepts a multipart upload. The file can belong to a
// project ("project_id" form value), an email ("email_id"), or neither.
func (s *Server) CreateAttachment(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "attachment file is required"))
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

	req := emaildomain.CreateAttachmentRequest{
		Name:            fileHeader.Filename,
		File:            data,
		FileContentType: fileHeader.Header.Get("Content-Type"),
	}

	if raw := strings.TrimSpace(c.PostForm("project_id")); raw != "" {
		projectID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("project_id", "invalid", "project_id is not a valid id"))
			return
		}
		req.ProjectID = &projectID
	}
	if raw := strings.TrimSpace(c.PostForm("email_id")); raw != "" {
		emailID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("email_id", "invalid", "email_id is not a valid id"))
			return
		}
		req.EmailID = &emailID
	}

	attachment, err := s.emailSvc.CreateAttachment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attachment)
}

func (s *Server) DownloadAttachment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	attachment, err := s.emailSvc.GetAttachment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	contentType := attachment.FileContentType
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Disposition", `attachment; filename="`+attachment.Name+`"`)
	c.Data(http.StatusOK, contentType, attachment.File)
}

func (s *Server) DeleteAttachment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.emailSvc.DeleteAttachment(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
