package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	mergedomain "github.com/lettermill/lettermill/internal/merge/domain"
	projectdomain "github.com/lettermill/lettermill/internal/project/domain"
)

// mergeSendRequest is the batch and test-send payload. Binary fields
// arrive base64 encoded, which encoding/json decodes into []byte.
type mergeSendRequest struct {
	ProjectID string `json:"project_id"`

	SubjectTemplate string `json:"subject_template"`
	BodyTemplate    string `json:"body_template"`
	ToTemplate      string `json:"to_template"`
	CcTemplate      string `json:"cc_template"`
	BccTemplate     string `json:"bcc_template"`

	Spreadsheet            []byte `json:"spreadsheet"`
	SpreadsheetContentType string `json:"spreadsheet_content_type"`

	Attachments  []mergeAttachment  `json:"attachments"`
	InlineImages []mergeInlineImage `json:"inline_images"`
}

type mergeAttachment struct {
	Name            string `json:"name"`
	FileContentType string `json:"file_content_type"`
	File            []byte `json:"file"`
}

type mergeInlineImage struct {
	CID             string `json:"cid"`
	Name            string `json:"name"`
	FileContentType string `json:"file_content_type"`
	File            []byte `json:"file"`
}

func (s *Server) SendMailMerge(c *gin.Context) {
	userID, req, ok := s.buildRunRequest(c)
	if !ok {
		return
	}

	if err := s.mergeSvc.Run(c.Request.Context(), userID, req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) TestSendMailMerge(c *gin.Context) {
	userID, req, ok := s.buildRunRequest(c)
	if !ok {
		return
	}

	if err := s.mergeSvc.RunTest(c.Request.Context(), userID, req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// PingMail sends a minimal hardcoded message to the caller to verify
// the mail provider is reachable.
func (s *Server) PingMail(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.mergeSvc.Ping(c.Request.Context(), userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) buildRunRequest(c *gin.Context) (snowflake.ID, mergedomain.RunRequest, bool) {
	userID, ok := s.currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return 0, mergedomain.RunRequest{}, false
	}

	var body mergeSendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return 0, mergedomain.RunRequest{}, false
	}

	req := mergedomain.RunRequest{
		SubjectTemplate:        body.SubjectTemplate,
		BodyTemplate:           body.BodyTemplate,
		ToTemplate:             body.ToTemplate,
		CcTemplate:             body.CcTemplate,
		BccTemplate:            body.BccTemplate,
		Spreadsheet:            body.Spreadsheet,
		SpreadsheetContentType: body.SpreadsheetContentType,
	}

	for _, att := range body.Attachments {
		req.Attachments = append(req.Attachments, mergedomain.AttachmentRef{
			Name:        att.Name,
			ContentType: att.FileContentType,
			Data:        att.File,
		})
	}
	for _, img := range body.InlineImages {
		req.InlineImages = append(req.InlineImages, mergedomain.InlineImageRef{
			CID:         img.CID,
			Name:        img.Name,
			ContentType: img.FileContentType,
			Data:        img.File,
		})
	}

	if raw := strings.TrimSpace(body.ProjectID); raw != "" {
		projectID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("project_id", "invalid", "project_id is not a valid id"))
			return 0, mergedomain.RunRequest{}, false
		}

		model, err := s.projectSvc.GetModel(c.Request.Context(), projectID)
		if err != nil {
			AbortWithError(c, err)
			return 0, mergedomain.RunRequest{}, false
		}
		if model.UserID != userID {
			AbortWithError(c, projectdomain.ErrNotFound)
			return 0, mergedomain.RunRequest{}, false
		}

		req.ProjectID = &projectID
		fillFromProject(&req, model)
	}

	if len(req.Spreadsheet) == 0 {
		AbortWithError(c, newValidationError("spreadsheet", "required", "spreadsheet is required"))
		return 0, mergedomain.RunRequest{}, false
	}

	return userID, req, true
}

// fillFromProject substitutes the project's stored spreadsheet and
// saved fields for anything the request left empty.
func fillFromProject(req *mergedomain.RunRequest, model *projectdomain.Project) {
	if len(req.Spreadsheet) == 0 {
		req.Spreadsheet = model.Spreadsheet
		req.SpreadsheetContentType = model.SpreadsheetContentType
	}
	if req.SubjectTemplate == "" {
		req.SubjectTemplate = model.Header
	}
	if req.BodyTemplate == "" {
		req.BodyTemplate = model.Content
	}
	if req.ToTemplate == "" && model.ToField != "" {
		req.ToTemplate = "{{" + model.ToField + "}}"
	}
	if req.CcTemplate == "" && model.CcField != "" {
		req.CcTemplate = "{{" + model.CcField + "}}"
	}
	if req.BccTemplate == "" && model.BccField != "" {
		req.BccTemplate = "{{" + model.BccField + "}}"
	}
}
