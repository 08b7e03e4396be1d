package handler

import (
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/solacepv/qapflow/internal/qap/service"
)

// 20MB covers the largest signed-off QAP PDFs seen so far.
const maxUploadSize = 20 << 20

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".doc":  true,
	".docx": true,
}

// UploadHandler stores final-comments attachments.
type UploadHandler struct {
	attachmentSvc *service.AttachmentService
}

func NewUploadHandler(attachmentSvc *service.AttachmentService) *UploadHandler {
	return &UploadHandler{attachmentSvc: attachmentSvc}
}

// Upload handles POST /api/v1/uploads (multipart, field "file").
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}
	if fileHeader.Size > maxUploadSize {
		BadRequest(c, "file exceeds the 20MB limit")
		return
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedExtensions[ext] {
		BadRequest(c, "unsupported file type "+ext)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "failed to read upload")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	objectName, downloadURL, err := h.attachmentSvc.Upload(
		c.Request.Context(), fileHeader.Filename, file, fileHeader.Size, contentType)
	if err != nil {
		InternalError(c, "failed to store attachment")
		return
	}

	Created(c, gin.H{
		"object_name":  objectName,
		"download_url": downloadURL,
		"filename":     fileHeader.Filename,
		"size":         fileHeader.Size,
	})
}
