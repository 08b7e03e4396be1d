package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/solacepv/qapflow/internal/qap/entity"
	"github.com/solacepv/qapflow/internal/qap/service"
)

// QAPHandler serves the aggregate lifecycle endpoints.
type QAPHandler struct {
	qapSvc   *service.QAPService
	notifSvc *service.NotificationService
}

func NewQAPHandler(qapSvc *service.QAPService, notifSvc *service.NotificationService) *QAPHandler {
	return &QAPHandler{qapSvc: qapSvc, notifSvc: notifSvc}
}

func qapIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		BadRequest(c, "invalid qap id")
		return "", false
	}
	return id, true
}

// Create handles POST /api/v1/qaps.
func (h *QAPHandler) Create(c *gin.Context) {
	var in service.CreateQAPInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	qap, err := h.qapSvc.CreateQAP(c.Request.Context(), GetUsername(c), in)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, qap)
}

// Get handles GET /api/v1/qaps/:id.
func (h *QAPHandler) Get(c *gin.Context) {
	id, ok := qapIDParam(c)
	if !ok {
		return
	}

	detail, err := h.qapSvc.GetQAP(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, detail)
}

// List handles GET /api/v1/qaps with status/mine filters.
func (h *QAPHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	status := entity.Status(c.Query("status"))

	submittedBy := ""
	if c.Query("mine") == "true" {
		submittedBy = GetUsername(c)
	}

	qaps, total, err := h.qapSvc.List(c.Request.Context(), status, submittedBy, page, pageSize)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: qaps,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// ListForReview handles GET /api/v1/qaps/for-review: the caller's queue.
func (h *QAPHandler) ListForReview(c *gin.Context) {
	actor := GetActor(c)
	qaps, err := h.qapSvc.ListForReview(c.Request.Context(), actor.Username, actor.Role, actor.Plants)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, qaps)
}

// Delete handles DELETE /api/v1/qaps/:id. Route middleware restricts it to
// admin.
func (h *QAPHandler) Delete(c *gin.Context) {
	id, ok := qapIDParam(c)
	if !ok {
		return
	}

	if err := h.qapSvc.Delete(c.Request.Context(), id); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, gin.H{"id": id})
}

// Share handles POST /api/v1/qaps/:id/share: emails a read link.
func (h *QAPHandler) Share(c *gin.Context) {
	id, ok := qapIDParam(c)
	if !ok {
		return
	}

	var in struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	detail, err := h.qapSvc.GetQAP(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	if err := h.notifSvc.Share(c.Request.Context(), detail.QAP, in.Email, GetUsername(c)); err != nil {
		InternalError(c, "failed to send share email")
		return
	}
	Success(c, gin.H{"shared_with": in.Email})
}
