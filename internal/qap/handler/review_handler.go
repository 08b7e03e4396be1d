package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/solacepv/qapflow/internal/qap/service"
)

// ReviewHandler serves the workflow transition endpoints.
type ReviewHandler struct {
	reviewSvc *service.ReviewService
}

func NewReviewHandler(reviewSvc *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewSvc: reviewSvc}
}

// SubmitLevelResponse handles POST /api/v1/qaps/:id/levels/:level/response.
func (h *ReviewHandler) SubmitLevelResponse(c *gin.Context) {
	id, ok := qapIDParam(c)
	if !ok {
		return
	}
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		BadRequest(c, "invalid level")
		return
	}

	var in service.LevelResponseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	qap, err := h.reviewSvc.SubmitLevelResponse(c.Request.Context(), id, level, GetActor(c), in)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, qap)
}

// SubmitFinalComments handles POST /api/v1/qaps/:id/final-comments.
func (h *ReviewHandler) SubmitFinalComments(c *gin.Context) {
	id, ok := qapIDParam(c)
	if !ok {
		return
	}

	var in service.FinalCommentsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	qap, err := h.reviewSvc.SubmitFinalComments(c.Request.Context(), id, GetActor(c), in)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, qap)
}

type decisionInput struct {
	Feedback string `json:"feedback"`
}

// Approve handles POST /api/v1/qaps/:id/approve.
func (h *ReviewHandler) Approve(c *gin.Context) {
	id, ok := qapIDParam(c)
	if !ok {
		return
	}

	var in decisionInput
	if err := c.ShouldBindJSON(&in); err != nil && err.Error() != "EOF" {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	qap, err := h.reviewSvc.Approve(c.Request.Context(), id, GetActor(c), in.Feedback)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, qap)
}

// Reject handles POST /api/v1/qaps/:id/reject.
func (h *ReviewHandler) Reject(c *gin.Context) {
	id, ok := qapIDParam(c)
	if !ok {
		return
	}

	var in decisionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	qap, err := h.reviewSvc.Reject(c.Request.Context(), id, GetActor(c), in.Feedback)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, qap)
}
