package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/solacepv/qapflow/internal/middleware"
	"github.com/solacepv/qapflow/internal/sales/repository"
	"github.com/solacepv/qapflow/internal/sales/service"
)

// SalesHandler serves order intake and the BOM dropdown endpoints. Response
// envelope matches the QAP module's.
type SalesHandler struct {
	salesSvc *service.SalesService
}

func NewSalesHandler(salesSvc *service.SalesService) *SalesHandler {
	return &SalesHandler{salesSvc: salesSvc}
}

type response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, response{Code: 0, Message: "success", Data: data})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(400, response{Code: 40000, Message: err.Error()})
	case errors.Is(err, service.ErrPrecondition):
		c.JSON(409, response{Code: 40900, Message: err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(404, response{Code: 40400, Message: "sales request not found"})
	default:
		c.JSON(500, response{Code: 50000, Message: "internal server error"})
	}
}

func username(c *gin.Context) string {
	return c.GetString(middleware.ContextKeyUsername)
}

// Create handles POST /api/v1/sales-requests.
func (h *SalesHandler) Create(c *gin.Context) {
	var in service.CreateSalesRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, response{Code: 40000, Message: "invalid request body: " + err.Error()})
		return
	}

	req, err := h.salesSvc.Create(c.Request.Context(), username(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, 201, req)
}

// Get handles GET /api/v1/sales-requests/:id.
func (h *SalesHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(400, response{Code: 40000, Message: "invalid sales request id"})
		return
	}

	req, err := h.salesSvc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, 200, req)
}

// List handles GET /api/v1/sales-requests.
func (h *SalesHandler) List(c *gin.Context) {
	page, pageSize := 1, 20
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(c.Query("page_size")); err == nil && ps > 0 && ps <= 100 {
		pageSize = ps
	}

	createdBy := ""
	if c.Query("mine") == "true" {
		createdBy = username(c)
	}

	reqs, total, err := h.salesSvc.List(c.Request.Context(), c.Query("status"), createdBy, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, 200, gin.H{
		"items": reqs,
		"total": total,
	})
}

// Submit handles POST /api/v1/sales-requests/:id/submit.
func (h *SalesHandler) Submit(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(400, response{Code: 40000, Message: "invalid sales request id"})
		return
	}

	var in struct {
		BOMSelections map[string]string `json:"bom_selections"`
	}
	if err := c.ShouldBindJSON(&in); err != nil && err.Error() != "EOF" {
		c.JSON(400, response{Code: 40000, Message: "invalid request body: " + err.Error()})
		return
	}

	req, err := h.salesSvc.Submit(c.Request.Context(), id, username(c), in.BOMSelections)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, 200, req)
}

// BOMOptions handles GET /api/v1/bom/options.
func (h *SalesHandler) BOMOptions(c *gin.Context) {
	options, err := h.salesSvc.BOMOptions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, 200, options)
}
