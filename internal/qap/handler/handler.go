package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/solacepv/qapflow/internal/middleware"
	"github.com/solacepv/qapflow/internal/qap/entity"
	"github.com/solacepv/qapflow/internal/qap/repository"
	"github.com/solacepv/qapflow/internal/qap/service"
	"github.com/solacepv/qapflow/internal/qap/workflow"
)

// Handlers bundles the QAP module's HTTP handlers.
type Handlers struct {
	Auth   *AuthHandler
	QAP    *QAPHandler
	Review *ReviewHandler
	Upload *UploadHandler
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Auth:   NewAuthHandler(services.Auth),
		QAP:    NewQAPHandler(services.QAP, services.Notification),
		Review: NewReviewHandler(services.Review),
		Upload: NewUploadHandler(services.Attachment),
	}
}

// === response helpers ===
// Business codes are five digits; the first three are the HTTP status.

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// HandleServiceError maps the service error taxonomy onto HTTP responses.
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, workflow.ErrUnauthorized):
		Forbidden(c, err.Error())
	case errors.Is(err, workflow.ErrPrecondition):
		Conflict(c, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, "qap not found")
	default:
		InternalError(c, "internal server error")
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextKeyUserID)
}

func GetUsername(c *gin.Context) string {
	return c.GetString(middleware.ContextKeyUsername)
}

// GetActor assembles the workflow actor from the JWT claims.
func GetActor(c *gin.Context) service.Actor {
	return service.Actor{
		Username: c.GetString(middleware.ContextKeyUsername),
		Role:     entity.Role(c.GetString(middleware.ContextKeyRole)),
		Plants:   entity.ParsePlantList(c.GetString(middleware.ContextKeyPlants)),
	}
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}
