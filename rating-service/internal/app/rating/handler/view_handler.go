package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"peerrate/rating-service/internal/app/rating/entity"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ViewServiceInterface interface {
	MyRatingsGiven(ctx context.Context, actor entity.Actor, query entity.PageQuery) (json.RawMessage, error)
	MyRatingsReceived(ctx context.Context, actor entity.Actor, query entity.PageQuery) (json.RawMessage, error)
	UserStats(ctx context.Context, actor entity.Actor, userID int64) (json.RawMessage, error)
}

type AuditServiceInterface interface {
	List(ctx context.Context, actor entity.Actor, limit int) ([]entity.SubmissionAudit, error)
}

// ViewHandler отдает списки оценок, статистику и журнал отправок
type ViewHandler struct {
	views     ViewServiceInterface
	audit     AuditServiceInterface
	validator *validator.Validate
}

func NewViewHandler(views ViewServiceInterface, audit AuditServiceInterface) *ViewHandler {
	return &ViewHandler{
		views:     views,
		audit:     audit,
		validator: validator.New(),
	}
}

// MyRatingsGiven GET /ratings/my/given
func (h *ViewHandler) MyRatingsGiven(c *gin.Context) {
	h.page(c, h.views.MyRatingsGiven)
}

// MyRatingsReceived GET /ratings/my/received
func (h *ViewHandler) MyRatingsReceived(c *gin.Context) {
	h.page(c, h.views.MyRatingsReceived)
}

type pageLoader func(ctx context.Context, actor entity.Actor, query entity.PageQuery) (json.RawMessage, error)

func (h *ViewHandler) page(c *gin.Context, load pageLoader) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var query entity.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	if err := h.validator.Struct(query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	data, err := load(c.Request.Context(), actor, query)
	if err != nil {
		respondError(c, err)
		return
	}

	// Тело Core API отдается без изменений
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// UserStats GET /users/:id/stats
func (h *ViewHandler) UserStats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	data, err := h.views.UserStats(c.Request.Context(), actor, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// ListSubmissions GET /ratings/submissions?limit=
func (h *ViewHandler) ListSubmissions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	submissions, err := h.audit.List(c.Request.Context(), actor, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entity.SubmissionListResponse{
		Submissions: submissions,
		Total:       len(submissions),
	})
}
