package handler

import (
	"context"
	"net/http"

	"peerrate/rating-service/internal/app/rating/entity"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type CategoryResolverInterface interface {
	Resolve(ctx context.Context, actor entity.Actor, rc entity.RoleContext) ([]string, error)
}

type EligibilityCheckerInterface interface {
	Check(ctx context.Context, actor entity.Actor, rateeID int64, rc entity.RoleContext) (*entity.EligibilityResult, error)
}

type SessionServiceInterface interface {
	Start(ctx context.Context, actor entity.Actor, req *entity.StartSessionRequest) (*entity.SessionResponse, error)
	Get(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.SessionResponse, error)
	SetScore(ctx context.Context, actor entity.Actor, id uuid.UUID, req *entity.SetScoreRequest) (*entity.SessionResponse, error)
	UpdateDetails(ctx context.Context, actor entity.Actor, id uuid.UUID, req *entity.UpdateDetailsRequest) (*entity.SessionResponse, error)
	Submit(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.SubmitResponse, error)
	Cancel(ctx context.Context, actor entity.Actor, id uuid.UUID) error
}

// RatingHandler обрабатывает сессии оценки: категории, проверку права и отправку
type RatingHandler struct {
	categories  CategoryResolverInterface
	eligibility EligibilityCheckerInterface
	sessions    SessionServiceInterface
	validator   *validator.Validate
}

func NewRatingHandler(
	categories CategoryResolverInterface,
	eligibility EligibilityCheckerInterface,
	sessions SessionServiceInterface,
) *RatingHandler {
	return &RatingHandler{
		categories:  categories,
		eligibility: eligibility,
		sessions:    sessions,
		validator:   validator.New(),
	}
}

// GetCategories GET /ratings/categories?role_context=
func (h *RatingHandler) GetCategories(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var rc entity.RoleContext
	if raw := c.Query("role_context"); raw != "" {
		parsed, err := entity.ParseRoleContext(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		rc = parsed
	} else {
		// Без параметра берем единственный контекст, доступный роли пользователя
		parsed, ok := actor.Role.RaterContext()
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role_context is required"})
			return
		}
		rc = parsed
	}

	categories, err := h.categories.Resolve(c.Request.Context(), actor, rc)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entity.CategoriesResponse{
		RoleContext: rc,
		Categories:  categories,
	})
}

// CheckEligibility POST /ratings/eligibility
func (h *RatingHandler) CheckEligibility(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req entity.EligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	result, err := h.eligibility.Check(c.Request.Context(), actor, req.RateeID, entity.RoleContext(req.RoleContext))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// StartSession POST /ratings/sessions
func (h *RatingHandler) StartSession(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req entity.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	session, err := h.sessions.Start(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession GET /ratings/sessions/:id
func (h *RatingHandler) GetSession(c *gin.Context) {
	actor, id, ok := h.sessionParams(c)
	if !ok {
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// SetScore PUT /ratings/sessions/:id/scores
func (h *RatingHandler) SetScore(c *gin.Context) {
	actor, id, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req entity.SetScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// Диапазон оценки проверяет сервис, чтобы вернуть ошибку по категории
	session, err := h.sessions.SetScore(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// UpdateDetails PATCH /ratings/sessions/:id
func (h *RatingHandler) UpdateDetails(c *gin.Context) {
	actor, id, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req entity.UpdateDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	session, err := h.sessions.UpdateDetails(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// SubmitSession POST /ratings/sessions/:id/submit
func (h *RatingHandler) SubmitSession(c *gin.Context) {
	actor, id, ok := h.sessionParams(c)
	if !ok {
		return
	}

	result, err := h.sessions.Submit(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// CancelSession DELETE /ratings/sessions/:id
func (h *RatingHandler) CancelSession(c *gin.Context) {
	actor, id, ok := h.sessionParams(c)
	if !ok {
		return
	}

	if err := h.sessions.Cancel(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entity.SuccessResponse{
		Message: "Rating session cancelled",
	})
}

func (h *RatingHandler) sessionParams(c *gin.Context) (entity.Actor, uuid.UUID, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return entity.Actor{}, uuid.Nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return entity.Actor{}, uuid.Nil, false
	}

	return actor, id, true
}
