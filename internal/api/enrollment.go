package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atelierhq/atelier/internal/enrollment"
	"github.com/atelierhq/atelier/internal/identity"
)

// EnrollmentHandler handles standalone enrollment applications: the public
// submission form and the admin review queue.
type EnrollmentHandler struct {
	enrollments *enrollment.Service
	logger      *zap.Logger
}

func NewEnrollmentHandler(enrollmentSvc *enrollment.Service, logger *zap.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollmentSvc, logger: logger}
}

// Register mounts the enrollment routes. Submission is public; review
// requires an admin session.
func (h *EnrollmentHandler) Register(rg *gin.RouterGroup, gate, adminGate gin.HandlerFunc) {
	rg.POST("/enrollments", h.Submit)

	review := rg.Group("/enrollments", gate, adminGate)
	{
		review.GET("", h.List)
		review.PATCH("/:id", h.UpdateStatus)
	}
}

type submitEnrollmentRequest struct {
	Name            string   `json:"name"  binding:"required"`
	Email           string   `json:"email" binding:"required,email"`
	Phone           string   `json:"phone"`
	ExperienceLevel string   `json:"experienceLevel"`
	Interests       []string `json:"interests"`
	Message         string   `json:"message"`
}

type updateEnrollmentRequest struct {
	Status string `json:"status" binding:"required"`
}

// Submit handles POST /enrollments — a public application to join.
func (h *EnrollmentHandler) Submit(c *gin.Context) {
	var req submitEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := h.enrollments.Submit(c.Request.Context(), enrollment.SubmitInput{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		ExperienceLevel: req.ExperienceLevel,
		Interests:       req.Interests,
		Message:         req.Message,
	})
	if err != nil {
		if errors.Is(err, enrollment.ErrMissingFields) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("submit enrollment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"enrollment": app,
		"message":    "Application received — we'll email you once it has been reviewed.",
	})
}

// List handles GET /enrollments — the admin review queue, optionally
// filtered with ?status=pending.
func (h *EnrollmentHandler) List(c *gin.Context) {
	status := enrollment.Status(c.Query("status"))
	apps, err := h.enrollments.List(c.Request.Context(), status)
	if err != nil {
		if errors.Is(err, enrollment.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
			return
		}
		h.logger.Error("list enrollments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": apps, "count": len(apps)})
}

// UpdateStatus handles PATCH /enrollments/:id — approve or reject.
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid enrollment id"})
		return
	}
	var req updateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := identity.AccountFromCtx(c)
	app, err := h.enrollments.UpdateStatus(c.Request.Context(), id, enrollment.Status(req.Status), actor.ID)
	if err != nil {
		switch {
		case errors.Is(err, enrollment.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be pending, approved, or rejected"})
		case errors.Is(err, enrollment.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "enrollment not found"})
		default:
			h.logger.Error("update enrollment", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollment": app})
}
