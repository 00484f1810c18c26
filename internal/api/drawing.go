package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atelierhq/atelier/internal/comments"
	"github.com/atelierhq/atelier/internal/drawings"
	"github.com/atelierhq/atelier/internal/identity"
)

// DrawingHandler handles the drawing gallery routes.
type DrawingHandler struct {
	drawings *drawings.Service
	comments *comments.Service
	logger   *zap.Logger
}

func NewDrawingHandler(drawingSvc *drawings.Service, commentSvc *comments.Service, logger *zap.Logger) *DrawingHandler {
	return &DrawingHandler{drawings: drawingSvc, comments: commentSvc, logger: logger}
}

// Register mounts the drawing routes behind the account gate.
func (h *DrawingHandler) Register(rg *gin.RouterGroup, gate gin.HandlerFunc) {
	d := rg.Group("/drawings", gate)
	{
		d.GET("", h.List)
		d.POST("", h.Create)
		d.GET("/mine", h.Mine)
		d.GET("/:id", h.Get)
		d.PATCH("/:id", h.Update)
		d.DELETE("/:id", h.Delete)
		d.POST("/:id/rate", h.Rate)
		d.GET("/:id/comments", h.ListComments)
		d.POST("/:id/comments", h.AddComment)
	}
}

type updateDrawingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type rateDrawingRequest struct {
	Rating int `json:"rating" binding:"required"`
}

type addCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// List handles GET /drawings — the shared gallery, newest first.
func (h *DrawingHandler) List(c *gin.Context) {
	list, err := h.drawings.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list drawings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"drawings": list, "count": len(list)})
}

// Mine handles GET /drawings/mine — the caller's own uploads.
func (h *DrawingHandler) Mine(c *gin.Context) {
	acct := identity.AccountFromCtx(c)
	list, err := h.drawings.ListByAccount(c.Request.Context(), acct.ID)
	if err != nil {
		h.logger.Error("list own drawings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"drawings": list, "count": len(list)})
}

// Get handles GET /drawings/:id.
func (h *DrawingHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drawing id"})
		return
	}

	d, err := h.drawings.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, drawings.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "drawing not found"})
			return
		}
		h.logger.Error("get drawing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"drawing": d})
}

// Create handles POST /drawings — multipart upload with title, description,
// and an image file.
func (h *DrawingHandler) Create(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error("open upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	defer src.Close()

	acct := identity.AccountFromCtx(c)
	d, err := h.drawings.Create(c.Request.Context(), drawings.CreateInput{
		AccountID:   acct.ID,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Image:       src,
	})
	if err != nil {
		RecordUpload(false)
		switch {
		case errors.Is(err, drawings.ErrNotAnImage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded file must be an image"})
		case errors.Is(err, drawings.ErrImageTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"error": "image exceeds the 5 MB limit"})
		default:
			h.logger.Error("create drawing", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		}
		return
	}
	RecordUpload(true)
	c.JSON(http.StatusCreated, gin.H{"drawing": d})
}

// Update handles PATCH /drawings/:id — title/description, author only.
func (h *DrawingHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drawing id"})
		return
	}
	var req updateDrawingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct := identity.AccountFromCtx(c)
	d, err := h.drawings.Update(c.Request.Context(), id, acct.ID, req.Title, req.Description)
	if err != nil {
		h.respondDrawingError(c, err, "update drawing")
		return
	}
	c.JSON(http.StatusOK, gin.H{"drawing": d})
}

// Delete handles DELETE /drawings/:id — author or admin.
func (h *DrawingHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drawing id"})
		return
	}

	acct := identity.AccountFromCtx(c)
	if err := h.drawings.Delete(c.Request.Context(), id, acct.ID, acct.IsAdmin()); err != nil {
		h.respondDrawingError(c, err, "delete drawing")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "drawing deleted"})
}

// Rate handles POST /drawings/:id/rate — a 1-5 rating; re-rating replaces
// the caller's previous rating.
func (h *DrawingHandler) Rate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drawing id"})
		return
	}
	var req rateDrawingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct := identity.AccountFromCtx(c)
	d, err := h.drawings.Rate(c.Request.Context(), id, acct.ID, req.Rating)
	if err != nil {
		if errors.Is(err, drawings.ErrRatingOutOfRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
			return
		}
		h.respondDrawingError(c, err, "rate drawing")
		return
	}
	c.JSON(http.StatusOK, gin.H{"drawing": d})
}

// ListComments handles GET /drawings/:id/comments.
func (h *DrawingHandler) ListComments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drawing id"})
		return
	}

	list, err := h.comments.ListByDrawing(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list comments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": list, "count": len(list)})
}

// AddComment handles POST /drawings/:id/comments.
func (h *DrawingHandler) AddComment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drawing id"})
		return
	}
	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct := identity.AccountFromCtx(c)
	cm, err := h.comments.Add(c.Request.Context(), id, acct.ID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, comments.ErrEmptyContent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "comment content is required"})
		case errors.Is(err, drawings.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "drawing not found"})
		default:
			h.logger.Error("add comment", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "comment failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": cm})
}

func (h *DrawingHandler) respondDrawingError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, drawings.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "drawing not found"})
	case errors.Is(err, drawings.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "you do not own this drawing"})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}
