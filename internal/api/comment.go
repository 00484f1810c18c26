package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atelierhq/atelier/internal/comments"
	"github.com/atelierhq/atelier/internal/identity"
)

// CommentHandler handles the comment routes not nested under a drawing.
type CommentHandler struct {
	comments *comments.Service
	logger   *zap.Logger
}

func NewCommentHandler(commentSvc *comments.Service, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{comments: commentSvc, logger: logger}
}

func (h *CommentHandler) Register(rg *gin.RouterGroup, gate gin.HandlerFunc) {
	cm := rg.Group("/comments", gate)
	{
		cm.GET("/mine", h.Mine)
		cm.PATCH("/:id", h.Update)
		cm.DELETE("/:id", h.Delete)
	}
}

type updateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// Mine handles GET /comments/mine — the caller's comments across drawings.
func (h *CommentHandler) Mine(c *gin.Context) {
	acct := identity.AccountFromCtx(c)
	list, err := h.comments.ListByAccount(c.Request.Context(), acct.ID)
	if err != nil {
		h.logger.Error("list own comments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": list, "count": len(list)})
}

// Update handles PATCH /comments/:id — author only.
func (h *CommentHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment id"})
		return
	}
	var req updateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct := identity.AccountFromCtx(c)
	cm, err := h.comments.Update(c.Request.Context(), id, acct.ID, req.Content)
	if err != nil {
		h.respondCommentError(c, err, "update comment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": cm})
}

// Delete handles DELETE /comments/:id — author or admin.
func (h *CommentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment id"})
		return
	}

	acct := identity.AccountFromCtx(c)
	if err := h.comments.Delete(c.Request.Context(), id, acct.ID, acct.IsAdmin()); err != nil {
		h.respondCommentError(c, err, "delete comment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}

func (h *CommentHandler) respondCommentError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, comments.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
	case errors.Is(err, comments.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "you do not own this comment"})
	case errors.Is(err, comments.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment content is required"})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}
