package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atelierhq/atelier/internal/accounts"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/comments"
	"github.com/atelierhq/atelier/internal/drawings"
	"github.com/atelierhq/atelier/internal/identity"
)

// viewCounter is the slice of *pageviews.Counter the dashboard needs.
type viewCounter interface {
	Total(ctx context.Context) (int64, error)
}

// auditLog is satisfied by *audit.Repository.
type auditLog interface {
	audit.Recorder
	Recent(ctx context.Context, limit int) ([]*audit.Entry, error)
}

// AdminHandler handles the admin console routes: the dedicated admin login,
// site statistics, and user/content moderation.
type AdminHandler struct {
	accounts *accounts.Service
	drawings *drawings.Service
	comments *comments.Service
	views    viewCounter
	auditor  auditLog
	tokens   *identity.TokenIssuer
	logger   *zap.Logger
}

func NewAdminHandler(
	accountSvc *accounts.Service,
	drawingSvc *drawings.Service,
	commentSvc *comments.Service,
	views viewCounter,
	auditor auditLog,
	tokens *identity.TokenIssuer,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		accounts: accountSvc,
		drawings: drawingSvc,
		comments: commentSvc,
		views:    views,
		auditor:  auditor,
		tokens:   tokens,
		logger:   logger,
	}
}

// Register mounts the admin routes. Login is public; everything else sits
// behind the account gate plus the admin gate.
func (h *AdminHandler) Register(rg *gin.RouterGroup, gate, adminGate gin.HandlerFunc) {
	rg.POST("/admin/login", h.Login)

	admin := rg.Group("/admin", gate, adminGate)
	{
		admin.GET("/stats", h.Stats)
		admin.GET("/audit", h.AuditLog)
		admin.GET("/users", h.ListUsers)
		admin.PATCH("/users/:id/status", h.SetUserStatus)
		admin.PATCH("/users/:id/role", h.SetUserRole)
		admin.DELETE("/users/:id", h.DeleteUser)
		admin.DELETE("/drawings/:id", h.DeleteDrawing)
	}
}

type adminLoginRequest struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Login handles POST /admin/login — email/password, admin accounts only.
// The issued token carries the shorter admin TTL.
func (h *AdminHandler) Login(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := h.accounts.AdminLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RecordLogin("admin", false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	RecordLogin("admin", true)

	tok, err := h.tokens.IssueAdmin(acct.ID, acct.Username)
	if err != nil {
		h.logger.Error("issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:   &acct.ID,
		Action:    "admin.login",
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	c.JSON(http.StatusOK, gin.H{"token": tok, "account": acct})
}

// Stats handles GET /admin/stats — the dashboard counters.
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	totalUsers, pendingUsers, err := h.accounts.Counts(ctx)
	if err != nil {
		h.logger.Error("account counts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	totalDrawings, err := h.drawings.Count(ctx)
	if err != nil {
		h.logger.Error("drawing count", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	totalComments, err := h.comments.Count(ctx)
	if err != nil {
		h.logger.Error("comment count", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	views, err := h.views.Total(ctx)
	if err != nil {
		h.logger.Error("page view total", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalUsers":    totalUsers,
		"pendingUsers":  pendingUsers,
		"totalDrawings": totalDrawings,
		"totalComments": totalComments,
		"pageViews":     views,
	})
}

// AuditLog handles GET /admin/audit — the newest activity records.
func (h *AdminHandler) AuditLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.auditor.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("audit log", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// ListUsers handles GET /admin/users — paginated with ?page= and ?limit=.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	users, total, err := h.accounts.List(c.Request.Context(), page, limit)
	if err != nil {
		h.logger.Error("list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// SetUserStatus handles PATCH /admin/users/:id/status — the approval
// decision: pending → active (approve) or rejected.
func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := h.accounts.SetStatus(c.Request.Context(), id, accounts.Status(req.Status))
	if err != nil {
		h.respondAccountError(c, err, "set user status")
		return
	}

	actor := identity.AccountFromCtx(c)
	h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:   &actor.ID,
		Action:    "user.status." + req.Status,
		Details:   acct.Username,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	c.JSON(http.StatusOK, gin.H{"user": acct})
}

// SetUserRole handles PATCH /admin/users/:id/role.
func (h *AdminHandler) SetUserRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := h.accounts.SetRole(c.Request.Context(), id, accounts.Role(req.Role))
	if err != nil {
		h.respondAccountError(c, err, "set user role")
		return
	}

	actor := identity.AccountFromCtx(c)
	h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:   &actor.ID,
		Action:    "user.role." + req.Role,
		Details:   acct.Username,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	c.JSON(http.StatusOK, gin.H{"user": acct})
}

// DeleteUser handles DELETE /admin/users/:id — removes the account and its
// drawings and comments. A failure partway leaves earlier deletions in
// place; the error names the step that failed.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	actor := identity.AccountFromCtx(c)
	if actor.ID == id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "admins cannot delete their own account"})
		return
	}

	if err := h.accounts.Delete(c.Request.Context(), id); err != nil {
		h.respondAccountError(c, err, "delete user")
		return
	}

	h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:   &actor.ID,
		Action:    "user.deleted",
		Details:   id.String(),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "user and authored content deleted"})
}

// DeleteDrawing handles DELETE /admin/drawings/:id — moderation removal.
func (h *AdminHandler) DeleteDrawing(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drawing id"})
		return
	}

	actor := identity.AccountFromCtx(c)
	if err := h.drawings.Delete(c.Request.Context(), id, actor.ID, true); err != nil {
		if errors.Is(err, drawings.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "drawing not found"})
			return
		}
		h.logger.Error("admin delete drawing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	h.auditor.Record(c.Request.Context(), audit.Entry{
		ActorID:   &actor.ID,
		Action:    "drawing.deleted",
		Details:   id.String(),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "drawing deleted"})
}

func (h *AdminHandler) respondAccountError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, accounts.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}
