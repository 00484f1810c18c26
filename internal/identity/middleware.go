package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/atelierhq/atelier/internal/accounts"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ctxAccount = "atelier_account"

// AccountSource resolves a token's account id to a live account.
// Satisfied by *accounts.Service.
type AccountSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*accounts.Account, error)
}

// RequireAccount returns a Gin middleware implementing the approval gate:
//
//  1. 401 when the Bearer token is missing, malformed, badly signed, or
//     expired.
//  2. 401 when the embedded account no longer exists — a deleted account may
//     still hold a syntactically valid token.
//  3. Admins proceed unconditionally, whatever their status.
//  4. Everyone else must be active; pending and rejected accounts get 403.
//
// On success the resolved account is attached to the request context for
// downstream handlers.
func RequireAccount(tokens *TokenIssuer, source AccountSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Not authorized to access this route",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Not authorized to access this route",
			})
			return
		}

		id, err := uuid.Parse(claims.AccountID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Not authorized to access this route",
			})
			return
		}

		account, err := source.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, accounts.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Account not found",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "failed to resolve account",
			})
			return
		}

		if !account.IsAdmin() && account.Status != accounts.StatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Account pending approval",
			})
			return
		}

		c.Set(ctxAccount, account)
		c.Next()
	}
}

// RequireAdmin returns a Gin middleware restricting a route to admin
// accounts. Compose it after RequireAccount; status is irrelevant once the
// approval gate has passed.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := AccountFromCtx(c)
		if account == nil || !account.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Access restricted to admin users",
			})
			return
		}
		c.Next()
	}
}

// AccountFromCtx retrieves the account attached by RequireAccount.
// Returns nil if the request did not pass the gate.
func AccountFromCtx(c *gin.Context) *accounts.Account {
	v, _ := c.Get(ctxAccount)
	account, _ := v.(*accounts.Account)
	return account
}
