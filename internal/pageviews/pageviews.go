// Package pageviews keeps a site-wide visit counter for the admin
// dashboard. Increments are fire-and-forget so a slow or failing write
// never delays a page load.
package pageviews

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Counter backs the visit counter with a single Postgres row.
type Counter struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCounter(db *pgxpool.Pool, logger *zap.Logger) *Counter {
	return &Counter{db: db, logger: logger}
}

// Increment bumps the counter, creating the row on first use.
func (c *Counter) Increment(ctx context.Context) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO page_views (id, count, updated_at)
		VALUES (1, 1, NOW())
		ON CONFLICT (id) DO UPDATE
		SET count = page_views.count + 1, updated_at = NOW()`)
	return err
}

// Total reports the current count; zero if nothing has been recorded.
func (c *Counter) Total(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(count), 0) FROM page_views`).Scan(&n)
	return n, err
}

// Middleware counts GET requests outside the API and metrics surfaces.
func (c *Counter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == "GET" && countable(ctx.Request.URL.Path) {
			go func() {
				wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
				defer cancel()
				if err := c.Increment(wctx); err != nil {
					c.logger.Warn("page view increment failed", zap.Error(err))
				}
			}()
		}
		ctx.Next()
	}
}

func countable(path string) bool {
	switch {
	case strings.HasPrefix(path, "/api/"),
		path == "/healthz",
		path == "/metrics":
		return false
	}
	return true
}
