package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// @Summary      Usage History
// @Description  Per-request usage events with per-outcome totals
// @Tags         usage
// @Produce      json
// @Security     ApiKeyAuth
// @Param        since  query  string  false  "RFC 3339 lower bound, defaults to 30 days ago"
// @Param        limit  query  int     false  "max events, defaults to 100"
// @Success      200  {object}  map[string]any
// @Router       /v1/usage [get]
func (s *Server) ListUsage(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	since := time.Now().AddDate(0, 0, -30)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("since", "format", "since must be RFC 3339"))
			return
		}
		since = parsed
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("limit", "range", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := s.usage.List(c.Request.Context(), principal.Account.ID, since, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	totals, err := s.usage.Totals(c.Request.Context(), principal.Account.ID, since)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"events": events,
		"totals": totals,
		"since":  since,
	}})
}
