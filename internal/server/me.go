package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Current Account
// @Description  The resolved account behind the presented credential
// @Tags         account
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  map[string]any
// @Router       /v1/me [get]
func (s *Server) GetMe(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	remaining, err := s.ledger.Remaining(c.Request.Context(), principal.Account.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"account":         principal.Account,
		"auth_scheme":     principal.Scheme.String(),
		"quota_remaining": remaining,
	}})
}
