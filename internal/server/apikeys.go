package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type createAPIKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// @Summary      Create API Key
// @Description  Mint a new key; the cleartext is returned exactly once
// @Tags         api_keys
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Success      201  {object}  map[string]any
// @Router       /v1/api_keys [post]
func (s *Server) CreateAPIKey(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		AbortWithError(c, newValidationError("name", "required", "name is required"))
		return
	}

	result, err := s.keys.Create(c.Request.Context(), principal.Account.ID, req.Name, req.ExpiresAt)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"key":       result.Key,
		"cleartext": result.Cleartext,
	}})
}

// @Summary      List API Keys
// @Tags         api_keys
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  []domain.APIKey
// @Router       /v1/api_keys [get]
func (s *Server) ListAPIKeys(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	keys, err := s.keys.List(c.Request.Context(), principal.Account.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": keys})
}

// @Summary      Revoke API Key
// @Description  Deactivate a key owned by the caller's account
// @Tags         api_keys
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  map[string]any
// @Router       /v1/api_keys/{id} [delete]
func (s *Server) RevokeAPIKey(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "format", "id must be a valid key id"))
		return
	}

	if err := s.keys.Revoke(c.Request.Context(), principal.Account.ID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"revoked": id.String()}})
}
