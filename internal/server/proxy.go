package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/autogenlabs-dev/tokengate/internal/provider"
	"github.com/autogenlabs-dev/tokengate/internal/proxy"
)

type usageSummary struct {
	Units     int64  `json:"units"`
	Remaining int64  `json:"remaining"`
	Vendor    string `json:"vendor"`
	Model     string `json:"model"`
}

// @Summary      Proxy Chat Completion
// @Description  Forward a chat completion to the vendor named in the model field
// @Tags         proxy
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  map[string]any
// @Router       /proxy/chat [post]
func (s *Server) ProxyChat(c *gin.Context) {
	s.proxyOperation(c, provider.OperationChat)
}

// @Summary      Proxy Completion
// @Tags         proxy
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  map[string]any
// @Router       /proxy/completions [post]
func (s *Server) ProxyCompletions(c *gin.Context) {
	s.proxyOperation(c, provider.OperationCompletions)
}

// @Summary      Proxy Embeddings
// @Tags         proxy
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  map[string]any
// @Router       /proxy/embeddings [post]
func (s *Server) ProxyEmbeddings(c *gin.Context) {
	s.proxyOperation(c, provider.OperationEmbeddings)
}

func (s *Server) proxyOperation(c *gin.Context, operation string) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	model, _ := payload["model"].(string)
	if strings.TrimSpace(model) == "" {
		AbortWithError(c, newValidationError("model", "required", "model is required"))
		return
	}

	result, err := s.pipeline.Execute(c.Request.Context(), &proxy.Request{
		Account:   principal.Account,
		Operation: operation,
		Model:     model,
		Payload:   payload,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("X-Usage-Units", strconv.FormatInt(result.Units, 10))
	c.Header("X-Usage-Remaining", strconv.FormatInt(result.Remaining, 10))
	c.JSON(http.StatusOK, gin.H{
		"data": json.RawMessage(result.Body),
		"usage": usageSummary{
			Units:     result.Units,
			Remaining: result.Remaining,
			Vendor:    result.Vendor,
			Model:     result.Model,
		},
	})
}

// @Summary      List Models
// @Description  List every routable vendor-prefixed model
// @Tags         proxy
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  []string
// @Router       /proxy/models [get]
func (s *Server) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.providers.Models()})
}

// @Summary      List Providers
// @Description  List configured vendors and their fallbacks
// @Tags         proxy
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  []provider.VendorInfo
// @Router       /proxy/providers [get]
func (s *Server) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.providers.Vendors()})
}
