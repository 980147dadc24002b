package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	accountdomain "github.com/autogenlabs-dev/tokengate/internal/account/domain"
	"github.com/autogenlabs-dev/tokengate/internal/auth"
	obsctx "github.com/autogenlabs-dev/tokengate/internal/observability/context"
)

const contextPrincipalKey = "principal"

// Principal is the authenticated identity handlers act on behalf of.
type Principal struct {
	Account *accountdomain.Account
	Scheme  auth.Scheme
	Subject string
}

// Authenticated resolves any supported credential to a canonical
// account. Precedence: the X-API-Key header wins over Authorization,
// and within Authorization the scheme is classified by shape.
func (s *Server) Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := credentialFrom(c)
		if raw == "" {
			AbortWithError(c, authFailure(auth.ErrNoCredential))
			return
		}

		cred := s.verifier.Classify(raw)
		claims, err := s.verifier.Verify(c.Request.Context(), cred)
		if err != nil {
			s.log.Debug("credential rejected",
				zap.String("scheme", cred.Scheme.String()),
				zap.String("request_id", obsctx.RequestIDFromGin(c)),
				zap.Error(err),
			)
			AbortWithError(c, authFailure(err))
			return
		}

		account, err := s.resolveAccount(c, claims)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obsctx.WithAccountID(c.Request.Context(), account.ID.String())
		ctx = obsctx.WithAuthScheme(ctx, claims.Scheme.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextPrincipalKey, Principal{
			Account: account,
			Scheme:  claims.Scheme,
			Subject: claims.Subject,
		})
		c.Next()
	}
}

func (s *Server) resolveAccount(c *gin.Context, claims *auth.Claims) (*accountdomain.Account, error) {
	ctx := c.Request.Context()
	switch claims.Scheme {
	case auth.SchemeAPIKey:
		// The key store already resolved the account id.
		id, err := parseAccountID(claims.Subject)
		if err != nil {
			return nil, err
		}
		return s.accounts.GetByID(ctx, id)
	case auth.SchemeOIDC:
		return s.accounts.Resolve(ctx, accountdomain.IdentityOIDC, claims.Subject)
	case auth.SchemeLegacy:
		return s.accounts.Resolve(ctx, accountdomain.IdentityLegacy, claims.Subject)
	default:
		return nil, ErrUnauthorized
	}
}

func parseAccountID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, ErrUnauthorized
	}
	return id, nil
}

func credentialFrom(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-API-Key")); key != "" {
		return key
	}

	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// principalFrom returns the authenticated principal set by the
// middleware. Handlers behind Authenticated can rely on it existing.
func principalFrom(c *gin.Context) (Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}
