package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	apikeydomain "github.com/autogenlabs-dev/tokengate/internal/apikey/domain"
	"github.com/autogenlabs-dev/tokengate/internal/clock"
	"github.com/autogenlabs-dev/tokengate/internal/config"
)

// KeyStore is the API-key lookup surface the verifier depends on.
type KeyStore interface {
	Verify(ctx context.Context, raw string) (*apikeydomain.APIKey, error)
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Verifier performs stateless verification of each credential format.
type Verifier struct {
	cfg   config.AuthConfig
	jwks  *JWKSCache
	keys  KeyStore
	clock clock.Clock
	log   *zap.Logger
}

func NewVerifier(cfg config.AuthConfig, jwks *JWKSCache, keys KeyStore, clk clock.Clock, log *zap.Logger) *Verifier {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{
		cfg:   cfg,
		jwks:  jwks,
		keys:  keys,
		clock: clk,
		log:   log.Named("auth.verifier"),
	}
}

// Classify tags a bearer credential with its scheme. Opaque keys are
// recognised by prefix; JWTs are split on the unverified issuer claim.
// Classification never trusts the token: the issuer only routes the
// credential to a verification path that re-checks it.
func (v *Verifier) Classify(raw string) Credential {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credential{Scheme: SchemeUnknown}
	}
	if apikeydomain.LooksLikeAPIKey(raw) {
		return Credential{Scheme: SchemeAPIKey, Raw: raw}
	}

	var claims jwtClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return Credential{Scheme: SchemeUnknown, Raw: raw}
	}
	issuer := strings.TrimSpace(claims.Issuer)
	switch {
	case v.cfg.OIDC.Enabled && issuer == strings.TrimSpace(v.cfg.OIDC.Issuer):
		return Credential{Scheme: SchemeOIDC, Raw: raw}
	case v.cfg.Legacy.Enabled:
		return Credential{Scheme: SchemeLegacy, Raw: raw}
	default:
		return Credential{Scheme: SchemeOIDC, Raw: raw}
	}
}

// Verify checks the credential under its classified scheme and returns
// the verified claims.
func (v *Verifier) Verify(ctx context.Context, cred Credential) (*Claims, error) {
	switch cred.Scheme {
	case SchemeAPIKey:
		// Key-store failures keep their own codes (revoked, expired,
		// not found); they are all mapped to 401 at the edge.
		key, err := v.keys.Verify(ctx, cred.Raw)
		if err != nil {
			return nil, err
		}
		return &Claims{
			Scheme:  SchemeAPIKey,
			Subject: key.AccountID.String(),
		}, nil
	case SchemeOIDC:
		return v.verifyOIDC(ctx, cred.Raw)
	case SchemeLegacy:
		return v.verifyLegacy(cred.Raw)
	default:
		return nil, ErrMalformedToken
	}
}

func (v *Verifier) verifyOIDC(ctx context.Context, raw string) (*Claims, error) {
	if !v.cfg.OIDC.Enabled {
		return nil, ErrSchemeDisabled
	}

	var claims jwtClaims
	token, err := v.parser(
		jwt.WithIssuer(v.cfg.OIDC.Issuer),
		jwt.WithAudience(v.cfg.OIDC.Audience),
	).ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrBadSignature
		}
		kid, _ := token.Header["kid"].(string)
		key, err := v.jwks.Resolve(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key, nil
	})
	if err != nil {
		return nil, mapJWTError(err)
	}
	if !token.Valid {
		return nil, ErrBadSignature
	}
	return claimsFromJWT(SchemeOIDC, claims)
}

func (v *Verifier) verifyLegacy(raw string) (*Claims, error) {
	if !v.cfg.Legacy.Enabled {
		return nil, ErrSchemeDisabled
	}

	opts := []jwt.ParserOption{}
	if issuer := strings.TrimSpace(v.cfg.Legacy.Issuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(v.cfg.Legacy.Audience); audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	var claims jwtClaims
	token, err := v.parser(opts...).ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadSignature
		}
		return []byte(v.cfg.Legacy.Secret), nil
	})
	if err != nil {
		return nil, mapJWTError(err)
	}
	if !token.Valid {
		return nil, ErrBadSignature
	}
	return claimsFromJWT(SchemeLegacy, claims)
}

func (v *Verifier) parser(opts ...jwt.ParserOption) *jwt.Parser {
	base := []jwt.ParserOption{
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}
	return jwt.NewParser(append(base, opts...)...)
}

func claimsFromJWT(scheme Scheme, claims jwtClaims) (*Claims, error) {
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, ErrMalformedToken
	}
	return &Claims{
		Scheme:  scheme,
		Subject: subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKeyID):
		return ErrUnknownKeyID
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrUnknownIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrWrongAudience
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	default:
		return ErrBadSignature
	}
}
