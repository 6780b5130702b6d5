// Package middleware holds gin middleware: bearer-token authentication
// against the external auth provider, and the failed-attempt rate limit.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/rs/zerolog/log"

	"github.com/charleshuang3/medipair/internal/gormw"
	"github.com/charleshuang3/medipair/internal/identity"
	"github.com/charleshuang3/medipair/internal/models"
	"github.com/charleshuang3/medipair/internal/storage"
)

var (
	logger = log.With().Str("component", "auth").Logger()

	errMissingSubject = errors.New("token has no subject")
)

type AuthConfig struct {
	// Mode selects token verification: "pem" verifies locally against the
	// provider's RSA public key; "oidc" uses issuer discovery.
	Mode string `yaml:"mode"`

	// Issuer is the auth provider's issuer URL, required in both modes.
	Issuer string `yaml:"issuer"`

	// PublicKeyPEM is the provider's RSA public key, pem mode only.
	PublicKeyPEM string `yaml:"public_key_pem"`

	// ClientID is the expected audience, oidc mode only.
	ClientID string `yaml:"client_id"`
}

func (c *AuthConfig) Validate() {
	if c.Issuer == "" {
		logger.Fatal().Msg("AuthConfig: Issuer is missing")
	}

	switch c.Mode {
	case "pem":
		if c.PublicKeyPEM == "" {
			logger.Fatal().Msg("AuthConfig: PublicKeyPEM is missing")
		}
	case "oidc":
		if c.ClientID == "" {
			logger.Fatal().Msg("AuthConfig: ClientID is missing")
		}
	default:
		logger.Fatal().Msgf("AuthConfig: Mode %q is not supported", c.Mode)
	}
}

// AuthMiddleware verifies the Authorization bearer token on every request,
// mirrors the asserted identity into the users table and stores it in the
// gin context. The session mechanics of the provider (issuance, refresh,
// cookies) are not our concern; the signed token is consumed as an opaque
// identity capability.
type AuthMiddleware struct {
	config *AuthConfig
	db     *gormw.DB

	publicKey jwk.Key       // pem mode
	verifier  *oidc.IDTokenVerifier // oidc mode
}

func NewAuthMiddleware(config *AuthConfig, db *gormw.DB) *AuthMiddleware {
	m := &AuthMiddleware{
		config: config,
		db:     db,
	}

	switch config.Mode {
	case "pem":
		key, err := jwk.ParseKey([]byte(config.PublicKeyPEM), jwk.WithPEM(true))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to parse public key")
		}
		m.publicKey = key
	case "oidc":
		provider, err := oidc.NewProvider(context.Background(), config.Issuer)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to discover OIDC provider")
		}
		m.verifier = provider.Verifier(&oidc.Config{ClientID: config.ClientID})
	}

	return m
}

// tokenClaims is the subset of provider claims this service consumes.
type tokenClaims struct {
	Subject string
	Name    string
	Email   string
	Role    string
}

func (m *AuthMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "UNAUTHORIZED", "message": "missing bearer token"},
			})
			return
		}

		var (
			claims *tokenClaims
			err    error
		)
		if m.config.Mode == "pem" {
			claims, err = m.verifyPEM(raw)
		} else {
			claims, err = m.verifyOIDC(c.Request.Context(), raw)
		}
		if err != nil {
			logger.Info().Err(err).Msg("token verification failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "UNAUTHORIZED", "message": "invalid token"},
			})
			return
		}

		user := &identity.User{
			ID:          claims.Subject,
			DisplayName: claims.Name,
			Email:       claims.Email,
			Role:        claims.Role,
		}

		// Keep the mirror row fresh so invitation lookups can render the
		// inviter. Failure here is not fatal to the request.
		if err := storage.UpsertUser(m.db, &models.User{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
			Role:        user.Role,
		}); err != nil {
			logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to upsert user mirror")
		}

		identity.SetCurrentUser(c, user)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	return tok, tok != ""
}

func (m *AuthMiddleware) verifyPEM(raw string) (*tokenClaims, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.RS256(), m.publicKey),
		jwt.WithIssuer(m.config.Issuer),
	)
	if err != nil {
		return nil, err
	}

	claims := &tokenClaims{}
	sub, ok := tok.Subject()
	if !ok || sub == "" {
		return nil, errMissingSubject
	}
	claims.Subject = sub

	if err := tok.Get("email", &claims.Email); err != nil {
		return nil, err
	}
	if err := tok.Get("role", &claims.Role); err != nil {
		return nil, err
	}
	// name is optional; email stands in for display when absent.
	_ = tok.Get("name", &claims.Name)

	return claims, nil
}

func (m *AuthMiddleware) verifyOIDC(ctx context.Context, raw string) (*tokenClaims, error) {
	idToken, err := m.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := idToken.Claims(&body); err != nil {
		return nil, err
	}
	if idToken.Subject == "" {
		return nil, errMissingSubject
	}

	return &tokenClaims{
		Subject: idToken.Subject,
		Name:    body.Name,
		Email:   body.Email,
		Role:    body.Role,
	}, nil
}
