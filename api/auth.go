package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"trullo-api/domain"
)

const defaultTokenTTL = time.Hour

// AuthConfig carries the token signing state. It is passed in explicitly
// at construction; the component never reads ambient configuration.
type AuthConfig struct {
	Secret   []byte
	TokenTTL time.Duration
}

// Principal is the authenticated identity attached to a request after
// token verification.
type Principal struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type tokenClaims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenError reports why a presented token was rejected, distinguishing
// expiry (with the expiry timestamp) from a malformed or badly signed
// token.
type TokenError struct {
	Expired   bool
	ExpiredAt time.Time
}

func (e *TokenError) Error() string {
	if e.Expired {
		return fmt.Sprintf("token expired at %s", e.ExpiredAt.UTC().Format(time.RFC3339))
	}
	return "malformed token"
}

// Auth issues and validates the service's own HS256 tokens.
type Auth struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewAuth creates a new Auth instance.
func NewAuth(cfg AuthConfig) *Auth {
	if len(cfg.Secret) == 0 {
		panic("api.NewAuth: token secret must not be empty")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Auth{
		secret: cfg.Secret,
		ttl:    ttl,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// Sign issues a token embedding the principal's id and role with a fixed
// expiry.
func (a *Auth) Sign(p Principal) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		ID:   p.ID,
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// PrincipalFromAuthHeader extracts and verifies the bearer token carried in
// the Authorization header.
func (a *Auth) PrincipalFromAuthHeader(h string) (Principal, error) {
	token, err := bearerToken(h)
	if err != nil {
		return Principal{}, err
	}
	return a.verify(token)
}

func (a *Auth) verify(token string) (Principal, error) {
	claims := &tokenClaims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		var vErr *jwt.ValidationError
		if errors.As(err, &vErr) && vErr.Errors&jwt.ValidationErrorExpired != 0 {
			tokenErr := &TokenError{Expired: true}
			if claims.ExpiresAt != nil {
				tokenErr.ExpiredAt = claims.ExpiresAt.Time
			}
			return Principal{}, tokenErr
		}
		return Principal{}, &TokenError{}
	}
	if claims.ID == "" {
		return Principal{}, &TokenError{}
	}
	return Principal{ID: claims.ID, Role: claims.Role}, nil
}

const principalContextKey = "principal"

// Middleware authenticates every request before it reaches a handler: 401
// when no token is supplied, 403 when verification fails. The decoded
// principal is attached to the echo context for downstream checks.
func (a *Auth) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := a.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				if errors.Is(err, errMissingAuthorization) {
					return respondError(c, http.StatusUnauthorized, "no token provided")
				}
				return respondError(c, http.StatusForbidden, err.Error())
			}
			c.Set(principalContextKey, p)
			return next(c)
		}
	}
}

// AdminOnly rejects any principal whose role is not admin.
func AdminOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if principalFrom(c).Role != domain.RoleAdmin {
				return respondError(c, http.StatusForbidden, "access denied, admins only")
			}
			return next(c)
		}
	}
}

func principalFrom(c echo.Context) Principal {
	p, _ := c.Get(principalContextKey).(Principal)
	return p
}
