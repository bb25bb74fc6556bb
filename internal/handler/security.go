package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/arell305/hostlyapp/internal/domain/access"
	"github.com/arell305/hostlyapp/pkg/httpmiddleware"
)

// ErrUnauthorized is returned for missing or invalid bearer tokens.
var ErrUnauthorized = errors.New("unauthorized")

// claims is the bearer token payload issued by the identity provider.
type claims struct {
	OrganizationID string `json:"org_id"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and turns them into an
// access.Principal.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates an Authenticator. Tokens must carry an expiry;
// issuer is checked when non-empty.
func NewAuthenticator(secret []byte, issuer string) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Authenticator{secret: secret, parser: jwt.NewParser(opts...)}, nil
}

// Authenticate parses a raw token.
func (a *Authenticator) Authenticate(raw string) (access.Principal, error) {
	var c claims
	if _, err := a.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}); err != nil {
		return access.Principal{}, errors.Wrap(ErrUnauthorized, err.Error())
	}
	if c.Subject == "" || c.OrganizationID == "" {
		return access.Principal{}, errors.Wrap(ErrUnauthorized, "missing subject or organization")
	}
	role, err := access.ParseRole(c.Role)
	if err != nil {
		return access.Principal{}, errors.Wrap(ErrUnauthorized, err.Error())
	}
	return access.Principal{
		UserID:         c.Subject,
		OrganizationID: c.OrganizationID,
		Role:           role,
	}, nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p access.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (access.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(access.Principal)
	return p, ok
}

// Middleware rejects requests without a valid "Authorization: Bearer" token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		p, err := a.Authenticate(strings.TrimSpace(raw))
		if err != nil {
			zctx.From(r.Context()).Debug("Reject token", zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		ctx := zctx.With(WithPrincipal(r.Context(), p),
			zap.String("user_id", p.UserID),
			zap.String("org_id", p.OrganizationID),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
