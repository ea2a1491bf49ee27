package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ryanvade/infra-demo-lnl/authn"
	"github.com/ryanvade/infra-demo-lnl/utils"
	"go.uber.org/zap"
)

// Realm is advertised in the authentication challenge.
const Realm = "todo-api"

// AuthMiddleware adapts an Authenticator to HTTP handlers
type AuthMiddleware struct {
	authenticator authn.Authenticator
	logger        *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authenticator authn.Authenticator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// RequireClaims verifies the bearer token of every request and stores the
// resulting claims in the request context. Handlers behind it read them with
// ClaimsFromContext.
func (m *AuthMiddleware) RequireClaims(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.authenticate(r)
		if err != nil {
			m.reject(w, r, err, false)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Gate protects a route group. Preflight requests pass without credentials;
// rejections carry a Bearer challenge.
func (m *AuthMiddleware) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.authenticate(r)
		if err != nil {
			m.reject(w, r, err, true)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m *AuthMiddleware) authenticate(r *http.Request) (*authn.Claims, error) {
	token, err := authn.ParseBearer(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}

	claims, err := m.authenticator.Verify(r.Context(), token)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("authentication successful",
		zap.String("request_id", GetRequestIDFromContext(r.Context())),
		zap.String("sub", claims.Subject))
	return claims, nil
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, err error, challenge bool) {
	requestID := GetRequestIDFromContext(r.Context())
	status := authn.StatusCode(err)

	if status == http.StatusInternalServerError {
		m.logger.Error("authentication unavailable",
			zap.String("request_id", requestID),
			zap.Error(err))
	} else {
		m.logger.Warn("authentication failed",
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.Error(err))
	}

	if challenge {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q, error=%q", Realm, challengeError(status)))
	}

	switch status {
	case http.StatusBadRequest:
		_ = utils.WriteBadRequest(w, "Malformed authorization header", nil)
	case http.StatusForbidden:
		_ = utils.WriteForbidden(w, rejectionMessage(err))
	default:
		_ = utils.WriteInternalServerError(w, "")
	}
}

func challengeError(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusInternalServerError:
		return "temporarily_unavailable"
	default:
		return "invalid_token"
	}
}

func rejectionMessage(err error) string {
	if errors.Is(err, authn.ErrMissingCredential) {
		return "Missing authorization header"
	}
	return "Invalid JWT"
}
