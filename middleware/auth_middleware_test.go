package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ryanvade/infra-demo-lnl/authn"
	"github.com/ryanvade/infra-demo-lnl/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockAuthenticator is a mock implementation of authn.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Verify(ctx context.Context, token string) (*authn.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authn.Claims), args.Error(1)
}

func failIfCalled(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorResponse {
	var body utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestRequireClaims(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token allows request", func(t *testing.T) {
		mockAuth := new(MockAuthenticator)
		m := NewAuthMiddleware(mockAuth, logger)

		claims := &authn.Claims{Subject: "user-123", Issuer: "https://issuer.example.com/"}
		mockAuth.On("Verify", mock.Anything, "valid-token").Return(claims, nil)

		handler := m.RequireClaims(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			extracted := ClaimsFromContext(r.Context())
			require.NotNil(t, extracted)
			assert.Equal(t, "user-123", extracted.Subject)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockAuth.AssertExpectations(t)
	})

	t.Run("missing header returns 403", func(t *testing.T) {
		mockAuth := new(MockAuthenticator)
		m := NewAuthMiddleware(mockAuth, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		w := httptest.NewRecorder()

		m.RequireClaims(failIfCalled(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "forbidden", decodeError(t, w).Error)
		mockAuth.AssertNotCalled(t, "Verify")
	})

	t.Run("malformed header returns 400", func(t *testing.T) {
		for _, header := range []string{"Token abc", "Bearer", "Bearer a b", "bearer abc"} {
			mockAuth := new(MockAuthenticator)
			m := NewAuthMiddleware(mockAuth, logger)

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()

			m.RequireClaims(failIfCalled(t)).ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code, header)
			mockAuth.AssertNotCalled(t, "Verify")
		}
	})

	t.Run("verification failures map to status codes", func(t *testing.T) {
		tests := []struct {
			err  error
			want int
		}{
			{authn.ErrUnknownSigningKey, http.StatusForbidden},
			{fmt.Errorf("%w: token is expired", authn.ErrInvalidToken), http.StatusForbidden},
			{fmt.Errorf("%w: connection refused", authn.ErrAuthorityUnavailable), http.StatusInternalServerError},
		}

		for _, tt := range tests {
			mockAuth := new(MockAuthenticator)
			m := NewAuthMiddleware(mockAuth, logger)
			mockAuth.On("Verify", mock.Anything, "some-token").Return(nil, tt.err)

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			req.Header.Set("Authorization", "Bearer some-token")
			w := httptest.NewRecorder()

			m.RequireClaims(failIfCalled(t)).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code, tt.err.Error())
			mockAuth.AssertExpectations(t)
		}
	})

	t.Run("authority failure hides the cause", func(t *testing.T) {
		mockAuth := new(MockAuthenticator)
		m := NewAuthMiddleware(mockAuth, logger)
		mockAuth.On("Verify", mock.Anything, "some-token").
			Return(nil, fmt.Errorf("%w: dial tcp 10.0.0.1:443: connection refused", authn.ErrAuthorityUnavailable))

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		w := httptest.NewRecorder()

		m.RequireClaims(failIfCalled(t)).ServeHTTP(w, req)

		body := decodeError(t, w)
		assert.Equal(t, "internal_error", body.Error)
		assert.Equal(t, "Internal server error", body.Message)
	})

	t.Run("request context is passed to the authenticator", func(t *testing.T) {
		mockAuth := new(MockAuthenticator)
		m := NewAuthMiddleware(mockAuth, logger)

		type key struct{}
		ctx := context.WithValue(context.Background(), key{}, "marker")
		mockAuth.On("Verify", mock.MatchedBy(func(c context.Context) bool {
			return c.Value(key{}) == "marker"
		}), "tok").Return(&authn.Claims{Subject: "s"}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil).WithContext(ctx)
		req.Header.Set("Authorization", "Bearer tok")
		w := httptest.NewRecorder()

		m.RequireClaims(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockAuth.AssertExpectations(t)
	})
}

func TestGate(t *testing.T) {
	logger := zap.NewNop()

	t.Run("preflight passes without credentials", func(t *testing.T) {
		mockAuth := new(MockAuthenticator)
		m := NewAuthMiddleware(mockAuth, logger)

		called := false
		handler := m.Gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			assert.Nil(t, ClaimsFromContext(r.Context()))
			w.WriteHeader(http.StatusNoContent)
		}))

		req := httptest.NewRequest(http.MethodOptions, "/api/todos", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusNoContent, w.Code)
		mockAuth.AssertNotCalled(t, "Verify")
	})

	t.Run("valid token forwards request with claims", func(t *testing.T) {
		mockAuth := new(MockAuthenticator)
		m := NewAuthMiddleware(mockAuth, logger)
		mockAuth.On("Verify", mock.Anything, "valid-token").Return(&authn.Claims{Subject: "user-1"}, nil)

		handler := m.Gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			require.NotNil(t, claims)
			assert.Equal(t, "user-1", claims.Subject)
			assert.Equal(t, "/api/todos", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("WWW-Authenticate"))
	})

	t.Run("rejections carry a challenge", func(t *testing.T) {
		tests := []struct {
			name   string
			header string
			err    error
			status int
			code   string
		}{
			{"missing", "", nil, http.StatusForbidden, "invalid_token"},
			{"malformed", "Basic abc", nil, http.StatusBadRequest, "invalid_request"},
			{"invalid", "Bearer bad", authn.ErrInvalidToken, http.StatusForbidden, "invalid_token"},
			{"unavailable", "Bearer tok", authn.ErrAuthorityUnavailable, http.StatusInternalServerError, "temporarily_unavailable"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mockAuth := new(MockAuthenticator)
				m := NewAuthMiddleware(mockAuth, logger)
				if tt.err != nil {
					mockAuth.On("Verify", mock.Anything, mock.Anything).Return(nil, tt.err)
				}

				req := httptest.NewRequest(http.MethodDelete, "/api/todos/1", nil)
				if tt.header != "" {
					req.Header.Set("Authorization", tt.header)
				}
				w := httptest.NewRecorder()

				m.Gate(failIfCalled(t)).ServeHTTP(w, req)

				assert.Equal(t, tt.status, w.Code)
				assert.Equal(t, `Bearer realm="todo-api", error="`+tt.code+`"`, w.Header().Get("WWW-Authenticate"))
			})
		}
	})
}

func TestClaimsFromContext(t *testing.T) {
	assert.Nil(t, ClaimsFromContext(context.Background()))

	claims := &authn.Claims{Subject: "user-1"}
	ctx := WithClaims(context.Background(), claims)
	assert.Same(t, claims, ClaimsFromContext(ctx))

	ctx = context.WithValue(context.Background(), ClaimsKey, "not claims")
	assert.Nil(t, ClaimsFromContext(ctx))
}
