package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT(exp time.Duration) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{SecretKey: "test-secret", AccessTokenExp: exp, TokenIssuer: "itsbooking"})
}

func token(t *testing.T, svc *auth.JWTService, role models.Role) string {
	t.Helper()
	tok, _, err := svc.GenerateAccessToken(auth.Subject{UserID: 7, Username: "kari", Role: string(role)})
	require.NoError(t, err)
	return tok
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return &resp
}

func protectedRouter(m *AuthMiddleware, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{m.JWTAuth()}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userID":   c.GetInt64(ContextUserID),
			"username": c.GetString(ContextUsername),
			"role":     CurrentRole(c),
		})
	})
	r.GET("/private", handlers...)
	return r
}

func TestJWTAuth(t *testing.T) {
	svc := newJWT(time.Hour)
	router := protectedRouter(NewAuthMiddleware(svc))
	valid := token(t, svc, models.RoleAssistant)
	expired := token(t, newJWT(-time.Minute), models.RoleAssistant)
	foreign := token(t, auth.NewJWTService(auth.JWTConfig{SecretKey: "other", AccessTokenExp: time.Hour, TokenIssuer: "itsbooking"}), models.RoleAssistant)

	tests := []struct {
		name   string
		url    string
		header string
		status int
		code   dto.ErrorCode
	}{
		{"missing header", "/private", "", http.StatusUnauthorized, dto.ErrorCodeUnauthorized},
		{"garbage", "/private", "Basic abc", http.StatusUnauthorized, dto.ErrorCodeInvalidToken},
		{"expired", "/private", "Bearer " + expired, http.StatusUnauthorized, dto.ErrorCodeExpiredToken},
		{"wrong key", "/private", "Bearer " + foreign, http.StatusUnauthorized, dto.ErrorCodeInvalidToken},
		{"bearer header", "/private", "Bearer " + valid, http.StatusOK, ""},
		{"raw header", "/private", valid, http.StatusOK, ""},
		{"query token", "/private?token=" + valid, "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				assert.Equal(t, tt.code, decodeError(t, w).Error.Code)
				return
			}
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, float64(7), body["userID"])
			assert.Equal(t, "kari", body["username"])
			assert.Equal(t, string(models.RoleAssistant), body["role"])
		})
	}
}

func TestRoleRequired(t *testing.T) {
	svc := newJWT(time.Hour)
	m := NewAuthMiddleware(svc)
	router := protectedRouter(m, m.RoleRequired(models.RoleAssistant, models.RoleCoordinator))

	for role, status := range map[models.Role]int{
		models.RoleStudent:     http.StatusForbidden,
		models.RoleAssistant:   http.StatusOK,
		models.RoleCoordinator: http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, svc, role))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, role)
		if status == http.StatusForbidden {
			assert.Equal(t, dto.ErrorCodeForbidden, decodeError(t, w).Error.Code)
		}
	}
}

func TestByRole(t *testing.T) {
	svc := newJWT(time.Hour)
	m := NewAuthMiddleware(svc)
	named := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) { c.String(http.StatusOK, name) }
	}
	router := gin.New()
	router.GET("/page", m.JWTAuth(), ByRole(named("student"), named("assistant"), named("coordinator")))

	for role, want := range map[models.Role]string{
		models.RoleStudent:     "student",
		models.RoleAssistant:   "assistant",
		models.RoleCoordinator: "coordinator",
	} {
		req := httptest.NewRequest(http.MethodGet, "/page", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, svc, role))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Body.String())
	}

	// a context without a role never reaches a handler
	bare := gin.New()
	bare.GET("/page", ByRole(named("student"), named("assistant"), named("coordinator")))
	w := httptest.NewRecorder()
	bare.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/page", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   dto.ErrorCode
	}{
		{apperrors.NewForbiddenError("no"), http.StatusForbidden, dto.ErrorCodeForbidden},
		{apperrors.NewValidationError("bad title"), http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{apperrors.ErrCapacityReached, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{apperrors.NewBadRequestError("bad id"), http.StatusBadRequest, dto.ErrorCodeBadRequest},
		{fmt.Errorf("%w: %w", apperrors.ErrValidationFailed, apperrors.ErrNoAssistantsAvailable), http.StatusBadRequest, dto.ErrorCodeNoAssistants},
		{apperrors.ErrCourseNotFound, http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{fmt.Errorf("load: %w", apperrors.ErrConnectionNotFound), http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{apperrors.ErrAlreadyReserved, http.StatusConflict, dto.ErrorCodeResourceAlreadyExists},
		{apperrors.NewConflictError("busy"), http.StatusConflict, dto.ErrorCodeConflict},
		{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, dto.ErrorCodeInvalidCredentials},
		{apperrors.ErrUnauthorized, http.StatusUnauthorized, dto.ErrorCodeUnauthorized},
		{errors.New("disk on fire"), http.StatusInternalServerError, dto.ErrorCodeInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code, _ := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestHandleAPIError(t *testing.T) {
	router := gin.New()
	router.GET("/forbidden", func(c *gin.Context) {
		HandleAPIError(c, apperrors.NewForbiddenError("Only the coordinator of this course can do this"))
	})
	router.GET("/internal", func(c *gin.Context) {
		HandleAPIError(c, errors.New("pq: connection refused on 10.0.0.3"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/forbidden", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeError(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "Only the coordinator of this course can do this", resp.Error.Message)

	// internal details stay in the log
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeError(t, w).Error.Message)
}

func TestRecoveryAndRequestLogger(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()), RequestLogger(zerolog.Nop()))
	router.GET("/panic", func(*gin.Context) { panic("boom") })
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.ErrorCodeInternalServer, decodeError(t, w).Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
}

func TestBindJSON(t *testing.T) {
	router := gin.New()
	router.POST("/login", func(c *gin.Context) {
		var req dto.LoginRequest
		if !BindJSON(c, &req) {
			return
		}
		c.String(http.StatusOK, req.Username)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"kari"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, dto.ErrorCodeValidationFailed, resp.Error.Code)
	assert.Equal(t, "password", resp.Error.Field)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"kari","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "kari", w.Body.String())
}
