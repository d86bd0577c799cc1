package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"parking-service/internal/repository"
)

func newAuthService(t *testing.T) *Service {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&repository.User{}))

	users := repository.NewUserRepository(gdb)
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &repository.User{
		Username:       "sami",
		FullName:       "Sami Ben Ali",
		Email:          "sami@example.com",
		HashedPassword: hash,
		Role:           RoleAdmin,
		Active:         true,
	}))
	require.NoError(t, users.Create(context.Background(), &repository.User{
		Username:       "mounir",
		FullName:       "Disabled Account",
		Email:          "off@example.com",
		HashedPassword: hash,
		Role:           RoleStaff,
		Active:         false,
	}))
	return NewService(users, "test-secret", time.Hour)
}

func TestLoginAndVerify(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	token, user, err := svc.Login(ctx, "sami", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "sami", user.Username)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "sami", claims.Username)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, user.ID, claims.Subject)
}

func TestLoginFailures(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "sami", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Deactivated accounts cannot log in even with the right password.
	_, _, err = svc.Login(ctx, "mounir", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsForgedToken(t *testing.T) {
	svc := newAuthService(t)
	other := NewService(nil, "other-secret", time.Hour)

	token, _, err := svc.Login(context.Background(), "sami", "s3cret")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)

	_, err = svc.Verify(token + "x")
	assert.Error(t, err)
}

func TestMiddlewareAndRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newAuthService(t)

	r := gin.New()
	r.GET("/admin", svc.Middleware(), RequireRoles(RoleAdmin, RoleSuperadmin), func(c *gin.Context) {
		claims := ClaimsFrom(c)
		c.JSON(http.StatusOK, gin.H{"user": claims.Username})
	})
	r.GET("/staff-only", svc.Middleware(), RequireRoles(RoleStaff), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token, _, err := svc.Login(context.Background(), "sami", "s3cret")
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no token", "/admin", "", http.StatusUnauthorized},
		{"malformed header", "/admin", "Token abc", http.StatusUnauthorized},
		{"bad token", "/admin", "Bearer not-a-token", http.StatusUnauthorized},
		{"authorized role", "/admin", "Bearer " + token, http.StatusOK},
		{"insufficient role", "/staff-only", "Bearer " + token, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
