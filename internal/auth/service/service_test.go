package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/lettermill/lettermill/internal/auth/domain"
	"github.com/lettermill/lettermill/internal/auth/repository"
	"github.com/lettermill/lettermill/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (authdomain.Service, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&authdomain.User{}, &authdomain.Session{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(zap.NewNop(), repository.Provide(conn), repository.ProvideSession(conn), node)
	return svc, conn
}

func TestCreateUserNormalizesLogin(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Login:    "  Admin ",
		Email:    "Admin@Example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	require.Equal(t, "admin", user.Login)
	require.Equal(t, "admin@example.com", user.Email)
	require.NotNil(t, user.PasswordHash)
}

func TestCreateUserDuplicateLogin(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Login:    "alice",
		Password: "strong-password",
	})
	require.NoError(t, err)

	_, err = svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Login:    "alice",
		Password: "another-password",
	})
	require.ErrorIs(t, err, authdomain.ErrUserExists)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Login:    "alice",
		Password: "correct-password",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), authdomain.LoginRequest{
		Login:    "alice",
		Password: "wrong-password",
	})
	require.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Login:    "ghost",
		Password: "whatever-password",
	})
	require.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Login:    "alice",
		Password: "correct-password",
	})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Login:     "alice",
		Password:  "correct-password",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.RawToken)
	require.True(t, result.ExpiresAt.After(time.Now()))

	session, err := svc.Authenticate(context.Background(), result.RawToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, session.UserID)
}

func TestAuthenticateRevokedSession(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Login:    "alice",
		Password: "correct-password",
	})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Login:    "alice",
		Password: "correct-password",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), result.RawToken))

	_, err = svc.Authenticate(context.Background(), result.RawToken)
	require.ErrorIs(t, err, authdomain.ErrSessionRevoked)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, conn := newTestService(t)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Login:    "alice",
		Password: "correct-password",
	})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Login:    "alice",
		Password: "correct-password",
	})
	require.NoError(t, err)

	expired := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, conn.Model(&authdomain.Session{}).
		Where("id = ?", result.SessionID).
		Update("expires_at", expired).Error)

	_, err = svc.Authenticate(context.Background(), result.RawToken)
	require.ErrorIs(t, err, authdomain.ErrSessionExpired)
}

func TestAuthenticateGarbageToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "not-a-real-token")
	require.ErrorIs(t, err, authdomain.ErrInvalidSession)
}
