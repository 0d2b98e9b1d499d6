package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
)

func newAuth(t *testing.T) (AuthService, *env) {
	t.Helper()
	e := newEnv(t, nil)
	return NewAuthService(repository.NewUserRepository(e.db), config.JWTConfig{Secret: "test-secret", TTL: time.Hour}), e
}

func TestAuthService_RegisterLogin(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()

	u, token, err := svc.Register(ctx, " 夜行者 ", "night@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "夜行者", u.Username)
	assert.NotEqual(t, "hunter22", u.PasswordHash)

	uid, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, uid)

	_, _, err = svc.Register(ctx, "夜行者", "other@example.com", "x")
	assert.ErrorIs(t, err, ErrUserExists)

	_, token, err = svc.Login(ctx, "夜行者", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(ctx, "夜行者", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_SeedUserCannotLogin(t *testing.T) {
	svc, e := newAuth(t)
	require.NoError(t, e.db.Create(&model.User{ID: "seed-1", Username: "午夜过客", Email: "seed-1@seed.local", IsSeed: true}).Error)

	_, _, err := svc.Login(context.Background(), "午夜过客", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_ParseToken_Rejects(t *testing.T) {
	svc, _ := newAuth(t)

	_, err := svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1"}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.ParseToken(other)
	assert.ErrorIs(t, err, ErrUnauthorized)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.ParseToken(expired)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
