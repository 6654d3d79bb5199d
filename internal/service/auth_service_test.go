package service

import (
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAuthService(db *gorm.DB) *AuthService {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireTime = time.Hour
	return NewAuthService(repository.NewUserRepository(db), cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	svc := newAuthService(db)

	user := &model.User{Name: "李四", Email: "lisi@example.com", Password: "password123", Role: model.Student}
	require.NoError(t, svc.Register(user))
	require.NotEqual(t, "password123", user.Password, "password must be stored hashed")

	token, logged, err := svc.Login("lisi@example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, user.ID, logged.ID)

	claims, err := util.ParseJWT(token, "test-secret")
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, model.Student, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	svc := newAuthService(db)

	first := &model.User{Name: "a", Email: "dup@example.com", Password: "password123", Role: model.Student}
	require.NoError(t, svc.Register(first))

	second := &model.User{Name: "b", Email: "dup@example.com", Password: "password123", Role: model.Student}
	require.ErrorIs(t, svc.Register(second), util.ErrEmailRegistered)
}

func TestRegisterDowngradesAdminRole(t *testing.T) {
	db := setupTestDB(t)
	svc := newAuthService(db)

	user := &model.User{Name: "c", Email: "c@example.com", Password: "password123", Role: model.Admin}
	require.NoError(t, svc.Register(user))
	require.Equal(t, model.Student, user.Role, "self-registration must not grant admin")
}

func TestLoginWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	svc := newAuthService(db)

	user := &model.User{Name: "d", Email: "d@example.com", Password: "password123", Role: model.Student}
	require.NoError(t, svc.Register(user))

	_, _, err := svc.Login("d@example.com", "wrong-password")
	require.Error(t, err)
}

func TestLoginDisabledAccount(t *testing.T) {
	db := setupTestDB(t)
	svc := newAuthService(db)

	user := &model.User{Name: "e", Email: "e@example.com", Password: "password123", Role: model.Student}
	require.NoError(t, svc.Register(user))
	require.NoError(t, db.Model(user).Update("disabled", true).Error)

	_, _, err := svc.Login("e@example.com", "password123")
	require.ErrorIs(t, err, util.ErrPermissionDenied)
}
