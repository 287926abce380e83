package auth

import (
	"context"
	"testing"
	"time"

	pkgAuth "github.com/angelmondragon/cafepos-backend/pkg/auth"
	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "cafepos",
	ExpirationMinutes: 30,
}

// cheap argon params keep the suite fast
var testPassword = config.PasswordConfig{
	ArgonMemoryKB:    1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.StaffUser{}))

	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{
		StaffRepo:      repo,
		JWTConfig:      testJWT,
		PasswordConfig: testPassword,
		Now:            func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc, repo
}

func TestLoginIssuesTokenWithRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateStaff(ctx, CreateStaffRequest{
		Email:    " Barista@Cafe.test ",
		Name:     "Ana",
		Role:     enums.StaffRoleCashier,
		Password: "flat-white-42",
	})
	require.NoError(t, err)
	assert.Equal(t, "barista@cafe.test", created.Email)

	resp, err := svc.Login(ctx, LoginRequest{Email: "BARISTA@cafe.test", Password: "flat-white-42"})
	require.NoError(t, err)

	claims, err := pkgAuth.ParseAccessTokenAt(testJWT, resp.AccessToken, time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.StaffID)
	assert.Equal(t, enums.StaffRoleCashier, claims.Role)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, resp.Staff.LastLoginAt)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), resp.ExpiresAt)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateStaff(ctx, CreateStaffRequest{
		Email: "kitchen@cafe.test", Name: "Lu", Role: enums.StaffRoleKitchen, Password: "espresso-shot",
	})
	require.NoError(t, err)

	cases := []LoginRequest{
		{Email: "kitchen@cafe.test", Password: "wrong-password"},
		{Email: "nobody@cafe.test", Password: "espresso-shot"},
		{Email: "  ", Password: "espresso-shot"},
	}
	for _, req := range cases {
		_, err := svc.Login(ctx, req)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "login %q", req.Email)
	}

	staff, err := repo.FindByEmail(ctx, "kitchen@cafe.test")
	require.NoError(t, err)
	assert.Nil(t, staff.LastLoginAt)
}

func TestLoginRejectsInactiveStaff(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateStaff(ctx, CreateStaffRequest{
		Email: "driver@cafe.test", Name: "Mo", Role: enums.StaffRoleDriver, Password: "cold-brew-99",
	})
	require.NoError(t, err)
	require.NoError(t, repo.db.Model(&models.StaffUser{}).Where("id = ?", created.ID).Update("active", false).Error)

	_, err = svc.Login(ctx, LoginRequest{Email: "driver@cafe.test", Password: "cold-brew-99"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestLoginRehashesPasswordsFromOlderSettings(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateStaff(ctx, CreateStaffRequest{
		Email: "manager@cafe.test", Name: "Sol", Role: enums.StaffRoleManager, Password: "macchiato-7",
	})
	require.NoError(t, err)
	before, err := repo.FindByEmail(ctx, "manager@cafe.test")
	require.NoError(t, err)

	stronger := testPassword
	stronger.ArgonTime = 2
	upgraded, err := NewService(ServiceParams{StaffRepo: repo, JWTConfig: testJWT, PasswordConfig: stronger})
	require.NoError(t, err)
	_, err = upgraded.Login(ctx, LoginRequest{Email: "manager@cafe.test", Password: "macchiato-7"})
	require.NoError(t, err)

	after, err := repo.FindByEmail(ctx, "manager@cafe.test")
	require.NoError(t, err)
	assert.NotEqual(t, before.PasswordHash, after.PasswordHash)
	assert.Contains(t, after.PasswordHash, "t=2")

	_, err = svc.Login(ctx, LoginRequest{Email: "manager@cafe.test", Password: "macchiato-7"})
	assert.NoError(t, err)
}

func TestCreateStaffValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateStaff(ctx, CreateStaffRequest{
		Email: "x@cafe.test", Name: "X", Role: enums.StaffRole("owner"), Password: "long-enough",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateStaff(ctx, CreateStaffRequest{Email: "y@cafe.test", Name: "Y", Role: enums.StaffRoleCashier})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req := CreateStaffRequest{Email: "dup@cafe.test", Name: "D", Role: enums.StaffRoleManager, Password: "long-enough"}
	_, err = svc.CreateStaff(ctx, req)
	require.NoError(t, err)
	_, err = svc.CreateStaff(ctx, req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{JWTConfig: testJWT})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{StaffRepo: NewRepository(nil)})
	assert.Error(t, err)
}
