package auth

import (
	"context"
	"errors"
	"time"

	pkgAuth "github.com/angelmondragon/cafepos-backend/pkg/auth"
	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/db"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/security"
	"github.com/google/uuid"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	CreateStaff(ctx context.Context, req CreateStaffRequest) (*StaffDTO, error)
}

type staffRepository interface {
	Create(ctx context.Context, staff *models.StaffUser) error
	FindByEmail(ctx context.Context, email string) (*models.StaffUser, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	StaffRepo      staffRepository
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

type service struct {
	staff     staffRepository
	jwtCfg    config.JWTConfig
	passwords *security.Hasher
	logg      *logger.Logger
	now       func() time.Time
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.StaffRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "staff repository required")
	}
	if params.JWTConfig.Secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "jwt secret required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		staff:     params.StaffRepo,
		jwtCfg:    params.JWTConfig,
		passwords: security.NewHasher(params.PasswordConfig),
		logg:      logg,
		now:       now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	staff, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.staff.UpdateLastLogin(ctx, staff.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	staff.LastLoginAt = &now

	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		StaffID: staff.ID,
		Name:    staff.Name,
		Role:    staff.Role,
		JTI:     uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	ctx = s.logg.WithStaffID(ctx, staff.ID.String())
	s.logg.Info(ctx, "auth.login")

	return &LoginResponse{
		AccessToken: token,
		ExpiresAt:   now.Add(time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute),
		Staff:       staffFromModel(staff),
	}, nil
}

func (s *service) CreateStaff(ctx context.Context, req CreateStaffRequest) (*StaffDTO, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required").
			WithDetails(map[string]string{"email": "is required"})
	}
	if !req.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid staff role").
			WithDetails(map[string]string{"role": "must be one of manager, cashier, kitchen, driver"})
	}

	hash, err := s.passwords.Hash(req.Password)
	if errors.Is(err, security.ErrEmptyPassword) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password is required").
			WithDetails(map[string]string{"password": "is required"})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	staff := &models.StaffUser{
		ID:           uuid.New(),
		Email:        email,
		Name:         req.Name,
		Role:         req.Role,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create staff user")
	}

	ctx = s.logg.WithStaffID(ctx, staff.ID.String())
	s.logg.Info(ctx, "auth.staff_created")

	dto := staffFromModel(staff)
	return &dto, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.StaffUser, error) {
	input := normalizeEmail(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	staff, err := s.staff.FindByEmail(ctx, input)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup staff user")
	}

	match, stale, err := s.passwords.Verify(password, staff.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !match || !staff.Active {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if stale {
		s.rehash(ctx, staff, password)
	}
	return staff, nil
}

// rehash upgrades a hash made with older argon settings. Failure only costs
// another attempt at the next login.
func (s *service) rehash(ctx context.Context, staff *models.StaffUser, password string) {
	ctx = s.logg.WithStaffID(ctx, staff.ID.String())
	hash, err := s.passwords.Hash(password)
	if err == nil {
		err = s.staff.UpdatePasswordHash(ctx, staff.ID, hash)
	}
	if err != nil {
		s.logg.Error(ctx, "auth.rehash_failed", err)
		return
	}
	staff.PasswordHash = hash
	s.logg.Info(ctx, "auth.password_rehashed")
}
