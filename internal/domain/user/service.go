package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bundlemart/bundlemart-api/internal/pkg/jwt"
	"github.com/bundlemart/bundlemart-api/internal/pkg/password"
)

type Service struct {
	repo   *Repository
	jwtSvc *jwt.Service
}

func NewService(repo *Repository, jwtSvc *jwt.Service) *Service {
	return &Service{repo: repo, jwtSvc: jwtSvc}
}

// RegisterInput carries validated registration data
type RegisterInput struct {
	Email    string
	Phone    string
	Password string
	Role     Role
}

// Register creates a pending, inactive account. The wallet becomes usable
// only after an admin approves the registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	role := in.Role
	if !role.Valid() || role == RoleAdmin || role == RoleWalletAdmin || role == RoleEditor {
		// Staff roles are never self-assigned at registration
		role = RoleUser
	}

	now := time.Now()
	u := &User{
		ID:             uuid.New(),
		Email:          in.Email,
		Phone:          in.Phone,
		PasswordHash:   hash,
		Role:           role,
		ApprovalStatus: ApprovalPending,
		IsActive:       false,
		Balance:        decimal.Zero,
		Currency:       "GHS",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", u.ID.String()).Str("role", string(u.Role)).Msg("User registered, pending approval")
	return u, nil
}

// Login checks credentials and issues an access token
func (s *Service) Login(ctx context.Context, email, plainPassword string) (string, *User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrBadCredentials
	}
	if !password.Verify(plainPassword, u.PasswordHash) {
		return "", nil, ErrBadCredentials
	}

	token, err := s.jwtSvc.GenerateAccessToken(u.ID, string(u.Role), u.IsActive)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Approve accepts a pending registration and activates the account
func (s *Service) Approve(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetApproval(ctx, id, ApprovalApproved); err != nil {
		return err
	}
	log.Info().Str("user_id", id.String()).Msg("User approved")
	return nil
}

// Reject declines a pending registration
func (s *Service) Reject(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetApproval(ctx, id, ApprovalRejected); err != nil {
		return err
	}
	log.Info().Str("user_id", id.String()).Msg("User rejected")
	return nil
}

func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListPending(ctx, limit, offset)
}
