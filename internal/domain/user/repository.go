package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, u *User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, phone, password_hash, role, approval_status, is_active, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.Email, u.Phone, u.PasswordHash, u.Role, u.ApprovalStatus, u.IsActive, u.Balance, u.Currency, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "users_phone_key" {
				return ErrDuplicatePhone
			}
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// SetApproval moves a pending registration to approved or rejected.
// Approval also activates the account.
func (r *Repository) SetApproval(ctx context.Context, id uuid.UUID, status ApprovalStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET approval_status = $2, is_active = ($2 = 'approved'), updated_at = now()
		WHERE id = $1 AND approval_status = 'pending'
	`, id, status)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish missing from already-decided
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyDecided
	}
	return nil
}

func (r *Repository) ListPending(ctx context.Context, limit, offset int) ([]*User, error) {
	var users []*User
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM users
		WHERE approval_status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return users, err
}
