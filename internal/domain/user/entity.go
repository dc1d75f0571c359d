package user

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is a capability-bearing user role. Handlers must use the named
// predicates below instead of comparing role strings.
type Role string

const (
	RoleUser        Role = "user"
	RoleAgent       Role = "agent"
	RoleDealer      Role = "dealer"
	RoleEditor      Role = "editor"
	RoleWalletAdmin Role = "wallet_admin"
	RoleAdmin       Role = "admin"
)

// Valid reports whether the role is a known one
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleDealer, RoleEditor, RoleWalletAdmin, RoleAdmin:
		return true
	}
	return false
}

// CanApproveUsers reports whether the role may approve or reject registrations
func (r Role) CanApproveUsers() bool {
	return r == RoleAdmin
}

// CanCreditWallet reports whether the role may credit or debit user wallets directly
func (r Role) CanCreditWallet() bool {
	return r == RoleAdmin || r == RoleWalletAdmin
}

// CanUpdateOrderStatus reports whether the role may drive manual order transitions
func (r Role) CanUpdateOrderStatus() bool {
	return r == RoleAdmin || r == RoleEditor
}

// CanManageStock reports whether the role may restock or adjust bundle stock
func (r Role) CanManageStock() bool {
	return r == RoleAdmin
}

// CanReconcileDeposits reports whether the role may trigger bulk deposit reconciliation
func (r Role) CanReconcileDeposits() bool {
	return r == RoleAdmin || r == RoleWalletAdmin
}

// ApprovalStatus is the registration review state
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// User represents an account with an embedded wallet
type User struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	Email          string          `db:"email" json:"email"`
	Phone          string          `db:"phone" json:"phone"`
	PasswordHash   string          `db:"password_hash" json:"-"`
	Role           Role            `db:"role" json:"role"`
	ApprovalStatus ApprovalStatus  `db:"approval_status" json:"approval_status"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	Currency       string          `db:"currency" json:"currency"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// CanTransact reports whether the wallet may be mutated at all
func (u *User) CanTransact() bool {
	return u.IsActive && u.ApprovalStatus == ApprovalApproved
}
