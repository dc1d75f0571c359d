package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleCapabilities(t *testing.T) {
	cases := []struct {
		role              Role
		approveUsers      bool
		creditWallet      bool
		updateOrderStatus bool
		manageStock       bool
		reconcileDeposits bool
	}{
		{RoleUser, false, false, false, false, false},
		{RoleAgent, false, false, false, false, false},
		{RoleDealer, false, false, false, false, false},
		{RoleEditor, false, false, true, false, false},
		{RoleWalletAdmin, false, true, false, false, true},
		{RoleAdmin, true, true, true, true, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			assert.Equal(t, tc.approveUsers, tc.role.CanApproveUsers())
			assert.Equal(t, tc.creditWallet, tc.role.CanCreditWallet())
			assert.Equal(t, tc.updateOrderStatus, tc.role.CanUpdateOrderStatus())
			assert.Equal(t, tc.manageStock, tc.role.CanManageStock())
			assert.Equal(t, tc.reconcileDeposits, tc.role.CanReconcileDeposits())
		})
	}

	assert.False(t, Role("superuser").Valid(), "unknown role must not be valid")
}

func TestCanTransact(t *testing.T) {
	assert.True(t, (&User{IsActive: true, ApprovalStatus: ApprovalApproved}).CanTransact())
	assert.False(t, (&User{IsActive: false, ApprovalStatus: ApprovalApproved}).CanTransact())
	assert.False(t, (&User{IsActive: true, ApprovalStatus: ApprovalPending}).CanTransact())
}
