package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetHasAnyHasAll(t *testing.T) {
	set := NewSet(PermLeaveApproveL1, PermTimesheetApproveL1)

	assert.True(t, set.HasAny(PermLeaveApproveL2, PermLeaveApproveL1))
	assert.False(t, set.HasAny(PermLeaveApproveL2, PermAuditRead))
	assert.True(t, set.HasAll(PermLeaveApproveL1, PermTimesheetApproveL1))
	assert.False(t, set.HasAll(PermLeaveApproveL1, PermLeaveApproveL2))
	assert.True(t, set.HasAll())
	assert.False(t, set.HasAny())
}

func TestSuperAdminHoldsEverything(t *testing.T) {
	set := SetForRole(RoleSuperAdmin)
	assert.True(t, set.HasAll(DefaultPermissions...))
	assert.Len(t, set.List(), len(DefaultPermissions))
}

func TestUnknownRoleIsEmpty(t *testing.T) {
	assert.Empty(t, SetForRole("CONTRACTOR"))
}

func TestActorOwns(t *testing.T) {
	actor := Actor{UserID: "u1", EmployeeID: "e1"}
	assert.True(t, actor.Owns("e1"))
	assert.False(t, actor.Owns("e2"))
	assert.False(t, Actor{UserID: "u2"}.Owns(""))
}
