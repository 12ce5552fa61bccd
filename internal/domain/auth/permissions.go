package auth

// Permission is a closed set of capability tags. Handlers and services only
// accept these constants, so a misspelt permission fails to compile.
type Permission string

const (
	PermLeaveRequestCreate    Permission = "leave.request.create"
	PermLeaveRequestCreateAny Permission = "leave.request.create_any"
	PermLeaveRequestRead      Permission = "leave.request.read"
	PermLeaveRequestReadAny   Permission = "leave.request.read_any"
	PermLeaveRequestCancelAny Permission = "leave.request.cancel_any"
	PermLeaveApproveL1        Permission = "leave.approve.l1"
	PermLeaveApproveL2        Permission = "leave.approve.l2"
	PermLeaveBalanceRead      Permission = "leave.balance.read"
	PermLeaveBalanceGrant     Permission = "leave.balance.grant"
	PermLeaveTypeRead         Permission = "leave.type.read"
	PermLeaveTypeWrite        Permission = "leave.type.write"
	PermLeaveMonthOverride    Permission = "leave.month_close.override"

	PermTimesheetRead          Permission = "timesheet.read"
	PermTimesheetReadAny       Permission = "timesheet.read_any"
	PermTimesheetWorklogWrite  Permission = "timesheet.worklog.write"
	PermTimesheetSubmit        Permission = "timesheet.submit"
	PermTimesheetApproveL1     Permission = "timesheet.approve.l1"
	PermTimesheetApproveL2     Permission = "timesheet.approve.l2"
	PermTimesheetApprovalQueue Permission = "timesheet.approval_queue.read"
	PermTimesheetMonthOverride Permission = "timesheet.month_close.override"
	PermMonthCloseExecute      Permission = "governance.month_close.execute"
	PermMonthCloseRead         Permission = "governance.month_close.read"
	PermAuditRead              Permission = "governance.audit.read"
	PermAuditExport            Permission = "governance.audit.export"
	PermAuditVerify            Permission = "governance.audit.verify"
)

const (
	RoleEmployee   = "EMPLOYEE"
	RoleManager    = "MANAGER"
	RoleHR         = "HR_ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

var DefaultPermissions = []Permission{
	PermLeaveRequestCreate,
	PermLeaveRequestCreateAny,
	PermLeaveRequestRead,
	PermLeaveRequestReadAny,
	PermLeaveRequestCancelAny,
	PermLeaveApproveL1,
	PermLeaveApproveL2,
	PermLeaveBalanceRead,
	PermLeaveBalanceGrant,
	PermLeaveTypeRead,
	PermLeaveTypeWrite,
	PermLeaveMonthOverride,
	PermTimesheetRead,
	PermTimesheetReadAny,
	PermTimesheetWorklogWrite,
	PermTimesheetSubmit,
	PermTimesheetApproveL1,
	PermTimesheetApproveL2,
	PermTimesheetApprovalQueue,
	PermTimesheetMonthOverride,
	PermMonthCloseExecute,
	PermMonthCloseRead,
	PermAuditRead,
	PermAuditExport,
	PermAuditVerify,
}

var employeePermissions = []Permission{
	PermLeaveRequestCreate,
	PermLeaveRequestRead,
	PermLeaveBalanceRead,
	PermLeaveTypeRead,
	PermTimesheetRead,
	PermTimesheetWorklogWrite,
	PermTimesheetSubmit,
}

var RolePermissions = map[string][]Permission{
	RoleEmployee: employeePermissions,
	RoleManager: append(append([]Permission{}, employeePermissions...),
		PermLeaveRequestReadAny,
		PermLeaveApproveL1,
		PermTimesheetReadAny,
		PermTimesheetApproveL1,
		PermTimesheetApprovalQueue,
		PermMonthCloseRead,
	),
	RoleHR: append(append([]Permission{}, employeePermissions...),
		PermLeaveRequestCreateAny,
		PermLeaveRequestReadAny,
		PermLeaveRequestCancelAny,
		PermLeaveApproveL1,
		PermLeaveApproveL2,
		PermLeaveBalanceGrant,
		PermLeaveTypeWrite,
		PermTimesheetReadAny,
		PermTimesheetApproveL1,
		PermTimesheetApproveL2,
		PermTimesheetApprovalQueue,
		PermMonthCloseRead,
		PermAuditRead,
		PermAuditExport,
	),
	RoleSuperAdmin: DefaultPermissions,
}

func (p Permission) Valid() bool {
	for _, known := range DefaultPermissions {
		if p == known {
			return true
		}
	}
	return false
}
