package leave

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal states accept no further operation.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

type Unit string

const (
	UnitFullDay Unit = "FULL_DAY"
	UnitHalfDay Unit = "HALF_DAY"
)

type HalfDayPart string

const (
	HalfDayAM HalfDayPart = "AM"
	HalfDayPM HalfDayPart = "PM"
)

const (
	EntityLeaveRequest = "LEAVE_REQUEST"
	EntityLeaveBalance = "LEAVE_BALANCE"
	EntityLeaveType    = "LEAVE_TYPE"

	ActionSubmit     = "SUBMIT"
	ActionApproveL1  = "APPROVE_L1"
	ActionApprove    = "APPROVE"
	ActionReject     = "REJECT"
	ActionCancel     = "CANCEL"
	ActionGrant      = "LEAVE_BALANCE_GRANT"
	ActionTypeCreate = "LEAVE_TYPE_CREATE"
	ActionTypeUpdate = "LEAVE_TYPE_UPDATE"
)

type LeaveType struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	IsPaid          bool      `json:"isPaid"`
	SupportsHalfDay bool      `json:"supportsHalfDay"`
	AffectsPayroll  bool      `json:"affectsPayroll"`
	DeductionRule   string    `json:"deductionRule"`
	IsActive        bool      `json:"isActive"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Balance struct {
	ID          string          `json:"id"`
	EmployeeID  string          `json:"employeeId"`
	LeaveTypeID string          `json:"leaveTypeId"`
	Year        int             `json:"year"`
	Opening     decimal.Decimal `json:"openingBalance"`
	Granted     decimal.Decimal `json:"grantedBalance"`
	Consumed    decimal.Decimal `json:"consumedBalance"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// MarshalJSON adds the derived available balance.
func (b Balance) MarshalJSON() ([]byte, error) {
	type plain Balance
	return json.Marshal(struct {
		plain
		Available decimal.Decimal `json:"availableBalance"`
	}{plain(b), b.Available()})
}

// Transition is one entry of a request's history. Level is the approval
// level for approvals and zero otherwise.
type Transition struct {
	Status   Status    `json:"status"`
	Level    int       `json:"level,omitempty"`
	ActorID  string    `json:"actorId"`
	Reason   string    `json:"reason,omitempty"`
	Override bool      `json:"override,omitempty"`
	At       time.Time `json:"at"`
}

type Request struct {
	ID                   string          `json:"id"`
	EmployeeID           string          `json:"employeeId"`
	LeaveTypeID          string          `json:"leaveTypeId"`
	StartDate            time.Time       `json:"startDate"`
	EndDate              time.Time       `json:"endDate"`
	Unit                 Unit            `json:"unit"`
	HalfDayPart          HalfDayPart     `json:"halfDayPart,omitempty"`
	Units                decimal.Decimal `json:"units"`
	Reason               string          `json:"reason"`
	Status               Status          `json:"status"`
	PendingApprovalLevel int             `json:"pendingApprovalLevel"`
	History              []Transition    `json:"history"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// Timeline is the flat view of a request's history.
type Timeline struct {
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	ApprovedL1At    *time.Time `json:"approvedL1At,omitempty"`
	ApprovedL2At    *time.Time `json:"approvedL2At,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
	CancelReason    string     `json:"cancelReason,omitempty"`
}

func (r Request) Timeline() Timeline {
	var tl Timeline
	for _, tr := range r.History {
		at := tr.At
		switch {
		case tr.Status == StatusSubmitted && tr.Level == 0:
			tl.SubmittedAt = &at
		case tr.Level == 1:
			tl.ApprovedL1At = &at
		case tr.Level == 2:
			tl.ApprovedL2At = &at
		case tr.Status == StatusRejected:
			tl.RejectedAt = &at
			tl.RejectionReason = tr.Reason
		case tr.Status == StatusCancelled:
			tl.CancelledAt = &at
			tl.CancelReason = tr.Reason
		}
	}
	return tl
}

func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	return json.Marshal(struct {
		plain
		Timeline
	}{plain(r), r.Timeline()})
}

func (r Request) clone() Request {
	out := r
	out.History = append([]Transition(nil), r.History...)
	return out
}

type SubmitInput struct {
	EmployeeID     string
	LeaveTypeID    string
	StartDate      time.Time
	EndDate        time.Time
	Unit           Unit
	HalfDayPart    HalfDayPart
	Reason         string
	OverrideReason string
}

type DecisionInput struct {
	Reason         string
	OverrideReason string
}

type GrantInput struct {
	EmployeeID     string
	LeaveTypeID    string
	Year           int
	OpeningBalance *decimal.Decimal
	GrantAmount    decimal.Decimal
	Reason         string
}

type TypeInput struct {
	Code            string
	Name            string
	IsPaid          bool
	SupportsHalfDay bool
	AffectsPayroll  bool
	DeductionRule   string
	IsActive        bool
	Version         int
}

type ListFilter struct {
	EmployeeID string
	Status     Status
	From       time.Time
	To         time.Time
}

type RequestList struct {
	Items []Request `json:"items"`
	Total int       `json:"total"`
}

// Policy is the per-deployment leave configuration.
type Policy struct {
	ApprovalLevels          int
	AllowHalfDay            bool
	AllowBackdated          bool
	BackdateLimitDays       int
	AllowCancelPastApproved bool
}

// approvalSnapshot is the after-state of an approval or cancellation, showing
// the balance movement next to the request.
type approvalSnapshot struct {
	Request Request  `json:"request"`
	Balance *Balance `json:"balance,omitempty"`
}
