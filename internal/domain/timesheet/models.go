package timesheet

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusSubmitted        Status = "SUBMITTED"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
	StatusRevisionRequired Status = "REVISION_REQUIRED"
)

// Editable reports whether the owner may still change worklogs and submit.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRevisionRequired
}

const (
	EntityTimesheet = "TIMESHEET"
	EntityWorklog   = "TIMESHEET_WORKLOG"

	ActionCreateHeader    = "CREATE_HEADER"
	ActionUpsertWorklog   = "UPSERT_WORKLOG"
	ActionSubmit          = "SUBMIT"
	ActionApproveL1       = "APPROVE_L1"
	ActionApprove         = "APPROVE"
	ActionReject          = "REJECT"
	ActionRequestRevision = "REQUEST_REVISION"
)

type Transition struct {
	Status   Status    `json:"status"`
	Level    int       `json:"level,omitempty"`
	ActorID  string    `json:"actorId"`
	Reason   string    `json:"reason,omitempty"`
	Override bool      `json:"override,omitempty"`
	At       time.Time `json:"at"`
}

type Worklog struct {
	ID          string          `json:"id"`
	TimesheetID string          `json:"timesheetId"`
	WorkDate    time.Time       `json:"workDate"`
	Task        string          `json:"task"`
	Hours       decimal.Decimal `json:"hours"`
	Description string          `json:"description"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Timesheet is a weekly header. Worklogs are only loaded by Get.
type Timesheet struct {
	ID                   string       `json:"id"`
	EmployeeID           string       `json:"employeeId"`
	PeriodStart          time.Time    `json:"periodStart"`
	PeriodEnd            time.Time    `json:"periodEnd"`
	Status               Status       `json:"status"`
	PendingApprovalLevel int          `json:"pendingApprovalLevel"`
	History              []Transition `json:"history"`
	Worklogs             []Worklog    `json:"worklogs,omitempty"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

type Timeline struct {
	SubmittedAt             *time.Time `json:"submittedAt,omitempty"`
	ApprovedL1At            *time.Time `json:"approvedL1At,omitempty"`
	ApprovedL2At            *time.Time `json:"approvedL2At,omitempty"`
	RejectedAt              *time.Time `json:"rejectedAt,omitempty"`
	RejectedReason          string     `json:"rejectedReason,omitempty"`
	RevisionRequestedAt     *time.Time `json:"revisionRequestedAt,omitempty"`
	RevisionRequestedReason string     `json:"revisionRequestedReason,omitempty"`
}

// Timeline flattens the history. A resubmission after revision resets the
// approval timestamps.
func (t Timesheet) Timeline() Timeline {
	var tl Timeline
	for _, tr := range t.History {
		at := tr.At
		switch {
		case tr.Status == StatusSubmitted && tr.Level == 0:
			tl.SubmittedAt = &at
			tl.ApprovedL1At, tl.ApprovedL2At = nil, nil
		case tr.Level == 1:
			tl.ApprovedL1At = &at
		case tr.Level == 2:
			tl.ApprovedL2At = &at
		case tr.Status == StatusRejected:
			tl.RejectedAt = &at
			tl.RejectedReason = tr.Reason
		case tr.Status == StatusRevisionRequired:
			tl.RevisionRequestedAt = &at
			tl.RevisionRequestedReason = tr.Reason
		}
	}
	return tl
}

func (t Timesheet) MarshalJSON() ([]byte, error) {
	type plain Timesheet
	return json.Marshal(struct {
		plain
		Timeline
	}{plain(t), t.Timeline()})
}

func (t Timesheet) clone() Timesheet {
	out := t
	out.History = append([]Transition(nil), t.History...)
	out.Worklogs = append([]Worklog(nil), t.Worklogs...)
	return out
}

type WorklogInput struct {
	TimesheetID    string
	WorkDate       time.Time
	Task           string
	Hours          decimal.Decimal
	Description    string
	OverrideReason string
}

type DecisionInput struct {
	Reason         string
	OverrideReason string
}

type QueueList struct {
	Items []Timesheet `json:"items"`
	Total int         `json:"total"`
}

type Policy struct {
	ApprovalLevels int
	MaxHoursPerDay decimal.Decimal
}
