package timesheet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coreops/internal/domain/apperr"
	"coreops/internal/domain/audit"
	"coreops/internal/domain/auth"
	"coreops/internal/domain/governance"
	"coreops/internal/platform/clock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MonthGuard interface {
	Guard(ctx context.Context, actor auth.Actor, override auth.Permission, overrideReason string, dates ...time.Time) (governance.GuardResult, error)
}

type Service struct {
	Store  StoreAPI
	Months MonthGuard
	Audit  *audit.Writer
	Clock  clock.Clock
	Policy Policy
}

func NewService(store StoreAPI, months MonthGuard, writer *audit.Writer, c clock.Clock, policy Policy) *Service {
	if c == nil {
		c = clock.System{}
	}
	if policy.ApprovalLevels < 1 {
		policy.ApprovalLevels = 1
	}
	if !policy.MaxHoursPerDay.IsPositive() {
		policy.MaxHoursPerDay = decimal.NewFromInt(8)
	}
	return &Service{Store: store, Months: months, Audit: writer, Clock: c, Policy: policy}
}

// UpsertWorklog records hours on the actor's own timesheet. Without a
// timesheet id the header for the week of the work date is used, and created
// in DRAFT when missing.
func (s *Service) UpsertWorklog(ctx context.Context, actor auth.Actor, in WorklogInput) (Worklog, error) {
	if !actor.HasAny(auth.PermTimesheetWorklogWrite) {
		return Worklog{}, apperr.PermissionDenied(string(auth.PermTimesheetWorklogWrite))
	}
	if err := validateWorklog(in, s.Policy.MaxHoursPerDay, clock.Today(s.Clock)); err != nil {
		return Worklog{}, err
	}
	workDate := dateOnly(in.WorkDate)
	task := strings.TrimSpace(in.Task)

	var out Worklog
	err := s.Audit.WithAudit(ctx, func(ctx context.Context, trail *audit.Trail) error {
		ts, err := s.headerFor(ctx, actor, in.TimesheetID, workDate, trail)
		if err != nil {
			return err
		}
		if !ts.Status.Editable() {
			return apperr.InvalidTransition("timesheet", string(ts.Status), "edit")
		}
		guard, err := s.Months.Guard(ctx, actor, auth.PermTimesheetMonthOverride, in.OverrideReason, workDate)
		if err != nil {
			return err
		}
		if !inPeriod(ts, workDate) {
			return apperr.Validation("workDate", "is outside the timesheet period").
				With("periodStart", ts.PeriodStart.Format("2006-01-02")).
				With("periodEnd", ts.PeriodEnd.Format("2006-01-02"))
		}

		logs, err := s.Store.ListWorklogs(ctx, ts.ID)
		if err != nil {
			return err
		}
		if total := dayTotal(logs, workDate, task).Add(in.Hours); total.GreaterThan(s.Policy.MaxHoursPerDay) {
			return apperr.Validation("hours", "day total "+total.String()+" exceeds the daily maximum of "+s.Policy.MaxHoursPerDay.String())
		}

		var before any
		w := Worklog{ID: uuid.NewString()}
		for _, existing := range logs {
			if existing.WorkDate.Equal(workDate) && existing.Task == task {
				before = existing
				w.ID = existing.ID
			}
		}
		w.TimesheetID = ts.ID
		w.WorkDate = workDate
		w.Task = task
		w.Hours = in.Hours
		w.Description = strings.TrimSpace(in.Description)
		w.UpdatedAt = s.Clock.Now().UTC()
		saved, err := s.Store.UpsertWorklog(ctx, w)
		if err != nil {
			return err
		}
		out = saved
		trail.Add(audit.Entry{
			ActorID:    actor.UserID,
			Action:     ActionUpsertWorklog,
			EntityType: EntityWorklog,
			EntityID:   saved.ID,
			Reason:     overrideReason(guard, in.OverrideReason),
			Override:   guard.Override,
			Before:     before,
			After:      saved,
		})
		return nil
	})
	if err != nil {
		return Worklog{}, err
	}
	return out, nil
}

func (s *Service) headerFor(ctx context.Context, actor auth.Actor, id string, workDate time.Time, trail *audit.Trail) (Timesheet, error) {
	if id != "" {
		ts, err := s.Store.GetForUpdate(ctx, id)
		if err != nil {
			return Timesheet{}, err
		}
		if !actor.Owns(ts.EmployeeID) {
			return Timesheet{}, hidden(actor, id)
		}
		return ts, nil
	}
	if actor.EmployeeID == "" {
		return Timesheet{}, apperr.Validation("timesheetId", "is required for actors without an employee record")
	}

	start, end := PeriodFor(workDate)
	ts, found, err := s.Store.FindByPeriodForUpdate(ctx, actor.EmployeeID, start)
	if err != nil || found {
		return ts, err
	}
	now := s.Clock.Now().UTC()
	ts = Timesheet{
		ID:                   uuid.NewString(),
		EmployeeID:           actor.EmployeeID,
		PeriodStart:          start,
		PeriodEnd:            end,
		Status:               StatusDraft,
		PendingApprovalLevel: 1,
		History:              []Transition{{Status: StatusDraft, ActorID: actor.UserID, At: now}},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	created, err := s.Store.Insert(ctx, ts)
	if err != nil {
		return Timesheet{}, err
	}
	if !created {
		ts, found, err = s.Store.FindByPeriodForUpdate(ctx, actor.EmployeeID, start)
		if err != nil {
			return Timesheet{}, err
		}
		if !found {
			return Timesheet{}, fmt.Errorf("timesheet: header for %s vanished after insert conflict", start.Format("2006-01-02"))
		}
		return ts, nil
	}
	trail.Add(audit.Entry{
		ActorID:    actor.UserID,
		Action:     ActionCreateHeader,
		EntityType: EntityTimesheet,
		EntityID:   ts.ID,
		After:      ts,
	})
	return ts, nil
}

func (s *Service) Submit(ctx context.Context, actor auth.Actor, id string, in DecisionInput) (Timesheet, error) {
	if !actor.HasAny(auth.PermTimesheetSubmit) {
		return Timesheet{}, apperr.PermissionDenied(string(auth.PermTimesheetSubmit))
	}
	owner := func(ts Timesheet) error {
		if !actor.Owns(ts.EmployeeID) {
			return hidden(actor, id)
		}
		return nil
	}
	editable := func(ts Timesheet) error {
		if !ts.Status.Editable() {
			return apperr.InvalidTransition("timesheet", string(ts.Status), "submit")
		}
		return nil
	}
	return s.transition(ctx, actor, id, in, owner, editable, func(ctx context.Context, ts *Timesheet, tr *Transition) (string, error) {
		logs, err := s.Store.ListWorklogs(ctx, ts.ID)
		if err != nil {
			return "", err
		}
		if len(logs) == 0 {
			return "", apperr.Validation("worklogs", "at least one worklog is required")
		}
		ts.Status = StatusSubmitted
		ts.PendingApprovalLevel = 1
		tr.Status = StatusSubmitted
		return ActionSubmit, nil
	})
}

// Approve advances a SUBMITTED timesheet by one level.
func (s *Service) Approve(ctx context.Context, actor auth.Actor, id string, in DecisionInput) (Timesheet, error) {
	approver := func(ts Timesheet) error {
		return requirePermission(actor, ts, approvalPermission(s.Policy.ApprovalLevels, ts.PendingApprovalLevel))
	}
	return s.transition(ctx, actor, id, in, approver, requireSubmitted("approve"), func(_ context.Context, ts *Timesheet, tr *Transition) (string, error) {
		tr.Level = ts.PendingApprovalLevel
		if s.Policy.ApprovalLevels <= 1 || ts.PendingApprovalLevel >= 2 {
			ts.Status = StatusApproved
			tr.Status = StatusApproved
			return ActionApprove, nil
		}
		ts.PendingApprovalLevel = 2
		tr.Status = StatusSubmitted
		return ActionApproveL1, nil
	})
}

func (s *Service) Reject(ctx context.Context, actor auth.Actor, id string, in DecisionInput) (Timesheet, error) {
	return s.decide(ctx, actor, id, in, StatusRejected, ActionReject, "reject")
}

// RequestRevision sends a SUBMITTED timesheet back to its owner for edits.
func (s *Service) RequestRevision(ctx context.Context, actor auth.Actor, id string, in DecisionInput) (Timesheet, error) {
	return s.decide(ctx, actor, id, in, StatusRevisionRequired, ActionRequestRevision, "request revision")
}

func (s *Service) decide(ctx context.Context, actor auth.Actor, id string, in DecisionInput, next Status, action, op string) (Timesheet, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Timesheet{}, apperr.Validation("reason", "is required")
	}
	in.Reason = reason
	approver := func(ts Timesheet) error {
		return requirePermission(actor, ts, auth.PermTimesheetApproveL1)
	}
	return s.transition(ctx, actor, id, in, approver, requireSubmitted(op), func(_ context.Context, ts *Timesheet, tr *Transition) (string, error) {
		ts.Status = next
		ts.PendingApprovalLevel = 1
		tr.Status = next
		return action, nil
	})
}

type applyFunc func(ctx context.Context, ts *Timesheet, tr *Transition) (string, error)

func requireSubmitted(op string) func(Timesheet) error {
	return func(ts Timesheet) error {
		if ts.Status != StatusSubmitted {
			return apperr.InvalidTransition("timesheet", string(ts.Status), op)
		}
		return nil
	}
}

// transition locks the header, authorizes the actor against it, checks the
// source status and only then guards the month of the period end, so a retry
// on a finished sheet reports InvalidTransition even in a closed month.
func (s *Service) transition(ctx context.Context, actor auth.Actor, id string, in DecisionInput, authorize, precondition func(Timesheet) error, fn applyFunc) (Timesheet, error) {
	var out Timesheet
	err := s.Audit.WithAudit(ctx, func(ctx context.Context, trail *audit.Trail) error {
		ts, err := s.Store.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(ts); err != nil {
			return err
		}
		if err := precondition(ts); err != nil {
			return err
		}
		guard, err := s.Months.Guard(ctx, actor, auth.PermTimesheetMonthOverride, in.OverrideReason, ts.PeriodEnd)
		if err != nil {
			return err
		}

		before := ts.clone()
		now := s.Clock.Now().UTC()
		tr := Transition{ActorID: actor.UserID, Reason: strings.TrimSpace(in.Reason), Override: guard.Override, At: now}
		action, err := fn(ctx, &ts, &tr)
		if err != nil {
			return err
		}
		ts.UpdatedAt = now
		ts.History = append(ts.History, tr)
		if err := s.Store.UpdateState(ctx, ts, tr); err != nil {
			return err
		}
		out = ts
		reason := tr.Reason
		if guard.Override {
			reason = overrideReason(guard, in.OverrideReason)
		}
		trail.Add(audit.Entry{
			ActorID:    actor.UserID,
			Action:     action,
			EntityType: EntityTimesheet,
			EntityID:   ts.ID,
			Reason:     reason,
			Override:   guard.Override,
			Before:     before,
			After:      ts,
		})
		return nil
	})
	if err != nil {
		return Timesheet{}, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (Timesheet, error) {
	if !actor.HasAny(auth.PermTimesheetRead, auth.PermTimesheetReadAny) {
		return Timesheet{}, apperr.PermissionDenied(string(auth.PermTimesheetRead))
	}
	ts, err := s.Store.Get(ctx, id)
	if err != nil {
		return Timesheet{}, err
	}
	if !actor.Owns(ts.EmployeeID) && !actor.HasAny(auth.PermTimesheetReadAny) {
		return Timesheet{}, apperr.NotFound("timesheet", id)
	}
	return ts, nil
}

func (s *Service) ApprovalQueue(ctx context.Context, actor auth.Actor, limit, offset int) (QueueList, error) {
	if !actor.HasAny(auth.PermTimesheetApprovalQueue) {
		return QueueList{}, apperr.PermissionDenied(string(auth.PermTimesheetApprovalQueue))
	}
	return s.Store.ListSubmitted(ctx, limit, offset)
}

func requirePermission(actor auth.Actor, ts Timesheet, perm auth.Permission) error {
	if actor.HasAny(perm) {
		return nil
	}
	if !actor.Owns(ts.EmployeeID) && !actor.HasAny(auth.PermTimesheetReadAny) {
		return apperr.NotFound("timesheet", ts.ID)
	}
	return apperr.PermissionDenied(string(perm))
}

// hidden keeps other employees' timesheets invisible to actors who cannot
// read them.
func hidden(actor auth.Actor, id string) error {
	if actor.HasAny(auth.PermTimesheetReadAny) {
		return apperr.PermissionDenied(string(auth.PermTimesheetWorklogWrite))
	}
	return apperr.NotFound("timesheet", id)
}

func overrideReason(guard governance.GuardResult, reason string) string {
	if !guard.Override {
		return ""
	}
	return strings.TrimSpace(reason)
}
