package leave

import (
	"context"
	"strings"
	"time"

	"coreops/internal/domain/apperr"
	"coreops/internal/domain/audit"
	"coreops/internal/domain/auth"
	"coreops/internal/domain/governance"
	"coreops/internal/platform/clock"

	"github.com/google/uuid"
)

// MonthGuard rejects writes that touch a closed month.
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
	return &Service{Store: store, Months: months, Audit: writer, Clock: c, Policy: policy}
}

// Submit creates a SUBMITTED request awaiting the first approval level. Paid
// types are checked against the balance but nothing is deducted until final
// approval.
func (s *Service) Submit(ctx context.Context, actor auth.Actor, in SubmitInput) (Request, error) {
	if !actor.HasAny(auth.PermLeaveRequestCreate, auth.PermLeaveRequestCreateAny) {
		return Request{}, apperr.PermissionDenied(string(auth.PermLeaveRequestCreate))
	}
	if in.EmployeeID == "" {
		in.EmployeeID = actor.EmployeeID
	}
	if in.EmployeeID == "" {
		return Request{}, apperr.Validation("employeeId", "is required")
	}
	if !actor.Owns(in.EmployeeID) && !actor.HasAny(auth.PermLeaveRequestCreateAny) {
		return Request{}, apperr.PermissionDenied(string(auth.PermLeaveRequestCreateAny))
	}
	units, err := validateSubmit(in, s.Policy, clock.Today(s.Clock))
	if err != nil {
		return Request{}, err
	}
	start, end := dateOnly(in.StartDate), dateOnly(in.EndDate)

	var out Request
	err = s.Audit.WithAudit(ctx, func(ctx context.Context, trail *audit.Trail) error {
		lt, err := s.Store.GetType(ctx, in.LeaveTypeID)
		if err != nil {
			return err
		}
		if !lt.IsActive {
			return apperr.Validation("leaveTypeId", "is inactive")
		}
		if in.Unit == UnitHalfDay && !lt.SupportsHalfDay {
			return apperr.Validation("unit", "leave type does not support half days")
		}

		guard, err := s.Months.Guard(ctx, actor, auth.PermLeaveMonthOverride, in.OverrideReason, start, end)
		if err != nil {
			return err
		}

		if lt.IsPaid {
			bal, _, err := s.Store.GetBalance(ctx, in.EmployeeID, lt.ID, start.Year())
			if err != nil {
				return err
			}
			if err := bal.CheckAvailable(units); err != nil {
				return err
			}
		}

		now := s.Clock.Now().UTC()
		req := Request{
			ID:                   uuid.NewString(),
			EmployeeID:           in.EmployeeID,
			LeaveTypeID:          lt.ID,
			StartDate:            start,
			EndDate:              end,
			Unit:                 in.Unit,
			HalfDayPart:          in.HalfDayPart,
			Units:                units,
			Reason:               strings.TrimSpace(in.Reason),
			Status:               StatusSubmitted,
			PendingApprovalLevel: 1,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		req.History = []Transition{{
			Status:   StatusSubmitted,
			ActorID:  actor.UserID,
			Reason:   req.Reason,
			Override: guard.Override,
			At:       now,
		}}
		if err := s.Store.InsertRequest(ctx, req); err != nil {
			return err
		}
		out = req
		trail.Add(audit.Entry{
			ActorID:    actor.UserID,
			Action:     ActionSubmit,
			EntityType: EntityLeaveRequest,
			EntityID:   req.ID,
			Reason:     auditReason(req.Reason, guard, in.OverrideReason),
			Override:   guard.Override,
			After:      req,
		})
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	return out, nil
}

// Approve advances a SUBMITTED request by one level. The final level moves it
// to APPROVED and deducts paid units from the balance.
func (s *Service) Approve(ctx context.Context, actor auth.Actor, id string, in DecisionInput) (Request, error) {
	var out Request
	err := s.Audit.WithAudit(ctx, func(ctx context.Context, trail *audit.Trail) error {
		req, err := s.Store.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		perms := approvalPermissions(s.Policy.ApprovalLevels, req.PendingApprovalLevel)
		if !actor.HasAny(perms...) {
			return apperr.PermissionDenied(string(perms[0]))
		}
		if req.Status != StatusSubmitted {
			return apperr.InvalidTransition("leave request", string(req.Status), "approve")
		}
		guard, err := s.Months.Guard(ctx, actor, auth.PermLeaveMonthOverride, in.OverrideReason, req.StartDate, req.EndDate)
		if err != nil {
			return err
		}

		before := req.clone()
		now := s.Clock.Now().UTC()
		reason := strings.TrimSpace(in.Reason)
		final := s.Policy.ApprovalLevels <= 1 || req.PendingApprovalLevel >= 2
		tr := Transition{
			Level:    req.PendingApprovalLevel,
			ActorID:  actor.UserID,
			Reason:   reason,
			Override: guard.Override,
			At:       now,
		}
		action := ActionApproveL1

		var balance *Balance
		if final {
			action = ActionApprove
			tr.Status = StatusApproved
			req.Status = StatusApproved
			balance, err = s.consume(ctx, req, now)
			if err != nil {
				return err
			}
		} else {
			tr.Status = StatusSubmitted
			req.PendingApprovalLevel = 2
		}
		req.UpdatedAt = now
		req.History = append(req.History, tr)
		if err := s.Store.UpdateRequestState(ctx, req, tr); err != nil {
			return err
		}
		out = req
		trail.Add(audit.Entry{
			ActorID:    actor.UserID,
			Action:     action,
			EntityType: EntityLeaveRequest,
			EntityID:   req.ID,
			Reason:     auditReason(reason, guard, in.OverrideReason),
			Override:   guard.Override,
			Before:     before,
			After:      approvalSnapshot{Request: req, Balance: balance},
		})
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	return out, nil
}

// consume deducts an approved request from its balance. Unpaid types leave the
// ledger untouched and return nil.
func (s *Service) consume(ctx context.Context, req Request, now time.Time) (*Balance, error) {
	lt, err := s.Store.GetType(ctx, req.LeaveTypeID)
	if err != nil {
		return nil, err
	}
	if !lt.IsPaid {
		return nil, nil
	}
	bal, _, err := s.Store.GetBalanceForUpdate(ctx, req.EmployeeID, req.LeaveTypeID, req.StartDate.Year())
	if err != nil {
		return nil, err
	}
	if err := bal.Deduct(req.Units); err != nil {
		return nil, err
	}
	bal.UpdatedAt = now
	if err := s.Store.UpdateBalance(ctx, bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// Reject ends a SUBMITTED request. The balance is untouched since nothing was
// deducted before final approval.
func (s *Service) Reject(ctx context.Context, actor auth.Actor, id string, in DecisionInput) (Request, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Request{}, apperr.Validation("reason", "is required")
	}
	var out Request
	err := s.Audit.WithAudit(ctx, func(ctx context.Context, trail *audit.Trail) error {
		req, err := s.Store.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		perms := approvalPermissions(s.Policy.ApprovalLevels, req.PendingApprovalLevel)
		if !actor.HasAny(perms...) {
			return apperr.PermissionDenied(string(perms[0]))
		}
		if req.Status != StatusSubmitted {
			return apperr.InvalidTransition("leave request", string(req.Status), "reject")
		}
		guard, err := s.Months.Guard(ctx, actor, auth.PermLeaveMonthOverride, in.OverrideReason, req.StartDate, req.EndDate)
		if err != nil {
			return err
		}

		before := req.clone()
		now := s.Clock.Now().UTC()
		tr := Transition{Status: StatusRejected, ActorID: actor.UserID, Reason: reason, Override: guard.Override, At: now}
		req.Status = StatusRejected
		req.UpdatedAt = now
		req.History = append(req.History, tr)
		if err := s.Store.UpdateRequestState(ctx, req, tr); err != nil {
			return err
		}
		out = req
		trail.Add(audit.Entry{
			ActorID:    actor.UserID,
			Action:     ActionReject,
			EntityType: EntityLeaveRequest,
			EntityID:   req.ID,
			Reason:     auditReason(reason, guard, in.OverrideReason),
			Override:   guard.Override,
			Before:     before,
			After:      req,
		})
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	return out, nil
}

// Cancel withdraws a SUBMITTED or APPROVED request. Cancelling an approved
// paid request restores its units.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id string, in DecisionInput) (Request, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Request{}, apperr.Validation("reason", "is required")
	}
	var out Request
	err := s.Audit.WithAudit(ctx, func(ctx context.Context, trail *audit.Trail) error {
		req, err := s.Store.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Owns(req.EmployeeID) && !actor.HasAny(auth.PermLeaveRequestCancelAny) {
			if !actor.HasAny(auth.PermLeaveRequestReadAny) {
				return apperr.NotFound("leave request", id)
			}
			return apperr.PermissionDenied(string(auth.PermLeaveRequestCancelAny))
		}
		if req.Status != StatusSubmitted && req.Status != StatusApproved {
			return apperr.InvalidTransition("leave request", string(req.Status), "cancel")
		}
		guard, err := s.Months.Guard(ctx, actor, auth.PermLeaveMonthOverride, in.OverrideReason, req.StartDate, req.EndDate)
		if err != nil {
			return err
		}
		today := clock.Today(s.Clock)
		if req.Status == StatusApproved && req.StartDate.Before(today) &&
			!s.Policy.AllowCancelPastApproved && !actor.HasAny(auth.PermLeaveRequestCancelAny) {
			return apperr.PermissionDenied(string(auth.PermLeaveRequestCancelAny)).
				With("reason", "approved leave already started")
		}

		before := req.clone()
		now := s.Clock.Now().UTC()
		var balance *Balance
		if req.Status == StatusApproved {
			balance, err = s.restore(ctx, req, now)
			if err != nil {
				return err
			}
		}
		tr := Transition{Status: StatusCancelled, ActorID: actor.UserID, Reason: reason, Override: guard.Override, At: now}
		req.Status = StatusCancelled
		req.UpdatedAt = now
		req.History = append(req.History, tr)
		if err := s.Store.UpdateRequestState(ctx, req, tr); err != nil {
			return err
		}
		out = req
		trail.Add(audit.Entry{
			ActorID:    actor.UserID,
			Action:     ActionCancel,
			EntityType: EntityLeaveRequest,
			EntityID:   req.ID,
			Reason:     auditReason(reason, guard, in.OverrideReason),
			Override:   guard.Override,
			Before:     before,
			After:      approvalSnapshot{Request: req, Balance: balance},
		})
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	return out, nil
}

func (s *Service) restore(ctx context.Context, req Request, now time.Time) (*Balance, error) {
	lt, err := s.Store.GetType(ctx, req.LeaveTypeID)
	if err != nil {
		return nil, err
	}
	if !lt.IsPaid {
		return nil, nil
	}
	bal, found, err := s.Store.GetBalanceForUpdate(ctx, req.EmployeeID, req.LeaveTypeID, req.StartDate.Year())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFound("leave balance", req.EmployeeID)
	}
	if err := bal.Restore(req.Units); err != nil {
		return nil, err
	}
	bal.UpdatedAt = now
	if err := s.Store.UpdateBalance(ctx, bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// Grant credits a balance, creating the (employee, type, year) row on first
// use.
func (s *Service) Grant(ctx context.Context, actor auth.Actor, in GrantInput) (Balance, error) {
	if !actor.HasAny(auth.PermLeaveBalanceGrant) {
		return Balance{}, apperr.PermissionDenied(string(auth.PermLeaveBalanceGrant))
	}
	reason := strings.TrimSpace(in.Reason)
	switch {
	case strings.TrimSpace(in.EmployeeID) == "":
		return Balance{}, apperr.Validation("employeeId", "is required")
	case strings.TrimSpace(in.LeaveTypeID) == "":
		return Balance{}, apperr.Validation("leaveTypeId", "is required")
	case in.Year < 1970 || in.Year > 9999:
		return Balance{}, apperr.Validation("year", "is out of range")
	case reason == "":
		return Balance{}, apperr.Validation("reason", "is required")
	case in.OpeningBalance == nil && in.GrantAmount.IsZero():
		return Balance{}, apperr.Validation("grantAmount", "must be positive when openingBalance is omitted")
	}

	var out Balance
	err := s.Audit.WithAudit(ctx, func(ctx context.Context, trail *audit.Trail) error {
		if _, err := s.Store.GetType(ctx, in.LeaveTypeID); err != nil {
			return err
		}
		bal, found, err := s.Store.GetBalanceForUpdate(ctx, in.EmployeeID, in.LeaveTypeID, in.Year)
		if err != nil {
			return err
		}
		var before any
		if found {
			before = bal
		} else {
			bal = Balance{
				ID:          uuid.NewString(),
				EmployeeID:  in.EmployeeID,
				LeaveTypeID: in.LeaveTypeID,
				Year:        in.Year,
			}
		}
		if err := bal.Grant(in.OpeningBalance, in.GrantAmount); err != nil {
			return err
		}
		if bal.Available().IsNegative() {
			return apperr.Validation("openingBalance", "would leave the balance below consumed units")
		}
		bal.UpdatedAt = s.Clock.Now().UTC()
		if found {
			err = s.Store.UpdateBalance(ctx, bal)
		} else {
			err = s.Store.InsertBalance(ctx, bal)
		}
		if err != nil {
			return err
		}
		out = bal
		trail.Add(audit.Entry{
			ActorID:    actor.UserID,
			Action:     ActionGrant,
			EntityType: EntityLeaveBalance,
			EntityID:   bal.ID,
			Reason:     reason,
			Before:     before,
			After:      bal,
		})
		return nil
	})
	if err != nil {
		return Balance{}, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (Request, error) {
	if !actor.HasAny(auth.PermLeaveRequestRead, auth.PermLeaveRequestReadAny) {
		return Request{}, apperr.PermissionDenied(string(auth.PermLeaveRequestRead))
	}
	req, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !actor.Owns(req.EmployeeID) && !actor.HasAny(auth.PermLeaveRequestReadAny) {
		return Request{}, apperr.NotFound("leave request", id)
	}
	return req, nil
}

// List scopes actors without read_any to their own requests.
func (s *Service) List(ctx context.Context, actor auth.Actor, filter ListFilter, limit, offset int) (RequestList, error) {
	if !actor.HasAny(auth.PermLeaveRequestRead, auth.PermLeaveRequestReadAny) {
		return RequestList{}, apperr.PermissionDenied(string(auth.PermLeaveRequestRead))
	}
	if !actor.HasAny(auth.PermLeaveRequestReadAny) {
		if actor.EmployeeID == "" {
			return RequestList{Items: []Request{}}, nil
		}
		filter.EmployeeID = actor.EmployeeID
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return RequestList{}, apperr.Validation("to", "must not be before from")
	}
	return s.Store.ListRequests(ctx, filter, limit, offset)
}

func (s *Service) ListBalances(ctx context.Context, actor auth.Actor, employeeID string, year int) ([]Balance, error) {
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	switch {
	case actor.HasAny(auth.PermLeaveBalanceGrant, auth.PermLeaveRequestReadAny):
	case actor.Owns(employeeID) && actor.HasAny(auth.PermLeaveBalanceRead):
	default:
		return nil, apperr.PermissionDenied(string(auth.PermLeaveBalanceRead))
	}
	if employeeID == "" {
		return nil, apperr.Validation("employeeId", "is required")
	}
	if year == 0 {
		year = s.Clock.Now().UTC().Year()
	}
	return s.Store.ListBalances(ctx, employeeID, year)
}

func (s *Service) ListTypes(ctx context.Context, actor auth.Actor) ([]LeaveType, error) {
	if !actor.HasAny(auth.PermLeaveTypeRead, auth.PermLeaveTypeWrite) {
		return nil, apperr.PermissionDenied(string(auth.PermLeaveTypeRead))
	}
	return s.Store.ListTypes(ctx)
}

func (s *Service) CreateType(ctx context.Context, actor auth.Actor, in TypeInput) (LeaveType, error) {
	if !actor.HasAny(auth.PermLeaveTypeWrite) {
		return LeaveType{}, apperr.PermissionDenied(string(auth.PermLeaveTypeWrite))
	}
	in, err := normalizeTypeInput(in)
	if err != nil {
		return LeaveType{}, err
	}
	var out LeaveType
	err = s.Audit.WithAudit(ctx, func(ctx context.Context, trail *audit.Trail) error {
		taken, err := s.Store.CodeTaken(ctx, in.Code, "")
		if err != nil {
			return err
		}
		if taken {
			return apperr.Validation("code", "is already in use")
		}
		now := s.Clock.Now().UTC()
		t := applyTypeInput(LeaveType{ID: uuid.NewString(), Version: 1, CreatedAt: now}, in)
		t.UpdatedAt = now
		if err := s.Store.CreateType(ctx, t); err != nil {
			return err
		}
		out = t
		trail.Add(audit.Entry{
			ActorID:    actor.UserID,
			Action:     ActionTypeCreate,
			EntityType: EntityLeaveType,
			EntityID:   t.ID,
			After:      t,
		})
		return nil
	})
	if err != nil {
		return LeaveType{}, err
	}
	return out, nil
}

// UpdateType applies in when in.Version matches the stored version.
func (s *Service) UpdateType(ctx context.Context, actor auth.Actor, id string, in TypeInput) (LeaveType, error) {
	if !actor.HasAny(auth.PermLeaveTypeWrite) {
		return LeaveType{}, apperr.PermissionDenied(string(auth.PermLeaveTypeWrite))
	}
	if in.Version < 1 {
		return LeaveType{}, apperr.Validation("version", "is required")
	}
	in, err := normalizeTypeInput(in)
	if err != nil {
		return LeaveType{}, err
	}
	var out LeaveType
	err = s.Audit.WithAudit(ctx, func(ctx context.Context, trail *audit.Trail) error {
		current, err := s.Store.GetTypeForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Version != in.Version {
			return apperr.VersionConflict(current.Version)
		}
		taken, err := s.Store.CodeTaken(ctx, in.Code, id)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Validation("code", "is already in use")
		}
		next := applyTypeInput(current, in)
		next.Version = current.Version + 1
		next.UpdatedAt = s.Clock.Now().UTC()
		if err := s.Store.UpdateType(ctx, next); err != nil {
			return err
		}
		out = next
		trail.Add(audit.Entry{
			ActorID:    actor.UserID,
			Action:     ActionTypeUpdate,
			EntityType: EntityLeaveType,
			EntityID:   id,
			Before:     current,
			After:      next,
		})
		return nil
	})
	if err != nil {
		return LeaveType{}, err
	}
	return out, nil
}

func normalizeTypeInput(in TypeInput) (TypeInput, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.DeductionRule = strings.ToUpper(strings.TrimSpace(in.DeductionRule))
	if in.Code == "" {
		return in, apperr.Validation("code", "is required")
	}
	if in.Name == "" {
		return in, apperr.Validation("name", "is required")
	}
	if in.DeductionRule == "" {
		in.DeductionRule = "NONE"
		if in.IsPaid {
			in.DeductionRule = "BALANCE"
		}
	}
	return in, nil
}

func applyTypeInput(t LeaveType, in TypeInput) LeaveType {
	t.Code = in.Code
	t.Name = in.Name
	t.IsPaid = in.IsPaid
	t.SupportsHalfDay = in.SupportsHalfDay
	t.AffectsPayroll = in.AffectsPayroll
	t.DeductionRule = in.DeductionRule
	t.IsActive = in.IsActive
	return t
}

// auditReason prefers the override justification when a closed month was
// bypassed.
func auditReason(reason string, guard governance.GuardResult, overrideReason string) string {
	if guard.Override {
		return strings.TrimSpace(overrideReason)
	}
	return reason
}
