package governance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coreops/internal/domain/apperr"
	"coreops/internal/domain/audit"
	"coreops/internal/domain/auth"
	"coreops/internal/platform/clock"
)

type Service struct {
	Store StoreAPI
	Audit *audit.Writer
	Clock clock.Clock
}

func NewService(store StoreAPI, writer *audit.Writer, c clock.Clock) *Service {
	if c == nil {
		c = clock.System{}
	}
	return &Service{Store: store, Audit: writer, Clock: c}
}

// CloseMonth locks a month for good. Closing an already closed month returns
// the existing record and records nothing.
func (s *Service) CloseMonth(ctx context.Context, actor auth.Actor, in CloseInput) (MonthClose, error) {
	if !actor.HasAny(auth.PermMonthCloseExecute) {
		return MonthClose{}, apperr.PermissionDenied(string(auth.PermMonthCloseExecute))
	}
	monthEnd, err := ParseMonth(in.Month)
	if err != nil {
		return MonthClose{}, apperr.Validation("month", "must be YYYY-MM")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return MonthClose{}, apperr.Validation("reason", "is required")
	}
	if !ConfirmationMatches(monthEnd, in.Confirmation) {
		return MonthClose{}, apperr.Validation("confirmation", "must equal "+ConfirmationPhrase(monthEnd)).
			With("expected", ConfirmationPhrase(monthEnd))
	}

	var out MonthClose
	err = s.Audit.WithAudit(ctx, func(ctx context.Context, trail *audit.Trail) error {
		current, err := s.Store.LockMonth(ctx, monthEnd, true)
		if err != nil {
			return err
		}
		if current.Closed() {
			out = current
			trail.Unchanged()
			return nil
		}

		now := s.Clock.Now().UTC()
		next := current
		next.Status = StatusClosed
		next.ClosedAt = &now
		next.ClosedBy = actor.UserID
		next.Reason = reason
		if err := s.Store.MarkClosed(ctx, next); err != nil {
			return err
		}
		out = next
		trail.Add(audit.Entry{
			ActorID:    actor.UserID,
			Action:     ActionClose,
			EntityType: EntityMonthClose,
			EntityID:   monthEnd.Format("2006-01-02"),
			Reason:     reason,
			Before:     current,
			After:      next,
		})
		return nil
	})
	if err != nil {
		return MonthClose{}, err
	}
	return out, nil
}

// IsClosed reports whether the month containing date is closed. Inside a
// transaction the month stays share-locked until commit, so a concurrent
// close cannot slip in between the check and the write.
func (s *Service) IsClosed(ctx context.Context, date time.Time) (bool, error) {
	rec, err := s.Store.LockMonth(ctx, MonthEnd(date), false)
	if err != nil {
		return false, err
	}
	return rec.Closed(), nil
}

// Guard fails with MonthLocked when any month covering dates is closed,
// unless the actor holds the override permission and gave a reason.
func (s *Service) Guard(ctx context.Context, actor auth.Actor, override auth.Permission, overrideReason string, dates ...time.Time) (GuardResult, error) {
	var result GuardResult
	canOverride := actor.HasAny(override)
	hasReason := strings.TrimSpace(overrideReason) != ""
	for _, monthEnd := range MonthEnds(dates...) {
		closed, err := s.IsClosed(ctx, monthEnd)
		if err != nil {
			return GuardResult{}, fmt.Errorf("governance: guard %s: %w", MonthKey(monthEnd), err)
		}
		if !closed {
			continue
		}
		if !canOverride || !hasReason {
			return GuardResult{}, apperr.MonthLocked(monthEnd.Format("2006-01-02"), canOverride)
		}
		result.Override = true
		result.ClosedMonths = append(result.ClosedMonths, MonthKey(monthEnd))
	}
	return result, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor, year int) ([]MonthClose, error) {
	if !actor.HasAny(auth.PermMonthCloseRead, auth.PermMonthCloseExecute) {
		return nil, apperr.PermissionDenied(string(auth.PermMonthCloseRead))
	}
	if year < 1970 || year > 9999 {
		return nil, apperr.Validation("year", "is out of range")
	}
	return s.Store.List(ctx, year)
}
