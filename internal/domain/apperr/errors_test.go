package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("approve: %w", NotFound("leave request", "r1"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected wrapped not found to match sentinel")
	}
	if errors.Is(err, ErrInvalidTransition) {
		t.Fatal("did not expect invalid transition match")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(MonthLocked("2026-02-28", true)); got != KindMonthLocked {
		t.Fatalf("expected month locked, got %q", got)
	}
	if got := KindOf(errors.New("boom")); got != "" {
		t.Fatalf("expected empty kind, got %q", got)
	}
}

func TestInsufficientBalanceDetails(t *testing.T) {
	err := InsufficientBalance("2", "3", "1")
	details := DetailsOf(fmt.Errorf("wrap: %w", err))
	if details["shortfall"] != "1" || details["available"] != "2" || details["requested"] != "3" {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestVersionConflictCarriesCurrent(t *testing.T) {
	details := DetailsOf(VersionConflict(4))
	if details["currentVersion"] != 4 {
		t.Fatalf("expected current version 4, got %+v", details)
	}
}
