package leave

import (
	"fmt"

	"coreops/internal/domain/apperr"

	"github.com/shopspring/decimal"
)

// Balance columns are NUMERIC(8,2). Amounts outside that shape would be
// rounded or rejected by Postgres after the audit snapshot was taken.
const balanceScale = 2

var MaxBalanceAmount = decimal.RequireFromString("999999.99")

// CheckAmount rejects values the balance columns cannot store exactly.
func CheckAmount(field string, v decimal.Decimal) error {
	switch {
	case v.IsNegative():
		return apperr.Validation(field, "must not be negative")
	case !v.Equal(v.Round(balanceScale)):
		return apperr.Validation(field, "must have at most 2 decimal places")
	case v.GreaterThan(MaxBalanceAmount):
		return apperr.Validation(field, "must not exceed "+MaxBalanceAmount.String())
	}
	return nil
}

// Available is opening + granted - consumed.
func (b Balance) Available() decimal.Decimal {
	return b.Opening.Add(b.Granted).Sub(b.Consumed)
}

// CheckAvailable fails with InsufficientBalance when units exceed what is
// available.
func (b Balance) CheckAvailable(units decimal.Decimal) error {
	available := b.Available()
	if units.GreaterThan(available) {
		return apperr.InsufficientBalance(available.String(), units.String(), units.Sub(available).String())
	}
	return nil
}

// Grant adds to the granted total and optionally resets the opening balance.
func (b *Balance) Grant(opening *decimal.Decimal, amount decimal.Decimal) error {
	if err := CheckAmount("grantAmount", amount); err != nil {
		return err
	}
	if opening != nil {
		if err := CheckAmount("openingBalance", *opening); err != nil {
			return err
		}
	}
	granted := b.Granted.Add(amount)
	if granted.GreaterThan(MaxBalanceAmount) {
		return apperr.Validation("grantAmount", "granted total would exceed "+MaxBalanceAmount.String())
	}
	if opening != nil {
		b.Opening = *opening
	}
	b.Granted = granted
	return nil
}

// Deduct consumes units, keeping available non-negative.
func (b *Balance) Deduct(units decimal.Decimal) error {
	if !units.IsPositive() {
		return fmt.Errorf("leave: deduct non-positive units %s", units)
	}
	if err := b.CheckAvailable(units); err != nil {
		return err
	}
	b.Consumed = b.Consumed.Add(units)
	return nil
}

// Restore gives back units consumed by an approved request.
func (b *Balance) Restore(units decimal.Decimal) error {
	if !units.IsPositive() {
		return fmt.Errorf("leave: restore non-positive units %s", units)
	}
	if units.GreaterThan(b.Consumed) {
		return fmt.Errorf("leave: restore %s exceeds consumed %s", units, b.Consumed)
	}
	b.Consumed = b.Consumed.Sub(units)
	return nil
}
