package leave

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreops/internal/domain/apperr"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBalanceAvailable(t *testing.T) {
	b := Balance{Opening: dec("5"), Granted: dec("2.5"), Consumed: dec("3")}
	assert.Equal(t, "4.5", b.Available().String())
}

func TestDeductAndRestore(t *testing.T) {
	b := Balance{Opening: dec("5")}

	require.NoError(t, b.Deduct(dec("3")))
	assert.Equal(t, "2", b.Available().String())

	err := b.Deduct(dec("2.5"))
	require.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	details := apperr.DetailsOf(err)
	assert.Equal(t, "2", details["available"])
	assert.Equal(t, "0.5", details["shortfall"])
	assert.Equal(t, "3", b.Consumed.String(), "failed deduct must not change the balance")

	require.NoError(t, b.Restore(dec("3")))
	assert.Equal(t, "5", b.Available().String())
	assert.Error(t, b.Restore(dec("0.5")), "cannot restore more than consumed")
}

func TestBalanceGrant(t *testing.T) {
	b := Balance{Opening: dec("1"), Granted: dec("1")}

	require.NoError(t, b.Grant(nil, dec("2")))
	assert.Equal(t, "3", b.Granted.String())

	opening := dec("10")
	require.NoError(t, b.Grant(&opening, decimal.Zero))
	assert.Equal(t, "13", b.Available().String())

	assert.ErrorIs(t, b.Grant(nil, dec("-1")), apperr.ErrValidationFailed)
	negative := dec("-2")
	assert.ErrorIs(t, b.Grant(&negative, decimal.Zero), apperr.ErrValidationFailed)
}

func TestBalanceGrantRejectsUnstorableAmounts(t *testing.T) {
	b := Balance{Granted: dec("999999")}

	err := b.Grant(nil, dec("0.005"))
	require.ErrorIs(t, err, apperr.ErrValidationFailed)
	assert.Equal(t, "grantAmount", apperr.DetailsOf(err)["field"])

	opening := dec("1000000")
	err = b.Grant(&opening, decimal.Zero)
	require.ErrorIs(t, err, apperr.ErrValidationFailed)
	assert.Equal(t, "openingBalance", apperr.DetailsOf(err)["field"])

	assert.ErrorIs(t, b.Grant(nil, dec("1")), apperr.ErrValidationFailed, "total overflows the column")
	assert.Equal(t, "999999", b.Granted.String(), "failed grants leave the balance untouched")

	require.NoError(t, b.Grant(nil, dec("0.990")))
	assert.True(t, b.Granted.Equal(dec("999999.99")))
}

func TestBalanceJSONIncludesAvailable(t *testing.T) {
	raw, err := Balance{Opening: dec("5"), Consumed: dec("1.5")}.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"availableBalance":"3.5"`)
}
