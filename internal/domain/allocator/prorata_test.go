package allocator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestAllocate_ExactSplit(t *testing.T) {
	targets := []Target{
		{RecordID: "A", OpenAmount: d("600.00")},
		{RecordID: "B", OpenAmount: d("400.00")},
	}

	result, err := Allocate(d("1000.00"), targets, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, result.Allocations, 2)
	assertDecimal(t, "600.00", result.Allocations[0].Amount)
	assertDecimal(t, "400.00", result.Allocations[1].Amount)
	assertDecimal(t, "0", result.Remainder)
	assert.False(t, result.HasRemainder())
	assert.Len(t, result.Rows("T1", "proportional"), 2)
}

func TestAllocate_RoundingAbsorbed(t *testing.T) {
	targets := []Target{
		{RecordID: "A", OpenAmount: d("600.00")},
		{RecordID: "B", OpenAmount: d("400.00")},
	}

	result, err := Allocate(d("1000.01"), targets, DefaultConfig())
	require.NoError(t, err)

	assertDecimal(t, "600.01", result.Allocations[0].Amount)
	assertDecimal(t, "400.00", result.Allocations[1].Amount)
	assertDecimal(t, "1000.01", result.TotalAllocated())
	assert.False(t, result.HasRemainder())
}

func TestAllocate_DriftPushedOntoLargestShare(t *testing.T) {
	// Thirds of 100.00 round to 33.33 each, leaving 0.01.
	targets := []Target{
		{RecordID: "A", OpenAmount: d("50.00")},
		{RecordID: "B", OpenAmount: d("50.00")},
		{RecordID: "C", OpenAmount: d("50.00")},
	}

	result, err := Allocate(d("100.00"), targets, DefaultConfig())
	require.NoError(t, err)

	assertDecimal(t, "33.34", result.Allocations[0].Amount)
	assertDecimal(t, "33.33", result.Allocations[1].Amount)
	assertDecimal(t, "33.33", result.Allocations[2].Amount)
	assertDecimal(t, "0.01", result.Absorbed)
	assertDecimal(t, "100.00", result.TotalAllocated())
}

func TestAllocate_RemainderRowBeyondTolerance(t *testing.T) {
	config := DefaultConfig()
	config.RemainderTolerance = decimal.Zero
	targets := []Target{
		{RecordID: "A", OpenAmount: d("50.00")},
		{RecordID: "B", OpenAmount: d("50.00")},
		{RecordID: "C", OpenAmount: d("50.00")},
	}

	result, err := Allocate(d("100.00"), targets, config)
	require.NoError(t, err)

	assert.True(t, result.HasRemainder())
	assertDecimal(t, "0.01", result.Remainder)

	rows := result.Rows("T1", "proportional")
	require.Len(t, rows, 4)
	last := rows[3]
	assert.True(t, last.IsRemainder)
	assert.True(t, last.NeedsReview)
	assert.Empty(t, last.TargetBusinessRecordID)

	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Amount)
	}
	assertDecimal(t, "100.00", sum)
}

func TestAllocate_IgnoresClosedTargets(t *testing.T) {
	targets := []Target{
		{RecordID: "A", OpenAmount: d("300.00")},
		{RecordID: "closed", OpenAmount: d("0")},
		{RecordID: "over", OpenAmount: d("-20.00")},
		{RecordID: "B", OpenAmount: d("100.00")},
	}

	result, err := Allocate(d("200.00"), targets, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, result.Allocations, 2)
	assert.Equal(t, "A", result.Allocations[0].RecordID)
	assertDecimal(t, "150.00", result.Allocations[0].Amount)
	assertDecimal(t, "50.00", result.Allocations[1].Amount)
}

func TestAllocate_Refusals(t *testing.T) {
	one := []Target{{RecordID: "A", OpenAmount: d("100.00")}, {RecordID: "B", OpenAmount: d("0")}}

	_, err := Allocate(d("100.00"), one, DefaultConfig())
	assert.ErrorIs(t, err, ErrInsufficientCandidates)

	_, err = Allocate(d("100.00"), nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrInsufficientCandidates)

	two := []Target{{RecordID: "A", OpenAmount: d("1")}, {RecordID: "B", OpenAmount: d("1")}}
	_, err = Allocate(d("0"), two, DefaultConfig())
	assert.ErrorIs(t, err, ErrNonPositiveDeposit)

	_, err = Allocate(d("-5.00"), two, DefaultConfig())
	assert.ErrorIs(t, err, ErrNonPositiveDeposit)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	c := DefaultConfig()
	c.MinTargets = 1
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)

	c = DefaultConfig()
	c.RemainderTolerance = d("-0.01")
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
}
