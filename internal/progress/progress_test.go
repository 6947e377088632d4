package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func budgetOf(v float64) *float64 { return &v }

func TestFormatMoney(t *testing.T) {
	tests := map[float64]string{
		0:          "0",
		100:        "100",
		1000:       "1,000",
		1234567.5:  "1,234,567.5",
		99.999:     "100",
		12.34:      "12.34",
		-2500.25:   "-2,500.25",
		999999.004: "999,999",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatMoney(in), "FormatMoney(%v)", in)
	}
}

func TestBudgetWarningOverBudget(t *testing.T) {
	got := BudgetWarning(budgetOf(1000), 600, 500)
	assert.Equal(t, "This expense will put the project over budget by $100. Total will be $1,100 of $1,000 budget.", got)
}

func TestBudgetWarningNearBudget(t *testing.T) {
	got := BudgetWarning(budgetOf(1000), 600, 250)
	assert.Equal(t, "This expense will use 85.0% of the project budget ($850 of $1,000).", got)
}

func TestBudgetWarningNone(t *testing.T) {
	assert.Empty(t, BudgetWarning(budgetOf(1000), 100, 100), "well under budget")
	assert.Empty(t, BudgetWarning(budgetOf(1000), 700, 100), "exactly 80% is not over 80%")
	assert.Empty(t, BudgetWarning(nil, 600, 500), "no budget")
	assert.Empty(t, BudgetWarning(budgetOf(0), 600, 500), "zero budget")
	assert.Empty(t, BudgetWarning(budgetOf(1000), 2000, 0), "non-positive amount")
}

func TestBudgetWarningExactlyFull(t *testing.T) {
	got := BudgetWarning(budgetOf(1000), 500, 500)
	assert.Equal(t, "This expense will use 100.0% of the project budget ($1,000 of $1,000).", got)
}

func TestSummarize(t *testing.T) {
	s := Summarize(1, "Website", budgetOf(1000), 1500)
	assert.Equal(t, 150, s.PercentageUsed, "percentage is not clamped")
	assert.Equal(t, 100, s.BarPercentage)
	assert.Equal(t, -500.0, s.Remaining)
	assert.Equal(t, StatusOver, s.Status)

	s = Summarize(2, "Office", budgetOf(1000), 800)
	assert.Equal(t, 80, s.PercentageUsed)
	assert.Equal(t, StatusWarning, s.Status)

	s = Summarize(3, "Research", nil, 250)
	assert.Equal(t, 0, s.PercentageUsed)
	assert.Equal(t, StatusOK, s.Status)
	assert.Equal(t, -250.0, s.Remaining)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 150, Percent(150, 100), "raw percent is unclamped")
	assert.Equal(t, 100, BarPercent(150, 100))
	assert.Equal(t, 0, BarPercent(-5, 100))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 0, Percent(10, 0))
}

func TestApplySetClamps(t *testing.T) {
	u, err := Apply(ModeSet, 20, 150, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, u.Value)
	assert.Equal(t, 100, u.Percent)
	assert.Equal(t, 20, u.PreviousPercent)
	assert.True(t, u.Completed)

	u, err = Apply(ModeSet, 20, -10, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, u.Value)
}

func TestApplyIncrement(t *testing.T) {
	u, err := Apply(ModeIncrement, 40, 25, 100)
	require.NoError(t, err)
	assert.Equal(t, 65.0, u.Value)
	assert.Equal(t, 65, u.Percent)
	assert.False(t, u.Completed)

	u, err = Apply(ModeIncrement, 100, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, u.Value)
	assert.False(t, u.Completed, "already complete")
}

func TestApplyZeroTarget(t *testing.T) {
	u, err := Apply(ModeSet, 0, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, u.Value)
	assert.Equal(t, 0, u.Percent)
}

func TestApplyInvalidMode(t *testing.T) {
	_, err := Apply("multiply", 1, 2, 3)
	assert.ErrorIs(t, err, ErrInvalidMode)
}
