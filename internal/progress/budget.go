// Package progress holds the percentage math behind goal progress and
// project budgets.
package progress

import (
	"fmt"
	"math"
)

const (
	WarnThreshold = 80.0
	OverThreshold = 100.0
)

// Budget status values.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusOver    = "over"
)

// BudgetWarning describes what adding amount to a project would do to its
// budget. existing is the project's current total, already excluding the
// expense being edited. Returns "" when there is nothing to warn about.
func BudgetWarning(budget *float64, existing, amount float64) string {
	if budget == nil || *budget <= 0 || amount <= 0 {
		return ""
	}
	total := existing + amount
	pct := total / *budget * 100

	switch {
	case pct > OverThreshold:
		return fmt.Sprintf("This expense will put the project over budget by $%s. Total will be $%s of $%s budget.",
			FormatMoney(total-*budget), FormatMoney(total), FormatMoney(*budget))
	case pct > WarnThreshold:
		return fmt.Sprintf("This expense will use %.1f%% of the project budget ($%s of $%s).",
			pct, FormatMoney(total), FormatMoney(*budget))
	}
	return ""
}

// Summary is a project's spend against its budget.
type Summary struct {
	ProjectID      int64   `json:"project_id"`
	ProjectTitle   string  `json:"project_title"`
	Budget         float64 `json:"budget"`
	TotalExpenses  float64 `json:"total_expenses"`
	Remaining      float64 `json:"remaining_budget"`
	PercentageUsed int     `json:"percentage_used"`
	BarPercentage  int     `json:"bar_percentage"`
	Status         string  `json:"status"`
}

// Summarize computes a budget summary. PercentageUsed is not clamped, so an
// overspent project reports more than 100; BarPercentage is capped at 100.
// A project without a budget reports 0%.
func Summarize(projectID int64, title string, budget *float64, spent float64) Summary {
	s := Summary{
		ProjectID:     projectID,
		ProjectTitle:  title,
		TotalExpenses: spent,
	}
	if budget != nil {
		s.Budget = *budget
	}
	s.Remaining = s.Budget - spent
	if s.Budget > 0 {
		s.PercentageUsed = int(math.Round(spent / s.Budget * 100))
	}
	s.BarPercentage = min(s.PercentageUsed, 100)
	s.Status = statusFor(float64(s.PercentageUsed))
	return s
}

func statusFor(pct float64) string {
	switch {
	case pct >= OverThreshold:
		return StatusOver
	case pct >= WarnThreshold:
		return StatusWarning
	}
	return StatusOK
}
