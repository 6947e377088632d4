package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DashboardCounts are the raw totals behind the dashboard summary.
type DashboardCounts struct {
	Projects       int     `json:"projects" db:"projects"`
	ActiveProjects int     `json:"active_projects" db:"active_projects"`
	Tasks          int     `json:"tasks" db:"tasks"`
	CompletedTasks int     `json:"completed_tasks" db:"completed_tasks"`
	Goals          int     `json:"goals" db:"goals"`
	Users          int     `json:"users" db:"users"`
	TotalBudget    float64 `json:"total_budget" db:"total_budget"`
	BudgetedSpend  float64 `json:"budgeted_spend" db:"budgeted_spend"`
	TotalSpend     float64 `json:"total_spend" db:"total_spend"`
}

// ProjectSpend is one project's budget next to what has been spent on it.
type ProjectSpend struct {
	ProjectID int64    `json:"project_id" db:"project_id"`
	Title     string   `json:"title" db:"title"`
	Budget    *float64 `json:"budget" db:"budget"`
	Spent     float64  `json:"spent" db:"spent"`
}

type DashboardStore struct {
	db *sqlx.DB
}

func NewDashboardStore(db *sqlx.DB) *DashboardStore {
	return &DashboardStore{db: db}
}

func (s *DashboardStore) Counts(ctx context.Context) (*DashboardCounts, error) {
	var c DashboardCounts
	err := s.db.GetContext(ctx, &c, `SELECT
		(SELECT COUNT(*) FROM projects) AS projects,
		(SELECT COUNT(*) FROM projects WHERE status = 'active') AS active_projects,
		(SELECT COUNT(*) FROM tasks) AS tasks,
		(SELECT COUNT(*) FROM tasks WHERE status = 'completed') AS completed_tasks,
		(SELECT COUNT(*) FROM goals) AS goals,
		(SELECT COUNT(*) FROM users) AS users,
		(SELECT COALESCE(SUM(budget), 0) FROM projects WHERE budget IS NOT NULL) AS total_budget,
		(SELECT COALESCE(SUM(e.amount), 0) FROM expenses e JOIN projects p ON p.id = e.project_id WHERE p.budget IS NOT NULL) AS budgeted_spend,
		(SELECT COALESCE(SUM(amount), 0) FROM expenses) AS total_spend`)
	if err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	return &c, nil
}

// ProjectSpend lists every project with its summed expenses, newest project first.
func (s *DashboardStore) ProjectSpend(ctx context.Context) ([]ProjectSpend, error) {
	var rows []ProjectSpend
	err := s.db.SelectContext(ctx, &rows, `SELECT p.id AS project_id, p.title, p.budget,
		COALESCE((SELECT SUM(amount) FROM expenses e WHERE e.project_id = p.id), 0) AS spent
		FROM projects p ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("project spend: %w", err)
	}
	return rows, nil
}
