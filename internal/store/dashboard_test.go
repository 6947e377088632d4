package store

import (
	"context"
	"testing"

	"github.com/999joaquin/CoreTrack/internal/model"
)

func TestDashboardCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	mustCreateUser(t, db, "alice@example.com", "Alice")
	ps := NewProjectStore(db)
	ts := NewTaskStore(db)
	es := NewExpenseStore(db)

	budgeted := mustCreateProject(t, ps, "Website", ptr(1000.0))
	open, _ := ps.Create(model.Project{Title: "Research", Status: "on-hold"})

	ts.Create(model.Task{Title: "a", ProjectID: budgeted.ID, Status: "completed", Priority: "low"})
	ts.Create(model.Task{Title: "b", ProjectID: budgeted.ID, Status: "todo", Priority: "low"})
	es.Create(model.Expense{Amount: 300, Description: "x", ProjectID: budgeted.ID, ExpenseDate: "2026-10-01"})
	es.Create(model.Expense{Amount: 50, Description: "y", ProjectID: open.ID, ExpenseDate: "2026-10-01"})

	c, err := NewDashboardStore(db).Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if c.Projects != 2 || c.ActiveProjects != 1 {
		t.Errorf("projects = %d/%d, want 2/1", c.Projects, c.ActiveProjects)
	}
	if c.Tasks != 2 || c.CompletedTasks != 1 {
		t.Errorf("tasks = %d/%d, want 2/1", c.Tasks, c.CompletedTasks)
	}
	if c.TotalBudget != 1000 || c.BudgetedSpend != 300 || c.TotalSpend != 350 {
		t.Errorf("budget = %v/%v/%v", c.TotalBudget, c.BudgetedSpend, c.TotalSpend)
	}

	spend, err := NewDashboardStore(db).ProjectSpend(ctx)
	if err != nil {
		t.Fatalf("project spend: %v", err)
	}
	if len(spend) != 2 {
		t.Fatalf("len = %d, want 2", len(spend))
	}
	for _, p := range spend {
		if p.ProjectID == budgeted.ID && p.Spent != 300 {
			t.Errorf("spent = %v, want 300", p.Spent)
		}
		if p.ProjectID == open.ID && p.Budget != nil {
			t.Errorf("budget = %v, want nil", p.Budget)
		}
	}
}
