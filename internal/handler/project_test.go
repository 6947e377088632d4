package handler

import (
	"net/http"
	"testing"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/progress"
)

func newProjectHandler(e *testEnv) *ProjectHandler {
	return NewProjectHandler(e.projects, e.expenses, e.recorder, e.notifier, nil, e.logger)
}

func TestProjectCreateValidation(t *testing.T) {
	e := newTestEnv(t)
	h := newProjectHandler(e)
	u := e.user(t, "owner@example.com", model.RoleUser)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"title": "  "}},
		{"bad status", map[string]any{"title": "A", "status": "archived"}},
		{"negative budget", map[string]any{"title": "A", "budget": -1}},
		{"bad deadline", map[string]any{"title": "A", "deadline": "next week"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h.Create, request(t, "POST", "/api/projects", tt.body, u))
			wantStatus(t, rec, http.StatusBadRequest)
		})
	}
	if len(e.recorder.events) != 0 {
		t.Errorf("recorded %d activities for rejected requests", len(e.recorder.events))
	}
}

func TestProjectCreate(t *testing.T) {
	e := newTestEnv(t)
	h := newProjectHandler(e)
	u := e.user(t, "owner@example.com", model.RoleUser)

	rec := serve(h.Create, request(t, "POST", "/api/projects", map[string]any{
		"title":    "Website",
		"budget":   5000,
		"deadline": "2026-12-01",
	}, u))
	wantStatus(t, rec, http.StatusCreated)

	p := decode[model.Project](t, rec)
	if p.Status != "active" {
		t.Errorf("status = %q, want active", p.Status)
	}
	if p.CreatedBy == nil || *p.CreatedBy != u.ID {
		t.Errorf("created_by = %v, want %d", p.CreatedBy, u.ID)
	}

	ev := e.recorder.last(t)
	if ev.Action != activity.ActionCreated || ev.Entity != activity.EntityProject || ev.ActorID != u.ID {
		t.Errorf("event = %+v", ev)
	}
	d, ok := ev.Details.(activity.ProjectDetails)
	if !ok || d.Title != "Website" {
		t.Errorf("details = %#v", ev.Details)
	}
}

func TestProjectUpdateRecordsPreviousValues(t *testing.T) {
	e := newTestEnv(t)
	h := newProjectHandler(e)
	owner := e.user(t, "owner@example.com", model.RoleUser)
	other := e.user(t, "other@example.com", model.RoleUser)
	p := e.project(t, owner, "Website", ptr(1000.0))

	req := withID(request(t, "PUT", "/api/projects/1", map[string]any{
		"title":  "Website v2",
		"status": "on-hold",
		"budget": 1500,
	}, other), p.ID)
	rec := serve(h.Update, req)
	wantStatus(t, rec, http.StatusOK)

	d := e.recorder.last(t).Details.(activity.ProjectDetails)
	if d.PreviousValues == nil {
		t.Fatal("previous values missing")
	}
	if d.PreviousValues.Title != "Website" || d.PreviousValues.Status != "active" {
		t.Errorf("previous = %+v", d.PreviousValues)
	}
	if d.PreviousValues.Budget == nil || *d.PreviousValues.Budget != 1000 {
		t.Errorf("previous budget = %v, want 1000", d.PreviousValues.Budget)
	}

	if len(e.notifier.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(e.notifier.sent))
	}
	n := e.notifier.sent[0]
	if n.UserID != owner.ID || n.Category != model.CategoryProject {
		t.Errorf("notification = %+v", n)
	}
}

func TestProjectUpdateByOwnerDoesNotNotify(t *testing.T) {
	e := newTestEnv(t)
	h := newProjectHandler(e)
	owner := e.user(t, "owner@example.com", model.RoleUser)
	p := e.project(t, owner, "Website", nil)

	req := withID(request(t, "PUT", "/", map[string]any{"title": "Website", "status": "completed"}, owner), p.ID)
	wantStatus(t, serve(h.Update, req), http.StatusOK)

	if len(e.notifier.sent) != 0 {
		t.Errorf("notifications = %d, want 0", len(e.notifier.sent))
	}
}

func TestProjectGetNotFound(t *testing.T) {
	e := newTestEnv(t)
	h := newProjectHandler(e)
	u := e.user(t, "owner@example.com", model.RoleUser)

	rec := serve(h.Get, withID(request(t, "GET", "/", nil, u), 404))
	wantStatus(t, rec, http.StatusNotFound)
}

func TestProjectDelete(t *testing.T) {
	e := newTestEnv(t)
	h := newProjectHandler(e)
	u := e.user(t, "owner@example.com", model.RoleUser)
	p := e.project(t, u, "Website", nil)

	wantStatus(t, serve(h.Delete, withID(request(t, "DELETE", "/", nil, u), p.ID)), http.StatusNoContent)

	got, _ := e.projects.GetByID(p.ID)
	if got != nil {
		t.Error("project still exists")
	}
	if ev := e.recorder.last(t); ev.Action != activity.ActionDeleted {
		t.Errorf("action = %q, want deleted", ev.Action)
	}
}

func TestProjectBudgetOverspent(t *testing.T) {
	e := newTestEnv(t)
	h := newProjectHandler(e)
	u := e.user(t, "owner@example.com", model.RoleUser)
	p := e.project(t, u, "Website", ptr(1000.0))

	for _, amount := range []float64{600, 500} {
		if _, err := e.expenses.Create(model.Expense{Amount: amount, Description: "x", ProjectID: p.ID, ExpenseDate: "2026-10-01"}); err != nil {
			t.Fatalf("create expense: %v", err)
		}
	}

	rec := serve(h.Budget, withID(request(t, "GET", "/", nil, u), p.ID))
	wantStatus(t, rec, http.StatusOK)

	s := decode[progress.Summary](t, rec)
	if s.TotalExpenses != 1100 || s.Remaining != -100 {
		t.Errorf("total = %v remaining = %v", s.TotalExpenses, s.Remaining)
	}
	if s.PercentageUsed != 110 || s.BarPercentage != 100 || s.Status != progress.StatusOver {
		t.Errorf("summary = %+v", s)
	}
}
