package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/progress"
	"github.com/999joaquin/CoreTrack/internal/store"
	"github.com/999joaquin/CoreTrack/internal/websocket"
)

type ExpenseHandler struct {
	expenseStore   *store.ExpenseStore
	projectStore   *store.ProjectStore
	taskStore      *store.TaskStore
	dashboardStore *store.DashboardStore
	recorder       Recorder
	notifier       Notifier
	hub            *websocket.Hub
	logger         *slog.Logger
	now            func() time.Time
}

func NewExpenseHandler(es *store.ExpenseStore, ps *store.ProjectStore, ts *store.TaskStore, ds *store.DashboardStore, rec Recorder, n Notifier, hub *websocket.Hub, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{
		expenseStore:   es,
		projectStore:   ps,
		taskStore:      ts,
		dashboardStore: ds,
		recorder:       rec,
		notifier:       n,
		hub:            hub,
		logger:         logger,
		now:            time.Now,
	}
}

type expenseRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	ProjectID   int64   `json:"project_id"`
	TaskID      *int64  `json:"task_id"`
	ExpenseDate string  `json:"expense_date"`
}

// expenseResponse carries the budget warning, if any, next to the stored row.
type expenseResponse struct {
	Expense       *model.Expense `json:"expense"`
	BudgetWarning string         `json:"budget_warning,omitempty"`
}

// validate returns the expense's project once the request checks out.
func (h *ExpenseHandler) validate(req *expenseRequest) (*model.Project, int, string) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return nil, http.StatusBadRequest, "description is required"
	}
	if req.Amount <= 0 {
		return nil, http.StatusBadRequest, "amount must be greater than zero"
	}
	req.ExpenseDate = strings.TrimSpace(req.ExpenseDate)
	if req.ExpenseDate == "" {
		req.ExpenseDate = h.now().Format(time.DateOnly)
	}
	if _, err := time.Parse(time.DateOnly, req.ExpenseDate); err != nil {
		return nil, http.StatusBadRequest, "expense_date must be a date (YYYY-MM-DD)"
	}
	if req.ProjectID == 0 {
		return nil, http.StatusBadRequest, "project_id is required"
	}

	project, err := h.projectStore.GetByID(req.ProjectID)
	if err != nil {
		return nil, http.StatusInternalServerError, "failed to get project"
	}
	if project == nil {
		return nil, http.StatusBadRequest, "project not found"
	}

	if req.TaskID != nil && *req.TaskID == 0 {
		req.TaskID = nil
	}
	if req.TaskID != nil {
		task, err := h.taskStore.GetByID(*req.TaskID)
		if err != nil {
			return nil, http.StatusInternalServerError, "failed to get task"
		}
		if task == nil || task.ProjectID != project.ID {
			return nil, http.StatusBadRequest, "task not found in project"
		}
	}
	return project, 0, ""
}

// budgetWarning checks the project total with the expense being edited left out.
func (h *ExpenseHandler) budgetWarning(project *model.Project, excludeID int64, amount float64) (string, error) {
	if project.Budget == nil || *project.Budget <= 0 {
		return "", nil
	}
	existing, err := h.expenseStore.ProjectTotal(project.ID, excludeID)
	if err != nil {
		return "", err
	}
	return progress.BudgetWarning(project.Budget, existing, amount), nil
}

// alertOwner tells the project owner when an expense from someone else
// pushes the project toward or past its budget.
func (h *ExpenseHandler) alertOwner(r *http.Request, project *model.Project, expense *model.Expense, warning string) {
	if warning == "" || project.CreatedBy == nil || *project.CreatedBy == auth.UserID(r.Context()) {
		return
	}
	url := fmt.Sprintf("/projects/%d", project.ID)
	text := "Review budget"
	h.notifier.Notify(r.Context(), model.Notification{
		UserID:     *project.CreatedBy,
		Title:      fmt.Sprintf("Budget alert: %s", project.Title),
		Message:    warning,
		Type:       model.NotifWarning,
		Category:   model.CategoryExpense,
		ActionURL:  &url,
		ActionText: &text,
		Metadata:   map[string]any{"project_id": project.ID, "expense_id": expense.ID},
	})
}

func expenseDetails(e *model.Expense) activity.ExpenseDetails {
	return activity.ExpenseDetails{
		Description: e.Description,
		Amount:      e.Amount,
		ProjectID:   e.ProjectID,
		TaskID:      e.TaskID,
		ExpenseDate: e.ExpenseDate,
	}
}

func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	project, status, msg := h.validate(&req)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	warning, err := h.budgetWarning(project, 0, req.Amount)
	if err != nil {
		h.logger.Error("budget check", "error", err, "project_id", project.ID)
	}

	actorID := auth.UserID(r.Context())
	expense, err := h.expenseStore.Create(model.Expense{
		Amount:      req.Amount,
		Description: req.Description,
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		ExpenseDate: req.ExpenseDate,
		CreatedBy:   &actorID,
	})
	if err != nil {
		h.logger.Error("create expense", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create expense")
		return
	}

	details := expenseDetails(expense)
	details.BudgetWarning = warning
	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionCreated,
		Entity:   activity.EntityExpense,
		EntityID: idString(expense.ID),
		Details:  details,
	})
	h.alertOwner(r, project, expense, warning)
	broadcast(h.hub, websocket.NewMessage("expense", "created", expense.ID, nil))

	writeJSON(w, http.StatusCreated, expenseResponse{Expense: expense, BudgetWarning: warning})
}

// List handles GET /api/expenses?project_id=
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.expenseStore.List(queryInt64(r, "project_id"))
	if err != nil {
		h.logger.Error("list expenses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}
	if expenses == nil {
		expenses = []model.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (h *ExpenseHandler) load(w http.ResponseWriter, r *http.Request) *model.Expense {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	expense, err := h.expenseStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get expense")
		return nil
	}
	if expense == nil {
		writeError(w, http.StatusNotFound, "expense not found")
		return nil
	}
	return expense
}

func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	if expense := h.load(w, r); expense != nil {
		writeJSON(w, http.StatusOK, expense)
	}
}

func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.load(w, r)
	if existing == nil {
		return
	}

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ProjectID == 0 {
		req.ProjectID = existing.ProjectID
	}
	project, status, msg := h.validate(&req)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	warning, err := h.budgetWarning(project, existing.ID, req.Amount)
	if err != nil {
		h.logger.Error("budget check", "error", err, "project_id", project.ID)
	}

	next := *existing
	next.Amount = req.Amount
	next.Description = req.Description
	next.ProjectID = req.ProjectID
	next.TaskID = req.TaskID
	next.ExpenseDate = req.ExpenseDate

	expense, err := h.expenseStore.Update(next)
	if err != nil {
		h.logger.Error("update expense", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update expense")
		return
	}

	details := expenseDetails(expense)
	details.BudgetWarning = warning
	if existing.Amount != expense.Amount {
		prev := existing.Amount
		details.PreviousAmount = &prev
	}
	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionUpdated,
		Entity:   activity.EntityExpense,
		EntityID: idString(expense.ID),
		Details:  details,
	})
	h.alertOwner(r, project, expense, warning)
	broadcast(h.hub, websocket.NewMessage("expense", "updated", expense.ID, nil))

	writeJSON(w, http.StatusOK, expenseResponse{Expense: expense, BudgetWarning: warning})
}

func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := h.load(w, r)
	if existing == nil {
		return
	}

	if err := h.expenseStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete expense", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionDeleted,
		Entity:   activity.EntityExpense,
		EntityID: idString(existing.ID),
		Details:  expenseDetails(existing),
	})
	broadcast(h.hub, websocket.NewMessage("expense", "deleted", existing.ID, nil))

	w.WriteHeader(http.StatusNoContent)
}

type budgetCheckRequest struct {
	ProjectID int64   `json:"project_id"`
	Amount    float64 `json:"amount"`
	ExpenseID int64   `json:"expense_id"`
}

// BudgetCheck handles POST /api/expenses/budget-check. It previews the
// warning an expense would raise without storing anything.
func (h *ExpenseHandler) BudgetCheck(w http.ResponseWriter, r *http.Request) {
	var req budgetCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	project, err := h.projectStore.GetByID(req.ProjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	warning, err := h.budgetWarning(project, req.ExpenseID, req.Amount)
	if err != nil {
		h.logger.Error("budget check", "error", err, "project_id", project.ID)
		writeError(w, http.StatusInternalServerError, "failed to check budget")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"warning": warning})
}

// BudgetSummary handles GET /api/expenses/budget-summary. Projects with
// neither a budget nor any spend are left out.
func (h *ExpenseHandler) BudgetSummary(w http.ResponseWriter, r *http.Request) {
	spend, err := h.dashboardStore.ProjectSpend(r.Context())
	if err != nil {
		h.logger.Error("project spend", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load budget summary")
		return
	}
	writeJSON(w, http.StatusOK, budgetSummaries(spend))
}

func budgetSummaries(spend []store.ProjectSpend) []progress.Summary {
	out := []progress.Summary{}
	for _, p := range spend {
		if (p.Budget == nil || *p.Budget <= 0) && p.Spent <= 0 {
			continue
		}
		out = append(out, progress.Summarize(p.ProjectID, p.Title, p.Budget, p.Spent))
	}
	return out
}
