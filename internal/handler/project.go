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

var projectStatuses = map[string]bool{
	"active":    true,
	"completed": true,
	"on-hold":   true,
	"cancelled": true,
}

type ProjectHandler struct {
	projectStore *store.ProjectStore
	expenseStore *store.ExpenseStore
	recorder     Recorder
	notifier     Notifier
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewProjectHandler(ps *store.ProjectStore, es *store.ExpenseStore, rec Recorder, n Notifier, hub *websocket.Hub, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projectStore: ps, expenseStore: es, recorder: rec, notifier: n, hub: hub, logger: logger}
}

type projectRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Deadline    *string  `json:"deadline"`
	Budget      *float64 `json:"budget"`
	Status      string   `json:"status"`
}

// validDate accepts nil, an empty string (cleared) or YYYY-MM-DD.
func validDate(s *string) (*string, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, true
	}
	v := strings.TrimSpace(*s)
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return nil, false
	}
	return &v, true
}

func (req *projectRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if req.Status == "" {
		req.Status = "active"
	}
	if !projectStatuses[req.Status] {
		return "status must be active, completed, on-hold or cancelled"
	}
	if req.Budget != nil && *req.Budget < 0 {
		return "budget must not be negative"
	}
	deadline, ok := validDate(req.Deadline)
	if !ok {
		return "deadline must be a date (YYYY-MM-DD)"
	}
	req.Deadline = deadline
	return ""
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	actorID := auth.UserID(r.Context())
	project, err := h.projectStore.Create(model.Project{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Deadline:    req.Deadline,
		Budget:      req.Budget,
		Status:      req.Status,
		CreatedBy:   &actorID,
	})
	if err != nil {
		h.logger.Error("create project", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionCreated,
		Entity:   activity.EntityProject,
		EntityID: idString(project.ID),
		Details: activity.ProjectDetails{
			Title:    project.Title,
			Status:   project.Status,
			Budget:   project.Budget,
			Deadline: project.Deadline,
		},
	})
	broadcast(h.hub, websocket.NewMessage("project", "created", project.ID, nil))

	writeJSON(w, http.StatusCreated, project)
}

// List handles GET /api/projects?search=&status=
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectStore.List(model.ProjectFilter{
		Search: r.URL.Query().Get("search"),
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		h.logger.Error("list projects", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) load(w http.ResponseWriter, r *http.Request) *model.Project {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	project, err := h.projectStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return nil
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return nil
	}
	return project
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	if project := h.load(w, r); project != nil {
		writeJSON(w, http.StatusOK, project)
	}
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.load(w, r)
	if existing == nil {
		return
	}

	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	next := *existing
	next.Title = req.Title
	next.Description = strings.TrimSpace(req.Description)
	next.Deadline = req.Deadline
	next.Budget = req.Budget
	next.Status = req.Status

	project, err := h.projectStore.Update(next)
	if err != nil {
		h.logger.Error("update project", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update project")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionUpdated,
		Entity:   activity.EntityProject,
		EntityID: idString(project.ID),
		Details: activity.ProjectDetails{
			Title:    project.Title,
			Status:   project.Status,
			Budget:   project.Budget,
			Deadline: project.Deadline,
			PreviousValues: &activity.ProjectSnapshot{
				Title:    existing.Title,
				Status:   existing.Status,
				Budget:   existing.Budget,
				Deadline: existing.Deadline,
			},
		},
	})

	actorID := auth.UserID(r.Context())
	if existing.Status != project.Status && project.CreatedBy != nil && *project.CreatedBy != actorID {
		url := fmt.Sprintf("/projects/%d", project.ID)
		text := "View project"
		h.notifier.Notify(r.Context(), model.Notification{
			UserID:     *project.CreatedBy,
			Title:      "Project status changed",
			Message:    fmt.Sprintf("%q is now %s.", project.Title, project.Status),
			Category:   model.CategoryProject,
			ActionURL:  &url,
			ActionText: &text,
			Metadata:   map[string]any{"project_id": project.ID, "previous_status": existing.Status},
		})
	}
	broadcast(h.hub, websocket.NewMessage("project", "updated", project.ID, nil))

	writeJSON(w, http.StatusOK, project)
}

// Delete removes the project together with its tasks, goals and expenses.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := h.load(w, r)
	if existing == nil {
		return
	}

	if err := h.projectStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete project", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionDeleted,
		Entity:   activity.EntityProject,
		EntityID: idString(existing.ID),
		Details:  activity.ProjectDetails{Title: existing.Title, Status: existing.Status},
	})
	broadcast(h.hub, websocket.NewMessage("project", "deleted", existing.ID, nil))

	w.WriteHeader(http.StatusNoContent)
}

// Budget handles GET /api/projects/{id}/budget.
func (h *ProjectHandler) Budget(w http.ResponseWriter, r *http.Request) {
	project := h.load(w, r)
	if project == nil {
		return
	}
	spent, err := h.expenseStore.ProjectTotal(project.ID, 0)
	if err != nil {
		h.logger.Error("project total", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute budget")
		return
	}
	writeJSON(w, http.StatusOK, progress.Summarize(project.ID, project.Title, project.Budget, spent))
}
