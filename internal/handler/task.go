package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/store"
	"github.com/999joaquin/CoreTrack/internal/websocket"
)

var (
	taskStatuses   = map[string]bool{"todo": true, "in_progress": true, "completed": true}
	taskPriorities = map[string]bool{"low": true, "medium": true, "high": true}
)

type TaskHandler struct {
	taskStore    *store.TaskStore
	projectStore *store.ProjectStore
	userStore    *store.UserStore
	recorder     Recorder
	notifier     Notifier
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, ps *store.ProjectStore, us *store.UserStore, rec Recorder, n Notifier, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{taskStore: ts, projectStore: ps, userStore: us, recorder: rec, notifier: n, hub: hub, logger: logger}
}

type taskRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ProjectID    int64   `json:"project_id"`
	AssignedTo   *int64  `json:"assigned_to"`
	ParentTaskID *int64  `json:"parent_task_id"`
	Status       string  `json:"status"`
	Priority     string  `json:"priority"`
	DueDate      *string `json:"due_date"`
}

// validate checks the request fields and the rows they reference. It
// returns the HTTP status and message of the first problem found.
func (h *TaskHandler) validate(req *taskRequest, selfID int64) (int, string) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return http.StatusBadRequest, "title is required"
	}
	if req.ProjectID == 0 {
		return http.StatusBadRequest, "project_id is required"
	}
	if req.Status == "" {
		req.Status = "todo"
	}
	if !taskStatuses[req.Status] {
		return http.StatusBadRequest, "status must be todo, in_progress or completed"
	}
	if req.Priority == "" {
		req.Priority = "medium"
	}
	if !taskPriorities[req.Priority] {
		return http.StatusBadRequest, "priority must be low, medium or high"
	}
	due, ok := validDate(req.DueDate)
	if !ok {
		return http.StatusBadRequest, "due_date must be a date (YYYY-MM-DD)"
	}
	req.DueDate = due

	project, err := h.projectStore.GetByID(req.ProjectID)
	if err != nil {
		return http.StatusInternalServerError, "failed to get project"
	}
	if project == nil {
		return http.StatusBadRequest, "project not found"
	}

	if req.AssignedTo != nil && *req.AssignedTo == 0 {
		req.AssignedTo = nil
	}
	if req.AssignedTo != nil {
		u, err := h.userStore.GetByID(*req.AssignedTo)
		if err != nil {
			return http.StatusInternalServerError, "failed to get assignee"
		}
		if u == nil {
			return http.StatusBadRequest, "assignee not found"
		}
	}

	if req.ParentTaskID != nil && *req.ParentTaskID == 0 {
		req.ParentTaskID = nil
	}
	if req.ParentTaskID != nil {
		if *req.ParentTaskID == selfID {
			return http.StatusBadRequest, "a task cannot be its own parent"
		}
		parent, err := h.taskStore.GetByID(*req.ParentTaskID)
		if err != nil {
			return http.StatusInternalServerError, "failed to get parent task"
		}
		if parent == nil || parent.ProjectID != req.ProjectID {
			return http.StatusBadRequest, "parent task not found in project"
		}
	}
	return 0, ""
}

func taskDetails(t *model.Task) activity.TaskDetails {
	return activity.TaskDetails{
		Title:      t.Title,
		ProjectID:  t.ProjectID,
		Status:     t.Status,
		Priority:   t.Priority,
		AssignedTo: t.AssignedTo,
		DueDate:    t.DueDate,
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if status, msg := h.validate(&req, 0); status != 0 {
		writeError(w, status, msg)
		return
	}

	actorID := auth.UserID(r.Context())
	task, err := h.taskStore.Create(model.Task{
		Title:        req.Title,
		Description:  strings.TrimSpace(req.Description),
		ProjectID:    req.ProjectID,
		AssignedTo:   req.AssignedTo,
		ParentTaskID: req.ParentTaskID,
		Status:       req.Status,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
		CreatedBy:    &actorID,
	})
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionCreated,
		Entity:   activity.EntityTask,
		EntityID: idString(task.ID),
		Details:  taskDetails(task),
	})
	h.notifyAssignee(r, task, nil)
	broadcast(h.hub, websocket.NewMessage("task", "created", task.ID, nil))

	writeJSON(w, http.StatusCreated, task)
}

// notifyAssignee tells a newly assigned user about the task, unless they
// assigned it to themselves.
func (h *TaskHandler) notifyAssignee(r *http.Request, task *model.Task, previous *int64) {
	if task.AssignedTo == nil || *task.AssignedTo == auth.UserID(r.Context()) {
		return
	}
	if previous != nil && *previous == *task.AssignedTo {
		return
	}
	url := fmt.Sprintf("/tasks/%d", task.ID)
	text := "View task"
	h.notifier.Notify(r.Context(), model.Notification{
		UserID:     *task.AssignedTo,
		Title:      "New task assigned",
		Message:    fmt.Sprintf("You have been assigned to %q.", task.Title),
		Category:   model.CategoryTask,
		ActionURL:  &url,
		ActionText: &text,
		Metadata:   map[string]any{"task_id": task.ID, "project_id": task.ProjectID},
	})
}

// List handles GET /api/tasks?search=&status=&priority=&project_id=&assigned_to=
// assigned_to also accepts "me".
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.TaskFilter{
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		Priority:  q.Get("priority"),
		ProjectID: queryInt64(r, "project_id"),
	}
	switch v := q.Get("assigned_to"); v {
	case "":
	case "me":
		f.AssignedTo = auth.UserID(r.Context())
	default:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid assigned_to")
			return
		}
		f.AssignedTo = id
	}

	tasks, err := h.taskStore.List(f)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) load(w http.ResponseWriter, r *http.Request) *model.Task {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	task, err := h.taskStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return nil
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return nil
	}
	return task
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	if task := h.load(w, r); task != nil {
		writeJSON(w, http.StatusOK, task)
	}
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.load(w, r)
	if existing == nil {
		return
	}

	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ProjectID == 0 {
		req.ProjectID = existing.ProjectID
	}
	if status, msg := h.validate(&req, existing.ID); status != 0 {
		writeError(w, status, msg)
		return
	}

	next := *existing
	next.Title = req.Title
	next.Description = strings.TrimSpace(req.Description)
	next.ProjectID = req.ProjectID
	next.AssignedTo = req.AssignedTo
	next.ParentTaskID = req.ParentTaskID
	next.Status = req.Status
	next.Priority = req.Priority
	next.DueDate = req.DueDate

	task, err := h.taskStore.Update(next)
	if err != nil {
		h.logger.Error("update task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	details := taskDetails(task)
	if existing.Status != task.Status {
		details.StatusChanged = true
		details.PreviousStatus = existing.Status
		details.NewStatus = task.Status
	}
	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionUpdated,
		Entity:   activity.EntityTask,
		EntityID: idString(task.ID),
		Details:  details,
	})
	h.notifyAssignee(r, task, existing.AssignedTo)
	broadcast(h.hub, websocket.NewMessage("task", "updated", task.ID, nil))

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := h.load(w, r)
	if existing == nil {
		return
	}

	if err := h.taskStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionDeleted,
		Entity:   activity.EntityTask,
		EntityID: idString(existing.ID),
		Details:  activity.TaskDetails{Title: existing.Title, ProjectID: existing.ProjectID},
	})
	broadcast(h.hub, websocket.NewMessage("task", "deleted", existing.ID, nil))

	w.WriteHeader(http.StatusNoContent)
}
