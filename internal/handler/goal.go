package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/progress"
	"github.com/999joaquin/CoreTrack/internal/store"
	"github.com/999joaquin/CoreTrack/internal/websocket"
)

type GoalHandler struct {
	goalStore    *store.GoalStore
	projectStore *store.ProjectStore
	recorder     Recorder
	notifier     Notifier
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewGoalHandler(gs *store.GoalStore, ps *store.ProjectStore, rec Recorder, n Notifier, hub *websocket.Hub, logger *slog.Logger) *GoalHandler {
	return &GoalHandler{goalStore: gs, projectStore: ps, recorder: rec, notifier: n, hub: hub, logger: logger}
}

// goalResponse adds the derived percentage to a goal.
type goalResponse struct {
	model.Goal
	ProgressPercentage int `json:"progress_percentage"`
	BarPercentage      int `json:"bar_percentage"`
}

func toGoalResponse(g *model.Goal) goalResponse {
	return goalResponse{
		Goal:               *g,
		ProgressPercentage: progress.Percent(g.CurrentValue, g.TargetValue),
		BarPercentage:      progress.BarPercent(g.CurrentValue, g.TargetValue),
	}
}

func goalDetails(g *model.Goal) activity.GoalDetails {
	return activity.GoalDetails{
		Title:              g.Title,
		ProjectID:          g.ProjectID,
		TargetValue:        g.TargetValue,
		CurrentValue:       g.CurrentValue,
		ProgressPercentage: progress.Percent(g.CurrentValue, g.TargetValue),
	}
}

type goalRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ProjectID    int64   `json:"project_id"`
	TargetValue  float64 `json:"target_value"`
	CurrentValue float64 `json:"current_value"`
}

func (h *GoalHandler) validate(req *goalRequest) (int, string) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return http.StatusBadRequest, "title is required"
	}
	if req.TargetValue <= 0 {
		return http.StatusBadRequest, "target_value must be greater than zero"
	}
	if req.CurrentValue < 0 {
		return http.StatusBadRequest, "current_value must not be negative"
	}
	req.CurrentValue = progress.Clamp(req.CurrentValue, req.TargetValue)

	if req.ProjectID == 0 {
		return http.StatusBadRequest, "project_id is required"
	}
	project, err := h.projectStore.GetByID(req.ProjectID)
	if err != nil {
		return http.StatusInternalServerError, "failed to get project"
	}
	if project == nil {
		return http.StatusBadRequest, "project not found"
	}
	return 0, ""
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if status, msg := h.validate(&req); status != 0 {
		writeError(w, status, msg)
		return
	}

	actorID := auth.UserID(r.Context())
	goal, err := h.goalStore.Create(model.Goal{
		Title:        req.Title,
		Description:  strings.TrimSpace(req.Description),
		ProjectID:    req.ProjectID,
		TargetValue:  req.TargetValue,
		CurrentValue: req.CurrentValue,
		CreatedBy:    &actorID,
	})
	if err != nil {
		h.logger.Error("create goal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create goal")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionCreated,
		Entity:   activity.EntityGoal,
		EntityID: idString(goal.ID),
		Details:  goalDetails(goal),
	})
	broadcast(h.hub, websocket.NewMessage("goal", "created", goal.ID, nil))

	writeJSON(w, http.StatusCreated, toGoalResponse(goal))
}

// List handles GET /api/goals?project_id=
func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goalStore.List(queryInt64(r, "project_id"))
	if err != nil {
		h.logger.Error("list goals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list goals")
		return
	}
	resp := make([]goalResponse, 0, len(goals))
	for i := range goals {
		resp = append(resp, toGoalResponse(&goals[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *GoalHandler) load(w http.ResponseWriter, r *http.Request) *model.Goal {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	goal, err := h.goalStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get goal")
		return nil
	}
	if goal == nil {
		writeError(w, http.StatusNotFound, "goal not found")
		return nil
	}
	return goal
}

func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	if goal := h.load(w, r); goal != nil {
		writeJSON(w, http.StatusOK, toGoalResponse(goal))
	}
}

func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.load(w, r)
	if existing == nil {
		return
	}

	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ProjectID == 0 {
		req.ProjectID = existing.ProjectID
	}
	if status, msg := h.validate(&req); status != 0 {
		writeError(w, status, msg)
		return
	}

	next := *existing
	next.Title = req.Title
	next.Description = strings.TrimSpace(req.Description)
	next.ProjectID = req.ProjectID
	next.TargetValue = req.TargetValue
	next.CurrentValue = req.CurrentValue

	goal, err := h.goalStore.Update(next)
	if err != nil {
		h.logger.Error("update goal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update goal")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionUpdated,
		Entity:   activity.EntityGoal,
		EntityID: idString(goal.ID),
		Details:  goalDetails(goal),
	})
	broadcast(h.hub, websocket.NewMessage("goal", "updated", goal.ID, nil))

	writeJSON(w, http.StatusOK, toGoalResponse(goal))
}

type progressRequest struct {
	Mode  string  `json:"mode"`
	Value float64 `json:"value"`
}

// UpdateProgress handles POST /api/goals/{id}/progress. The creator is
// notified the first time the goal reaches its target.
func (h *GoalHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	goal := h.load(w, r)
	if goal == nil {
		return
	}

	var req progressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Mode == "" {
		req.Mode = progress.ModeSet
	}
	if req.Mode == progress.ModeSet && req.Value < 0 {
		writeError(w, http.StatusBadRequest, "value must not be negative")
		return
	}

	u, err := progress.Apply(req.Mode, goal.CurrentValue, req.Value, goal.TargetValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.goalStore.SetCurrentValue(goal.ID, u.Value)
	if err != nil {
		h.logger.Error("update goal progress", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update progress")
		return
	}

	details := activity.GoalProgressDetails{
		Title:              updated.Title,
		PreviousValue:      u.Previous,
		NewValue:           u.Value,
		TargetValue:        updated.TargetValue,
		ProgressChange:     u.Value - u.Previous,
		PreviousPercentage: u.PreviousPercent,
		NewPercentage:      u.Percent,
		Mode:               req.Mode,
	}
	if req.Mode == progress.ModeIncrement {
		inc := req.Value
		details.IncrementValue = &inc
	}
	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionProgressUpdated,
		Entity:   activity.EntityGoal,
		EntityID: idString(updated.ID),
		Details:  details,
	})

	if u.Completed && updated.CreatedBy != nil {
		url := fmt.Sprintf("/goals/%d", updated.ID)
		text := "View goal"
		h.notifier.Notify(r.Context(), model.Notification{
			UserID:     *updated.CreatedBy,
			Title:      "Goal completed",
			Message:    fmt.Sprintf("%q has reached its target.", updated.Title),
			Type:       model.NotifSuccess,
			Category:   model.CategoryGoal,
			ActionURL:  &url,
			ActionText: &text,
			Metadata:   map[string]any{"goal_id": updated.ID, "project_id": updated.ProjectID},
		})
	}
	broadcast(h.hub, websocket.NewMessage("goal", "updated", updated.ID, nil))

	writeJSON(w, http.StatusOK, toGoalResponse(updated))
}

func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := h.load(w, r)
	if existing == nil {
		return
	}

	if err := h.goalStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete goal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete goal")
		return
	}

	h.recorder.Record(r.Context(), activity.Event{
		Action:   activity.ActionDeleted,
		Entity:   activity.EntityGoal,
		EntityID: idString(existing.ID),
		Details:  goalDetails(existing),
	})
	broadcast(h.hub, websocket.NewMessage("goal", "deleted", existing.ID, nil))

	w.WriteHeader(http.StatusNoContent)
}
