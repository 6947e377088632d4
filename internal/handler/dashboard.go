package handler

import (
	"log/slog"
	"math"
	"net/http"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/progress"
	"github.com/999joaquin/CoreTrack/internal/store"
)

const dashboardRecentActivity = 10

type DashboardHandler struct {
	dashboardStore *store.DashboardStore
	activityStore  *store.ActivityStore
	logger         *slog.Logger
}

func NewDashboardHandler(ds *store.DashboardStore, as *store.ActivityStore, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dashboardStore: ds, activityStore: as, logger: logger}
}

type dashboardResponse struct {
	store.DashboardCounts
	TaskCompletion int            `json:"task_completion_percentage"`
	BudgetUsage    int            `json:"budget_usage_percentage"`
	BudgetBar      int            `json:"budget_bar_percentage"`
	BudgetStatus   string         `json:"budget_status"`
	RecentActivity []activityItem `json:"recent_activity"`
}

// Get handles GET /api/dashboard.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	counts, err := h.dashboardStore.Counts(r.Context())
	if err != nil {
		h.logger.Error("dashboard counts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	recent, err := h.activityStore.List(r.Context(), activity.Filter{Limit: dashboardRecentActivity})
	if err != nil {
		h.logger.Error("dashboard activity", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	resp := dashboardResponse{
		DashboardCounts: *counts,
		RecentActivity:  toActivityItems(recent),
	}
	if counts.Tasks > 0 {
		resp.TaskCompletion = int(math.Round(float64(counts.CompletedTasks) / float64(counts.Tasks) * 100))
	}
	budget := counts.TotalBudget
	usage := progress.Summarize(0, "", &budget, counts.BudgetedSpend)
	resp.BudgetUsage = usage.PercentageUsed
	resp.BudgetBar = usage.BarPercentage
	resp.BudgetStatus = usage.Status

	writeJSON(w, http.StatusOK, resp)
}
