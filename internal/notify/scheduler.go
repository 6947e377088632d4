package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/store"
)

const (
	kindTaskDue      = "task_due"
	kindDigestDaily  = "digest_daily"
	kindDigestWeekly = "digest_weekly"
)

// Scheduler periodically sends task-due reminders and email digests.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	tasks    *store.TaskStore
	sent     *store.PushStore
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a notification scheduler.
func NewScheduler(svc *Service, tasks *store.TaskStore, sent *store.PushStore, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		service:  svc,
		tasks:    tasks,
		sent:     sent,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the scheduler loop. The first check runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick runs one round of every scheduled job.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.service.now().UTC()
	s.checkTaskDue(ctx, now)
	s.sendDigests(ctx, now, "daily")
	s.sendDigests(ctx, now, "weekly")
}

// checkTaskDue reminds assignees of unfinished tasks due within 24 hours.
// Each task is reminded once per due date.
func (s *Scheduler) checkTaskDue(ctx context.Context, now time.Time) {
	from := now.Format(time.DateOnly)
	to := now.Add(24 * time.Hour).Format(time.DateOnly)

	tasks, err := s.tasks.ListDueBetween(from, to)
	if err != nil {
		s.logger.Error("list due tasks", "error", err)
		return
	}

	for _, t := range tasks {
		if t.AssignedTo == nil || t.DueDate == nil {
			continue
		}
		userID := *t.AssignedTo
		refID := fmt.Sprintf("task-%d-%s", t.ID, *t.DueDate)

		sent, err := s.sent.WasSent(userID, kindTaskDue, refID)
		if err != nil {
			s.logger.Error("check sent", "error", err, "task_id", t.ID)
			continue
		}
		if sent {
			continue
		}

		when := "tomorrow"
		if *t.DueDate <= from {
			when = "today"
		}
		url := fmt.Sprintf("/tasks/%d", t.ID)
		text := "View task"
		_, err = s.service.Send(ctx, model.Notification{
			UserID:     userID,
			Title:      "Task due soon",
			Message:    fmt.Sprintf("%q is due %s.", t.Title, when),
			Type:       model.NotifWarning,
			Category:   model.CategoryTask,
			ActionURL:  &url,
			ActionText: &text,
			Metadata:   map[string]any{"task_id": t.ID, "due_date": *t.DueDate},
		})
		if err != nil {
			s.logger.Error("send task reminder", "error", err, "task_id", t.ID)
			continue
		}

		if _, err := s.sent.RecordSent(userID, kindTaskDue, refID); err != nil {
			s.logger.Error("record task reminder", "error", err, "task_id", t.ID)
		}
	}
}

// digestPeriod returns the dedupe key for now's period and when it started.
func digestPeriod(frequency string, now time.Time) (string, time.Time) {
	if frequency == "daily" {
		return now.Format(time.DateOnly), now.Add(-24 * time.Hour)
	}
	year, week := now.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week), now.Add(-7 * 24 * time.Hour)
}

// sendDigests emails each opted-in user their unread notifications once per period.
func (s *Scheduler) sendDigests(ctx context.Context, now time.Time, frequency string) {
	mailer := s.service.mailer
	if mailer == nil || !mailer.Configured() {
		return
	}

	prefs, err := s.service.prefs.ListByDigest(ctx, frequency)
	if err != nil {
		s.logger.Error("list digest recipients", "error", err, "frequency", frequency)
		return
	}

	kind := kindDigestWeekly
	if frequency == "daily" {
		kind = kindDigestDaily
	}
	refID, since := digestPeriod(frequency, now)

	for _, p := range prefs {
		sent, err := s.sent.WasSent(p.UserID, kind, refID)
		if err != nil || sent {
			continue
		}

		items, err := s.service.notifications.ListUnreadSince(ctx, p.UserID, since)
		if err != nil {
			s.logger.Error("list digest items", "error", err, "user_id", p.UserID)
			continue
		}
		if len(items) == 0 {
			continue
		}

		u, err := s.service.users.GetByID(p.UserID)
		if err != nil || u == nil {
			continue
		}
		if err := mailer.SendDigest(ctx, u.Email, frequency, items); err != nil {
			s.logger.Error("send digest", "error", err, "user_id", p.UserID)
			continue
		}
		if _, err := s.sent.RecordSent(p.UserID, kind, refID); err != nil {
			s.logger.Error("record digest", "error", err, "user_id", p.UserID)
		}
		s.logger.Info("digest sent", "user_id", p.UserID, "frequency", frequency, "items", len(items))
	}
}
