// Package notify owns the per-user notification inbox and decides, through
// each user's preferences, which notifications are delivered and where.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/push"
	"github.com/999joaquin/CoreTrack/internal/store"
	ws "github.com/999joaquin/CoreTrack/internal/websocket"
)

var (
	ErrInvalidCategory = errors.New("invalid notification category")
	ErrInvalidType     = errors.New("invalid notification type")
	ErrMissingContent  = errors.New("title and message are required")
)

const deliveryTimeout = 30 * time.Second

var validCategories = map[string]bool{
	model.CategoryProject: true,
	model.CategoryTask:    true,
	model.CategoryGoal:    true,
	model.CategoryExpense: true,
	model.CategorySystem:  true,
}

var validTypes = map[string]bool{
	model.NotifInfo:    true,
	model.NotifSuccess: true,
	model.NotifWarning: true,
	model.NotifError:   true,
}

// Pusher delivers web push messages.
type Pusher interface {
	Enabled() bool
	Send(ctx context.Context, sub *model.PushSubscription, payload push.Payload) error
}

// Mailer mirrors notifications to email.
type Mailer interface {
	Configured() bool
	SendNotification(ctx context.Context, toEmail string, n model.Notification) error
	SendDigest(ctx context.Context, toEmail, frequency string, items []model.Notification) error
}

// Broadcaster pushes live updates to a user's open connections.
type Broadcaster interface {
	SendToUser(userID int64, msg ws.Message)
}

// Result is the outcome of Send.
type Result struct {
	Notification *model.Notification `json:"notification,omitempty"`
	Skipped      bool                `json:"skipped"`
}

type Service struct {
	notifications *store.NotificationStore
	prefs         *store.PreferenceStore
	subs          *store.PushStore
	users         *store.UserStore
	pusher        Pusher
	mailer        Mailer
	hub           Broadcaster
	logger        *slog.Logger
	now           func() time.Time

	wg sync.WaitGroup
}

func NewService(
	notifications *store.NotificationStore,
	prefs *store.PreferenceStore,
	subs *store.PushStore,
	users *store.UserStore,
	pusher Pusher,
	mailer Mailer,
	hub Broadcaster,
	logger *slog.Logger,
) *Service {
	return &Service{
		notifications: notifications,
		prefs:         prefs,
		subs:          subs,
		users:         users,
		pusher:        pusher,
		mailer:        mailer,
		hub:           hub,
		logger:        logger,
		now:           time.Now,
	}
}

func validate(n *model.Notification) error {
	n.Title = strings.TrimSpace(n.Title)
	n.Message = strings.TrimSpace(n.Message)
	if n.Title == "" || n.Message == "" {
		return ErrMissingContent
	}
	if !validCategories[n.Category] {
		return ErrInvalidCategory
	}
	if n.Type == "" {
		n.Type = model.NotifInfo
	}
	if !validTypes[n.Type] {
		return ErrInvalidType
	}
	return nil
}

// Create stores a notification without consulting preferences.
func (s *Service) Create(ctx context.Context, n model.Notification) (*model.Notification, error) {
	if err := validate(&n); err != nil {
		return nil, err
	}
	created, err := s.notifications.Create(ctx, n)
	if err != nil {
		return nil, err
	}
	s.publish(created.UserID, "created", created.ID, created)
	return created, nil
}

// Send creates a notification if the recipient accepts push notifications
// for its category, then delivers it by web push and email in the
// background. A suppressed notification is not stored at all.
func (s *Service) Send(ctx context.Context, n model.Notification) (Result, error) {
	if err := validate(&n); err != nil {
		return Result{}, err
	}

	prefs, err := s.prefs.Get(ctx, n.UserID)
	if err != nil {
		s.logger.Error("preference lookup failed", "error", err, "user_id", n.UserID)
		return Result{Skipped: true}, nil
	}
	if !allowed(prefs, n.Category, model.ChannelPush) {
		s.logger.Debug("notification suppressed by preferences", "user_id", n.UserID, "category", n.Category)
		return Result{Skipped: true}, nil
	}

	created, err := s.notifications.Create(ctx, n)
	if err != nil {
		return Result{}, err
	}
	s.publish(created.UserID, "created", created.ID, created)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		s.deliver(ctx, prefs, *created)
	}()

	return Result{Notification: created}, nil
}

// Notify is Send for callers that only want failures logged.
func (s *Service) Notify(ctx context.Context, n model.Notification) {
	if _, err := s.Send(ctx, n); err != nil {
		s.logger.Error("send notification", "error", err, "user_id", n.UserID, "category", n.Category)
	}
}

// Wait blocks until background deliveries finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) deliver(ctx context.Context, prefs *model.NotificationPreferences, n model.Notification) {
	if InQuietHours(prefs, s.now()) {
		s.logger.Debug("push held for quiet hours", "user_id", n.UserID, "notification_id", n.ID)
	} else {
		s.pushAll(ctx, n)
	}

	if allowed(prefs, n.Category, model.ChannelEmail) {
		s.email(ctx, n)
	}
}

func (s *Service) pushAll(ctx context.Context, n model.Notification) {
	if s.pusher == nil || !s.pusher.Enabled() {
		return
	}
	subs, err := s.subs.ListByUser(n.UserID)
	if err != nil {
		s.logger.Error("list push subscriptions", "error", err, "user_id", n.UserID)
		return
	}

	payload := push.FromNotification(n)

	for _, sub := range subs {
		if err := s.pusher.Send(ctx, &sub, payload); err != nil {
			if errors.Is(err, push.ErrExpired) {
				s.logger.Info("removing expired push subscription", "user_id", n.UserID, "subscription_id", sub.ID)
				if err := s.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
					s.logger.Error("delete expired subscription", "error", err)
				}
				continue
			}
			s.logger.Error("web push failed", "error", err, "user_id", n.UserID, "subscription_id", sub.ID)
		}
	}
}

func (s *Service) email(ctx context.Context, n model.Notification) {
	if s.mailer == nil || !s.mailer.Configured() {
		return
	}
	u, err := s.users.GetByID(n.UserID)
	if err != nil || u == nil {
		s.logger.Error("notification recipient lookup failed", "error", err, "user_id", n.UserID)
		return
	}
	if err := s.mailer.SendNotification(ctx, u.Email, n); err != nil {
		s.logger.Error("notification email failed", "error", err, "user_id", n.UserID)
	}
}

func (s *Service) List(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]model.Notification, error) {
	return s.notifications.List(ctx, userID, limit, unreadOnly)
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.notifications.UnreadCount(ctx, userID)
}

// MarkRead returns nil when the notification is not the user's.
func (s *Service) MarkRead(ctx context.Context, userID, id int64) (*model.Notification, error) {
	n, err := s.notifications.MarkRead(ctx, userID, id)
	if err != nil || n == nil {
		return n, err
	}
	s.publish(userID, "updated", n.ID, n)
	return n, nil
}

// MarkAllRead returns the notifications that changed.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) ([]model.Notification, error) {
	changed, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		ids := make([]int64, 0, len(changed))
		for _, n := range changed {
			ids = append(ids, n.ID)
		}
		s.publish(userID, "read_all", 0, map[string]any{"ids": ids})
	}
	return changed, nil
}

// Delete reports false when there was nothing of the user's to delete.
func (s *Service) Delete(ctx context.Context, userID, id int64) (bool, error) {
	ok, err := s.notifications.Delete(ctx, userID, id)
	if err != nil || !ok {
		return ok, err
	}
	s.publish(userID, "deleted", id, nil)
	return true, nil
}

func (s *Service) publish(userID int64, action string, id int64, data any) {
	if s.hub == nil {
		return
	}
	s.hub.SendToUser(userID, ws.NewMessage("notification", action, id, nil).WithData(data))
}
