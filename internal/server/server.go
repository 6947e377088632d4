package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/activity"
	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/backup"
	"github.com/999joaquin/CoreTrack/internal/config"
	"github.com/999joaquin/CoreTrack/internal/email"
	"github.com/999joaquin/CoreTrack/internal/handler"
	"github.com/999joaquin/CoreTrack/internal/middleware"
	"github.com/999joaquin/CoreTrack/internal/notify"
	"github.com/999joaquin/CoreTrack/internal/push"
	"github.com/999joaquin/CoreTrack/internal/storage"
	"github.com/999joaquin/CoreTrack/internal/store"
	ws "github.com/999joaquin/CoreTrack/internal/websocket"
)

const (
	cleanupInterval  = time.Hour
	sentLogRetention = 30 * 24 * time.Hour
)

var ErrMissingSecretKey = errors.New("secret_key is required")

type Server struct {
	db  *sqlx.DB
	cfg *config.Config
	hub *ws.Hub

	recorder    *activity.Recorder
	notifier    *notify.Service
	scheduler   *notify.Scheduler
	challenger  *auth.Challenger
	rateLimiter *middleware.RateLimiter
	backups     *backup.Manager

	userStore     *store.UserStore
	sessionStore  *store.SessionStore
	tokenStore    *store.TokenStore
	activityStore *store.ActivityStore
	pushStore     *store.PushStore

	authH         *handler.AuthHandler
	accountH      *handler.AccountHandler
	userH         *handler.UserHandler
	projectH      *handler.ProjectHandler
	taskH         *handler.TaskHandler
	goalH         *handler.GoalHandler
	expenseH      *handler.ExpenseHandler
	activityH     *handler.ActivityHandler
	notificationH *handler.NotificationHandler
	preferenceH   *handler.PreferenceHandler
	pushH         *handler.PushHandler
	dashboardH    *handler.DashboardHandler

	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New wires stores, services and handlers. files may be nil, in which case
// avatar uploads are refused.
func New(db *sqlx.DB, cfg *config.Config, files storage.Store, logger *slog.Logger) (*Server, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingSecretKey
	}
	secrets, err := auth.NewSecretBox(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("secret box: %w", err)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	tokenStore := store.NewTokenStore(db)
	projectStore := store.NewProjectStore(db)
	taskStore := store.NewTaskStore(db)
	goalStore := store.NewGoalStore(db)
	expenseStore := store.NewExpenseStore(db)
	activityStore := store.NewActivityStore(db)
	notificationStore := store.NewNotificationStore(db)
	prefStore := store.NewPreferenceStore(db)
	pushStore := store.NewPushStore(db)
	dashboardStore := store.NewDashboardStore(db)

	recorder := activity.NewRecorder(activityStore, logger.With("component", "activity"),
		activity.WithQueueSize(cfg.ActivityQueueSize),
		activity.WithHook(func(rec *activity.Record) {
			hub.Broadcast(ws.NewMessage("activity", "created", rec.ID, map[string]any{
				"description": activity.Format(*rec),
			}).WithData(rec))
		}),
	)

	mailer := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL)
	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
	notifier := notify.NewService(notificationStore, prefStore, pushStore, userStore, pushSvc, mailer, hub, logger.With("component", "notify"))
	scheduler := notify.NewScheduler(notifier, taskStore, pushStore, cfg.SchedulerInterval, logger.With("component", "scheduler"))
	challenger := auth.NewChallenger(cfg.SecretKey)

	var backups *backup.Manager
	if files != nil && cfg.BackupInterval > 0 {
		if backups, err = backup.NewManager(db, files, cfg.BackupPassphrase, logger.With("component", "backup")); err != nil {
			return nil, err
		}
	}

	return &Server{
		db:            db,
		cfg:           cfg,
		hub:           hub,
		recorder:      recorder,
		notifier:      notifier,
		scheduler:     scheduler,
		challenger:    challenger,
		rateLimiter:   middleware.NewRateLimiter(),
		backups:       backups,
		userStore:     userStore,
		sessionStore:  sessionStore,
		tokenStore:    tokenStore,
		activityStore: activityStore,
		pushStore:     pushStore,
		authH:         handler.NewAuthHandler(userStore, sessionStore, tokenStore, prefStore, mailer, challenger, secrets, recorder, cfg.SecureCookies, logger.With("component", "auth")),
		accountH:      handler.NewAccountHandler(userStore, sessionStore, tokenStore, files, secrets, recorder, logger.With("component", "account")),
		userH:         handler.NewUserHandler(userStore, tokenStore, mailer, recorder, notifier, logger.With("component", "users")),
		projectH:      handler.NewProjectHandler(projectStore, expenseStore, recorder, notifier, hub, logger.With("component", "project")),
		taskH:         handler.NewTaskHandler(taskStore, projectStore, userStore, recorder, notifier, hub, logger.With("component", "task")),
		goalH:         handler.NewGoalHandler(goalStore, projectStore, recorder, notifier, hub, logger.With("component", "goal")),
		expenseH:      handler.NewExpenseHandler(expenseStore, projectStore, taskStore, dashboardStore, recorder, notifier, hub, logger.With("component", "expense")),
		activityH:     handler.NewActivityHandler(activityStore, logger.With("component", "activity_feed")),
		notificationH: handler.NewNotificationHandler(notifier, logger.With("component", "notification")),
		preferenceH:   handler.NewPreferenceHandler(prefStore, recorder, logger.With("component", "preferences")),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, notifier, logger.With("component", "push_handler")),
		dashboardH:    handler.NewDashboardHandler(dashboardStore, activityStore, logger.With("component", "dashboard")),
		logger:        logger,
	}, nil
}

// Start launches the activity recorder, the notification scheduler, the
// hourly cleanup loop and, when configured, scheduled backups.
func (s *Server) Start(ctx context.Context) {
	s.recorder.Start()
	s.scheduler.Start(ctx)
	if s.backups != nil {
		s.backups.Start(ctx, s.cfg.BackupInterval)
	}

	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup(ctx)
			}
		}
	}()
}

// Stop halts background work, draining queued activities and in-flight
// notification deliveries.
func (s *Server) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	if s.backups != nil {
		s.backups.Stop()
	}
	s.scheduler.Stop()
	s.notifier.Wait()
	s.recorder.Stop()
}

// Cleanup removes expired sessions, spent tokens, stale rate limiter
// buckets, old reminder log rows and, when retention is set, old activities.
func (s *Server) Cleanup(ctx context.Context) {
	if n, err := s.sessionStore.DeleteExpired(); err != nil {
		s.logger.Error("session cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired sessions", "count", n)
	}
	if n, err := s.tokenStore.DeleteExpired(); err != nil {
		s.logger.Error("token cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up auth tokens", "count", n)
	}
	s.rateLimiter.Cleanup()
	s.challenger.Cleanup()
	if err := s.pushStore.CleanupSent(time.Now().Add(-sentLogRetention)); err != nil {
		s.logger.Error("reminder log cleanup failed", "error", err)
	}

	if retention := s.cfg.ActivityRetention(); retention > 0 {
		n, err := s.activityStore.DeleteOlderThan(ctx, time.Now().Add(-retention))
		if err != nil {
			s.logger.Error("activity retention failed", "error", err)
		} else if n > 0 {
			s.logger.Info("pruned old activities", "count", n)
		}
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/signup", s.rateLimitedHandler(s.authH.Signup))
	outerMux.HandleFunc("POST /api/auth/signin", s.rateLimitedHandler(s.authH.Signin))
	outerMux.HandleFunc("POST /api/auth/mfa", s.rateLimitedHandler(s.authH.VerifyMFA))
	outerMux.HandleFunc("GET /api/auth/verify", s.authH.VerifyEmail)
	outerMux.HandleFunc("POST /api/auth/recover", s.rateLimitedHandler(s.authH.RequestRecovery))
	outerMux.HandleFunc("POST /api/auth/recover/confirm", s.rateLimitedHandler(s.authH.ConfirmRecovery))
	outerMux.HandleFunc("POST /api/auth/accept-invite", s.rateLimitedHandler(s.authH.AcceptInvite))
	outerMux.HandleFunc("POST /api/auth/password-strength", s.authH.PasswordStrength)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.AllowedOrigins, s.logger.With("component", "websocket")))

	// Session
	mux.HandleFunc("POST /api/auth/signout", s.authH.Signout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("POST /api/auth/resend-verification", s.authH.ResendVerification)

	// Account
	mux.HandleFunc("GET /api/account/profile", s.accountH.GetProfile)
	mux.HandleFunc("PUT /api/account/profile", s.accountH.UpdateProfile)
	mux.HandleFunc("POST /api/account/avatar", s.accountH.UploadAvatar)
	mux.HandleFunc("DELETE /api/account/avatar", s.accountH.DeleteAvatar)
	mux.HandleFunc("PUT /api/account/password", s.accountH.ChangePassword)
	mux.HandleFunc("POST /api/account/sessions/revoke", s.accountH.SignOutOthers)
	mux.HandleFunc("GET /api/account/2fa", s.accountH.TwoFactorStatus)
	mux.HandleFunc("POST /api/account/2fa/setup", s.accountH.SetupTwoFactor)
	mux.HandleFunc("POST /api/account/2fa/enable", s.accountH.EnableTwoFactor)
	mux.HandleFunc("POST /api/account/2fa/disable", s.accountH.DisableTwoFactor)

	// Team directory and admin
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.Handle("GET /api/admin/invitations", admin(s.userH.ListInvitations))
	mux.Handle("POST /api/admin/invitations", admin(s.userH.Invite))
	mux.Handle("PUT /api/admin/users/{id}/role", admin(s.userH.UpdateRole))
	mux.Handle("DELETE /api/admin/users/{id}", admin(s.userH.Delete))
	mux.Handle("POST /api/admin/notifications", admin(s.notificationH.Create))

	// Projects
	mux.HandleFunc("POST /api/projects", s.projectH.Create)
	mux.HandleFunc("GET /api/projects", s.projectH.List)
	mux.HandleFunc("GET /api/projects/{id}", s.projectH.Get)
	mux.HandleFunc("PUT /api/projects/{id}", s.projectH.Update)
	mux.HandleFunc("DELETE /api/projects/{id}", s.projectH.Delete)
	mux.HandleFunc("GET /api/projects/{id}/budget", s.projectH.Budget)

	// Tasks
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)

	// Goals
	mux.HandleFunc("POST /api/goals", s.goalH.Create)
	mux.HandleFunc("GET /api/goals", s.goalH.List)
	mux.HandleFunc("GET /api/goals/{id}", s.goalH.Get)
	mux.HandleFunc("PUT /api/goals/{id}", s.goalH.Update)
	mux.HandleFunc("DELETE /api/goals/{id}", s.goalH.Delete)
	mux.HandleFunc("POST /api/goals/{id}/progress", s.goalH.UpdateProgress)

	// Expenses
	mux.HandleFunc("POST /api/expenses", s.expenseH.Create)
	mux.HandleFunc("GET /api/expenses", s.expenseH.List)
	mux.HandleFunc("GET /api/expenses/budget-summary", s.expenseH.BudgetSummary)
	mux.HandleFunc("POST /api/expenses/budget-check", s.expenseH.BudgetCheck)
	mux.HandleFunc("GET /api/expenses/{id}", s.expenseH.Get)
	mux.HandleFunc("PUT /api/expenses/{id}", s.expenseH.Update)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.expenseH.Delete)

	// Activity feed and dashboard
	mux.HandleFunc("GET /api/activities", s.activityH.List)
	mux.HandleFunc("GET /api/activities/stats", s.activityH.Stats)
	mux.HandleFunc("GET /api/dashboard", s.dashboardH.Get)

	// Notifications
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("GET /api/notifications/unread-count", s.notificationH.UnreadCount)
	mux.HandleFunc("POST /api/notifications/read-all", s.notificationH.MarkAllRead)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notificationH.MarkRead)
	mux.HandleFunc("DELETE /api/notifications/{id}", s.notificationH.Delete)
	mux.HandleFunc("GET /api/notification-preferences", s.preferenceH.Get)
	mux.HandleFunc("PUT /api/notification-preferences", s.preferenceH.Update)

	// Web push
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
}
