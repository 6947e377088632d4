package store

import (
	"context"
	"testing"
	"time"

	"github.com/999joaquin/CoreTrack/internal/model"
)

func mustCreateNotification(t *testing.T, ns *NotificationStore, userID int64, title string) *model.Notification {
	t.Helper()
	n, err := ns.Create(context.Background(), model.Notification{
		UserID:   userID,
		Title:    title,
		Message:  title + " message",
		Category: model.CategoryTask,
	})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
	return n
}

func unread(t *testing.T, ns *NotificationStore, userID int64) int {
	t.Helper()
	n, err := ns.UnreadCount(context.Background(), userID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	return n
}

func TestNotificationCreateDefaults(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNotificationStore(db)
	u := mustCreateUser(t, db, "alice@example.com", "Alice")

	n := mustCreateNotification(t, ns, u.ID, "Assigned")
	if n.Type != model.NotifInfo {
		t.Errorf("type = %q, want info", n.Type)
	}
	if n.Read {
		t.Error("new notification should be unread")
	}
	if n.Metadata == nil || len(n.Metadata) != 0 {
		t.Errorf("metadata = %v, want empty object", n.Metadata)
	}

	url, text := "/tasks/1", "Open task"
	withAction, err := ns.Create(context.Background(), model.Notification{
		UserID: u.ID, Title: "Done", Message: "m", Type: model.NotifSuccess, Category: model.CategoryGoal,
		ActionURL: &url, ActionText: &text, Metadata: map[string]any{"goal_id": 4},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if withAction.ActionURL == nil || *withAction.ActionURL != url {
		t.Errorf("action_url = %v", withAction.ActionURL)
	}
	if withAction.Metadata["goal_id"] != float64(4) {
		t.Errorf("metadata = %v", withAction.Metadata)
	}
}

func TestNotificationRejectsUnknownCategory(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNotificationStore(db)
	u := mustCreateUser(t, db, "alice@example.com", "Alice")

	_, err := ns.Create(context.Background(), model.Notification{UserID: u.ID, Title: "x", Message: "y", Category: "billing"})
	if err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestNotificationListNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNotificationStore(db)
	ctx := context.Background()
	u := mustCreateUser(t, db, "alice@example.com", "Alice")
	other := mustCreateUser(t, db, "bob@example.com", "Bob")

	first := mustCreateNotification(t, ns, u.ID, "first")
	mustCreateNotification(t, ns, u.ID, "second")
	mustCreateNotification(t, ns, other.ID, "not mine")

	list, err := ns.List(ctx, u.ID, 0, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Title != "second" {
		t.Errorf("first item = %q, want second", list[0].Title)
	}

	ns.MarkRead(ctx, u.ID, first.ID)
	unreadOnly, _ := ns.List(ctx, u.ID, 0, true)
	if len(unreadOnly) != 1 || unreadOnly[0].Title != "second" {
		t.Errorf("unread only = %+v", unreadOnly)
	}

	limited, _ := ns.List(ctx, u.ID, 1, false)
	if len(limited) != 1 {
		t.Errorf("limit: len = %d, want 1", len(limited))
	}
}

func TestNotificationMarkReadDecrementsOnce(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNotificationStore(db)
	ctx := context.Background()
	u := mustCreateUser(t, db, "alice@example.com", "Alice")

	mustCreateNotification(t, ns, u.ID, "other")
	n := mustCreateNotification(t, ns, u.ID, "target")
	before := unread(t, ns, u.ID)

	got, err := ns.MarkRead(ctx, u.ID, n.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !got.Read {
		t.Error("expected read = true")
	}
	if after := unread(t, ns, u.ID); after != before-1 {
		t.Errorf("unread = %d, want %d", after, before-1)
	}

	again, err := ns.MarkRead(ctx, u.ID, n.ID)
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if again == nil || !again.Read {
		t.Error("marking a read row should return it unchanged")
	}
	if after := unread(t, ns, u.ID); after != before-1 {
		t.Errorf("unread after repeat = %d, want %d", after, before-1)
	}
}

func TestNotificationMarkReadScopedToRecipient(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNotificationStore(db)
	ctx := context.Background()
	u := mustCreateUser(t, db, "alice@example.com", "Alice")
	other := mustCreateUser(t, db, "bob@example.com", "Bob")
	n := mustCreateNotification(t, ns, u.ID, "private")

	got, err := ns.MarkRead(ctx, other.ID, n.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if got != nil {
		t.Error("another user must not see the notification")
	}
	if unread(t, ns, u.ID) != 1 {
		t.Error("notification should still be unread")
	}

	ok, err := ns.Delete(ctx, other.ID, n.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok {
		t.Error("another user must not delete the notification")
	}
}

func TestNotificationMarkAllReadIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNotificationStore(db)
	ctx := context.Background()
	u := mustCreateUser(t, db, "alice@example.com", "Alice")
	other := mustCreateUser(t, db, "bob@example.com", "Bob")

	a := mustCreateNotification(t, ns, u.ID, "a")
	mustCreateNotification(t, ns, u.ID, "b")
	mustCreateNotification(t, ns, u.ID, "c")
	mustCreateNotification(t, ns, other.ID, "bob's")
	ns.MarkRead(ctx, u.ID, a.ID)

	changed, err := ns.MarkAllRead(ctx, u.ID)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if len(changed) != 2 {
		t.Errorf("changed = %d, want 2", len(changed))
	}
	for _, n := range changed {
		if !n.Read {
			t.Errorf("notification %d not read", n.ID)
		}
	}

	second, err := ns.MarkAllRead(ctx, u.ID)
	if err != nil {
		t.Fatalf("second mark all read: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second call changed %d rows, want 0", len(second))
	}
	if unread(t, ns, u.ID) != 0 {
		t.Error("expected no unread notifications")
	}
	if unread(t, ns, other.ID) != 1 {
		t.Error("other user's notifications must be untouched")
	}
}

func TestNotificationDeleteUnreadCount(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNotificationStore(db)
	ctx := context.Background()
	u := mustCreateUser(t, db, "alice@example.com", "Alice")

	unreadOne := mustCreateNotification(t, ns, u.ID, "unread")
	readOne := mustCreateNotification(t, ns, u.ID, "read")
	mustCreateNotification(t, ns, u.ID, "keep")
	ns.MarkRead(ctx, u.ID, readOne.ID)

	if got := unread(t, ns, u.ID); got != 2 {
		t.Fatalf("unread = %d, want 2", got)
	}

	ok, err := ns.Delete(ctx, u.ID, unreadOne.ID)
	if err != nil || !ok {
		t.Fatalf("delete unread: ok=%v err=%v", ok, err)
	}
	if got := unread(t, ns, u.ID); got != 1 {
		t.Errorf("after deleting unread: %d, want 1", got)
	}

	ok, err = ns.Delete(ctx, u.ID, readOne.ID)
	if err != nil || !ok {
		t.Fatalf("delete read: ok=%v err=%v", ok, err)
	}
	if got := unread(t, ns, u.ID); got != 1 {
		t.Errorf("after deleting read: %d, want 1", got)
	}

	ok, _ = ns.Delete(ctx, u.ID, readOne.ID)
	if ok {
		t.Error("deleting a missing notification should report false")
	}
}

func TestNotificationListUnreadSince(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNotificationStore(db)
	ctx := context.Background()
	u := mustCreateUser(t, db, "alice@example.com", "Alice")

	old := mustCreateNotification(t, ns, u.ID, "old")
	db.Exec(`UPDATE notifications SET created_at = ? WHERE id = ?`, sqliteTime(time.Now().Add(-10*24*time.Hour)), old.ID)
	mustCreateNotification(t, ns, u.ID, "recent")

	list, err := ns.ListUnreadSince(ctx, u.ID, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("list unread since: %v", err)
	}
	if len(list) != 1 || list[0].Title != "recent" {
		t.Errorf("list = %+v", list)
	}
}
