package store

import (
	"testing"
	"time"
)

func TestSessionCreate(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db)
	u := mustCreateUser(t, db, "alice@example.com", "Alice")

	sess, err := ss.Create(u.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.UserID != u.ID {
		t.Errorf("user_id = %d, want %d", sess.UserID, u.ID)
	}
	if time.Until(sess.ExpiresAt) < 89*24*time.Hour {
		t.Errorf("expires_at = %v, want ~90 days out", sess.ExpiresAt)
	}
}

func TestSessionGetByToken(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db)
	u := mustCreateUser(t, db, "alice@example.com", "Alice")
	created, _ := ss.Create(u.ID)

	sess, err := ss.GetByToken(created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil || sess.ID != created.ID {
		t.Fatalf("got %+v, want session %d", sess, created.ID)
	}

	missing, err := ss.GetByToken("nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestSessionExpired(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db)
	u := mustCreateUser(t, db, "alice@example.com", "Alice")
	sess, _ := ss.Create(u.ID)

	if _, err := db.Exec(`UPDATE sessions SET expires_at = ? WHERE id = ?`, sqliteTime(time.Now().Add(-time.Hour)), sess.ID); err != nil {
		t.Fatalf("expire session: %v", err)
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected nil for expired session")
	}

	n, err := ss.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestSessionDeleteByUserKeepsCurrent(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db)
	u := mustCreateUser(t, db, "alice@example.com", "Alice")

	current, _ := ss.Create(u.ID)
	other1, _ := ss.Create(u.ID)
	other2, _ := ss.Create(u.ID)

	n, err := ss.DeleteByUserID(u.ID, current.ID)
	if err != nil {
		t.Fatalf("delete by user: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	if s, _ := ss.GetByToken(current.Token); s == nil {
		t.Error("current session should survive")
	}
	for _, s := range []string{other1.Token, other2.Token} {
		if got, _ := ss.GetByToken(s); got != nil {
			t.Errorf("session %s should be gone", s[:8])
		}
	}
}

func TestSessionDelete(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db)
	u := mustCreateUser(t, db, "alice@example.com", "Alice")
	sess, _ := ss.Create(u.ID)

	if err := ss.Delete(sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := ss.GetByToken(sess.Token); got != nil {
		t.Error("expected session deleted")
	}
}

func TestSessionRenewsNearExpiry(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db)
	u := mustCreateUser(t, db, "alice@example.com", "Alice")
	sess, _ := ss.Create(u.ID)

	// Sixty-five days later only 25 remain, inside the renewal window.
	later := time.Now().Add(65 * 24 * time.Hour)
	ss.now = func() time.Time { return later }

	got, err := ss.GetByToken(sess.Token)
	if err != nil || got == nil {
		t.Fatalf("get by token: %v, %v", got, err)
	}
	if left := got.ExpiresAt.Sub(later); left < 89*24*time.Hour {
		t.Errorf("remaining after renewal = %v, want ~90 days", left)
	}

	ss.now = func() time.Time { return later.Add(80 * 24 * time.Hour) }
	if got, _ := ss.GetByToken(sess.Token); got == nil {
		t.Error("renewed session expired early")
	}
}
