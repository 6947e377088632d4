package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/999joaquin/CoreTrack/internal/database"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) URL(key string) string { return "mem://" + key }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUploadAndRestore(t *testing.T) {
	dir := t.TempDir()
	src, err := database.Open(filepath.Join(dir, "live.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer src.Close()
	if _, err := store.NewUserStore(src).Create("admin@example.com", "Admin", model.RoleAdmin, "hash"); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	files := &memStore{}
	m, err := NewManager(src, files, "backup-pass", discardLogger())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	m.now = func() time.Time { return time.Date(2026, 3, 1, 4, 5, 6, 0, time.UTC) }

	key, err := m.Upload(context.Background())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if key != "backups/coretrack-2026-03-01T040506Z.db.enc" {
		t.Errorf("key = %q", key)
	}
	if m.LastBackup() == nil {
		t.Error("last backup not recorded")
	}

	sealed := files.objects[key]
	if bytes.Contains(sealed, []byte("admin@example.com")) {
		t.Fatal("backup is not encrypted")
	}

	restored := filepath.Join(dir, "restored.db")
	if err := Restore(sealed, "backup-pass", restored); err != nil {
		t.Fatalf("restore: %v", err)
	}
	db, err := database.Open(restored)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer db.Close()
	u, err := store.NewUserStore(db).GetByEmail("admin@example.com")
	if err != nil || u == nil {
		t.Fatalf("restored user missing: %v", err)
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	m, _ := NewManager(db, nil, "right", discardLogger())
	sealed, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	target := filepath.Join(t.TempDir(), "out.db")
	err = Restore(sealed, "wrong", target)
	if err == nil || !strings.Contains(err.Error(), "decrypt") {
		t.Fatalf("err = %v, want decrypt failure", err)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Error("target written despite failed restore")
	}
}

func TestUploadWithoutStorage(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	m, _ := NewManager(db, nil, "pass", discardLogger())
	if _, err := m.Upload(context.Background()); !errors.Is(err, ErrNoStorage) {
		t.Errorf("err = %v, want ErrNoStorage", err)
	}
}

func TestNewManagerRequiresPassphrase(t *testing.T) {
	if _, err := NewManager(nil, nil, "", discardLogger()); err == nil {
		t.Error("expected error for empty passphrase")
	}
}
