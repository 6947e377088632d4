// Package backup takes encrypted snapshots of the SQLite database and
// restores them.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/storage"
)

const (
	keyPrefix   = "backups/"
	contentType = "application/octet-stream"
)

var ErrNoStorage = errors.New("backup storage not configured")

// Manager snapshots the database, seals it and uploads it to file storage.
type Manager struct {
	db     *sqlx.DB
	files  storage.Store
	box    *auth.SecretBox
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	last   *time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager returns a manager sealing backups with passphrase. files may be
// nil; Snapshot still works but Upload fails with ErrNoStorage.
func NewManager(db *sqlx.DB, files storage.Store, passphrase string, logger *slog.Logger) (*Manager, error) {
	box, err := auth.NewSecretBox(passphrase)
	if err != nil {
		return nil, fmt.Errorf("backup key: %w", err)
	}
	return &Manager{db: db, files: files, box: box, logger: logger, now: time.Now}, nil
}

// Snapshot returns an encrypted copy of the database. VACUUM INTO gives a
// consistent copy without stopping writers.
func (m *Manager) Snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "coretrack-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	plain, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := m.box.SealBytes(plain)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}
	return sealed, nil
}

// Upload takes a snapshot and stores it under backups/. It returns the
// object key.
func (m *Manager) Upload(ctx context.Context) (string, error) {
	if m.files == nil {
		return "", ErrNoStorage
	}
	sealed, err := m.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	now := m.now().UTC()
	key := keyPrefix + "coretrack-" + now.Format("2006-01-02T150405Z") + ".db.enc"
	if err := m.files.Put(ctx, key, bytes.NewReader(sealed), int64(len(sealed)), contentType); err != nil {
		return "", fmt.Errorf("upload backup: %w", err)
	}

	m.mu.Lock()
	m.last = &now
	m.mu.Unlock()
	m.logger.Info("backup uploaded", "key", key, "bytes", len(sealed))
	return key, nil
}

// LastBackup reports when the last successful upload finished.
func (m *Manager) LastBackup() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Start uploads a backup every interval until ctx is cancelled or Stop is
// called.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Upload(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Restore decrypts a sealed snapshot, checks its integrity and writes it to
// dbPath. The server must not be running against dbPath.
func Restore(sealed []byte, passphrase, dbPath string) error {
	box, err := auth.NewSecretBox(passphrase)
	if err != nil {
		return fmt.Errorf("backup key: %w", err)
	}
	plain, err := box.OpenBytes(sealed)
	if err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	tmp := dbPath + ".restore"
	if err := os.WriteFile(tmp, plain, 0o600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	defer os.Remove(tmp)

	if err := checkIntegrity(tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")
	return nil
}

func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow(`PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
