package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Snapshot errors.
var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSnapshotExists    = errors.New("snapshot already exists")
	ErrSnapshotCorrupted = errors.New("snapshot integrity check failed")
	ErrInMemoryDatabase  = errors.New("in-memory databases cannot be snapshotted")
)

// maxAutoSnapshots is how many automatic snapshots are kept.
const maxAutoSnapshots = 5

// SnapshotInfo describes a saved copy of the database.
type SnapshotInfo struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
	IsAuto        bool           `json:"is_auto"`
}

// SnapshotManager copies the SQLite database aside before bulk imports and
// restores those copies on request. Snapshots live in a "snapshots"
// directory next to the database, each with a JSON sidecar.
type SnapshotManager struct {
	store *SQLiteStorage
	dir   string
}

// Snapshots returns the snapshot manager for this database.
func (s *SQLiteStorage) Snapshots() (*SnapshotManager, error) {
	if s.dbPath == ":memory:" {
		return nil, ErrInMemoryDatabase
	}
	dir := filepath.Join(filepath.Dir(s.dbPath), "snapshots")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}
	return &SnapshotManager{store: s, dir: dir}, nil
}

func validTag(tag string) error {
	if tag == "" || strings.ContainsAny(tag, `/\'";`) || strings.Contains(tag, "..") {
		return fmt.Errorf("invalid snapshot id %q", tag)
	}
	return nil
}

func (m *SnapshotManager) dbFile(id string) string   { return filepath.Join(m.dir, id+".db") }
func (m *SnapshotManager) metaFile(id string) string { return filepath.Join(m.dir, id+".meta.json") }

// Create copies the database under tag. An empty tag is generated from the time.
func (m *SnapshotManager) Create(ctx context.Context, tag, description string) (*SnapshotInfo, error) {
	if tag == "" {
		tag = "snapshot-" + time.Now().Format("2006-01-02-150405")
	}
	if err := validTag(tag); err != nil {
		return nil, err
	}
	path := m.dbFile(tag)
	if _, err := os.Stat(path); err == nil {
		return nil, ErrSnapshotExists
	}

	version, err := m.store.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := m.rowCounts(ctx)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if strings.ContainsRune(abs, '\'') {
		return nil, fmt.Errorf("unsupported snapshot path %q", abs)
	}
	// #nosec G201 - the tag is validated and the directory is ours
	if _, err := m.store.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", abs)); err != nil {
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	info := &SnapshotInfo{
		ID:            tag,
		CreatedAt:     time.Now(),
		Description:   description,
		FileSize:      stat.Size(),
		RowCounts:     counts,
		SchemaVersion: version,
	}
	if err := m.saveInfo(info); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Error("failed to remove snapshot after metadata failure", "error", rmErr)
		}
		return nil, err
	}

	slog.Info("Created snapshot", "id", tag, "size", info.FileSize)
	return info, nil
}

// AutoSnapshot takes an automatic snapshot before an operation and prunes
// automatic snapshots beyond the newest few.
func (m *SnapshotManager) AutoSnapshot(ctx context.Context, operation string) (*SnapshotInfo, error) {
	tag := fmt.Sprintf("auto-%s-%s-%s", operation, time.Now().Format("2006-01-02-150405"), uuid.NewString()[:8])
	info, err := m.Create(ctx, tag, "Automatic snapshot before "+operation)
	if err != nil {
		return nil, fmt.Errorf("failed to create automatic snapshot: %w", err)
	}
	info.IsAuto = true
	if err := m.saveInfo(info); err != nil {
		return nil, err
	}

	if err := m.prune(ctx); err != nil {
		slog.Warn("Failed to prune automatic snapshots", "error", err)
	}
	return info, nil
}

// List returns every snapshot, newest first.
func (m *SnapshotManager) List(_ context.Context) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	var out []SnapshotInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".meta.json") {
			continue
		}
		info, err := m.loadInfo(strings.TrimSuffix(e.Name(), ".meta.json"))
		if err != nil {
			slog.Debug("Skipping unreadable snapshot metadata", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Restore replaces the database file with a snapshot. The storage is closed
// and must be reopened afterwards.
func (m *SnapshotManager) Restore(_ context.Context, id string) error {
	if err := validTag(id); err != nil {
		return err
	}
	src := m.dbFile(id)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrSnapshotNotFound
		}
		return fmt.Errorf("failed to access snapshot: %w", err)
	}
	if err := verifyIntegrity(src); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotCorrupted, err)
	}

	if err := m.store.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	// WAL side files belong to the replaced database.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(m.store.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", suffix, err)
		}
	}
	if err := copyFile(src, m.store.dbPath); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	slog.Info("Restored snapshot", "id", id)
	return nil
}

// Delete removes a snapshot and its metadata.
func (m *SnapshotManager) Delete(_ context.Context, id string) error {
	if err := validTag(id); err != nil {
		return err
	}
	if err := os.Remove(m.dbFile(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrSnapshotNotFound
		}
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	if err := os.Remove(m.metaFile(id)); err != nil && !os.IsNotExist(err) {
		slog.Debug("failed to remove snapshot metadata", "error", err, "id", id)
	}
	return nil
}

func (m *SnapshotManager) prune(ctx context.Context) error {
	snapshots, err := m.List(ctx)
	if err != nil {
		return err
	}
	kept := 0
	for _, s := range snapshots {
		if !s.IsAuto {
			continue
		}
		kept++
		if kept > maxAutoSnapshots {
			if err := m.Delete(ctx, s.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *SnapshotManager) rowCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(requiredTables))
	for _, table := range requiredTables {
		var n int
		// #nosec G202 - table names come from a fixed list
		if err := m.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func (m *SnapshotManager) saveInfo(info *SnapshotInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.metaFile(info.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to save snapshot metadata: %w", err)
	}
	return os.Rename(tmp, m.metaFile(info.ID))
}

func (m *SnapshotManager) loadInfo(id string) (*SnapshotInfo, error) {
	// #nosec G304 - id comes from our own directory listing
	data, err := os.ReadFile(m.metaFile(id))
	if err != nil {
		return nil, err
	}
	var info SnapshotInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func verifyIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return errors.New(result)
	}
	return nil
}

// copyFile writes src to dst through a temporary file and a rename.
func copyFile(src, dst string) error {
	// #nosec G304 - paths are built by SnapshotManager
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
