package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quay/zlog"
	_ "modernc.org/sqlite"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// chunkKeyPattern matches the canonical "chunk:{z}:{tr}:{tc}:{cr}:{cc}" key
// shape, so the disk tier can lay files out along that structure rather
// than a key-agnostic hash scheme.
var chunkKeyPattern = regexp.MustCompile(`^chunk:(\d+):(\d+):(\d+):(\d+):(\d+)$`)

// Disk is the chunk cache: JPEG bytes under a provider-scoped directory tree
// with a sqlite metadata index for GC ordering, grounded on
// libindex/fetcher.go's os.OpenRoot-scoped RemoteFetchArena.
type Disk struct {
	root     *os.Root
	provider string
	db       *sql.DB

	mu       sync.Mutex // serializes path allocation/index writes
	maxSize  atomic.Int64
	shutdown atomic.Bool
}

// NewDisk opens (creating if necessary) a disk cache rooted at dir for the
// named provider, with an embedded sqlite metadata index at
// dir/index.sqlite.
func NewDisk(ctx context.Context, dir, provider string, maxSize int64) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: disk: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("cache: disk: OpenRoot(%q): %w", dir, err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "index.sqlite"))
	if err != nil {
		root.Close()
		return nil, fmt.Errorf("cache: disk: open index: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			size INTEGER NOT NULL,
			last_access INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		root.Close()
		return nil, fmt.Errorf("cache: disk: create index: %w", err)
	}
	d := &Disk{root: root, provider: provider, db: db}
	d.maxSize.Store(maxSize)
	return d, nil
}

// relPath computes the on-disk path for key, following
// {provider}/{z}/{tr%256}/{tc%256}/{tr}_{tc}_{cr}_{cc}.jpg for chunk keys and
// falling back to a collision-free sha256-sharded path for anything else.
func (d *Disk) relPath(key string) string {
	if m := chunkKeyPattern.FindStringSubmatch(key); m != nil {
		z, tr, tc, cr, cc := m[1], m[2], m[3], m[4], m[5]
		trN, _ := strconv.Atoi(tr)
		tcN, _ := strconv.Atoi(tc)
		return filepath.Join(d.provider, z,
			strconv.Itoa(trN%256), strconv.Itoa(tcN%256),
			fmt.Sprintf("%s_%s_%s_%s.jpg", tr, tc, cr, cc))
	}
	sum := sha256.Sum256([]byte(key))
	hex := hex.EncodeToString(sum[:])
	return filepath.Join(d.provider, "_misc", hex[:2], hex[2:])
}

func (d *Disk) Get(ctx context.Context, key string) ([]byte, bool, error) {
	rel := d.relPath(key)
	f, err := d.root.Open(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		zlog.Debug(ctx).Err(err).Str("key", key).Msg("disk cache read error, treating as miss")
		return nil, false, nil
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		zlog.Debug(ctx).Err(err).Str("key", key).Msg("disk cache read error, treating as miss")
		return nil, false, nil
	}
	d.touch(ctx, key)
	return data, true, nil
}

func (d *Disk) Set(ctx context.Context, key string, value []byte) error {
	if d.shutdown.Load() {
		return xearthlayer.ErrShuttingDown
	}
	rel := d.relPath(key)

	d.mu.Lock()
	defer d.mu.Unlock()

	if dir := filepath.Dir(rel); dir != "." {
		if err := d.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cache: disk: mkdir %q: %w", dir, err)
		}
	}
	f, err := d.root.Create(rel)
	if err != nil {
		return fmt.Errorf("cache: disk: create %q: %w", rel, err)
	}
	if _, err := f.Write(value); err != nil {
		f.Close()
		return fmt.Errorf("cache: disk: write %q: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("cache: disk: close %q: %w", rel, err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO entries (key, path, size, last_access) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET path=excluded.path, size=excluded.size, last_access=excluded.last_access
	`, key, rel, len(value), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache: disk: index %q: %w", key, err)
	}
	return nil
}

func (d *Disk) touch(ctx context.Context, key string) {
	_, _ = d.db.ExecContext(ctx, `UPDATE entries SET last_access = ? WHERE key = ?`, time.Now().Unix(), key)
}

func (d *Disk) Delete(ctx context.Context, key string) error {
	rel := d.relPath(key)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.root.Remove(rel); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache: disk: remove %q: %w", rel, err)
	}
	_, err := d.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key)
	return err
}

func (d *Disk) Contains(ctx context.Context, key string) bool {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entries WHERE key = ?`, key).Scan(&n)
	return err == nil && n > 0
}

// GC evicts oldest-first (by last_access) until SizeBytes <= max size.
func (d *Disk) GC(ctx context.Context) (GCResult, error) {
	start := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	max := d.maxSize.Load()
	total, err := d.totalSize(ctx)
	if err != nil {
		return GCResult{}, err
	}

	var removed int
	var freed int64
	for total > max {
		var key, path string
		var size int64
		row := d.db.QueryRowContext(ctx, `SELECT key, path, size FROM entries ORDER BY last_access ASC LIMIT 1`)
		if err := row.Scan(&key, &path, &size); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				break
			}
			return GCResult{}, err
		}
		if err := d.root.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			zlog.Warn(ctx).Err(err).Str("path", path).Msg("disk gc: failed to remove file")
		}
		if _, err := d.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
			return GCResult{}, err
		}
		total -= size
		freed += size
		removed++
	}
	return GCResult{EntriesRemoved: removed, BytesFreed: freed, Duration: time.Since(start)}, nil
}

func (d *Disk) totalSize(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	if err := d.db.QueryRowContext(ctx, `SELECT SUM(size) FROM entries`).Scan(&total); err != nil {
		return 0, err
	}
	return total.Int64, nil
}

func (d *Disk) SetMaxSize(n int64) { d.maxSize.Store(n) }

func (d *Disk) SizeBytes() int64 {
	total, err := d.totalSize(context.Background())
	if err != nil {
		return 0
	}
	return total
}

func (d *Disk) Shutdown() { d.shutdown.Store(true) }

// Close releases the underlying root directory handle and index database.
func (d *Disk) Close() error {
	err := d.db.Close()
	if rerr := d.root.Close(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
