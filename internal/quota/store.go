package quota

import (
	"context"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"github.com/pressly/goose/v3"
	"golang.org/x/crypto/blake2b"

	"media-toolkit/internal/logging"
	"media-toolkit/internal/metrics"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const defaultTimeout = 5 * time.Second

// Store is the SQLite-backed Checker.
type Store struct {
	db     *sql.DB
	key    [32]byte
	limits Limits
	now    func() time.Time

	// Serializes read-modify-write of a client's row within this process.
	mu sync.Mutex
}

// Open opens (creating if needed) the usage database at path and applies
// pending migrations. secret keys the client id digests; changing it
// orphans existing rows.
func Open(ctx context.Context, path, secret string, limits Limits) (*Store, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open quota database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to connect to quota database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		closeQuietly(db)
		return nil, err
	}

	if limits.Window <= 0 {
		limits.Window = DefaultLimits().Window
	}
	if limits.Retention <= 0 {
		limits.Retention = DefaultLimits().Retention
	}

	s := &Store{
		db:     db,
		key:    blake2b.Sum256([]byte(secret)),
		limits: limits,
		now:    time.Now,
	}
	logging.Info("Quota store ready at %s (free: %d jobs / %d MB, pro: %d MB)",
		path, limits.FreeDailyJobs, limits.FreeMaxFileBytes>>20, limits.ProMaxFileBytes>>20)
	return s, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to load quota migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply quota migrations: %w", err)
	}
	for _, r := range results {
		logging.Debug("Applied quota migration %s in %v", r.Source.Path, r.Duration)
	}
	return nil
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		logging.Error("failed to close quota database: %v", err)
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// clientKey returns the stored form of a client id.
func (s *Store) clientKey(clientID string) string {
	h, err := blake2b.New256(s.key[:])
	if err != nil {
		// Only returned for keys longer than 64 bytes.
		panic(err)
	}
	h.Write([]byte(clientID))
	return hex.EncodeToString(h.Sum(nil))
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type row struct {
	used        int
	windowStart time.Time
	pro         bool
}

func observe(op string, start time.Time) {
	metrics.QuotaQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// load reads a client's row, rolling the window forward when it has
// expired. A missing row yields a fresh window starting now.
func (s *Store) load(ctx context.Context, q queryRower, key string, now time.Time) (row, error) {
	var (
		r     row
		start int64
		pro   int
	)
	err := q.QueryRowContext(ctx,
		`SELECT used, window_start, is_pro FROM client_usage WHERE client_key = ?`, key,
	).Scan(&r.used, &start, &pro)
	if errors.Is(err, sql.ErrNoRows) {
		return row{windowStart: now}, nil
	}
	if err != nil {
		return row{}, err
	}
	r.windowStart = time.Unix(start, 0)
	r.pro = pro != 0
	if now.Sub(r.windowStart) >= s.limits.Window {
		r.used = 0
		r.windowStart = now
	}
	return r, nil
}

func (s *Store) usageOf(r row) Usage {
	u := Usage{
		Pro:           r.pro,
		Used:          r.used,
		MaxFileSizeMB: s.limits.FreeMaxFileBytes >> 20,
		ResetAt:       r.windowStart.Add(s.limits.Window),
	}
	if r.pro {
		u.Remaining = -1
		u.MaxFileSizeMB = s.limits.ProMaxFileBytes >> 20
	} else {
		u.Remaining = max(0, s.limits.FreeDailyJobs-r.used)
	}
	return u
}

// CheckAndReserve implements Checker.
func (s *Store) CheckAndReserve(ctx context.Context, clientID string, fileSizeBytes int64) (Decision, error) {
	defer observe("check_and_reserve", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	key := s.clientKey(clientID)
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("begin quota transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logging.Warn("quota rollback failed: %v", err)
		}
	}()

	r, err := s.load(ctx, tx, key, now)
	if err != nil {
		return Decision{}, fmt.Errorf("load quota: %w", err)
	}

	d := s.decide(r, fileSizeBytes, now)
	if d.Allowed {
		if !r.pro {
			r.used++
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO client_usage (client_key, used, window_start, is_pro, updated_at, lifetime_jobs)
			VALUES (?, ?, ?, 0, ?, 1)
			ON CONFLICT(client_key) DO UPDATE SET
				used = excluded.used,
				window_start = excluded.window_start,
				updated_at = excluded.updated_at,
				lifetime_jobs = lifetime_jobs + 1`,
			key, r.used, r.windowStart.Unix(), now.Unix())
		if err != nil {
			return Decision{}, fmt.Errorf("reserve quota: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return Decision{}, fmt.Errorf("commit quota: %w", err)
		}
	}

	d.Usage = s.usageOf(r)
	result := "deny"
	if d.Allowed {
		result = "allow"
	}
	metrics.QuotaDecisionsTotal.WithLabelValues(result, d.Reason).Inc()
	if !d.Allowed {
		logging.Debug("Quota denied (%s): %s", d.Reason, d.Message)
	}
	return d, nil
}

func (s *Store) decide(r row, size int64, now time.Time) Decision {
	if r.pro {
		if size > s.limits.ProMaxFileBytes {
			return Decision{Reason: ReasonFileTooLarge, Message: fmt.Sprintf(
				"File size exceeds the %d MB limit", s.limits.ProMaxFileBytes>>20)}
		}
		return Decision{Allowed: true, Reason: ReasonPro}
	}
	if size > s.limits.FreeMaxFileBytes {
		return Decision{Reason: ReasonFileTooLarge, Message: fmt.Sprintf(
			"Free users are limited to %d MB files. Upgrade to Pro for %d MB.",
			s.limits.FreeMaxFileBytes>>20, s.limits.ProMaxFileBytes>>20)}
	}
	if r.used >= s.limits.FreeDailyJobs {
		wait := r.windowStart.Add(s.limits.Window).Sub(now)
		if wait < 0 {
			wait = 0
		}
		return Decision{Reason: ReasonDailyLimit, Message: fmt.Sprintf(
			"Free limit of %d compressions per day reached. Upgrade to Pro or wait %d hours.",
			s.limits.FreeDailyJobs, int(wait.Hours()))}
	}
	return Decision{Allowed: true, Reason: ReasonOK}
}

// Usage implements Checker. It does not consume allowance.
func (s *Store) Usage(ctx context.Context, clientID string) (Usage, error) {
	defer observe("usage", time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	r, err := s.load(ctx, s.db, s.clientKey(clientID), s.now())
	if err != nil {
		return Usage{}, fmt.Errorf("load quota: %w", err)
	}
	return s.usageOf(r), nil
}

// SetPro grants or revokes pro status for a client.
func (s *Store) SetPro(ctx context.Context, clientID string, pro bool) error {
	defer observe("set_pro", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	flag := 0
	if pro {
		flag = 1
	}
	now := s.now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_usage (client_key, used, window_start, is_pro, updated_at)
		VALUES (?, 0, ?, ?, ?)
		ON CONFLICT(client_key) DO UPDATE SET is_pro = excluded.is_pro, updated_at = excluded.updated_at`,
		s.clientKey(clientID), now, flag, now)
	if err != nil {
		return fmt.Errorf("set pro status: %w", err)
	}
	logging.Info("Pro status for client set to %v", pro)
	return nil
}

// Purge deletes free clients whose window started more than the retention
// period ago. Pro rows are kept.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	defer observe("purge", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cutoff := s.now().Add(-s.limits.Retention).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM client_usage WHERE is_pro = 0 AND window_start < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge quota rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	metrics.CleanupRemovedTotal.WithLabelValues("usage").Add(float64(n))
	return n, nil
}
