package quota

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const mb = 1 << 20

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "quota.db"), "test-secret", DefaultLimits())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.now = c.now
	return s, c
}

func TestFreeDailyLimit(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := s.CheckAndReserve(ctx, "10.0.0.1", 1*mb)
		if err != nil {
			t.Fatalf("CheckAndReserve #%d error = %v", i, err)
		}
		if !d.Allowed || d.Reason != ReasonOK {
			t.Fatalf("CheckAndReserve #%d = %+v, want allowed", i, d)
		}
		if d.Usage.Used != i || d.Usage.Remaining != 5-i {
			t.Errorf("#%d usage = %+v", i, d.Usage)
		}
	}

	d, err := s.CheckAndReserve(ctx, "10.0.0.1", 1*mb)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.Reason != ReasonDailyLimit {
		t.Fatalf("6th request = %+v, want daily_limit", d)
	}
	if !strings.Contains(d.Message, "5 compressions per day") {
		t.Errorf("Message = %q", d.Message)
	}

	// Another client is unaffected.
	if d, _ := s.CheckAndReserve(ctx, "10.0.0.2", 1*mb); !d.Allowed {
		t.Errorf("other client denied: %+v", d)
	}
}

func TestWindowResets(t *testing.T) {
	s, c := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.CheckAndReserve(ctx, "client", mb); err != nil {
			t.Fatal(err)
		}
	}
	if d, _ := s.CheckAndReserve(ctx, "client", mb); d.Allowed {
		t.Fatal("expected denial before the window ends")
	}

	c.advance(24 * time.Hour)
	d, err := s.CheckAndReserve(ctx, "client", mb)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || d.Usage.Used != 1 {
		t.Errorf("after reset = %+v, want allowed with 1 used", d)
	}
	if want := c.t.Add(24 * time.Hour); !d.Usage.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", d.Usage.ResetAt, want)
	}
}

func TestFileSizeLimits(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	d, err := s.CheckAndReserve(ctx, "free", 26*mb)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.Reason != ReasonFileTooLarge {
		t.Errorf("free 26MB = %+v, want file_too_large", d)
	}
	if u, _ := s.Usage(ctx, "free"); u.Used != 0 {
		t.Errorf("denied request consumed allowance: %+v", u)
	}

	if err := s.SetPro(ctx, "pro", true); err != nil {
		t.Fatalf("SetPro() error = %v", err)
	}
	d, _ = s.CheckAndReserve(ctx, "pro", 400*mb)
	if !d.Allowed || d.Reason != ReasonPro {
		t.Errorf("pro 400MB = %+v, want allowed", d)
	}
	d, _ = s.CheckAndReserve(ctx, "pro", 501*mb)
	if d.Allowed || d.Reason != ReasonFileTooLarge {
		t.Errorf("pro 501MB = %+v, want file_too_large", d)
	}
}

func TestProUnlimitedJobs(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if err := s.SetPro(ctx, "pro", true); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		d, err := s.CheckAndReserve(ctx, "pro", mb)
		if err != nil || !d.Allowed {
			t.Fatalf("pro request #%d = %+v, %v", i, d, err)
		}
	}
	u, err := s.Usage(ctx, "pro")
	if err != nil {
		t.Fatal(err)
	}
	if !u.Pro || u.Remaining != -1 || u.MaxFileSizeMB != 500 {
		t.Errorf("pro usage = %+v", u)
	}

	if err := s.SetPro(ctx, "pro", false); err != nil {
		t.Fatal(err)
	}
	if u, _ := s.Usage(ctx, "pro"); u.Pro || u.MaxFileSizeMB != 25 {
		t.Errorf("revoked usage = %+v", u)
	}
}

func TestUsageUnknownClient(t *testing.T) {
	s, _ := openTestStore(t)

	u, err := s.Usage(context.Background(), "never-seen")
	if err != nil {
		t.Fatal(err)
	}
	if u.Pro || u.Used != 0 || u.Remaining != 5 || u.MaxFileSizeMB != 25 {
		t.Errorf("fresh usage = %+v", u)
	}
}

func TestPurge(t *testing.T) {
	s, c := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CheckAndReserve(ctx, "old-free", mb); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPro(ctx, "old-pro", true); err != nil {
		t.Fatal(err)
	}
	c.advance(49 * time.Hour)
	if _, err := s.CheckAndReserve(ctx, "recent", mb); err != nil {
		t.Fatal(err)
	}

	n, err := s.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Purge() removed %d rows, want 1", n)
	}
	if u, _ := s.Usage(ctx, "old-pro"); !u.Pro {
		t.Error("pro row should survive purge")
	}
}

func TestClientIDsAreNotStoredInClear(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CheckAndReserve(ctx, "192.168.1.77", mb); err != nil {
		t.Fatal(err)
	}

	var key string
	if err := s.db.QueryRowContext(ctx, `SELECT client_key FROM client_usage`).Scan(&key); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(key, "192.168") {
		t.Errorf("client id stored in clear: %s", key)
	}
	if len(key) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(key))
	}
	if key != s.clientKey("192.168.1.77") {
		t.Error("key should be deterministic")
	}
}

func TestDifferentSecretsGiveDifferentKeys(t *testing.T) {
	a := &Store{key: [32]byte{1}}
	b := &Store{key: [32]byte{2}}
	if a.clientKey("x") == b.clientKey("x") {
		t.Error("keys should depend on the secret")
	}
}

func TestMigrationsApplied(t *testing.T) {
	s, _ := openTestStore(t)

	var lifetime sql.NullInt64
	if _, err := s.CheckAndReserve(context.Background(), "c", mb); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CheckAndReserve(context.Background(), "c", mb); err != nil {
		t.Fatal(err)
	}
	err := s.db.QueryRow(`SELECT lifetime_jobs FROM client_usage`).Scan(&lifetime)
	if err != nil {
		t.Fatalf("lifetime_jobs column missing: %v", err)
	}
	if lifetime.Int64 != 2 {
		t.Errorf("lifetime_jobs = %d, want 2", lifetime.Int64)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.db")
	ctx := context.Background()

	s, err := Open(ctx, path, "k", DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetPro(ctx, "client", true); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(ctx, path, "k", DefaultLimits())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if u, _ := s.Usage(ctx, "client"); !u.Pro {
		t.Error("pro status lost across reopen")
	}
}

func TestUnlimited(t *testing.T) {
	var c Checker = Unlimited{}
	d, err := c.CheckAndReserve(context.Background(), "x", 10<<30)
	if err != nil || !d.Allowed {
		t.Errorf("Unlimited denied: %+v %v", d, err)
	}
}
