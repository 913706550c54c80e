package numerator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the sys_sequences UPSERT: strict calls pass
// only the key and advance by one, cached calls pass the range size as
// the second argument.
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
	err          error
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return &mockRow{err: m.err}
	}

	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}
	m.currentValue += increment
	return &mockRow{val: m.currentValue}
}

func expect(prefix string, period time.Time, n int) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, period.Year(), n)
}

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("REQ")
	now := time.Now()

	for i := 1; i <= 3; i++ {
		num, err := svc.GetNextNumber(ctx, cfg, nil, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := expect("REQ", now, i); num != want {
			t.Errorf("expected %s, got %s", want, num)
		}
	}
	if q.calls != 3 {
		t.Errorf("strict strategy should hit the DB every call, got %d calls", q.calls)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("DSP")
	now := time.Now()

	opts := &Options{Strategy: StrategyCached, RangeSize: 10}

	// First call reserves 1..10, DB advances to 10, number is 1.
	num, err := svc.GetNextNumber(ctx, cfg, opts, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := expect("DSP", now, 1); num != want {
		t.Errorf("expected %s, got %s", want, num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value 10, got %d", q.currentValue)
	}

	// Second call comes from memory without touching the DB.
	num, err = svc.GetNextNumber(ctx, cfg, opts, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := expect("DSP", now, 2); num != want {
		t.Errorf("expected %s, got %s", want, num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value to stay 10, got %d", q.currentValue)
	}

	// Exhaust the range; the next call reserves 11..20.
	for i := 0; i < 8; i++ {
		if _, err := svc.GetNextNumber(ctx, cfg, opts, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	num, err = svc.GetNextNumber(ctx, cfg, opts, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := expect("DSP", now, 11); num != want {
		t.Errorf("expected %s, got %s", want, num)
	}
	if q.currentValue != 20 {
		t.Errorf("expected DB value 20, got %d", q.currentValue)
	}
}

func TestGetNextNumber_YearResetUsesSeparateKeys(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("GRN")

	thisYear := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	nextYear := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	// The mock shares one counter across keys, so numbers keep
	// increasing; only the formatted year should differ.
	num, err := svc.GetNextNumber(ctx, cfg, nil, thisYear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "GRN-2026-00001" {
		t.Errorf("expected GRN-2026-00001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, nextYear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "GRN-2027-00002" {
		t.Errorf("expected GRN-2027-00002, got %s", num)
	}
}

func TestGetNextNumber_NoYear(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)

	cfg := Config{Prefix: "SEQ", PadWidth: 3, ResetPeriod: "never"}
	num, err := svc.GetNextNumber(context.Background(), cfg, nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "SEQ-001" {
		t.Errorf("expected SEQ-001, got %s", num)
	}
}

func TestGetNextNumber_PropagatesDBError(t *testing.T) {
	q := &mockQuerier{err: errors.New("connection refused")}
	svc := New(q)

	_, err := svc.GetNextNumber(context.Background(), DefaultConfig("REQ"), nil, time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGetNextNumber_NilService(t *testing.T) {
	var svc *Service
	_, err := svc.GetNextNumber(context.Background(), DefaultConfig("REQ"), nil, time.Now())
	if err == nil {
		t.Fatal("expected error from nil service")
	}
}
