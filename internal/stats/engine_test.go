package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"studyfocus/internal/core"
	"studyfocus/internal/store/memory"
)

var fixedNow = time.Date(2025, 5, 14, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type recordingObserver struct {
	mu   sync.Mutex
	seen map[string]error
}

func (o *recordingObserver) ObserveStat(name string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seen == nil {
		o.seen = map[string]error{}
	}
	o.seen[name] = err
}

func TestWeekWindow(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		wantStart time.Time
		wantErr   error
	}{
		{"empty uses today", "", time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC), nil},
		{"date only", "2025-05-05", time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC), nil},
		{"rfc3339 with zone", "2025-05-05T23:30:00-02:00", time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC), nil},
		{"garbage", "last monday", time.Time{}, core.ErrInvalidStart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := WeekWindow(tt.start, fixedNow)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if !w.Start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", w.Start, tt.wantStart)
			}
			wantEnd := tt.wantStart.AddDate(0, 0, 7).Add(24*time.Hour - time.Millisecond)
			if !w.End.Equal(wantEnd) {
				t.Errorf("end = %v, want %v", w.End, wantEnd)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		done, total, want int64
	}{
		{0, 0, 0},
		{2, 4, 50},
		{1, 3, 33},
		{2, 3, 67},
		{5, 5, 100},
	}
	for _, tt := range tests {
		if got := Percent(tt.done, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 7, false},
		{"30", 30, false},
		{" 1 ", 1, false},
		{"200000", 200000, false},
		{"9999999999", maxDays, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"week", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDays(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDays(%q) = %d, %v", tt.in, got, err)
		}
		if tt.wantErr && !errors.Is(err, core.ErrInvalidDays) {
			t.Errorf("ParseDays(%q) error = %v, want ErrInvalidDays", tt.in, err)
		}
	}
}

func TestWeeklyProgressExample(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	for _, st := range []core.TaskStatus{core.StatusDone, core.StatusDone, core.StatusTodo, core.StatusInProgress} {
		s.InsertTask(ctx, core.Task{Email: "a@x.com", Status: st, CreatedAt: fixedNow, UpdatedAt: fixedNow})
	}
	s.InsertTask(ctx, core.Task{Email: "b@x.com", Status: core.StatusDone})

	got, err := New(s, WithClock(clock)).WeeklyProgress(ctx, "a@x.com", "")
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	want := core.WeeklyProgress{Total: 4, Done: 2, InProgress: 1, Todo: 1, Percent: 50}
	if got != want {
		t.Errorf("weekly = %+v, want %+v", got, want)
	}
}

func TestTransactionSummaryExample(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	s.InsertTransaction(ctx, core.Transaction{Email: "a@x.com", Type: core.TypeIncome, Amount: 100})
	s.InsertTransaction(ctx, core.Transaction{Email: "a@x.com", Type: core.TypeExpense, Amount: 30})
	s.InsertTransaction(ctx, core.Transaction{Email: "a@x.com", Type: "income", Amount: 1000})

	got, err := New(s).TransactionSummary(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := core.TransactionSummary{Income: 100, Expense: 30, Balance: 70}
	if got != want {
		t.Errorf("summary = %+v, want %+v", got, want)
	}
}

func TestOverviewEmptyOwner(t *testing.T) {
	got, err := New(memory.New()).Overview(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if got != (core.Overview{}) {
		t.Errorf("overview = %+v, want zero values", got)
	}
}

func TestOverviewMatchesCollectionCounts(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	s.InsertClass(ctx, core.Class{Email: "a@x.com", Subject: "Math"})
	s.InsertClass(ctx, core.Class{Email: "a@x.com", Subject: "Art"})
	s.InsertTask(ctx, core.Task{Email: "a@x.com", Status: core.StatusTodo})
	s.InsertTransaction(ctx, core.Transaction{Email: "a@x.com", Type: core.TypeIncome, Amount: 12.5})
	s.InsertTransaction(ctx, core.Transaction{Email: "a@x.com", Type: core.TypeExpense, Amount: 2.5})
	s.InsertTransaction(ctx, core.Transaction{Email: "b@x.com", Type: core.TypeExpense, Amount: 9})

	got, err := New(s).Overview(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	want := core.Overview{TotalTransactions: 2, TotalClasses: 2, TotalTasks: 1, Income: 12.5, Expense: 2.5}
	if got != want {
		t.Errorf("overview = %+v, want %+v", got, want)
	}
}

func TestDailyCompletionsUsesDayWindow(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	s.InsertTask(ctx, core.Task{Email: "a@x.com", Status: core.StatusDone, UpdatedAt: fixedNow.Add(-time.Hour)})
	s.InsertTask(ctx, core.Task{Email: "a@x.com", Status: core.StatusDone, UpdatedAt: fixedNow.Add(-50 * time.Hour)})
	s.InsertTask(ctx, core.Task{Email: "a@x.com", Status: core.StatusDone, UpdatedAt: fixedNow.AddDate(0, 0, -10)})

	e := New(s, WithClock(clock))
	two, err := e.DailyCompletions(ctx, "a@x.com", "2")
	if err != nil || len(two) != 1 || two[0].Date != "2025-05-14" {
		t.Fatalf("2 days = %v, %v", two, err)
	}
	week, _ := e.DailyCompletions(ctx, "a@x.com", "")
	if len(week) != 2 || week[0].Date != "2025-05-12" {
		t.Fatalf("default window = %v", week)
	}
	for _, days := range []string{"200000", "9999999999"} {
		all, err := e.DailyCompletions(ctx, "a@x.com", days)
		if err != nil || len(all) != 3 || all[0].Date != "2025-05-04" {
			t.Fatalf("%s days = %v, %v", days, all, err)
		}
	}
	if _, err := e.DailyCompletions(ctx, "a@x.com", "abc"); !errors.Is(err, core.ErrInvalidDays) {
		t.Fatalf("expected ErrInvalidDays, got %v", err)
	}
}

func TestEmptyResultsAreNonNil(t *testing.T) {
	ctx := context.Background()
	e := New(memory.New())

	priorities, _ := e.PriorityBreakdown(ctx, "a@x.com")
	classes, _ := e.ClassesBySubject(ctx, "a@x.com")
	expenses, _ := e.ExpensesByCategory(ctx, "a@x.com")
	trend, _ := e.TransactionsTrend(ctx, "a@x.com")
	if priorities == nil || classes == nil || expenses == nil || trend == nil {
		t.Fatal("expected empty slices, got nil")
	}
}

func TestEmailRequired(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	e := New(memory.New(), WithObserver(obs))

	calls := map[string]func() error{
		StatWeekly:            func() error { _, err := e.WeeklyProgress(ctx, "", ""); return err },
		StatPriority:          func() error { _, err := e.PriorityBreakdown(ctx, " "); return err },
		StatDaily:             func() error { _, err := e.DailyCompletions(ctx, "", "7"); return err },
		StatTransactions:      func() error { _, err := e.TransactionSummary(ctx, ""); return err },
		StatClasses:           func() error { _, err := e.ClassesBySubject(ctx, ""); return err },
		StatOverview:          func() error { _, err := e.Overview(ctx, ""); return err },
		StatExpenseByCategory: func() error { _, err := e.ExpensesByCategory(ctx, ""); return err },
		StatTransactionsTrend: func() error { _, err := e.TransactionsTrend(ctx, ""); return err },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, core.ErrEmailRequired) {
			t.Errorf("%s: expected ErrEmailRequired, got %v", name, err)
		}
		if !errors.Is(obs.seen[name], core.ErrEmailRequired) {
			t.Errorf("%s: observer saw %v", name, obs.seen[name])
		}
	}
}

type failingReader struct {
	*memory.Store
	err error
}

func (f failingReader) CountTasks(context.Context, string) (int64, error) {
	return 0, f.err
}

func TestOverviewPropagatesFailure(t *testing.T) {
	boom := errors.New("store down")
	_, err := New(failingReader{Store: memory.New(), err: boom}).Overview(context.Background(), "a@x.com")
	if !errors.Is(err, boom) {
		t.Fatalf("expected store failure, got %v", err)
	}
}
