package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"studyfocus/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestClassRoundTripKeepsFreeFormFields(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.InsertClass(ctx, core.Class{
		Email: "a@x.com", Subject: "Math",
		Fields: map[string]any{"room": "B12"},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	instructor := "Rossi"
	res, err := repo.UpdateClass(ctx, id, core.ClassPatch{Fields: map[string]any{"instructor": instructor}})
	if err != nil || res.MatchedCount != 1 {
		t.Fatalf("update: %+v %v", res, err)
	}

	classes, err := repo.ListClasses(ctx, "a@x.com")
	if err != nil || len(classes) != 1 {
		t.Fatalf("list: %v %v", classes, err)
	}
	c := classes[0]
	if c.ID != id || c.Subject != "Math" || c.Fields["room"] != "B12" || c.Fields["instructor"] != instructor {
		t.Fatalf("unexpected class: %+v", c)
	}

	other, _ := repo.ListClasses(ctx, "b@x.com")
	if len(other) != 0 {
		t.Fatalf("owner filter leaked: %v", other)
	}
}

func TestUpdateUnknownIDMatchesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	amount := 12.5
	res, err := repo.UpdateTransaction(ctx, "missing", core.TransactionPatch{Amount: &amount})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !res.Acknowledged || res.MatchedCount != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	del, err := repo.DeleteClass(ctx, "missing")
	if err != nil || del.DeletedCount != 0 {
		t.Fatalf("delete: %+v %v", del, err)
	}
}

func TestTaskTimesSurviveStorage(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	deadline := time.Date(2025, 3, 4, 18, 0, 0, 0, time.UTC)

	id, err := repo.InsertTask(ctx, core.Task{
		Email: "a@x.com", Title: "Essay", Priority: "high", Status: core.StatusTodo,
		Deadline: &deadline, DurationMinutes: 90, CreatedAt: created, UpdatedAt: created,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Deadline == nil || !got.Deadline.Equal(deadline) || got.ScheduledAt != nil {
		t.Fatalf("deadline mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(created) || got.DurationMinutes != 90 {
		t.Fatalf("unexpected task: %+v", got)
	}

	later := created.Add(time.Hour)
	patch := core.TaskPatch{Deadline: core.Optional[core.NullTime]{Set: true}}
	if _, err := repo.UpdateTask(ctx, id, patch, later); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.GetTask(ctx, id)
	if got.Deadline != nil || !got.UpdatedAt.Equal(later) {
		t.Fatalf("expected cleared deadline and bumped updatedAt: %+v", got)
	}

	if _, err := repo.GetTask(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTasksNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		id, err := repo.InsertTask(ctx, core.Task{Email: "a@x.com", Status: core.StatusTodo, CreatedAt: at, UpdatedAt: at})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, id)
	}
	tasks, err := repo.ListTasks(ctx, "")
	if err != nil || len(tasks) != 3 {
		t.Fatalf("list: %v %v", tasks, err)
	}
	if tasks[0].ID != ids[2] || tasks[2].ID != ids[0] {
		t.Fatalf("wrong order: %v", tasks)
	}
}

func TestStatsQueries(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	for _, tk := range []core.Task{
		{Email: "a@x.com", Status: core.StatusDone, Priority: "high", UpdatedAt: base},
		{Email: "a@x.com", Status: core.StatusDone, Priority: "low", UpdatedAt: base.AddDate(0, 0, -3)},
		{Email: "a@x.com", Status: core.StatusDone, Priority: "low", UpdatedAt: base.AddDate(0, 0, -3)},
		{Email: "a@x.com", Status: core.StatusTodo, Priority: "low", UpdatedAt: base},
		{Email: "a@x.com", Status: core.StatusDone, Priority: "high", UpdatedAt: base.AddDate(0, 0, -30)},
	} {
		tk.CreatedAt = tk.UpdatedAt
		if _, err := repo.InsertTask(ctx, tk); err != nil {
			t.Fatalf("insert task: %v", err)
		}
	}

	daily, err := repo.DailyCompletions(ctx, "a@x.com", base.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	want := []core.DailyCount{{Date: "2025-05-07", Count: 2}, {Date: "2025-05-10", Count: 1}}
	if len(daily) != 2 || daily[0] != want[0] || daily[1] != want[1] {
		t.Fatalf("daily = %v, want %v", daily, want)
	}

	statuses, err := repo.TaskStatusCounts(ctx, "a@x.com", core.Window{Start: base, End: base.AddDate(0, 0, 7)})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) != 2 || statuses[0].Status != core.StatusDone || statuses[0].Count != 4 {
		t.Fatalf("unexpected status counts: %v", statuses)
	}

	priorities, _ := repo.TaskPriorityCounts(ctx, "a@x.com")
	if len(priorities) != 2 || priorities[0].Priority != "high" || priorities[0].Count != 2 {
		t.Fatalf("unexpected priorities: %v", priorities)
	}

	for _, tx := range []core.Transaction{
		{Email: "a@x.com", Type: core.TypeIncome, Amount: 100, Category: "Job", Date: "2025-01-05"},
		{Email: "a@x.com", Type: core.TypeExpense, Amount: 30, Category: "Food", Date: "2025-01-06"},
		{Email: "a@x.com", Type: core.TypeExpense, Amount: 45, Category: "Books", Date: "2025-02-01"},
		{Email: "a@x.com", Type: core.TypeExpense, Amount: 5, Category: "Food", Date: "2025-02-11"},
	} {
		if _, err := repo.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("insert transaction: %v", err)
		}
	}

	cats, _ := repo.ExpensesByCategory(ctx, "a@x.com")
	if len(cats) != 2 || cats[0].Category != "Books" || cats[1].Total != 35 {
		t.Fatalf("unexpected categories: %v", cats)
	}
	trend, _ := repo.MonthlyTrend(ctx, "a@x.com")
	if len(trend) != 2 || trend[0] != (core.MonthTrend{Month: "2025-01", Income: 100, Expense: 30}) ||
		trend[1] != (core.MonthTrend{Month: "2025-02", Expense: 50}) {
		t.Fatalf("unexpected trend: %v", trend)
	}
	expense, _ := repo.SumTransactions(ctx, "a@x.com", core.TypeExpense)
	none, _ := repo.SumTransactions(ctx, "nobody@x.com", core.TypeIncome)
	if expense != 80 || none != 0 {
		t.Fatalf("sums expense=%v none=%v", expense, none)
	}
	n, _ := repo.CountTransactions(ctx, "a@x.com")
	if n != 4 {
		t.Fatalf("count = %d", n)
	}
}
