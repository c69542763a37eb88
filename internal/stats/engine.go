// Package stats computes owner-scoped summaries over the record stores. All
// grouping happens in the store; the engine validates input, derives windows
// and folds grouped rows into response shapes.
package stats

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"studyfocus/internal/core"
	"studyfocus/internal/store"
)

// Stat names, used for metrics and logs.
const (
	StatWeekly            = "weekly"
	StatPriority          = "priority"
	StatDaily             = "daily"
	StatTransactions      = "transactions"
	StatClasses           = "classes"
	StatOverview          = "overview"
	StatExpenseByCategory = "expense_by_category"
	StatTransactionsTrend = "transactions_trend"
)

const (
	defaultDays = 7
	// maxDays reaches back past any stored record; larger windows are
	// clamped so the date arithmetic stays in range.
	maxDays = 366000
)

// Observer is told how long each stat took and whether it failed.
type Observer interface {
	ObserveStat(name string, elapsed time.Duration, err error)
}

type Engine struct {
	reader   store.StatsReader
	now      func() time.Time
	observer Observer
}

type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func New(reader store.StatsReader, opts ...Option) *Engine {
	e := &Engine{reader: reader, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// track starts timing a stat; the returned func reports it with the final
// value of *err.
func (e *Engine) track(name string, err *error) func() {
	start := e.now()
	return func() {
		if e.observer != nil {
			e.observer.ObserveStat(name, e.now().Sub(start), *err)
		}
	}
}

func requireOwner(owner string) (string, error) {
	owner = core.TrimmedEmail(owner)
	if owner == "" {
		return "", core.ErrEmailRequired
	}
	return owner, nil
}

// WeekWindow returns [day@00:00:00, day+7d@23:59:59.999] in UTC for the day
// named by start, or for today when start is empty.
func WeekWindow(start string, now time.Time) (core.Window, error) {
	var day time.Time
	start = strings.TrimSpace(start)
	switch {
	case start == "":
		day = now.UTC()
	default:
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			t, err = time.Parse(time.RFC3339, start)
			if err != nil {
				return core.Window{}, core.ErrInvalidStart
			}
		}
		day = t.UTC()
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 8).Add(-time.Millisecond)
	return core.Window{Start: from, End: to}, nil
}

// Percent is round(100*done/total), 0 when total is 0.
func Percent(done, total int64) int64 {
	if total == 0 {
		return 0
	}
	return int64(math.Round(100 * float64(done) / float64(total)))
}

func (e *Engine) WeeklyProgress(ctx context.Context, owner, start string) (out core.WeeklyProgress, err error) {
	defer e.track(StatWeekly, &err)()
	if owner, err = requireOwner(owner); err != nil {
		return out, err
	}
	w, err := WeekWindow(start, e.now())
	if err != nil {
		return out, err
	}
	rows, err := e.reader.TaskStatusCounts(ctx, owner, w)
	if err != nil {
		return out, err
	}
	for _, r := range rows {
		out.Total += r.Count
		switch r.Status {
		case core.StatusDone:
			out.Done += r.Count
		case core.StatusInProgress:
			out.InProgress += r.Count
		case core.StatusTodo:
			out.Todo += r.Count
		}
	}
	out.Percent = Percent(out.Done, out.Total)
	return out, nil
}

func (e *Engine) PriorityBreakdown(ctx context.Context, owner string) (out []core.PriorityCount, err error) {
	defer e.track(StatPriority, &err)()
	if owner, err = requireOwner(owner); err != nil {
		return nil, err
	}
	out, err = e.reader.TaskPriorityCounts(ctx, owner)
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// ParseDays reads the daily window length. Empty means 7.
func ParseDays(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultDays, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, core.ErrInvalidDays
	}
	return min(n, maxDays), nil
}

func (e *Engine) DailyCompletions(ctx context.Context, owner, days string) (out []core.DailyCount, err error) {
	defer e.track(StatDaily, &err)()
	if owner, err = requireOwner(owner); err != nil {
		return nil, err
	}
	n, err := ParseDays(days)
	if err != nil {
		return nil, err
	}
	since := e.now().AddDate(0, 0, -n)
	out, err = e.reader.DailyCompletions(ctx, owner, since)
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (e *Engine) TransactionSummary(ctx context.Context, owner string) (out core.TransactionSummary, err error) {
	defer e.track(StatTransactions, &err)()
	if owner, err = requireOwner(owner); err != nil {
		return out, err
	}
	rows, err := e.reader.TransactionTotalsByType(ctx, owner)
	if err != nil {
		return out, err
	}
	for _, r := range rows {
		switch r.Type {
		case core.TypeIncome:
			out.Income = r.Total
		case core.TypeExpense:
			out.Expense = r.Total
		}
	}
	out.Balance = out.Income - out.Expense
	return out, nil
}

func (e *Engine) ClassesBySubject(ctx context.Context, owner string) (out []core.SubjectCount, err error) {
	defer e.track(StatClasses, &err)()
	if owner, err = requireOwner(owner); err != nil {
		return nil, err
	}
	out, err = e.reader.ClassCountsBySubject(ctx, owner)
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// Overview runs the three counts and two sums concurrently. The first failure
// cancels the rest.
func (e *Engine) Overview(ctx context.Context, owner string) (out core.Overview, err error) {
	defer e.track(StatOverview, &err)()
	if owner, err = requireOwner(owner); err != nil {
		return out, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalTransactions, err = e.reader.CountTransactions(gctx, owner)
		return err
	})
	g.Go(func() (err error) {
		out.TotalClasses, err = e.reader.CountClasses(gctx, owner)
		return err
	})
	g.Go(func() (err error) {
		out.TotalTasks, err = e.reader.CountTasks(gctx, owner)
		return err
	})
	g.Go(func() (err error) {
		out.Income, err = e.reader.SumTransactions(gctx, owner, core.TypeIncome)
		return err
	})
	g.Go(func() (err error) {
		out.Expense, err = e.reader.SumTransactions(gctx, owner, core.TypeExpense)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Overview{}, err
	}
	return out, nil
}

func (e *Engine) ExpensesByCategory(ctx context.Context, owner string) (out []core.CategoryTotal, err error) {
	defer e.track(StatExpenseByCategory, &err)()
	if owner, err = requireOwner(owner); err != nil {
		return nil, err
	}
	out, err = e.reader.ExpensesByCategory(ctx, owner)
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (e *Engine) TransactionsTrend(ctx context.Context, owner string) (out []core.MonthTrend, err error) {
	defer e.track(StatTransactionsTrend, &err)()
	if owner, err = requireOwner(owner); err != nil {
		return nil, err
	}
	out, err = e.reader.MonthlyTrend(ctx, owner)
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
