package store

import (
	"context"
	"time"

	"studyfocus/internal/core"
)

// Ports implemented by every data backend. An empty owner on a List call
// means no owner filter.
type (
	ClassStore interface {
		InsertClass(ctx context.Context, c core.Class) (id string, err error)
		ListClasses(ctx context.Context, owner string) ([]core.Class, error)
		UpdateClass(ctx context.Context, id string, p core.ClassPatch) (core.UpdateResult, error)
		DeleteClass(ctx context.Context, id string) (core.DeleteResult, error)
	}

	TransactionStore interface {
		InsertTransaction(ctx context.Context, t core.Transaction) (id string, err error)
		ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error)
		UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) (core.UpdateResult, error)
		DeleteTransaction(ctx context.Context, id string) (core.DeleteResult, error)
	}

	TaskStore interface {
		InsertTask(ctx context.Context, t core.Task) (id string, err error)
		// ListTasks returns tasks newest first by creation time.
		ListTasks(ctx context.Context, owner string) ([]core.Task, error)
		// GetTask returns core.ErrNotFound when no task has the id.
		GetTask(ctx context.Context, id string) (core.Task, error)
		UpdateTask(ctx context.Context, id string, p core.TaskPatch, updatedAt time.Time) (core.UpdateResult, error)
		UpdateTaskStatus(ctx context.Context, id string, status core.TaskStatus, updatedAt time.Time) (core.UpdateResult, error)
		DeleteTask(ctx context.Context, id string) (core.DeleteResult, error)
	}

	// StatsReader exposes the grouping and reduction primitives the stats
	// engine composes. Implementations aggregate inside the data store.
	StatsReader interface {
		// TaskStatusCounts groups the owner's tasks whose deadline falls in the
		// window or whose status is one of the known statuses.
		TaskStatusCounts(ctx context.Context, owner string, window core.Window) ([]core.StatusCount, error)
		TaskPriorityCounts(ctx context.Context, owner string) ([]core.PriorityCount, error)
		// DailyCompletions counts done tasks updated at or after since, grouped by
		// UTC calendar day, ascending.
		DailyCompletions(ctx context.Context, owner string, since time.Time) ([]core.DailyCount, error)
		TransactionTotalsByType(ctx context.Context, owner string) ([]core.TypeTotal, error)
		ClassCountsBySubject(ctx context.Context, owner string) ([]core.SubjectCount, error)
		CountClasses(ctx context.Context, owner string) (int64, error)
		CountTransactions(ctx context.Context, owner string) (int64, error)
		CountTasks(ctx context.Context, owner string) (int64, error)
		SumTransactions(ctx context.Context, owner, txType string) (float64, error)
		// ExpensesByCategory sums Expense amounts per category, largest first.
		ExpensesByCategory(ctx context.Context, owner string) ([]core.CategoryTotal, error)
		// MonthlyTrend buckets amounts by the first seven characters of the
		// transaction date, ascending by month.
		MonthlyTrend(ctx context.Context, owner string) ([]core.MonthTrend, error)
	}

	// Records is the full write/read surface over the three collections.
	Records interface {
		ClassStore
		TransactionStore
		TaskStore
	}

	// Pinger reports whether the backend is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
