package sqlite

import (
	"context"
	"fmt"
	"time"

	"studyfocus/internal/core"
)

// TaskStatusCounts implements store.StatsReader
func (r *Repository) TaskStatusCounts(ctx context.Context, owner string, w core.Window) ([]core.StatusCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM tasks
		WHERE email = ?
		  AND ((deadline IS NOT NULL AND deadline >= ? AND deadline <= ?)
		       OR status IN (?, ?, ?))
		GROUP BY status
		ORDER BY MIN(rowid)`,
		owner, formatTime(w.Start), formatTime(w.End),
		string(core.StatusTodo), string(core.StatusInProgress), string(core.StatusDone))
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	defer rows.Close()

	out := []core.StatusCount{}
	for rows.Next() {
		var sc core.StatusCount
		var status string
		if err := rows.Scan(&status, &sc.Count); err != nil {
			return nil, err
		}
		sc.Status = core.TaskStatus(status)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (r *Repository) TaskPriorityCounts(ctx context.Context, owner string) ([]core.PriorityCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT priority, COUNT(*) FROM tasks
		WHERE email = ?
		GROUP BY priority
		ORDER BY MIN(rowid)`, owner)
	if err != nil {
		return nil, fmt.Errorf("count tasks by priority: %w", err)
	}
	defer rows.Close()

	out := []core.PriorityCount{}
	for rows.Next() {
		var pc core.PriorityCount
		if err := rows.Scan(&pc.Priority, &pc.Count); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

func (r *Repository) DailyCompletions(ctx context.Context, owner string, since time.Time) ([]core.DailyCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT substr(updated_at, 1, 10) AS day, COUNT(*) FROM tasks
		WHERE email = ? AND status = ? AND updated_at >= ?
		GROUP BY day
		ORDER BY day`,
		owner, string(core.StatusDone), formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("count daily completions: %w", err)
	}
	defer rows.Close()

	out := []core.DailyCount{}
	for rows.Next() {
		var dc core.DailyCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

func (r *Repository) TransactionTotalsByType(ctx context.Context, owner string) ([]core.TypeTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT type, SUM(amount) FROM transactions
		WHERE email = ?
		GROUP BY type
		ORDER BY MIN(rowid)`, owner)
	if err != nil {
		return nil, fmt.Errorf("sum transactions by type: %w", err)
	}
	defer rows.Close()

	out := []core.TypeTotal{}
	for rows.Next() {
		var tt core.TypeTotal
		if err := rows.Scan(&tt.Type, &tt.Total); err != nil {
			return nil, err
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

func (r *Repository) ClassCountsBySubject(ctx context.Context, owner string) ([]core.SubjectCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT subject, COUNT(*) FROM classes
		WHERE email = ?
		GROUP BY subject
		ORDER BY MIN(rowid)`, owner)
	if err != nil {
		return nil, fmt.Errorf("count classes by subject: %w", err)
	}
	defer rows.Close()

	out := []core.SubjectCount{}
	for rows.Next() {
		var sc core.SubjectCount
		if err := rows.Scan(&sc.Subject, &sc.Total); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (r *Repository) count(ctx context.Context, table, owner string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE email = ?", owner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (r *Repository) CountClasses(ctx context.Context, owner string) (int64, error) {
	return r.count(ctx, "classes", owner)
}

func (r *Repository) CountTransactions(ctx context.Context, owner string) (int64, error) {
	return r.count(ctx, "transactions", owner)
}

func (r *Repository) CountTasks(ctx context.Context, owner string) (int64, error) {
	return r.count(ctx, "tasks", owner)
}

func (r *Repository) SumTransactions(ctx context.Context, owner, txType string) (float64, error) {
	var sum float64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE email = ? AND type = ?",
		owner, txType).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum %s transactions: %w", txType, err)
	}
	return sum, nil
}

func (r *Repository) ExpensesByCategory(ctx context.Context, owner string) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount) AS total FROM transactions
		WHERE email = ? AND type = ?
		GROUP BY category
		ORDER BY total DESC`, owner, core.TypeExpense)
	if err != nil {
		return nil, fmt.Errorf("sum expenses by category: %w", err)
	}
	defer rows.Close()

	out := []core.CategoryTotal{}
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (r *Repository) MonthlyTrend(ctx context.Context, owner string) ([]core.MonthTrend, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT substr(date, 1, 7) AS month,
		       COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0),
		       COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0)
		FROM transactions
		WHERE email = ?
		GROUP BY month
		ORDER BY month`, core.TypeIncome, core.TypeExpense, owner)
	if err != nil {
		return nil, fmt.Errorf("monthly trend: %w", err)
	}
	defer rows.Close()

	out := []core.MonthTrend{}
	for rows.Next() {
		var mt core.MonthTrend
		if err := rows.Scan(&mt.Month, &mt.Income, &mt.Expense); err != nil {
			return nil, err
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}
