package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyfocus/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000Z"

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// setClause accumulates column assignments for a partial update.
type setClause struct {
	cols []string
	args []any
}

func (s *setClause) add(col string, v any) {
	s.addExpr(col+" = ?", v)
}

func (s *setClause) addExpr(expr string, v any) {
	s.cols = append(s.cols, expr)
	s.args = append(s.args, v)
}

func (r *Repository) execUpdate(ctx context.Context, table, id string, set setClause) (core.UpdateResult, error) {
	if len(set.cols) == 0 {
		var n int64
		err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&n)
		if err != nil {
			return core.UpdateResult{}, err
		}
		return core.UpdateResult{Acknowledged: true, MatchedCount: n}, nil
	}
	query := "UPDATE " + table + " SET " + strings.Join(set.cols, ", ") + " WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, append(set.args, id)...)
	if err != nil {
		return core.UpdateResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.UpdateResult{}, err
	}
	return core.UpdateResult{Acknowledged: true, MatchedCount: n, ModifiedCount: n}, nil
}

func (r *Repository) execDelete(ctx context.Context, table, id string) (core.DeleteResult, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return core.DeleteResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.DeleteResult{}, err
	}
	return core.DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}

// InsertClass implements store.ClassStore
func (r *Repository) InsertClass(ctx context.Context, c core.Class) (string, error) {
	fields, err := json.Marshal(nonNilFields(c.Fields))
	if err != nil {
		return "", fmt.Errorf("encode class fields: %w", err)
	}
	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO classes (id, email, subject, fields) VALUES (?, ?, ?, ?)",
		id, c.Email, c.Subject, string(fields))
	if err != nil {
		return "", fmt.Errorf("insert class: %w", err)
	}
	slog.DebugContext(ctx, "Class saved to SQLite", "id", id, "subject", c.Subject)
	return id, nil
}

func nonNilFields(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func (r *Repository) ListClasses(ctx context.Context, owner string) ([]core.Class, error) {
	query := "SELECT id, email, subject, fields FROM classes"
	var args []any
	if owner != "" {
		query += " WHERE email = ?"
		args = append(args, owner)
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	out := []core.Class{}
	for rows.Next() {
		var c core.Class
		var fields string
		if err := rows.Scan(&c.ID, &c.Email, &c.Subject, &fields); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		if err := json.Unmarshal([]byte(fields), &c.Fields); err != nil {
			return nil, fmt.Errorf("decode class fields: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateClass(ctx context.Context, id string, p core.ClassPatch) (core.UpdateResult, error) {
	var set setClause
	if p.Email != nil {
		set.add("email", core.TrimmedEmail(*p.Email))
	}
	if p.Subject != nil {
		set.add("subject", *p.Subject)
	}
	if len(p.Fields) > 0 {
		patch, err := json.Marshal(p.Fields)
		if err != nil {
			return core.UpdateResult{}, fmt.Errorf("encode class fields: %w", err)
		}
		set.addExpr("fields = json_patch(fields, ?)", string(patch))
	}
	res, err := r.execUpdate(ctx, "classes", id, set)
	if err != nil {
		return res, fmt.Errorf("update class: %w", err)
	}
	return res, nil
}

func (r *Repository) DeleteClass(ctx context.Context, id string) (core.DeleteResult, error) {
	res, err := r.execDelete(ctx, "classes", id)
	if err != nil {
		return res, fmt.Errorf("delete class: %w", err)
	}
	return res, nil
}

// InsertTransaction implements store.TransactionStore
func (r *Repository) InsertTransaction(ctx context.Context, t core.Transaction) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO transactions (id, email, type, amount, category, date, notes) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, t.Email, t.Type, t.Amount, t.Category, t.Date, t.Notes)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	slog.DebugContext(ctx, "Transaction saved to SQLite", "id", id, "type", t.Type, "amount", t.Amount)
	return id, nil
}

func (r *Repository) ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	query := "SELECT id, email, type, amount, category, date, notes FROM transactions"
	var args []any
	if owner != "" {
		query += " WHERE email = ?"
		args = append(args, owner)
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		var t core.Transaction
		if err := rows.Scan(&t.ID, &t.Email, &t.Type, &t.Amount, &t.Category, &t.Date, &t.Notes); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) (core.UpdateResult, error) {
	var set setClause
	if p.Email != nil {
		set.add("email", core.TrimmedEmail(*p.Email))
	}
	if p.Type != nil {
		set.add("type", *p.Type)
	}
	if p.Amount != nil {
		set.add("amount", *p.Amount)
	}
	if p.Category != nil {
		set.add("category", *p.Category)
	}
	if p.Date != nil {
		set.add("date", *p.Date)
	}
	if p.Notes != nil {
		set.add("notes", *p.Notes)
	}
	res, err := r.execUpdate(ctx, "transactions", id, set)
	if err != nil {
		return res, fmt.Errorf("update transaction: %w", err)
	}
	return res, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) (core.DeleteResult, error) {
	res, err := r.execDelete(ctx, "transactions", id)
	if err != nil {
		return res, fmt.Errorf("delete transaction: %w", err)
	}
	return res, nil
}

const taskColumns = "id, email, title, subject, topic, priority, status, deadline, scheduled_at, duration_minutes, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (core.Task, error) {
	var (
		t                    core.Task
		status               string
		deadline, scheduled  sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.Email, &t.Title, &t.Subject, &t.Topic, &t.Priority, &status,
		&deadline, &scheduled, &t.DurationMinutes, &createdAt, &updatedAt)
	if err != nil {
		return t, err
	}
	t.Status = core.TaskStatus(status)
	if t.Deadline, err = parseNullTime(deadline); err != nil {
		return t, fmt.Errorf("parse deadline: %w", err)
	}
	if t.ScheduledAt, err = parseNullTime(scheduled); err != nil {
		return t, fmt.Errorf("parse scheduled_at: %w", err)
	}
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return t, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return t, fmt.Errorf("parse updated_at: %w", err)
	}
	return t, nil
}

// InsertTask implements store.TaskStore
func (r *Repository) InsertTask(ctx context.Context, t core.Task) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, t.Email, t.Title, t.Subject, t.Topic, t.Priority, string(t.Status),
		formatNullTime(t.Deadline), formatNullTime(t.ScheduledAt), t.DurationMinutes,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	slog.DebugContext(ctx, "Task saved to SQLite", "id", id, "status", t.Status)
	return id, nil
}

func (r *Repository) ListTasks(ctx context.Context, owner string) ([]core.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	var args []any
	if owner != "" {
		query += " WHERE email = ?"
		args = append(args, owner)
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []core.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) GetTask(ctx context.Context, id string) (core.Task, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Task{}, core.ErrNotFound
	}
	if err != nil {
		return core.Task{}, fmt.Errorf("get task by id: %w", err)
	}
	return t, nil
}

func (r *Repository) UpdateTask(ctx context.Context, id string, p core.TaskPatch, updatedAt time.Time) (core.UpdateResult, error) {
	var set setClause
	if p.Email != nil {
		set.add("email", core.TrimmedEmail(*p.Email))
	}
	if p.Title != nil {
		set.add("title", *p.Title)
	}
	if p.Subject != nil {
		set.add("subject", *p.Subject)
	}
	if p.Topic != nil {
		set.add("topic", *p.Topic)
	}
	if p.Priority != nil {
		set.add("priority", *p.Priority)
	}
	if p.Status != nil {
		set.add("status", string(*p.Status))
	}
	if p.Deadline.Set {
		set.add("deadline", formatNullTime(p.Deadline.Value.Ptr()))
	}
	if p.ScheduledAt.Set {
		set.add("scheduled_at", formatNullTime(p.ScheduledAt.Value.Ptr()))
	}
	if p.DurationMinutes != nil {
		set.add("duration_minutes", *p.DurationMinutes)
	}
	set.add("updated_at", formatTime(updatedAt))
	res, err := r.execUpdate(ctx, "tasks", id, set)
	if err != nil {
		return res, fmt.Errorf("update task: %w", err)
	}
	return res, nil
}

func (r *Repository) UpdateTaskStatus(ctx context.Context, id string, status core.TaskStatus, updatedAt time.Time) (core.UpdateResult, error) {
	var set setClause
	set.add("status", string(status))
	set.add("updated_at", formatTime(updatedAt))
	res, err := r.execUpdate(ctx, "tasks", id, set)
	if err != nil {
		return res, fmt.Errorf("update task status: %w", err)
	}
	return res, nil
}

func (r *Repository) DeleteTask(ctx context.Context, id string) (core.DeleteResult, error) {
	res, err := r.execDelete(ctx, "tasks", id)
	if err != nil {
		return res, fmt.Errorf("delete task: %w", err)
	}
	return res, nil
}
