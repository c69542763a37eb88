package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "inprogress"
	StatusDone       TaskStatus = "done"
)

// Transaction types. Only this casing is counted by the stats engine.
const (
	TypeIncome  = "Income"
	TypeExpense = "Expense"
)

// Task defaults applied on create.
const (
	DefaultPriority        = "medium"
	DefaultDurationMinutes = 60
)

type (
	TaskStatus string

	// Class is a timetable entry. Beyond email and subject the document is free-form.
	Class struct {
		ID      string
		Email   string
		Subject string
		Fields  map[string]any
	}

	Transaction struct {
		ID       string  `json:"_id"`
		Email    string  `json:"email"`
		Type     string  `json:"type"`
		Amount   float64 `json:"amount"`
		Category string  `json:"category"`
		Date     string  `json:"date"`
		Notes    string  `json:"notes"`
	}

	Task struct {
		ID              string     `json:"_id"`
		Email           string     `json:"email"`
		Title           string     `json:"title"`
		Subject         string     `json:"subject"`
		Topic           string     `json:"topic"`
		Priority        string     `json:"priority"`
		Status          TaskStatus `json:"status"`
		Deadline        *time.Time `json:"deadline"`
		ScheduledAt     *time.Time `json:"scheduledAt"`
		DurationMinutes int        `json:"durationMinutes"`
		CreatedAt       time.Time  `json:"createdAt"`
		UpdatedAt       time.Time  `json:"updatedAt"`
	}
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrInvalidID      = errors.New("invalid record id")
	ErrEmailRequired  = errors.New("email is required")
	ErrStatusRequired = errors.New("status is required")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrInvalidDays    = errors.New("days must be a positive integer")
	ErrInvalidStart   = errors.New("invalid start date")
	ErrOwnerMismatch  = errors.New("email does not match authenticated user")
)

// TaskStatuses lists every valid status in display order.
func TaskStatuses() []TaskStatus {
	return []TaskStatus{StatusTodo, StatusInProgress, StatusDone}
}

func (s TaskStatus) Validate() error {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return nil
	case "":
		return ErrStatusRequired
	default:
		return ErrInvalidStatus
	}
}

// reserved keys never land in Class.Fields
var classReserved = map[string]bool{"_id": true, "id": true, "email": true, "subject": true}

// MarshalJSON flattens free-form fields next to the typed ones.
func (c Class) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Fields)+3)
	for k, v := range c.Fields {
		if !classReserved[k] {
			out[k] = v
		}
	}
	out["_id"] = c.ID
	out["email"] = c.Email
	out["subject"] = c.Subject
	return json.Marshal(out)
}

// NewTask builds a task from a create request, filling defaults and timestamps.
func NewTask(in TaskPatch, now time.Time) Task {
	var t Task
	in.ApplyTo(&t)
	if t.Priority == "" {
		t.Priority = DefaultPriority
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.DurationMinutes == 0 {
		t.DurationMinutes = DefaultDurationMinutes
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	return t
}

// TrimmedEmail normalizes an owner parameter taken from a query string or body.
func TrimmedEmail(s string) string {
	return strings.TrimSpace(s)
}
