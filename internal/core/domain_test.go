package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTaskStatusValidate(t *testing.T) {
	cases := []struct {
		s    TaskStatus
		want error
	}{
		{StatusTodo, nil},
		{StatusInProgress, nil},
		{StatusDone, nil},
		{"", ErrStatusRequired},
		{"Done", ErrInvalidStatus},
		{"archived", ErrInvalidStatus},
	}
	for _, tc := range cases {
		if got := tc.s.Validate(); got != tc.want {
			t.Fatalf("Validate(%q) = %v, want %v", tc.s, got, tc.want)
		}
	}
}

func TestNewTaskDefaults(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	title := "Read chapter 4"
	task := NewTask(TaskPatch{Title: &title}, now)

	if task.Priority != DefaultPriority {
		t.Fatalf("priority = %q, want %q", task.Priority, DefaultPriority)
	}
	if task.Status != StatusTodo {
		t.Fatalf("status = %q, want todo", task.Status)
	}
	if task.DurationMinutes != DefaultDurationMinutes {
		t.Fatalf("duration = %d, want %d", task.DurationMinutes, DefaultDurationMinutes)
	}
	if task.Topic != "" {
		t.Fatalf("topic = %q, want empty", task.Topic)
	}
	if !task.CreatedAt.Equal(now) || !task.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps not stamped: %v %v", task.CreatedAt, task.UpdatedAt)
	}
	if task.Deadline != nil || task.ScheduledAt != nil {
		t.Fatalf("expected nil deadline and scheduledAt")
	}
}

func TestNewTaskKeepsProvidedValues(t *testing.T) {
	body := `{"email":" a@x.com ","title":"Essay","priority":"high","status":"inprogress",
		"deadline":"2025-03-10T18:30","scheduledAt":"2025-03-09","durationMinutes":90}`
	var p TaskPatch
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	task := NewTask(p, time.Now())
	if task.Email != "a@x.com" {
		t.Fatalf("email = %q", task.Email)
	}
	if task.Priority != "high" || task.Status != StatusInProgress || task.DurationMinutes != 90 {
		t.Fatalf("unexpected task: %+v", task)
	}
	want := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)
	if task.Deadline == nil || !task.Deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", task.Deadline, want)
	}
	if task.ScheduledAt == nil || task.ScheduledAt.Day() != 9 {
		t.Fatalf("scheduledAt = %v", task.ScheduledAt)
	}
}

func TestTaskPatchNullClearsDeadline(t *testing.T) {
	d := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	task := Task{Deadline: &d, ScheduledAt: &d}

	var p TaskPatch
	if err := json.Unmarshal([]byte(`{"deadline":null}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.Deadline.Set || p.ScheduledAt.Set {
		t.Fatalf("set flags wrong: deadline=%v scheduledAt=%v", p.Deadline.Set, p.ScheduledAt.Set)
	}
	p.ApplyTo(&task)
	if task.Deadline != nil {
		t.Fatalf("deadline should be cleared")
	}
	if task.ScheduledAt == nil {
		t.Fatalf("scheduledAt should be untouched")
	}
}

func TestTaskPatchRejectsBadTimestamp(t *testing.T) {
	var p TaskPatch
	if err := json.Unmarshal([]byte(`{"deadline":"next tuesday"}`), &p); err == nil {
		t.Fatalf("expected error for unparseable deadline")
	}
}

func TestTaskPatchValidate(t *testing.T) {
	bad := TaskStatus("blocked")
	if err := (TaskPatch{Status: &bad}).Validate(); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if err := (TaskPatch{}).Validate(); err != nil {
		t.Fatalf("empty patch should validate: %v", err)
	}
}

func TestClassPatchKeepsFreeFormFields(t *testing.T) {
	body := `{"_id":"ignored","email":"a@x.com","subject":"Physics","day":"Monday","room":12}`
	var p ClassPatch
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	c := NewClass(p)
	c.ID = "c1"
	if c.Subject != "Physics" || c.Email != "a@x.com" {
		t.Fatalf("unexpected class: %+v", c)
	}
	if _, ok := c.Fields["_id"]; ok {
		t.Fatalf("_id must not be stored as a free-form field")
	}

	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	for _, want := range []string{`"_id":"c1"`, `"day":"Monday"`, `"room":12`, `"subject":"Physics"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("marshalled class %s missing %s", s, want)
		}
	}
}

func TestTransactionPatchEmpty(t *testing.T) {
	if !(TransactionPatch{}).Empty() {
		t.Fatalf("zero patch should be empty")
	}
	amount := 12.5
	p := TransactionPatch{Amount: &amount}
	if p.Empty() {
		t.Fatalf("patch with amount should not be empty")
	}
	tx := NewTransaction(p)
	if tx.Amount != 12.5 {
		t.Fatalf("amount = %v", tx.Amount)
	}
}
