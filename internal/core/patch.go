package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Optional distinguishes an absent JSON key from an explicit null.
type Optional[T any] struct {
	Set   bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	return json.Unmarshal(b, &o.Value)
}

// NullTime is a timestamp that may be null. It accepts the formats browsers
// and clients commonly send.
type NullTime struct {
	Time  time.Time
	Valid bool
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses s using the first matching layout. Values without a
// zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (n *NullTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*n = NullTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*n = NullTime{}
		return nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*n = NullTime{Time: t, Valid: true}
	return nil
}

// Ptr returns nil for an invalid value.
func (n NullTime) Ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// ClassPatch carries the keys present in a class request body. Unknown keys
// are kept in Fields.
type ClassPatch struct {
	Email   *string
	Subject *string
	Fields  map[string]any
}

func (p *ClassPatch) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = ClassPatch{}
	for k, v := range raw {
		switch k {
		case "_id", "id":
			continue
		case "email":
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("email: %w", err)
			}
			p.Email = &s
		case "subject":
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("subject: %w", err)
			}
			p.Subject = &s
		default:
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			if p.Fields == nil {
				p.Fields = make(map[string]any)
			}
			p.Fields[k] = val
		}
	}
	return nil
}

// NewClass builds a class from a create request.
func NewClass(p ClassPatch) Class {
	var c Class
	p.ApplyTo(&c)
	return c
}

func (p ClassPatch) ApplyTo(c *Class) {
	if p.Email != nil {
		c.Email = TrimmedEmail(*p.Email)
	}
	if p.Subject != nil {
		c.Subject = *p.Subject
	}
	if len(p.Fields) > 0 && c.Fields == nil {
		c.Fields = make(map[string]any, len(p.Fields))
	}
	for k, v := range p.Fields {
		c.Fields[k] = v
	}
}

func (p ClassPatch) Empty() bool {
	return p.Email == nil && p.Subject == nil && len(p.Fields) == 0
}

type TransactionPatch struct {
	Email    *string  `json:"email"`
	Type     *string  `json:"type"`
	Amount   *float64 `json:"amount"`
	Category *string  `json:"category"`
	Date     *string  `json:"date"`
	Notes    *string  `json:"notes"`
}

// NewTransaction builds a transaction from a create request.
func NewTransaction(p TransactionPatch) Transaction {
	var t Transaction
	p.ApplyTo(&t)
	return t
}

func (p TransactionPatch) ApplyTo(t *Transaction) {
	if p.Email != nil {
		t.Email = TrimmedEmail(*p.Email)
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
}

func (p TransactionPatch) Empty() bool {
	return p.Email == nil && p.Type == nil && p.Amount == nil &&
		p.Category == nil && p.Date == nil && p.Notes == nil
}

type TaskPatch struct {
	Email           *string            `json:"email"`
	Title           *string            `json:"title"`
	Subject         *string            `json:"subject"`
	Topic           *string            `json:"topic"`
	Priority        *string            `json:"priority"`
	Status          *TaskStatus        `json:"status"`
	Deadline        Optional[NullTime] `json:"deadline"`
	ScheduledAt     Optional[NullTime] `json:"scheduledAt"`
	DurationMinutes *int               `json:"durationMinutes"`
}

// Validate rejects a status outside the known set. Other fields are stored as sent.
func (p TaskPatch) Validate() error {
	if p.Status != nil {
		if err := p.Status.Validate(); err != nil && err != ErrStatusRequired {
			return err
		}
	}
	return nil
}

func (p TaskPatch) ApplyTo(t *Task) {
	if p.Email != nil {
		t.Email = TrimmedEmail(*p.Email)
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Subject != nil {
		t.Subject = *p.Subject
	}
	if p.Topic != nil {
		t.Topic = *p.Topic
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Deadline.Set {
		t.Deadline = p.Deadline.Value.Ptr()
	}
	if p.ScheduledAt.Set {
		t.ScheduledAt = p.ScheduledAt.Value.Ptr()
	}
	if p.DurationMinutes != nil {
		t.DurationMinutes = *p.DurationMinutes
	}
}

// InsertResult, UpdateResult and DeleteResult mirror the document store's
// write acknowledgements and are returned to clients as-is.
type (
	InsertResult struct {
		Acknowledged bool   `json:"acknowledged"`
		InsertedID   string `json:"insertedId"`
	}

	UpdateResult struct {
		Acknowledged  bool  `json:"acknowledged"`
		MatchedCount  int64 `json:"matchedCount"`
		ModifiedCount int64 `json:"modifiedCount"`
	}

	DeleteResult struct {
		Acknowledged bool  `json:"acknowledged"`
		DeletedCount int64 `json:"deletedCount"`
	}
)
