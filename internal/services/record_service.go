package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"studyfocus/internal/amqp"
	"studyfocus/internal/core"
	"studyfocus/internal/log"
	"studyfocus/internal/store"
)

// Collection names used in events and logs.
const (
	CollectionClasses      = "classes"
	CollectionTransactions = "transactions"
	CollectionTasks        = "tasks"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, ev *amqp.RecordEvent) error
}

// RecordService orchestrates record writes across the store and the event
// publisher. Writes go to the store first; a failed publish is logged and
// never fails the request.
type RecordService struct {
	records   store.Records
	publisher EventPublisher
	logger    *log.Logger
	events    *log.StructuredLogger
	now       func() time.Time
}

type Option func(*RecordService)

// WithClock overrides time.Now for createdAt and updatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *RecordService) { s.now = now }
}

// NewRecordService wires records with an optional publisher. A nil publisher
// disables change events.
func NewRecordService(records store.Records, publisher EventPublisher, logger *log.Logger, opts ...Option) *RecordService {
	l := logger.WithComponent(log.ComponentRecords)
	s := &RecordService{
		records:   records,
		publisher: publisher,
		logger:    l,
		events:    log.NewStructuredLogger(l),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RecordService) stamp() time.Time {
	return s.now().UTC()
}

func (s *RecordService) changed(ctx context.Context, collection, operation, id, owner string) {
	s.events.LogRecordChanged(ctx, collection, operation, id, owner)
	if s.publisher == nil {
		return
	}
	ev := amqp.NewRecordEvent(collection, operation, id, owner)
	if err := s.publisher.PublishRecordEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish record event",
			log.FieldCollection, collection,
			log.FieldOperation, operation,
			log.FieldRecordID, id,
			log.FieldError, err.Error())
	}
}

func inserted(id string) core.InsertResult {
	return core.InsertResult{Acknowledged: true, InsertedID: id}
}

func (s *RecordService) CreateClass(ctx context.Context, p core.ClassPatch) (core.InsertResult, error) {
	c := core.NewClass(p)
	id, err := s.records.InsertClass(ctx, c)
	if err != nil {
		return core.InsertResult{}, fmt.Errorf("save class: %w", err)
	}
	s.changed(ctx, CollectionClasses, log.OpCreate, id, c.Email)
	return inserted(id), nil
}

func (s *RecordService) ListClasses(ctx context.Context, owner string) ([]core.Class, error) {
	return s.records.ListClasses(ctx, core.TrimmedEmail(owner))
}

func (s *RecordService) UpdateClass(ctx context.Context, id string, p core.ClassPatch) (core.UpdateResult, error) {
	res, err := s.records.UpdateClass(ctx, id, p)
	if err != nil {
		return res, err
	}
	if res.MatchedCount > 0 {
		s.changed(ctx, CollectionClasses, log.OpUpdate, id, deref(p.Email))
	}
	return res, nil
}

func (s *RecordService) DeleteClass(ctx context.Context, id string) (core.DeleteResult, error) {
	res, err := s.records.DeleteClass(ctx, id)
	if err != nil {
		return res, err
	}
	if res.DeletedCount > 0 {
		s.changed(ctx, CollectionClasses, log.OpDelete, id, "")
	}
	return res, nil
}

func (s *RecordService) CreateTransaction(ctx context.Context, p core.TransactionPatch) (core.InsertResult, error) {
	t := core.NewTransaction(p)
	id, err := s.records.InsertTransaction(ctx, t)
	if err != nil {
		return core.InsertResult{}, fmt.Errorf("save transaction: %w", err)
	}
	s.changed(ctx, CollectionTransactions, log.OpCreate, id, t.Email)
	return inserted(id), nil
}

func (s *RecordService) ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	return s.records.ListTransactions(ctx, core.TrimmedEmail(owner))
}

func (s *RecordService) UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) (core.UpdateResult, error) {
	res, err := s.records.UpdateTransaction(ctx, id, p)
	if err != nil {
		return res, err
	}
	if res.MatchedCount > 0 {
		s.changed(ctx, CollectionTransactions, log.OpUpdate, id, deref(p.Email))
	}
	return res, nil
}

func (s *RecordService) DeleteTransaction(ctx context.Context, id string) (core.DeleteResult, error) {
	res, err := s.records.DeleteTransaction(ctx, id)
	if err != nil {
		return res, err
	}
	if res.DeletedCount > 0 {
		s.changed(ctx, CollectionTransactions, log.OpDelete, id, "")
	}
	return res, nil
}

// CreateTask fills defaults (priority medium, status todo, 60 minutes) and
// stamps both timestamps.
func (s *RecordService) CreateTask(ctx context.Context, p core.TaskPatch) (core.InsertResult, error) {
	if err := p.Validate(); err != nil {
		return core.InsertResult{}, err
	}
	t := core.NewTask(p, s.stamp())
	id, err := s.records.InsertTask(ctx, t)
	if err != nil {
		return core.InsertResult{}, fmt.Errorf("save task: %w", err)
	}
	s.changed(ctx, CollectionTasks, log.OpCreate, id, t.Email)
	return inserted(id), nil
}

// ListTasks returns tasks newest first.
func (s *RecordService) ListTasks(ctx context.Context, owner string) ([]core.Task, error) {
	return s.records.ListTasks(ctx, core.TrimmedEmail(owner))
}

func (s *RecordService) GetTask(ctx context.Context, id string) (core.Task, error) {
	return s.records.GetTask(ctx, id)
}

func (s *RecordService) UpdateTask(ctx context.Context, id string, p core.TaskPatch) (core.UpdateResult, error) {
	if err := p.Validate(); err != nil {
		return core.UpdateResult{}, err
	}
	res, err := s.records.UpdateTask(ctx, id, p, s.stamp())
	if err != nil {
		return res, err
	}
	if res.MatchedCount > 0 {
		s.changed(ctx, CollectionTasks, log.OpUpdate, id, deref(p.Email))
	}
	return res, nil
}

// UpdateTaskStatus requires one of todo, inprogress or done.
func (s *RecordService) UpdateTaskStatus(ctx context.Context, id string, status core.TaskStatus) (core.UpdateResult, error) {
	if err := status.Validate(); err != nil {
		return core.UpdateResult{}, err
	}
	res, err := s.records.UpdateTaskStatus(ctx, id, status, s.stamp())
	if err != nil {
		return res, err
	}
	if res.MatchedCount > 0 {
		s.changed(ctx, CollectionTasks, log.OpUpdate, id, "")
	}
	return res, nil
}

func (s *RecordService) DeleteTask(ctx context.Context, id string) (core.DeleteResult, error) {
	res, err := s.records.DeleteTask(ctx, id)
	if err != nil {
		return res, err
	}
	if res.DeletedCount > 0 {
		s.changed(ctx, CollectionTasks, log.OpDelete, id, "")
	}
	return res, nil
}

// Close closes the publisher when it holds a connection.
func (s *RecordService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return core.TrimmedEmail(*s)
}
