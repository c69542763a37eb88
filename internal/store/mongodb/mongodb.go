// Package mongodb stores classes, transactions and tasks in MongoDB and runs
// the stats aggregations as pipelines on the server.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studyfocus/internal/core"
)

const (
	classesCollection      = "classes"
	transactionsCollection = "transactions"
	tasksCollection        = "tasks"
)

type Store struct {
	client       *mongo.Client
	classes      *mongo.Collection
	transactions *mongo.Collection
	tasks        *mongo.Collection
}

// Connect dials uri and verifies the deployment answers before returning.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client:       client,
		classes:      db.Collection(classesCollection),
		transactions: db.Collection(transactionsCollection),
		tasks:        db.Collection(tasksCollection),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", core.ErrInvalidID, id)
	}
	return oid, nil
}

func ownerFilter(owner string) bson.D {
	if owner == "" {
		return bson.D{}
	}
	return bson.D{{Key: "email", Value: owner}}
}

func insertedHex(res *mongo.InsertOneResult) string {
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(res.InsertedID)
}

// update applies set to the document with id. An empty set only reports
// whether the document exists.
func update(ctx context.Context, coll *mongo.Collection, id string, set bson.D) (core.UpdateResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return core.UpdateResult{}, err
	}
	if len(set) == 0 {
		n, err := coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}})
		if err != nil {
			return core.UpdateResult{}, err
		}
		return core.UpdateResult{Acknowledged: true, MatchedCount: n}, nil
	}
	res, err := coll.UpdateByID(ctx, oid, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return core.UpdateResult{}, err
	}
	return updateResult(res), nil
}

// The driver returns ErrUnacknowledgedWrite instead of a result for
// unacknowledged writes, so any result it hands back was acknowledged.
func updateResult(res *mongo.UpdateResult) core.UpdateResult {
	return core.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}
}

func deleteResult(res *mongo.DeleteResult) core.DeleteResult {
	return core.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}
}

func remove(ctx context.Context, coll *mongo.Collection, id string) (core.DeleteResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return core.DeleteResult{}, err
	}
	res, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return core.DeleteResult{}, err
	}
	return deleteResult(res), nil
}

type classDoc struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Email   string             `bson:"email"`
	Subject string             `bson:"subject"`
	Fields  map[string]any     `bson:",inline"`
}

func (d classDoc) toCore() core.Class {
	return core.Class{ID: d.ID.Hex(), Email: d.Email, Subject: d.Subject, Fields: d.Fields}
}

// InsertClass implements store.ClassStore
func (s *Store) InsertClass(ctx context.Context, c core.Class) (string, error) {
	res, err := s.classes.InsertOne(ctx, classDoc{Email: c.Email, Subject: c.Subject, Fields: c.Fields})
	if err != nil {
		return "", fmt.Errorf("insert class: %w", err)
	}
	id := insertedHex(res)
	slog.DebugContext(ctx, "Class saved to MongoDB", "id", id, "subject", c.Subject)
	return id, nil
}

func (s *Store) ListClasses(ctx context.Context, owner string) ([]core.Class, error) {
	cur, err := s.classes.Find(ctx, ownerFilter(owner))
	if err != nil {
		return nil, fmt.Errorf("find classes: %w", err)
	}
	var docs []classDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode classes: %w", err)
	}
	out := make([]core.Class, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toCore())
	}
	return out, nil
}

func (s *Store) UpdateClass(ctx context.Context, id string, p core.ClassPatch) (core.UpdateResult, error) {
	set := bson.D{}
	if p.Email != nil {
		set = append(set, bson.E{Key: "email", Value: core.TrimmedEmail(*p.Email)})
	}
	if p.Subject != nil {
		set = append(set, bson.E{Key: "subject", Value: *p.Subject})
	}
	for k, v := range p.Fields {
		set = append(set, bson.E{Key: k, Value: v})
	}
	res, err := update(ctx, s.classes, id, set)
	if err != nil {
		return res, fmt.Errorf("update class: %w", err)
	}
	return res, nil
}

func (s *Store) DeleteClass(ctx context.Context, id string) (core.DeleteResult, error) {
	res, err := remove(ctx, s.classes, id)
	if err != nil {
		return res, fmt.Errorf("delete class: %w", err)
	}
	return res, nil
}

type transactionDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Email    string             `bson:"email"`
	Type     string             `bson:"type"`
	Amount   float64            `bson:"amount"`
	Category string             `bson:"category"`
	Date     string             `bson:"date"`
	Notes    string             `bson:"notes"`
}

// InsertTransaction implements store.TransactionStore
func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) (string, error) {
	res, err := s.transactions.InsertOne(ctx, transactionDoc{
		Email: t.Email, Type: t.Type, Amount: t.Amount,
		Category: t.Category, Date: t.Date, Notes: t.Notes,
	})
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	id := insertedHex(res)
	slog.DebugContext(ctx, "Transaction saved to MongoDB", "id", id, "type", t.Type, "amount", t.Amount)
	return id, nil
}

func (s *Store) ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	cur, err := s.transactions.Find(ctx, ownerFilter(owner))
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	var docs []transactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, core.Transaction{
			ID: d.ID.Hex(), Email: d.Email, Type: d.Type, Amount: d.Amount,
			Category: d.Category, Date: d.Date, Notes: d.Notes,
		})
	}
	return out, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) (core.UpdateResult, error) {
	set := bson.D{}
	if p.Email != nil {
		set = append(set, bson.E{Key: "email", Value: core.TrimmedEmail(*p.Email)})
	}
	if p.Type != nil {
		set = append(set, bson.E{Key: "type", Value: *p.Type})
	}
	if p.Amount != nil {
		set = append(set, bson.E{Key: "amount", Value: *p.Amount})
	}
	if p.Category != nil {
		set = append(set, bson.E{Key: "category", Value: *p.Category})
	}
	if p.Date != nil {
		set = append(set, bson.E{Key: "date", Value: *p.Date})
	}
	if p.Notes != nil {
		set = append(set, bson.E{Key: "notes", Value: *p.Notes})
	}
	res, err := update(ctx, s.transactions, id, set)
	if err != nil {
		return res, fmt.Errorf("update transaction: %w", err)
	}
	return res, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) (core.DeleteResult, error) {
	res, err := remove(ctx, s.transactions, id)
	if err != nil {
		return res, fmt.Errorf("delete transaction: %w", err)
	}
	return res, nil
}

type taskDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Email           string             `bson:"email"`
	Title           string             `bson:"title"`
	Subject         string             `bson:"subject"`
	Topic           string             `bson:"topic"`
	Priority        string             `bson:"priority"`
	Status          string             `bson:"status"`
	Deadline        *time.Time         `bson:"deadline"`
	ScheduledAt     *time.Time         `bson:"scheduledAt"`
	DurationMinutes int                `bson:"durationMinutes"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func (d taskDoc) toCore() core.Task {
	return core.Task{
		ID: d.ID.Hex(), Email: d.Email, Title: d.Title, Subject: d.Subject,
		Topic: d.Topic, Priority: d.Priority, Status: core.TaskStatus(d.Status),
		Deadline: utcPtr(d.Deadline), ScheduledAt: utcPtr(d.ScheduledAt),
		DurationMinutes: d.DurationMinutes,
		CreatedAt:       d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// InsertTask implements store.TaskStore
func (s *Store) InsertTask(ctx context.Context, t core.Task) (string, error) {
	res, err := s.tasks.InsertOne(ctx, taskDoc{
		Email: t.Email, Title: t.Title, Subject: t.Subject, Topic: t.Topic,
		Priority: t.Priority, Status: string(t.Status),
		Deadline: t.Deadline, ScheduledAt: t.ScheduledAt,
		DurationMinutes: t.DurationMinutes,
		CreatedAt:       t.CreatedAt, UpdatedAt: t.UpdatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	id := insertedHex(res)
	slog.DebugContext(ctx, "Task saved to MongoDB", "id", id, "status", t.Status)
	return id, nil
}

func (s *Store) ListTasks(ctx context.Context, owner string) ([]core.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.tasks.Find(ctx, ownerFilter(owner), opts)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	out := make([]core.Task, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toCore())
	}
	return out, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (core.Task, error) {
	oid, err := objectID(id)
	if err != nil {
		return core.Task{}, err
	}
	var d taskDoc
	err = s.tasks.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Task{}, core.ErrNotFound
	}
	if err != nil {
		return core.Task{}, fmt.Errorf("get task by id: %w", err)
	}
	return d.toCore(), nil
}

func taskSet(p core.TaskPatch, updatedAt time.Time) bson.D {
	set := bson.D{}
	if p.Email != nil {
		set = append(set, bson.E{Key: "email", Value: core.TrimmedEmail(*p.Email)})
	}
	if p.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *p.Title})
	}
	if p.Subject != nil {
		set = append(set, bson.E{Key: "subject", Value: *p.Subject})
	}
	if p.Topic != nil {
		set = append(set, bson.E{Key: "topic", Value: *p.Topic})
	}
	if p.Priority != nil {
		set = append(set, bson.E{Key: "priority", Value: *p.Priority})
	}
	if p.Status != nil {
		set = append(set, bson.E{Key: "status", Value: string(*p.Status)})
	}
	if p.Deadline.Set {
		set = append(set, bson.E{Key: "deadline", Value: p.Deadline.Value.Ptr()})
	}
	if p.ScheduledAt.Set {
		set = append(set, bson.E{Key: "scheduledAt", Value: p.ScheduledAt.Value.Ptr()})
	}
	if p.DurationMinutes != nil {
		set = append(set, bson.E{Key: "durationMinutes", Value: *p.DurationMinutes})
	}
	return append(set, bson.E{Key: "updatedAt", Value: updatedAt})
}

func (s *Store) UpdateTask(ctx context.Context, id string, p core.TaskPatch, updatedAt time.Time) (core.UpdateResult, error) {
	res, err := update(ctx, s.tasks, id, taskSet(p, updatedAt))
	if err != nil {
		return res, fmt.Errorf("update task: %w", err)
	}
	return res, nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status core.TaskStatus, updatedAt time.Time) (core.UpdateResult, error) {
	set := bson.D{
		{Key: "status", Value: string(status)},
		{Key: "updatedAt", Value: updatedAt},
	}
	res, err := update(ctx, s.tasks, id, set)
	if err != nil {
		return res, fmt.Errorf("update task status: %w", err)
	}
	return res, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) (core.DeleteResult, error) {
	res, err := remove(ctx, s.tasks, id)
	if err != nil {
		return res, fmt.Errorf("delete task: %w", err)
	}
	return res, nil
}
