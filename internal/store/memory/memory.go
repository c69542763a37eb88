package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyfocus/internal/core"
)

// Store keeps all three collections in process. Records are kept in insertion
// order so listings are stable.
type Store struct {
	mu           sync.Mutex
	classes      []core.Class
	transactions []core.Transaction
	tasks        []core.Task
}

func New() *Store {
	return &Store{}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func newID() string {
	return uuid.NewString()
}

func ownedBy(owner, email string) bool {
	return owner == "" || owner == email
}

func copyFields(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// InsertClass implements store.ClassStore
func (s *Store) InsertClass(_ context.Context, c core.Class) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = newID()
	c.Fields = copyFields(c.Fields)
	s.classes = append(s.classes, c)
	return c.ID, nil
}

func (s *Store) ListClasses(_ context.Context, owner string) ([]core.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Class, 0, len(s.classes))
	for _, c := range s.classes {
		if ownedBy(owner, c.Email) {
			c.Fields = copyFields(c.Fields)
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) UpdateClass(_ context.Context, id string, p core.ClassPatch) (core.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.classes {
		if s.classes[i].ID == id {
			if !p.Empty() {
				p.ApplyTo(&s.classes[i])
			}
			return core.UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: modified(!p.Empty())}, nil
		}
	}
	return core.UpdateResult{Acknowledged: true}, nil
}

func (s *Store) DeleteClass(_ context.Context, id string) (core.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.classes {
		if s.classes[i].ID == id {
			s.classes = append(s.classes[:i], s.classes[i+1:]...)
			return core.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
		}
	}
	return core.DeleteResult{Acknowledged: true}, nil
}

// InsertTransaction implements store.TransactionStore
func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = newID()
	s.transactions = append(s.transactions, t)
	return t.ID, nil
}

func (s *Store) ListTransactions(_ context.Context, owner string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if ownedBy(owner, t.Email) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) UpdateTransaction(_ context.Context, id string, p core.TransactionPatch) (core.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			p.ApplyTo(&s.transactions[i])
			return core.UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: modified(!p.Empty())}, nil
		}
	}
	return core.UpdateResult{Acknowledged: true}, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) (core.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return core.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
		}
	}
	return core.DeleteResult{Acknowledged: true}, nil
}

// InsertTask implements store.TaskStore
func (s *Store) InsertTask(_ context.Context, t core.Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = newID()
	s.tasks = append(s.tasks, t)
	return t.ID, nil
}

func (s *Store) ListTasks(_ context.Context, owner string) ([]core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if ownedBy(owner, t.Email) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetTask(_ context.Context, id string) (core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Task{}, core.ErrNotFound
}

func (s *Store) UpdateTask(_ context.Context, id string, p core.TaskPatch, updatedAt time.Time) (core.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			p.ApplyTo(&s.tasks[i])
			s.tasks[i].UpdatedAt = updatedAt
			return core.UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}
	return core.UpdateResult{Acknowledged: true}, nil
}

func (s *Store) UpdateTaskStatus(_ context.Context, id string, status core.TaskStatus, updatedAt time.Time) (core.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Status = status
			s.tasks[i].UpdatedAt = updatedAt
			return core.UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}
	return core.UpdateResult{Acknowledged: true}, nil
}

func (s *Store) DeleteTask(_ context.Context, id string) (core.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return core.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
		}
	}
	return core.DeleteResult{Acknowledged: true}, nil
}

func modified(changed bool) int64 {
	if changed {
		return 1
	}
	return 0
}
