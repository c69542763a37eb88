package memory

import (
	"context"
	"sort"
	"time"

	"studyfocus/internal/core"
)

// TaskStatusCounts implements store.StatsReader
func (s *Store) TaskStatusCounts(_ context.Context, owner string, w core.Window) ([]core.StatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[core.TaskStatus]int64{}
	var order []core.TaskStatus
	for _, t := range s.tasks {
		if t.Email != owner {
			continue
		}
		inWindow := t.Deadline != nil && !t.Deadline.Before(w.Start) && !t.Deadline.After(w.End)
		if !inWindow && t.Status.Validate() != nil {
			continue
		}
		if _, seen := counts[t.Status]; !seen {
			order = append(order, t.Status)
		}
		counts[t.Status]++
	}
	out := make([]core.StatusCount, 0, len(order))
	for _, st := range order {
		out = append(out, core.StatusCount{Status: st, Count: counts[st]})
	}
	return out, nil
}

func (s *Store) TaskPriorityCounts(_ context.Context, owner string) ([]core.PriorityCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int64{}
	var order []string
	for _, t := range s.tasks {
		if t.Email != owner {
			continue
		}
		if _, seen := counts[t.Priority]; !seen {
			order = append(order, t.Priority)
		}
		counts[t.Priority]++
	}
	out := make([]core.PriorityCount, 0, len(order))
	for _, p := range order {
		out = append(out, core.PriorityCount{Priority: p, Count: counts[p]})
	}
	return out, nil
}

func (s *Store) DailyCompletions(_ context.Context, owner string, since time.Time) ([]core.DailyCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int64{}
	for _, t := range s.tasks {
		if t.Email != owner || t.Status != core.StatusDone || t.UpdatedAt.Before(since) {
			continue
		}
		counts[t.UpdatedAt.UTC().Format("2006-01-02")]++
	}
	out := make([]core.DailyCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, core.DailyCount{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) TransactionTotalsByType(_ context.Context, owner string) ([]core.TypeTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[string]float64{}
	var order []string
	for _, t := range s.transactions {
		if t.Email != owner {
			continue
		}
		if _, seen := totals[t.Type]; !seen {
			order = append(order, t.Type)
		}
		totals[t.Type] += t.Amount
	}
	out := make([]core.TypeTotal, 0, len(order))
	for _, typ := range order {
		out = append(out, core.TypeTotal{Type: typ, Total: totals[typ]})
	}
	return out, nil
}

func (s *Store) ClassCountsBySubject(_ context.Context, owner string) ([]core.SubjectCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int64{}
	var order []string
	for _, c := range s.classes {
		if c.Email != owner {
			continue
		}
		if _, seen := counts[c.Subject]; !seen {
			order = append(order, c.Subject)
		}
		counts[c.Subject]++
	}
	out := make([]core.SubjectCount, 0, len(order))
	for _, subj := range order {
		out = append(out, core.SubjectCount{Subject: subj, Total: counts[subj]})
	}
	return out, nil
}

func (s *Store) CountClasses(_ context.Context, owner string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.classes {
		if c.Email == owner {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountTransactions(_ context.Context, owner string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.transactions {
		if t.Email == owner {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountTasks(_ context.Context, owner string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.tasks {
		if t.Email == owner {
			n++
		}
	}
	return n, nil
}

func (s *Store) SumTransactions(_ context.Context, owner, txType string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	for _, t := range s.transactions {
		if t.Email == owner && t.Type == txType {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (s *Store) ExpensesByCategory(_ context.Context, owner string) ([]core.CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[string]float64{}
	for _, t := range s.transactions {
		if t.Email == owner && t.Type == core.TypeExpense {
			totals[t.Category] += t.Amount
		}
	}
	out := make([]core.CategoryTotal, 0, len(totals))
	for cat, total := range totals {
		out = append(out, core.CategoryTotal{Category: cat, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out, nil
}

func (s *Store) MonthlyTrend(_ context.Context, owner string) ([]core.MonthTrend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byMonth := map[string]*core.MonthTrend{}
	for _, t := range s.transactions {
		if t.Email != owner {
			continue
		}
		month := monthOf(t.Date)
		row, ok := byMonth[month]
		if !ok {
			row = &core.MonthTrend{Month: month}
			byMonth[month] = row
		}
		switch t.Type {
		case core.TypeIncome:
			row.Income += t.Amount
		case core.TypeExpense:
			row.Expense += t.Amount
		}
	}
	out := make([]core.MonthTrend, 0, len(byMonth))
	for _, row := range byMonth {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// monthOf takes the YYYY-MM prefix of a date string without parsing it.
func monthOf(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}
