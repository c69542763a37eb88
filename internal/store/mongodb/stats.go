package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"studyfocus/internal/core"
)

func matchStage(filter bson.D) bson.D {
	return bson.D{{Key: "$match", Value: filter}}
}

func sortStage(key string, dir int) bson.D {
	return bson.D{{Key: "$sort", Value: bson.D{{Key: key, Value: dir}}}}
}

func knownStatuses() bson.A {
	out := bson.A{}
	for _, st := range core.TaskStatuses() {
		out = append(out, string(st))
	}
	return out
}

func weeklyStatusPipeline(owner string, w core.Window) mongo.Pipeline {
	return mongo.Pipeline{
		matchStage(bson.D{
			{Key: "email", Value: owner},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "deadline", Value: bson.D{
					{Key: "$gte", Value: w.Start},
					{Key: "$lte", Value: w.End},
				}}},
				bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: knownStatuses()}}}},
			}},
		}),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

func countByPipeline(owner, field string) mongo.Pipeline {
	return mongo.Pipeline{
		matchStage(bson.D{{Key: "email", Value: owner}}),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

func dailyCompletionsPipeline(owner string, since time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		matchStage(bson.D{
			{Key: "email", Value: owner},
			{Key: "status", Value: string(core.StatusDone)},
			{Key: "updatedAt", Value: bson.D{{Key: "$gte", Value: since}}},
		}),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$updatedAt"},
			}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		sortStage("_id", 1),
	}
}

func sumByPipeline(filter bson.D, groupKey any) mongo.Pipeline {
	return mongo.Pipeline{
		matchStage(filter),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: groupKey},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
}

func expensesByCategoryPipeline(owner string) mongo.Pipeline {
	p := sumByPipeline(bson.D{
		{Key: "email", Value: owner},
		{Key: "type", Value: core.TypeExpense},
	}, "$category")
	return append(p, sortStage("total", -1))
}

// sumWhenType adds up the first-stage totals whose type is txType.
func sumWhenType(txType string) bson.D {
	return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{"$_id.type", txType}}},
		"$total",
		0,
	}}}}}
}

// monthlyTrendPipeline groups by (month, type) first, then folds each
// month's type totals into income and expense.
func monthlyTrendPipeline(owner string) mongo.Pipeline {
	return mongo.Pipeline{
		matchStage(bson.D{{Key: "email", Value: owner}}),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "month", Value: bson.D{{Key: "$substrBytes", Value: bson.A{"$date", 0, 7}}}},
				{Key: "type", Value: "$type"},
			}},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$_id.month"},
			{Key: "income", Value: sumWhenType(core.TypeIncome)},
			{Key: "expense", Value: sumWhenType(core.TypeExpense)},
		}}},
		sortStage("_id", 1),
	}
}

type countRow struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

type totalRow struct {
	Key   string  `bson:"_id"`
	Total float64 `bson:"total"`
}

func aggregate[T any](ctx context.Context, coll *mongo.Collection, p mongo.Pipeline) ([]T, error) {
	cur, err := coll.Aggregate(ctx, p)
	if err != nil {
		return nil, err
	}
	rows := []T{}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// TaskStatusCounts implements store.StatsReader
func (s *Store) TaskStatusCounts(ctx context.Context, owner string, w core.Window) ([]core.StatusCount, error) {
	rows, err := aggregate[countRow](ctx, s.tasks, weeklyStatusPipeline(owner, w))
	if err != nil {
		return nil, fmt.Errorf("aggregate task status: %w", err)
	}
	out := make([]core.StatusCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.StatusCount{Status: core.TaskStatus(r.Key), Count: r.Count})
	}
	return out, nil
}

func (s *Store) TaskPriorityCounts(ctx context.Context, owner string) ([]core.PriorityCount, error) {
	rows, err := aggregate[countRow](ctx, s.tasks, countByPipeline(owner, "priority"))
	if err != nil {
		return nil, fmt.Errorf("aggregate task priority: %w", err)
	}
	out := make([]core.PriorityCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.PriorityCount{Priority: r.Key, Count: r.Count})
	}
	return out, nil
}

func (s *Store) DailyCompletions(ctx context.Context, owner string, since time.Time) ([]core.DailyCount, error) {
	rows, err := aggregate[countRow](ctx, s.tasks, dailyCompletionsPipeline(owner, since))
	if err != nil {
		return nil, fmt.Errorf("aggregate daily completions: %w", err)
	}
	out := make([]core.DailyCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.DailyCount{Date: r.Key, Count: r.Count})
	}
	return out, nil
}

func (s *Store) TransactionTotalsByType(ctx context.Context, owner string) ([]core.TypeTotal, error) {
	p := sumByPipeline(bson.D{{Key: "email", Value: owner}}, "$type")
	rows, err := aggregate[totalRow](ctx, s.transactions, p)
	if err != nil {
		return nil, fmt.Errorf("aggregate transaction totals: %w", err)
	}
	out := make([]core.TypeTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.TypeTotal{Type: r.Key, Total: r.Total})
	}
	return out, nil
}

func (s *Store) ClassCountsBySubject(ctx context.Context, owner string) ([]core.SubjectCount, error) {
	rows, err := aggregate[countRow](ctx, s.classes, countByPipeline(owner, "subject"))
	if err != nil {
		return nil, fmt.Errorf("aggregate class subjects: %w", err)
	}
	out := make([]core.SubjectCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.SubjectCount{Subject: r.Key, Total: r.Count})
	}
	return out, nil
}

func (s *Store) CountClasses(ctx context.Context, owner string) (int64, error) {
	return s.classes.CountDocuments(ctx, bson.D{{Key: "email", Value: owner}})
}

func (s *Store) CountTransactions(ctx context.Context, owner string) (int64, error) {
	return s.transactions.CountDocuments(ctx, bson.D{{Key: "email", Value: owner}})
}

func (s *Store) CountTasks(ctx context.Context, owner string) (int64, error) {
	return s.tasks.CountDocuments(ctx, bson.D{{Key: "email", Value: owner}})
}

func (s *Store) SumTransactions(ctx context.Context, owner, txType string) (float64, error) {
	p := sumByPipeline(bson.D{
		{Key: "email", Value: owner},
		{Key: "type", Value: txType},
	}, nil)
	rows, err := aggregate[struct {
		Total float64 `bson:"total"`
	}](ctx, s.transactions, p)
	if err != nil {
		return 0, fmt.Errorf("sum %s transactions: %w", txType, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (s *Store) ExpensesByCategory(ctx context.Context, owner string) ([]core.CategoryTotal, error) {
	rows, err := aggregate[totalRow](ctx, s.transactions, expensesByCategoryPipeline(owner))
	if err != nil {
		return nil, fmt.Errorf("aggregate expenses by category: %w", err)
	}
	out := make([]core.CategoryTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.CategoryTotal{Category: r.Key, Total: r.Total})
	}
	return out, nil
}

func (s *Store) MonthlyTrend(ctx context.Context, owner string) ([]core.MonthTrend, error) {
	type trendRow struct {
		Month   string  `bson:"_id"`
		Income  float64 `bson:"income"`
		Expense float64 `bson:"expense"`
	}
	rows, err := aggregate[trendRow](ctx, s.transactions, monthlyTrendPipeline(owner))
	if err != nil {
		return nil, fmt.Errorf("aggregate monthly trend: %w", err)
	}
	out := make([]core.MonthTrend, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.MonthTrend{Month: r.Month, Income: r.Income, Expense: r.Expense})
	}
	return out, nil
}
