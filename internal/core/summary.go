package core

import "time"

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Grouped rows as returned by store aggregations.
type (
	StatusCount struct {
		Status TaskStatus
		Count  int64
	}

	PriorityCount struct {
		Priority string `json:"priority"`
		Count    int64  `json:"count"`
	}

	DailyCount struct {
		Date  string `json:"date"` // YYYY-MM-DD
		Count int64  `json:"count"`
	}

	TypeTotal struct {
		Type  string
		Total float64
	}

	SubjectCount struct {
		Subject string `json:"subject"`
		Total   int64  `json:"total"`
	}

	CategoryTotal struct {
		Category string  `json:"category"`
		Total    float64 `json:"total"`
	}

	MonthTrend struct {
		Month   string  `json:"month"` // YYYY-MM
		Income  float64 `json:"income"`
		Expense float64 `json:"expense"`
	}
)

// WeeklyProgress summarizes task statuses inside a week window.
type WeeklyProgress struct {
	Total      int64 `json:"total"`
	Done       int64 `json:"done"`
	InProgress int64 `json:"inProgress"`
	Todo       int64 `json:"todo"`
	Percent    int64 `json:"percent"`
}

type TransactionSummary struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

type Overview struct {
	TotalTransactions int64   `json:"totalTransactions"`
	TotalClasses      int64   `json:"totalClasses"`
	TotalTasks        int64   `json:"totalTasks"`
	Income            float64 `json:"income"`
	Expense           float64 `json:"expense"`
}
