package http

import (
	"context"
	"net/http"

	"studyfocus/internal/core"
	"studyfocus/internal/log"
)

const statsCollection = "stats"

// serveStat resolves the owner, runs compute and writes its result. Every
// stat requires an email; the engine reports its absence as a 400.
func serveStat[T any](s *Server, w http.ResponseWriter, r *http.Request, compute func(ctx context.Context, owner string) (T, error)) {
	owner, err := s.owner(r, queryEmail(r))
	if err != nil {
		s.fail(w, r, statsCollection, log.OpStats, err)
		return
	}
	out, err := compute(r.Context(), owner)
	if err != nil {
		s.fail(w, r, statsCollection, log.OpStats, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWeeklyStats(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	serveStat(s, w, r, func(ctx context.Context, owner string) (core.WeeklyProgress, error) {
		return s.stats.WeeklyProgress(ctx, owner, start)
	})
}

func (s *Server) handlePriorityStats(w http.ResponseWriter, r *http.Request) {
	serveStat(s, w, r, s.stats.PriorityBreakdown)
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	days := r.URL.Query().Get("days")
	serveStat(s, w, r, func(ctx context.Context, owner string) ([]core.DailyCount, error) {
		return s.stats.DailyCompletions(ctx, owner, days)
	})
}

func (s *Server) handleTransactionStats(w http.ResponseWriter, r *http.Request) {
	serveStat(s, w, r, s.stats.TransactionSummary)
}

func (s *Server) handleClassStats(w http.ResponseWriter, r *http.Request) {
	serveStat(s, w, r, s.stats.ClassesBySubject)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	serveStat(s, w, r, s.stats.Overview)
}

func (s *Server) handleExpenseByCategory(w http.ResponseWriter, r *http.Request) {
	serveStat(s, w, r, s.stats.ExpensesByCategory)
}

func (s *Server) handleTransactionsTrend(w http.ResponseWriter, r *http.Request) {
	serveStat(s, w, r, s.stats.TransactionsTrend)
}
