package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studyfocus/internal/core"
	"studyfocus/internal/log"
	"studyfocus/internal/services"
)

type statusRequest struct {
	Status core.TaskStatus `json:"status"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var p core.TaskPatch
	if err := decodeJSON(w, r, &p); err != nil {
		s.fail(w, r, services.CollectionTasks, log.OpCreate, err)
		return
	}
	if err := s.scopeBody(r, &p.Email); err != nil {
		s.fail(w, r, services.CollectionTasks, log.OpCreate, err)
		return
	}
	res, err := s.records.CreateTask(r.Context(), p)
	if err != nil {
		s.fail(w, r, services.CollectionTasks, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleListTasks returns tasks newest first, filtered by email when given.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r, queryEmail(r))
	if err != nil {
		s.fail(w, r, services.CollectionTasks, log.OpList, err)
		return
	}
	tasks, err := s.records.ListTasks(r.Context(), owner)
	if err != nil {
		s.fail(w, r, services.CollectionTasks, log.OpList, err)
		return
	}
	if tasks == nil {
		tasks = []core.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.records.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, services.CollectionTasks, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var p core.TaskPatch
	if err := decodeJSON(w, r, &p); err != nil {
		s.fail(w, r, services.CollectionTasks, log.OpUpdate, err)
		return
	}
	if p.Email != nil {
		if err := s.scopeBody(r, &p.Email); err != nil {
			s.fail(w, r, services.CollectionTasks, log.OpUpdate, err)
			return
		}
	}
	res, err := s.records.UpdateTask(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.fail(w, r, services.CollectionTasks, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUpdateTaskStatus changes only status and updatedAt. A missing status
// is a 400.
func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, services.CollectionTasks, log.OpUpdate, err)
		return
	}
	res, err := s.records.UpdateTaskStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		s.fail(w, r, services.CollectionTasks, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	res, err := s.records.DeleteTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, services.CollectionTasks, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
