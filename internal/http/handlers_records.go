package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studyfocus/internal/core"
	"studyfocus/internal/log"
	"studyfocus/internal/services"
)

// scopeBody resolves the owner of a write body in place. A nil email is
// left alone unless owner enforcement fills it from the token.
func (s *Server) scopeBody(r *http.Request, email **string) error {
	var sent string
	if *email != nil {
		sent = **email
	} else if !s.enforceOwner {
		return nil
	}
	owner, err := s.owner(r, sent)
	if err != nil {
		return err
	}
	*email = &owner
	return nil
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r, queryEmail(r))
	if err != nil {
		s.fail(w, r, services.CollectionClasses, log.OpList, err)
		return
	}
	classes, err := s.records.ListClasses(r.Context(), owner)
	if err != nil {
		s.fail(w, r, services.CollectionClasses, log.OpList, err)
		return
	}
	if classes == nil {
		classes = []core.Class{}
	}
	writeJSON(w, http.StatusOK, classes)
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var p core.ClassPatch
	if err := decodeJSON(w, r, &p); err != nil {
		s.fail(w, r, services.CollectionClasses, log.OpCreate, err)
		return
	}
	if err := s.scopeBody(r, &p.Email); err != nil {
		s.fail(w, r, services.CollectionClasses, log.OpCreate, err)
		return
	}
	res, err := s.records.CreateClass(r.Context(), p)
	if err != nil {
		s.fail(w, r, services.CollectionClasses, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleUpdateClass(w http.ResponseWriter, r *http.Request) {
	var p core.ClassPatch
	if err := decodeJSON(w, r, &p); err != nil {
		s.fail(w, r, services.CollectionClasses, log.OpUpdate, err)
		return
	}
	if p.Email != nil {
		if err := s.scopeBody(r, &p.Email); err != nil {
			s.fail(w, r, services.CollectionClasses, log.OpUpdate, err)
			return
		}
	}
	res, err := s.records.UpdateClass(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.fail(w, r, services.CollectionClasses, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	res, err := s.records.DeleteClass(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, services.CollectionClasses, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r, queryEmail(r))
	if err != nil {
		s.fail(w, r, services.CollectionTransactions, log.OpList, err)
		return
	}
	txs, err := s.records.ListTransactions(r.Context(), owner)
	if err != nil {
		s.fail(w, r, services.CollectionTransactions, log.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var p core.TransactionPatch
	if err := decodeJSON(w, r, &p); err != nil {
		s.fail(w, r, services.CollectionTransactions, log.OpCreate, err)
		return
	}
	if err := s.scopeBody(r, &p.Email); err != nil {
		s.fail(w, r, services.CollectionTransactions, log.OpCreate, err)
		return
	}
	res, err := s.records.CreateTransaction(r.Context(), p)
	if err != nil {
		s.fail(w, r, services.CollectionTransactions, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var p core.TransactionPatch
	if err := decodeJSON(w, r, &p); err != nil {
		s.fail(w, r, services.CollectionTransactions, log.OpUpdate, err)
		return
	}
	if p.Email != nil {
		if err := s.scopeBody(r, &p.Email); err != nil {
			s.fail(w, r, services.CollectionTransactions, log.OpUpdate, err)
			return
		}
	}
	res, err := s.records.UpdateTransaction(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.fail(w, r, services.CollectionTransactions, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	res, err := s.records.DeleteTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, services.CollectionTransactions, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
