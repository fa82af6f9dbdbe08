package daemon

import (
	"net/http"
	"strconv"

	"mediaflow/internal/api"
	"mediaflow/internal/store"
)

func (s *apiServer) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	skip, _ := strconv.Atoi(query.Get("skip"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultExecutionLimit
	}
	records, err := s.daemon.store.ListExecutions(r.Context(), skip, limit)
	if err != nil {
		s.writeDomainError(w, r, "list executions", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewExecutionList(records, skip, limit))
}

func (s *apiServer) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.daemon.store.GetExecution(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, "get execution", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *apiServer) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.engine.Cancel(r.Context(), id); err != nil {
		s.writeDomainError(w, r, "cancel execution", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{ExecutionID: id, Message: store.CancelledMessage})
}

func (s *apiServer) handleDeleteExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	deleted, err := s.daemon.engine.DeleteExecution(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, "delete execution", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteExecutionResponse{ExecutionID: id, DeletedFiles: deleted})
}
