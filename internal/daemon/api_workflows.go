package daemon

import (
	"net/http"
	"strings"

	"mediaflow/internal/api"
	"mediaflow/internal/logging"
	"mediaflow/internal/scheduler"
	"mediaflow/internal/store"
	"mediaflow/internal/workflow"
)

func (s *apiServer) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.daemon.store.ListWorkflows(r.Context())
	if err != nil {
		s.writeDomainError(w, r, "list workflows", err)
		return
	}
	if workflows == nil {
		workflows = []*store.Workflow{}
	}
	s.writeJSON(w, http.StatusOK, api.WorkflowListResponse{Workflows: workflows})
}

func (s *apiServer) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	wf, err := s.daemon.store.GetWorkflow(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, "get workflow", err)
		return
	}
	s.writeJSON(w, http.StatusOK, wf)
}

// readWorkflow decodes and validates a workflow payload, including its graph
// against the registered stage handlers.
func (s *apiServer) readWorkflow(w http.ResponseWriter, r *http.Request) (store.Workflow, bool) {
	var req api.WorkflowRequest
	if !s.decodeJSON(w, r, &req) {
		return store.Workflow{}, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid workflow: "+err.Error())
		return store.Workflow{}, false
	}
	if req.Schedule != "" {
		if err := scheduler.Validate(req.Schedule); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return store.Workflow{}, false
		}
	}
	if _, err := s.daemon.engine.Validate(req.Definition); err != nil {
		s.writeDomainError(w, r, "validate workflow", err)
		return store.Workflow{}, false
	}
	return req.Workflow(), true
}

func (s *apiServer) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.readWorkflow(w, r)
	if !ok {
		return
	}
	created, err := s.daemon.store.CreateWorkflow(r.Context(), wf)
	if err != nil {
		s.writeDomainError(w, r, "create workflow", err)
		return
	}
	s.daemon.resync(r.Context())
	s.logger.Info("workflow created",
		logging.Int64(logging.FieldWorkflowID, created.ID),
		logging.String("workflow", created.Name),
	)
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *apiServer) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	wf, ok := s.readWorkflow(w, r)
	if !ok {
		return
	}
	wf.ID = id
	if err := s.daemon.store.UpdateWorkflow(r.Context(), &wf); err != nil {
		s.writeDomainError(w, r, "update workflow", err)
		return
	}
	s.daemon.resync(r.Context())
	updated, err := s.daemon.store.GetWorkflow(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, "get workflow", err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *apiServer) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.store.DeactivateWorkflow(r.Context(), id); err != nil {
		s.writeDomainError(w, r, "delete workflow", err)
		return
	}
	s.daemon.resync(r.Context())
	s.logger.Info("workflow deactivated", logging.Int64(logging.FieldWorkflowID, id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.daemon.engine.Trigger(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, "execute workflow", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.ExecuteResponse{
		ExecutionID: rec.ID,
		Status:      rec.Status,
		Message:     workflow.StartedMessage,
	})
}

func (s *apiServer) handleWorkflowExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.daemon.store.GetWorkflow(r.Context(), id); err != nil {
		s.writeDomainError(w, r, "get workflow", err)
		return
	}
	records, err := s.daemon.store.ListWorkflowExecutions(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, "list executions", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewExecutionList(records, 0, len(records)))
}
