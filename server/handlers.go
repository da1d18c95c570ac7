package server

import (
	"net/http"

	"github.com/kestreldb/kestrel/kql"
	"github.com/kestreldb/kestrel/version"
)

// queryRequest is the POST /api/query body.
type queryRequest struct {
	Query string `json:"query"`
}

// handleQuery executes one KQL query and writes the response envelope. The
// HTTP status mirrors the engine's error taxonomy so clients can dispatch
// on status alone.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req queryRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	resp := s.engine.ExecuteQuery(r.Context(), req.Query)
	writeJSON(w, statusFor(resp), resp)
}

// handleHealth reports liveness and the running version.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleSchemas lists the registered schema names.
func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"schemas": s.engine.Registry().Names(),
	})
}

// statusFor maps a response envelope onto an HTTP status code.
func statusFor(resp *kql.Response) int {
	if resp.OK {
		return http.StatusOK
	}
	if resp.Error == nil {
		return http.StatusInternalServerError
	}
	switch resp.Error.Code {
	case kql.CodeSyntaxError, kql.CodePaginationError:
		return http.StatusBadRequest
	case kql.CodeTypeValidationError, kql.CodeSemanticError:
		return http.StatusUnprocessableEntity
	case kql.CodeExecutionTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
