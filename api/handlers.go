package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hupe1980/ragmesh/agent"
	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/gate"
	"github.com/hupe1980/ragmesh/manifest"
	"github.com/hupe1980/ragmesh/tool"
)

// Error codes for failures outside the core taxonomy.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeUnavailable      = "UNAVAILABLE"
	CodeIndexMismatch    = "INDEX_INCOMPATIBLE"
	CodeBaseCheckFailed  = "BASE_CHECK_FAILED"
	CodeBudgetExceeded   = "BUDGET_EXCEEDED"
	CodeInternal         = "INTERNAL"
	CodeRequestCancelled = "CANCELLED"
)

// ErrorBody is the error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AskRequest is the /v1/ask body.
type AskRequest struct {
	Question string `json:"question"`
	// Profile is attached as the domain subject for the run.
	Profile any `json:"profile,omitempty"`
}

// AskResponse is the /v1/ask reply. On failure Error is set and Result holds
// the steps taken.
type AskResponse struct {
	Result *agent.Result `json:"result,omitempty"`
	Error  *ErrorBody    `json:"error,omitempty"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.tools.Tools()})
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	payload := map[string]any{}
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	out, err := s.tools.Dispatch(r.Context(), name, payload)
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.asker == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "no model configured")
		return
	}

	var req AskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "question is required")
		return
	}

	ctx := r.Context()
	if req.Profile != nil {
		ctx = tool.WithSubject(ctx, req.Profile)
	}
	res, err := s.asker.Run(ctx, req.Question)
	if err != nil {
		status, code := classify(err)
		s.opts.Logger.Warn("ask failed", "code", code, "error", err.Error())
		writeJSON(w, status, AskResponse{Result: res, Error: &ErrorBody{Code: code, Message: err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{Result: res})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// classify maps an error to an HTTP status and a wire code.
func classify(err error) (int, string) {
	var (
		ce     *manifest.CompatibilityError
		base   *gate.BaseCheckError
		budget *gate.BudgetExceededError
	)
	switch {
	case errors.As(err, &ce):
		return http.StatusConflict, CodeIndexMismatch
	case errors.As(err, &base):
		return http.StatusUnprocessableEntity, CodeBaseCheckFailed
	case errors.As(err, &budget):
		return http.StatusTooManyRequests, CodeBudgetExceeded
	}

	switch code := core.CodeOf(err); code {
	case core.CodeInvalidArg, core.CodeMissingProfile:
		return http.StatusBadRequest, code
	case core.CodeUnknownTool:
		return http.StatusNotFound, code
	case core.CodeIndexNotConfigured, core.CodeDocsNotConfigured:
		return http.StatusServiceUnavailable, code
	case core.CodeGuardCitationRequired, core.CodeGuardCitationUnknownID, core.CodeMaxStepsExceeded:
		return http.StatusUnprocessableEntity, code
	case core.CodeParseError:
		return http.StatusBadGateway, code
	case "":
		if errors.Is(err, context.Canceled) {
			return 499, CodeRequestCancelled
		}
		return http.StatusInternalServerError, CodeInternal
	default:
		return http.StatusInternalServerError, code
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]ErrorBody{"error": {Code: code, Message: msg}})
}
