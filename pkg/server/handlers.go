package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/opscart/cloud-cost-optimizer/pkg/approval"
	"github.com/opscart/cloud-cost-optimizer/pkg/auth"
	"github.com/opscart/cloud-cost-optimizer/pkg/models"
	"github.com/opscart/cloud-cost-optimizer/pkg/storage"
)

const defaultListLimit = 100

// errorResponse is the JSON envelope for every non-2xx answer.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	filter := storage.Filter{Limit: defaultListLimit}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
			return
		}
		filter.Statuses = []models.Status{status}
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		filter.Type = models.ResourceType(raw)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid_argument", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	recs, err := s.store.ListRecommendations(r.Context(), filter)
	if err != nil {
		s.internalError(w, "list recommendations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	})
}

func (s *Server) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := s.store.GetRecommendation(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "recommendation not found")
			return
		}
		s.internalError(w, "get recommendation", err)
		return
	}

	attempts, err := s.store.ListAttempts(r.Context(), id)
	if err != nil {
		s.internalError(w, "list attempts", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recommendation": rec,
		"attempts":       attempts,
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.handleDecision(w, r, s.approvals.Approve)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.handleDecision(w, r, s.approvals.Reject)
}

type decisionFunc func(ctx context.Context, id string, user *auth.User) (*models.Recommendation, error)

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request, decide decisionFunc) {
	user := auth.UserFrom(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	rec, err := decide(r.Context(), mux.Vars(r)["id"], user)
	if err != nil {
		switch {
		case errors.Is(err, approval.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "forbidden", err.Error())
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "recommendation not found")
		case errors.Is(err, approval.ErrNotApprovable) || errors.Is(err, approval.ErrConflict):
			writeError(w, http.StatusConflict, "conflict", err.Error())
		default:
			s.internalError(w, "recommendation decision", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.aggregator.Summary(r.Context())
	if err != nil {
		s.internalError(w, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	typeFilter := models.ResourceType(r.URL.Query().Get("type"))

	resources, err := s.telemetry.ListResources(r.Context(), typeFilter)
	if err != nil {
		s.internalError(w, "list resources", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resources": resources,
		"count":     len(resources),
	})
}
