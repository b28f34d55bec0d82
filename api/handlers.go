/*
handlers.go - HTTP handlers for the vacation lifecycle engine

PURPOSE:
  Parses inbound requests, delegates to the domain services, and shapes the
  responses. No business rules live here.

ENDPOINTS:
  POST /api/workspaces                       Register an installed workspace
  PUT  /api/workspaces/{id}/settings         Configure decision maker / channel
  POST /api/vacations                        Submit a booking
  POST /api/decisions                        Apply an approve/decline action
  GET  /api/workspaces/{id}/users/{userID}/vacations   Vacation summary
  POST /slack/events                         Event-subscription confirmation

ERROR HANDLING:
  Validation failures return 400 with the rejection text - they are the only
  errors an end user ever sees. Anything unexpected is reported to the
  operations channel with the handler name, and the response is still
  success-shaped: upstream delivery mechanisms retry non-2xx answers, and a
  retry would duplicate non-idempotent notifications. This system prefers
  "no duplicate notification" over "never lose a notification".
*/
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/vacation-engine/vacation"
	"github.com/warp/vacation-engine/workspace"
)

// Handler holds all dependencies for the HTTP surface.
type Handler struct {
	Service   *vacation.Service
	Directory *workspace.Directory
	Log       *slog.Logger

	// Report forwards failures to the operations channel; may be nil.
	Report vacation.Reporter
}

// =============================================================================
// WORKSPACES
// =============================================================================

// RegisterWorkspace stores an installed workspace with its access credential.
// Token exchange happens upstream; this endpoint receives the result.
func (h *Handler) RegisterWorkspace(w http.ResponseWriter, r *http.Request) {
	var req registerWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WorkspaceID == "" || req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "workspace_id and access_token are required")
		return
	}
	if err := h.Directory.SaveWorkspace(r.Context(), req.WorkspaceID, req.AccessToken); err != nil {
		h.unexpected(w, r, "register_workspace", err)
		return
	}
	writeJSON(w, http.StatusCreated, okResponse{OK: true})
}

// ConfigureWorkspace overwrites the decision maker and notifications channel.
func (h *Handler) ConfigureWorkspace(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "id")
	var req configureWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := h.Service.ConfigureWorkspace(r.Context(), vacation.ConfigSubmission{
		WorkspaceID:            workspaceID,
		DecisionMakerUserID:    req.DecisionMakerUserID,
		NotificationsChannelID: req.NotificationsChannelID,
	})
	if err != nil {
		if vacation.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.unexpected(w, r, "configure_workspace", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// =============================================================================
// BOOKINGS AND DECISIONS
// =============================================================================

// BookVacation validates and persists a booking. The change feed takes over
// from there: routing, auto-approval and notifications all happen downstream.
func (h *Handler) BookVacation(w http.ResponseWriter, r *http.Request) {
	var req bookVacationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WorkspaceID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "workspace_id and user_id are required")
		return
	}

	v, err := h.Service.BookVacation(r.Context(), vacation.BookingRequest{
		WorkspaceID: req.WorkspaceID,
		UserID:      req.UserID,
		Username:    req.Username,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		if vacation.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.unexpected(w, r, "book_vacation", err)
		return
	}
	writeJSON(w, http.StatusCreated, bookVacationResponse{
		VacationID: v.ID,
		Status:     string(v.Status),
	})
}

// Decide applies an approve/decline action from the approval prompt. Stale
// and duplicate decisions answer OK without doing anything.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WorkspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	token := vacation.NewDecisionToken(req.Payload.UserID, req.Payload.VacationID)
	if req.Payload.UserID == "" || req.Payload.VacationID == "" {
		parsed, ok := vacation.ParseDecisionToken(req.BlockID)
		if !ok {
			// Interactive payloads that are not vacation decisions pass
			// through this endpoint too. Ignore them.
			writeJSON(w, http.StatusOK, okResponse{OK: true})
			return
		}
		token = parsed
	}

	err := h.Service.HandleDecision(r.Context(), vacation.DecisionAction{
		WorkspaceID: req.WorkspaceID,
		ActionID:    req.ActionID,
		Token:       token,
		Status:      vacation.Status(req.Status),
		ResponseURL: req.ResponseURL,
	})
	if err != nil {
		h.unexpected(w, r, "process_decision", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// =============================================================================
// SUMMARY
// =============================================================================

// UserVacations renders the working-day summary of one user. An optional
// ?requester=U query also delivers the summary to that user as a DM.
func (h *Handler) UserVacations(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userID")
	requester := r.URL.Query().Get("requester")

	text, err := h.Service.UserVacationSummary(r.Context(), workspaceID, requester, userID)
	if err != nil {
		h.unexpected(w, r, "user_vacations", err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{UserID: userID, Text: text})
}

// =============================================================================
// EVENTS
// =============================================================================

// Events answers the event-subscription handshake by echoing the challenge.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	var req eventCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"challenge": req.Challenge})
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// =============================================================================
// HELPERS
// =============================================================================

// unexpected reports a non-validation failure to the operations channel and
// answers success-shaped to keep upstream retries away.
func (h *Handler) unexpected(w http.ResponseWriter, r *http.Request, name string, err error) {
	h.Log.Error("handler failed", "handler", name, "error", err)
	if h.Report != nil {
		h.Report(r.Context(), name, err)
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// guard is the blanket recovery wrapper: a panic is reported with the
// handler name and the response is still success-shaped.
func (h *Handler) guard(name string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.unexpected(w, r, name, fmt.Errorf("panic: %v", rec))
			}
		}()
		fn(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
