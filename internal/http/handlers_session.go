package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	"github.com/academiq/academiq-api/internal/ports"
	"github.com/academiq/academiq-api/internal/service"
)

// SessionHandlers exposes the resolved session state, the role catalog, and
// gate decisions over JSON for API clients.
type SessionHandlers struct {
	Auth      AuthServiceInterface
	Snapshots SnapshotSource
	Gate      *service.AccessGate
	Roles     ports.RoleLister
	Logger    *slog.Logger
}

func (h *SessionHandlers) deps() GateDeps {
	return GateDeps{Auth: h.Auth, Snapshots: h.Snapshots, Gate: h.Gate, Logger: h.Logger}
}

// Session reports the caller's resolved session snapshot.
// GET /api/session.
func (h *SessionHandlers) Session(w http.ResponseWriter, r *http.Request) {
	_, snap := h.deps().resolveRequest(r)
	WriteJSON(w, http.StatusOK, snapshotPayload(snap))
}

func snapshotPayload(snap domainsession.Snapshot) map[string]any {
	payload := map[string]any{
		"authenticated": snap.Authenticated(),
		"status":        string(snap.Status),
		"generation":    snap.Generation,
	}
	if snap.Role != nil {
		payload["role"] = string(*snap.Role)
	} else {
		payload["role"] = nil
	}
	if snap.Identity != nil {
		payload["user"] = map[string]any{
			"id":    snap.Identity.ID,
			"email": snap.Identity.Email,
		}
	}
	return payload
}

// Decision evaluates the gate for an arbitrary path without serving the view,
// letting clients pre-flight navigation.
// GET /api/gate/decision?path=<path>.
func (h *SessionHandlers) Decision(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_path",
			Err:     errors.New("path query parameter is required"),
		})
		return
	}

	_, snap := h.deps().resolveRequest(r)
	decision := h.Gate.Decide(path, snap)

	payload := map[string]any{
		"outcome": string(decision.Outcome),
	}
	if decision.Target != "" {
		payload["target"] = decision.Target
	}
	if decision.Required != "" {
		payload["required_role"] = string(decision.Required)
	}
	if decision.Actual != nil {
		payload["actual_role"] = string(*decision.Actual)
	}
	WriteJSON(w, http.StatusOK, payload)
}

// ListRoles returns the distinct roles known to the legacy store, falling
// back to the built-in catalog when the store is empty or unavailable.
// GET /api/roles.
func (h *SessionHandlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles := h.distinctRoles(r)
	WriteJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *SessionHandlers) distinctRoles(r *http.Request) []string {
	if h.Roles == nil {
		return roleCatalog()
	}
	roles, err := h.Roles.DistinctRoles(r.Context())
	if err != nil {
		logger := h.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(r.Context(), "listing roles failed", "error", err)
		return roleCatalog()
	}
	if len(roles) == 0 {
		return roleCatalog()
	}
	return roles
}

func roleCatalog() []string {
	all := domainsession.Roles()
	out := make([]string, len(all))
	for i, role := range all {
		out[i] = string(role)
	}
	return out
}
