package api

import (
	"net/http"
	"strings"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/authn"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/httpx"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/idempotency"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/workflow"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

type Handler struct {
	svc  *workflow.Service
	idem idempotency.Store
}

func NewHandler(svc *workflow.Service, idem idempotency.Store) *Handler {
	return &Handler{svc: svc, idem: idem}
}

func currentUser(r *http.Request) domain.UserID {
	u, _ := authn.UserFrom(r.Context())
	return u.ID
}

// idempotent runs a mutation at most once per Idempotency-Key. A replayed
// key gets the stored response byte for byte. Errors and non-2xx responses
// are not stored, so a retry with the same key runs the mutation again.
func (h *Handler) idempotent(w http.ResponseWriter, r *http.Request, run func() (int, any, error)) {
	actor := idempotency.FromRequest(r, string(currentUser(r)))
	endpoint := r.Method + " " + r.URL.Path
	status, body, replayed, err := idempotency.Replay(r.Context(), h.idem, actor, endpoint)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if replayed {
		hlog.FromRequest(r).Debug().Str("idempotency_key", actor.IdempotencyKey).Msg("replaying stored response")
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return
	}

	status, resp, err := run()
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if status < 300 {
		if err := idempotency.Save(r.Context(), h.idem, actor, endpoint, status, resp); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("idempotency record not saved")
		}
	}
	httpx.WriteJSON(w, status, resp)
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	op, err := workflow.ParseOp(chi.URLParam(r, "action"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req struct {
		Stage int `json:"stage"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteRequestError(w, r, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	id := domain.DocumentID(chi.URLParam(r, "document_id"))
	h.idempotent(w, r, func() (int, any, error) {
		doc, err := h.svc.Apply(r.Context(), op, id, domain.Stage(req.Stage), currentUser(r))
		if err != nil {
			return 0, nil, err
		}
		return 200, map[string]any{"request_id": httpx.RequestIDFrom(r.Context()), "document": doc}, nil
	})
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Document(r.Context(), domain.DocumentID(chi.URLParam(r, "document_id")))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.RequestIDFrom(r.Context()), "document": doc})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Events(r.Context(), domain.DocumentID(chi.URLParam(r, "document_id")))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if events == nil {
		events = []domain.DocumentEvent{}
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.RequestIDFrom(r.Context()), "events": events})
}

func (h *Handler) GetEndorsement(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Endorsement(r.Context(), domain.DocumentID(chi.URLParam(r, "document_id")))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.RequestIDFrom(r.Context()), "endorsement": e})
}

func (h *Handler) SetInvolvement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvolvesAnimals bool `json:"involves_animals"`
		InvolvesPlants  bool `json:"involves_plants"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteRequestError(w, r, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	e, err := h.svc.SetInvolvement(r.Context(), domain.DocumentID(chi.URLParam(r, "document_id")), req.InvolvesAnimals, req.InvolvesPlants, currentUser(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.RequestIDFrom(r.Context()), "endorsement": e})
}

func (h *Handler) ProvideEndorsement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteRequestError(w, r, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	kind, err := domain.ParseEndorsementKind(strings.TrimSpace(req.Kind))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	id := domain.DocumentID(chi.URLParam(r, "document_id"))
	h.idempotent(w, r, func() (int, any, error) {
		e, err := h.svc.ProvideEndorsement(r.Context(), id, kind, currentUser(r))
		if err != nil {
			return 0, nil, err
		}
		return 200, map[string]any{"request_id": httpx.RequestIDFrom(r.Context()), "endorsement": e}, nil
	})
}

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind           string `json:"kind"`
		AnnualReportID string `json:"annual_report_id"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteRequestError(w, r, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	kind, err := domain.ParseDocumentKind(strings.TrimSpace(req.Kind))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var reportID *domain.AnnualReportID
	if s := strings.TrimSpace(req.AnnualReportID); s != "" {
		id := domain.AnnualReportID(s)
		reportID = &id
	}
	projectID := domain.ProjectID(chi.URLParam(r, "project_id"))
	h.idempotent(w, r, func() (int, any, error) {
		doc, err := h.svc.CreateDocument(r.Context(), projectID, kind, reportID, currentUser(r))
		if err != nil {
			return 0, nil, err
		}
		return 201, map[string]any{"request_id": httpx.RequestIDFrom(r.Context()), "document": doc}, nil
	})
}

// Pending serves both /users/{user_id}/pending and /me/pending. Reading
// another user's queues needs superuser.
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	caller, _ := authn.UserFrom(r.Context())
	target := caller.ID
	if id := chi.URLParam(r, "user_id"); id != "" {
		target = domain.UserID(id)
	}
	if target != caller.ID && !caller.IsSuperuser {
		httpx.WriteRequestError(w, r, 403, "FORBIDDEN", "pending actions of another user", nil)
		return
	}
	pending, err := h.svc.PendingActionsFor(r.Context(), target)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"request_id": httpx.RequestIDFrom(r.Context()),
		"user_id":    target,
		"pending":    pending,
	})
}

// CodeSpawnIncomplete marks a reporting-cycle batch in which some projects
// failed. The body carries the full result next to the error.
const CodeSpawnIncomplete = "SPAWN_INCOMPLETE"

func (h *Handler) Spawn(w http.ResponseWriter, r *http.Request) {
	reportID := domain.AnnualReportID(chi.URLParam(r, "report_id"))
	h.idempotent(w, r, func() (int, any, error) {
		res, err := h.svc.SpawnReportingCycle(r.Context(), reportID, currentUser(r))
		if err != nil {
			return 0, nil, err
		}
		requestID := httpx.RequestIDFrom(r.Context())
		if ferr := res.Err(); ferr != nil {
			hlog.FromRequest(r).Error().Err(ferr).
				Str("annual_report_id", string(reportID)).
				Int("created", len(res.Created)).
				Int("failed", len(res.Failed)).
				Msg("reporting cycle incomplete")
			return http.StatusInternalServerError, map[string]any{
				"request_id": requestID,
				"error":      httpx.ErrorBody{Code: CodeSpawnIncomplete, Message: ferr.Error(), Details: res.Failed},
				"result":     res,
			}, nil
		}
		return http.StatusOK, map[string]any{"request_id": requestID, "result": res}, nil
	})
}
