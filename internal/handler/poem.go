package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/poit/internal/auth"
	"github.com/sakif/poit/internal/service"
)

// PoemHandler serves the poem listings and the poem/stanza lifecycle.
//
// Handlers only translate HTTP to service calls: read the requester from
// the context, path params from chi, query params and JSON bodies from the
// request. Ownership and validation live in the services.
type PoemHandler struct {
	listing *service.PoemListingService
	poems   *service.PoemService
	logger  *slog.Logger
}

func NewPoemHandler(listing *service.PoemListingService, poems *service.PoemService, logger *slog.Logger) *PoemHandler {
	return &PoemHandler{
		listing: listing,
		poems:   poems,
		logger:  logger,
	}
}

// =========================================================================
// LISTINGS
// =========================================================================
//
// All four share one query string:
//
//	?cursor=<poemId>&limit=<1..50, default 10>&search=<term>
//
// RESPONSE FORMAT:
//
//	{"poems": [...], "nextCursor": "cv1..." | null, "totalCount": 12}

// HandleListAll serves GET /api/poems.
func (h *PoemHandler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, service.All())
}

// HandleListMine serves GET /api/poems/mine.
func (h *PoemHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.UserIDFromContext(r.Context())
	h.list(w, r, service.Own(requesterID))
}

// HandleListFeed serves GET /api/poems/feed.
func (h *PoemHandler) HandleListFeed(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.UserIDFromContext(r.Context())
	h.list(w, r, service.Feed(requesterID))
}

// HandleListUser serves GET /api/users/{userId}/poems.
func (h *PoemHandler) HandleListUser(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, service.User(chi.URLParam(r, "userId")))
}

func (h *PoemHandler) list(w http.ResponseWriter, r *http.Request, audience service.Audience) {
	requesterID, _ := auth.UserIDFromContext(r.Context())
	q := r.URL.Query()

	result, err := h.listing.List(r.Context(), service.ListRequest{
		Audience:    audience,
		RequesterID: requesterID,
		Cursor:      q.Get("cursor"),
		Limit:       service.ParseLimit(q.Get("limit")),
		Search:      q.Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =========================================================================
// POEMS
// =========================================================================

type titleRequest struct {
	Title string `json:"title"`
}

// HandleCreate serves POST /api/poems with {"title": "..."}.
// An empty body is allowed and yields an untitled poem.
func (h *PoemHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.UserIDFromContext(r.Context())

	var req titleRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	poem, err := h.poems.Create(r.Context(), requesterID, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, poem)
}

// HandleGet serves GET /api/poems/{id}.
func (h *PoemHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.UserIDFromContext(r.Context())

	poem, err := h.poems.Get(r.Context(), requesterID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poem)
}

// HandleRename serves PATCH /api/poems/{id} with {"title": "..."}.
func (h *PoemHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.UserIDFromContext(r.Context())

	var req titleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	poem, err := h.poems.Rename(r.Context(), requesterID, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poem)
}

// HandleDelete serves DELETE /api/poems/{id}. 204 on success.
func (h *PoemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.UserIDFromContext(r.Context())

	if err := h.poems.Delete(r.Context(), requesterID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =========================================================================
// STANZAS
// =========================================================================

type stanzaRequest struct {
	Body string `json:"body"`
}

type reorderRequest struct {
	StanzaIDs []string `json:"stanzaIds"`
}

// HandleAddStanza serves POST /api/poems/{id}/stanzas with {"body": "..."}.
// Responds 201 with the new stanza.
func (h *PoemHandler) HandleAddStanza(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.UserIDFromContext(r.Context())

	var req stanzaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	stanza, err := h.poems.AddStanza(r.Context(), requesterID, chi.URLParam(r, "id"), req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stanza)
}

// HandleUpdateStanza serves PATCH /api/poems/{id}/stanzas/{stanzaId}.
func (h *PoemHandler) HandleUpdateStanza(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.UserIDFromContext(r.Context())

	var req stanzaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	poem, err := h.poems.UpdateStanza(r.Context(), requesterID,
		chi.URLParam(r, "id"), chi.URLParam(r, "stanzaId"), req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poem)
}

// HandleRemoveStanza serves DELETE /api/poems/{id}/stanzas/{stanzaId} and
// returns the renumbered poem.
func (h *PoemHandler) HandleRemoveStanza(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.UserIDFromContext(r.Context())

	poem, err := h.poems.RemoveStanza(r.Context(), requesterID,
		chi.URLParam(r, "id"), chi.URLParam(r, "stanzaId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poem)
}

// HandleReorderStanzas serves PUT /api/poems/{id}/stanzas/order with
// {"stanzaIds": [...]}, every stanza id exactly once.
func (h *PoemHandler) HandleReorderStanzas(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := auth.UserIDFromContext(r.Context())

	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	poem, err := h.poems.ReorderStanzas(r.Context(), requesterID, chi.URLParam(r, "id"), req.StanzaIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poem)
}
