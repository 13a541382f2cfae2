package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/archivist/internal/archiveservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *archiveservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *archiveservice.Service) *Handler {
	return &Handler{svc: svc}
}

// sourcePath extracts the absolute source path from the URL (everything
// after /api/ledger). Encoded slashes are accepted.
func sourcePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return "/" + strings.TrimPrefix(raw, "/")
}

// LookupEntry handles GET /api/ledger/*.
//
//	@Summary		Look up the ledger entry for a source path
//	@Tags			ledger
//	@Produce		json
//	@Param			path	path		string	true	"Absolute source path"
//	@Success		200		{object}	LedgerEntry
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ledger/{path} [get]
func (h *Handler) LookupEntry(w http.ResponseWriter, r *http.Request) {
	path := sourcePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	entry, err := h.svc.Lookup(r.Context(), path)
	if err != nil {
		writeError(w, "ledger lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// RecentEntries handles GET /api/ledger.
//
//	@Summary		List the most recently processed files
//	@Tags			ledger
//	@Produce		json
//	@Param			limit	query		int	false	"Max entries"
//	@Success		200		{object}	LedgerListResponse
//	@Security		BearerAuth
//	@Router			/ledger [get]
func (h *Handler) RecentEntries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, "ledger list", err)
		return
	}
	if entries == nil {
		entries = []LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, LedgerListResponse{Entries: entries})
}

// Stats handles GET /api/stats.
//
//	@Summary		Archive status and run counters
//	@Tags			organizer
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Organize handles POST /api/organize.
//
//	@Summary		Organize the inbox once
//	@Tags			organizer
//	@Produce		json
//	@Success		200	{object}	RunStats
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/organize [post]
func (h *Handler) Organize(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Organize(r.Context())
	if err != nil {
		writeError(w, "organize", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Preview handles GET /api/preview.
//
//	@Summary		Resolve a file's archive destination without moving it
//	@Tags			organizer
//	@Produce		json
//	@Param			path	query		string	true	"Absolute source path"
//	@Success		200		{object}	OutcomeResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preview [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Preview(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse(o))
}

// CompareDrives handles GET /api/drives/compare.
//
//	@Summary		Compare two drives by their indexes
//	@Tags			drives
//	@Produce		json
//	@Param			a		query		string	true	"Drive A path"
//	@Param			b		query		string	true	"Drive B path"
//	@Param			rescan	query		bool	false	"Rescan both drives first"
//	@Success		200		{object}	CompareResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/drives/compare [get]
func (h *Handler) CompareDrives(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rescan, _ := strconv.ParseBool(q.Get("rescan"))
	rep, err := h.svc.Compare(r.Context(), q.Get("a"), q.Get("b"), rescan)
	if err != nil {
		writeError(w, "compare drives", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
