package api

import (
	"net/http"

	"noteboard/internal/models"
	"noteboard/internal/notes"

	"github.com/rs/zerolog"
)

// Handlers wraps the notes service and provides HTTP handlers
type Handlers struct {
	notes  *notes.Service
	logger zerolog.Logger
}

func NewHandlers(svc *notes.Service, logger zerolog.Logger) *Handlers {
	return &Handlers{notes: svc, logger: logger}
}

// RegisterRoutes registers the notes API on mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api", h.Health)
	mux.HandleFunc("GET /api/notes", h.ListNotes)
	mux.HandleFunc("POST /api/notes", h.CreateNote)
	mux.HandleFunc("POST /api/notes/reorder", h.ReorderNotes)
	mux.HandleFunc("GET /api/notes/{id}", h.GetNote)
	mux.HandleFunc("PUT /api/notes/{id}", h.UpdateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", h.DeleteNote)
	mux.HandleFunc("POST /api/notes/{id}/move", h.MoveNote)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("API is healthy"))
}

// ListNotes handles GET /api/notes. Notes come back ascending by order.
func (h *Handlers) ListNotes(w http.ResponseWriter, r *http.Request) {
	list, err := h.notes.ListOrdered(r.Context())
	if err != nil {
		h.serviceError(w, r, "Error fetching notes", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.notes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.serviceError(w, r, "Error fetching note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes. Without an order in the body the
// note is appended after the last one.
func (h *Handlers) CreateNote(w http.ResponseWriter, r *http.Request) {
	var params notes.CreateParams
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	note, err := h.notes.Create(r.Context(), params)
	if err != nil {
		h.serviceError(w, r, "Error creating note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id} with any subset of
// {content, color, order}.
func (h *Handlers) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var params notes.UpdateParams
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	note, err := h.notes.Update(r.Context(), r.PathValue("id"), params)
	if err != nil {
		h.serviceError(w, r, "Error updating note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *Handlers) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.serviceError(w, r, "Error deleting note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ReorderResponse struct {
	Updated int `json:"updated"`
}

// ReorderNotes handles POST /api/notes/reorder with a body of
// [{id, order}, ...]. All assignments are applied or none.
func (h *Handlers) ReorderNotes(w http.ResponseWriter, r *http.Request) {
	var pairs []models.OrderAssignment
	if err := decodeJSON(w, r, &pairs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.notes.ReorderBulk(r.Context(), pairs)
	if err != nil {
		h.serviceError(w, r, "Error reordering notes", err)
		return
	}
	writeJSON(w, http.StatusOK, ReorderResponse{Updated: updated})
}

type MoveRequest struct {
	Index *int `json:"index"`
}

// MoveNote handles POST /api/notes/{id}/move, the drop half of a drag and
// drop. It responds with the full reordered list.
func (h *Handlers) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Index == nil {
		writeError(w, http.StatusBadRequest, "index is required", nil)
		return
	}

	list, err := h.notes.Move(r.Context(), r.PathValue("id"), *req.Index)
	if err != nil {
		h.serviceError(w, r, "Error moving note", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
