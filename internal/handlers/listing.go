package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"image-viewer/internal/media"
	"image-viewer/internal/navigation"
)

// EntryResponse is one listing entry with its error overlay.
type EntryResponse struct {
	Index     int             `json:"index"`
	Name      string          `json:"name"`
	Path      string          `json:"path"`
	Size      int64           `json:"size"`
	ModTime   time.Time       `json:"modTime"`
	Format    media.Format    `json:"format"`
	Error     string          `json:"error,omitempty"`
	ErrorKind media.ErrorKind `json:"errorKind,omitempty"`
}

// ListingResponse is the body of GET /api/listing and POST /api/open.
type ListingResponse struct {
	Dir       string            `json:"dir"`
	SortField media.SortField   `json:"sortField"`
	SortOrder media.SortOrder   `json:"sortOrder"`
	Cursor    navigation.Cursor `json:"cursor"`
	Entries   []EntryResponse   `json:"entries"`
}

// GetListing returns the listing, cursor and per-entry errors.
func (h *Handlers) GetListing(w http.ResponseWriter, _ *http.Request) {
	h.writeListing(w)
}

func (h *Handlers) writeListing(w http.ResponseWriter) {
	snap, err := h.viewer.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}

	l := snap.Listing
	resp := ListingResponse{
		Dir:       l.Dir,
		SortField: l.SortField,
		SortOrder: l.SortOrder,
		Cursor:    snap.Cursor,
		Entries:   make([]EntryResponse, len(l.Entries)),
	}
	for i, e := range l.Entries {
		er := EntryResponse{Index: i, Name: e.Name, Path: e.Path, Size: e.Size, ModTime: e.ModTime, Format: e.Format}
		if err := snap.Errors[e.Path]; err != nil {
			er.Error, er.ErrorKind = err.Error(), media.KindOf(err)
		}
		resp.Entries[i] = er
	}
	writeJSONStatus(w, http.StatusOK, resp)
}

// GetCursor returns the focused index and listing version.
func (h *Handlers) GetCursor(w http.ResponseWriter, _ *http.Request) {
	c, err := h.viewer.Cursor()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, c)
}

// OpenRequest is the body of POST /api/open.
type OpenRequest struct {
	Dir string `json:"dir"`
}

// OpenDirectory switches to another directory.
func (h *Handlers) OpenDirectory(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Dir == "" {
		writeJSONError(w, "dir is required", http.StatusBadRequest)
		return
	}
	if _, err := h.viewer.OpenDirectory(req.Dir); err != nil {
		writeError(w, err)
		return
	}
	h.writeListing(w)
}

// Rescan re-reads the open directory.
func (h *Handlers) Rescan(w http.ResponseWriter, _ *http.Request) {
	if err := h.viewer.Rescan(); err != nil {
		writeError(w, err)
		return
	}
	h.writeListing(w)
}

// Navigate runs next, prev, first or last.
func (h *Handlers) Navigate(w http.ResponseWriter, r *http.Request) {
	moves := map[string]func() (navigation.Cursor, error){
		"next":  h.viewer.Next,
		"prev":  h.viewer.Prev,
		"first": h.viewer.First,
		"last":  h.viewer.Last,
	}
	move, ok := moves[mux.Vars(r)["action"]]
	if !ok {
		writeJSONError(w, "unknown navigation action", http.StatusNotFound)
		return
	}
	c, err := move()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, c)
}

// JumpTo focuses the index in the path.
func (h *Handlers) JumpTo(w http.ResponseWriter, r *http.Request) {
	i, ok := indexVar(r)
	if !ok {
		writeJSONError(w, "invalid index", http.StatusBadRequest)
		return
	}
	c, err := h.viewer.JumpTo(i)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, c)
}

// SortRequest is the body of POST /api/sort.
type SortRequest struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// Resort reorders the listing, keeping the focused image.
func (h *Handlers) Resort(w http.ResponseWriter, r *http.Request) {
	var req SortRequest
	if !decodeBody(w, r, &req) {
		return
	}
	field, err := media.ParseSortField(req.Field)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	order, err := media.ParseSortOrder(req.Order)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := h.viewer.Resort(field, order)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, c)
}
