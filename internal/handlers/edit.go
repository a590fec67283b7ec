package handlers

import (
	"image"
	"net/http"

	"github.com/gorilla/mux"

	"image-viewer/internal/viewer"
)

// GetEditStatus reports the edit session.
func (h *Handlers) GetEditStatus(w http.ResponseWriter, _ *http.Request) {
	st, err := h.viewer.EditStatus()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, st)
}

// Edit runs a parameterless edit command on the focused image.
func (h *Handlers) Edit(w http.ResponseWriter, r *http.Request) {
	ops := map[string]func() (viewer.EditStatus, error){
		"begin":     h.viewer.BeginEdit,
		"rotate90":  h.viewer.Rotate90,
		"rotate180": h.viewer.Rotate180,
		"rotate270": h.viewer.Rotate270,
		"flip_h":    h.viewer.FlipH,
		"flip_v":    h.viewer.FlipV,
		"undo":      h.viewer.Undo,
		"save":      h.viewer.Save,
		"discard":   h.viewer.Discard,
	}
	op, ok := ops[mux.Vars(r)["op"]]
	if !ok {
		writeJSONError(w, "unknown edit operation", http.StatusNotFound)
		return
	}
	h.writeEdit(w, op)
}

// CropRequest is the body of POST /api/edit/crop, in working-bitmap pixels.
type CropRequest struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Crop keeps a rectangle of the focused image.
func (h *Handlers) Crop(w http.ResponseWriter, r *http.Request) {
	var req CropRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rect := image.Rect(req.X, req.Y, req.X+req.Width, req.Y+req.Height)
	h.writeEdit(w, func() (viewer.EditStatus, error) { return h.viewer.Crop(rect) })
}

// SaveAsRequest is the body of POST /api/edit/save-as.
type SaveAsRequest struct {
	Path string `json:"path"`
}

// SaveAs writes the edited image to another file.
func (h *Handlers) SaveAs(w http.ResponseWriter, r *http.Request) {
	var req SaveAsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}
	h.writeEdit(w, func() (viewer.EditStatus, error) { return h.viewer.SaveAs(req.Path) })
}

func (h *Handlers) writeEdit(w http.ResponseWriter, op func() (viewer.EditStatus, error)) {
	st, err := op()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, st)
}
