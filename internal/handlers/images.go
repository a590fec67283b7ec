package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/anthonynsimon/bild/imgio"

	"image-viewer/internal/cache"
	"image-viewer/internal/logging"
	"image-viewer/internal/viewer"
)

const thumbnailJPEGQuality = 85

// PendingResponse is the body of a 202 reply.
type PendingResponse struct {
	Status string `json:"status"`
	Index  int    `json:"index"`
	Path   string `json:"path"`
}

// GetImage serves the full-resolution bitmap at {index}.
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	h.serveImage(w, r, h.viewer.GetDisplayImage, imgio.PNGEncoder(), "image/png")
}

// GetThumbnail serves the thumbnail at {index} as JPEG.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	h.serveImage(w, r, h.viewer.GetThumbnail, imgio.JPEGEncoder(thumbnailJPEGQuality), "image/jpeg")
}

func (h *Handlers) serveImage(w http.ResponseWriter, r *http.Request, get func(int) (viewer.Result, error), enc imgio.Encoder, contentType string) {
	index, ok := indexVar(r)
	if !ok {
		writeJSONError(w, "invalid index", http.StatusBadRequest)
		return
	}

	res, err := get(index)
	if err != nil {
		writeError(w, err)
		return
	}

	if res.Status == cache.StatusPending && r.URL.Query().Get("wait") == "true" {
		_, werr := res.Handle.Wait(r.Context())
		if r.Context().Err() != nil {
			return
		}
		if werr != nil {
			logging.Debug("Waited decode of %s ended: %v", res.Entry.Path, werr)
		}
		if res, err = get(index); err != nil {
			writeError(w, err)
			return
		}
	}

	switch res.Status {
	case cache.StatusPending:
		w.Header().Set("Retry-After", "1")
		writeJSONStatus(w, http.StatusAccepted, PendingResponse{Status: "pending", Index: index, Path: res.Entry.Path})
	case cache.StatusFailed:
		writeError(w, res.Err)
	default:
		var buf bytes.Buffer
		if err := enc(&buf, res.Bitmap.Image()); err != nil {
			writeJSONError(w, "encoding failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Image-Width", strconv.Itoa(res.Bitmap.Width()))
		w.Header().Set("X-Image-Height", strconv.Itoa(res.Bitmap.Height()))
		if _, err := w.Write(buf.Bytes()); err != nil {
			logging.Debug("Client went away while sending %s: %v", res.Entry.Path, err)
		}
	}
}
