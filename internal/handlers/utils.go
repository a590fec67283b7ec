package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"image-viewer/internal/logging"
	"image-viewer/internal/media"
	"image-viewer/internal/navigation"
	"image-viewer/internal/viewer"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string          `json:"error"`
	Kind  media.ErrorKind `json:"kind,omitempty"`
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, ErrorResponse{Error: message})
}

// writeError maps err to a status code and writes it with its kind.
func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Error("request failed: %v", err)
	}
	writeJSONStatus(w, status, ErrorResponse{Error: err.Error(), Kind: media.KindOf(err)})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, viewer.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, viewer.ErrNoDirectory),
		errors.Is(err, viewer.ErrNoSession),
		errors.Is(err, viewer.ErrImageNotReady):
		return http.StatusConflict
	case errors.Is(err, navigation.ErrIndexOutOfRange):
		return http.StatusNotFound
	}

	switch media.KindOf(err) {
	case media.KindDirectoryNotFound:
		return http.StatusNotFound
	case media.KindPermissionDenied:
		return http.StatusForbidden
	case media.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case media.KindCorruptData:
		return http.StatusUnprocessableEntity
	case media.KindInvalidCropRegion:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// indexVar parses the {index} route variable.
func indexVar(r *http.Request) (int, bool) {
	i, err := strconv.Atoi(mux.Vars(r)["index"])
	return i, err == nil
}

// decodeBody decodes a JSON request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
