package handlers

import (
	"github.com/gorilla/mux"

	"image-viewer/internal/middleware"
)

// Router registers every route. When metricsEnabled is set, /metrics is
// served and requests are counted per route template.
func (h *Handlers) Router(metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	if metricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	// Health check and version routes
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Listing and navigation
	api.HandleFunc("/listing", h.GetListing).Methods("GET")
	api.HandleFunc("/cursor", h.GetCursor).Methods("GET")
	api.HandleFunc("/open", h.OpenDirectory).Methods("POST")
	api.HandleFunc("/rescan", h.Rescan).Methods("POST")
	api.HandleFunc("/nav/jump/{index:-?[0-9]+}", h.JumpTo).Methods("POST")
	api.HandleFunc("/nav/{action}", h.Navigate).Methods("POST")
	api.HandleFunc("/sort", h.Resort).Methods("POST")

	// Bitmaps
	api.HandleFunc("/image/{index:-?[0-9]+}", h.GetImage).Methods("GET")
	api.HandleFunc("/thumbnail/{index:-?[0-9]+}", h.GetThumbnail).Methods("GET")

	// Editing; fixed paths before {op}
	api.HandleFunc("/edit", h.GetEditStatus).Methods("GET")
	api.HandleFunc("/edit/crop", h.Crop).Methods("POST")
	api.HandleFunc("/edit/save-as", h.SaveAs).Methods("POST")
	api.HandleFunc("/edit/{op}", h.Edit).Methods("POST")

	api.HandleFunc("/events", h.Events).Methods("GET")

	return r
}
