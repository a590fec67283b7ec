package handlers

import (
	"time"

	"image-viewer/internal/memory"
	"image-viewer/internal/streaming"
	"image-viewer/internal/viewer"
)

// Handlers serves the viewer over HTTP. Every handler is a thin translation
// from a request to one viewer command.
type Handlers struct {
	viewer  *viewer.Viewer
	monitor *memory.Monitor
	stream  streaming.Config
	started time.Time
}

// New creates the handlers. monitor may be nil when no memory limit is set.
func New(v *viewer.Viewer, monitor *memory.Monitor) *Handlers {
	return &Handlers{
		viewer:  v,
		monitor: monitor,
		stream:  streaming.DefaultConfig(),
		started: time.Now(),
	}
}
