// Package handlers exposes the viewer over HTTP for inspection and for thin
// front ends.
//
// Routes:
//   - GET /healthz, /livez, /readyz, /version, /metrics
//   - GET /api/listing, GET /api/cursor, POST /api/open, POST /api/rescan
//   - POST /api/nav/{next|prev|first|last}, POST /api/nav/jump/{index}, POST /api/sort
//   - GET /api/image/{index}, GET /api/thumbnail/{index}
//   - GET /api/edit, POST /api/edit/{op}, POST /api/edit/crop, POST /api/edit/save-as
//   - GET /api/events (Server-Sent Events)
//
// Image routes answer 200 with a PNG when the bitmap is cached, 202 while it
// is decoding, and an error status with a JSON body carrying the error kind
// when the decode failed. With ?wait=true they block until the decode
// finishes or the client goes away.
package handlers
