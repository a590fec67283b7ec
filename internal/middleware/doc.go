// Package middleware provides HTTP middleware for the viewer's inspection
// front end.
//
// It includes:
//   - Request logging in W3C Extended Log Format through package logging
//   - Request metrics labeled by gorilla/mux route template
//   - gzip of JSON and text chosen by response Content-Type; event streams,
//     PNG and JPEG bodies pass through untouched
package middleware
