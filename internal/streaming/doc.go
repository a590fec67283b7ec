/*
Package streaming writes Server-Sent Events with timeout protection.

# Overview

An event stream stays open for as long as the client is watching. A stalled
client would otherwise pin the handler goroutine and the viewer subscription
behind it, so every write is bounded by WriteTimeout. When a write times out
or the request context ends, the stream's Done channel closes and the caller
stops.

# Usage

	stream, err := streaming.NewEventStream(r.Context(), w, streaming.DefaultConfig())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	for {
		select {
		case ev := <-events:
			if err := stream.Send(string(ev.Kind), ev); err != nil {
				return
			}
		case <-stream.Done():
			return
		}
	}

Data is JSON encoded and framed as

	event: cursor
	data: {"kind":"cursor","version":3,"index":4}

followed by a blank line. Comment writes a line starting with a colon, which
clients ignore and proxies treat as traffic.

# Errors

  - ErrWriteTimeout: a write plus flush took longer than WriteTimeout
  - ErrClientGone: the request context was canceled or the write failed
  - ErrStreamClosed: Close was called or MaxDuration passed
  - ErrFlushUnsupported: the ResponseWriter cannot flush
*/
package streaming
