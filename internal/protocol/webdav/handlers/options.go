package handlers

import (
	"net/http"
)

const allowedMethods = "OPTIONS, GET, HEAD, PUT, DELETE, MKCOL, PROPFIND, PROPPATCH, COPY, MOVE, LOCK, UNLOCK"

// handleOptions advertises protocol support.
//
// The DAV header claims class 1 and 2 compliance (class 2 adds locking).
// MS-Author-Via is required by some Windows clients before they will
// author against the server.
func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", allowedMethods)
	w.Header().Set("DAV", "1, 2")
	w.Header().Set("MS-Author-Via", "DAV")
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)
}
