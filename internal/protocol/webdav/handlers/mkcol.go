package handlers

import (
	"net/http"
	"path"

	"github.com/mschuler/nwebdav/pkg/store"
)

// handleMkcol creates a collection at the request path.
//
// Request bodies are not supported (415). An existing resource at the
// path fails with 405, a missing parent with 409, exactly as clients
// probing for collection support expect.
func (h *Handler) handleMkcol(w http.ResponseWriter, r *http.Request) {
	mount, rel, ok := h.resolveMount(w, r)
	if !ok {
		return
	}
	if !requireWritable(w, mount) {
		return
	}
	if rel == "/" {
		writeStatus(w, http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	who := principal(r)

	if hasBody(r) {
		writeStatus(w, http.StatusUnsupportedMediaType)
		return
	}

	if _, err := mount.Store.Resolve(ctx, rel, who); err == nil {
		writeStatus(w, http.StatusMethodNotAllowed)
		return
	}

	dir, name := path.Split(rel)
	parent, err := mount.Store.ResolveCollection(ctx, dir, who)
	if err != nil {
		if store.IsNotFound(err) {
			writeStatus(w, http.StatusConflict)
			return
		}
		writeError(w, err)
		return
	}

	if isLocked, lockErr := parent.Locks().IsLocked(ctx, rel, submittedTokens(r)...); lockErr != nil || isLocked {
		writeStatus(w, http.StatusLocked)
		return
	}

	result, err := parent.CreateCollection(ctx, name, false, who)
	if err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, int(result.Status))
}

// hasBody reports whether the request carries a non-empty body.
// Chunked requests have unknown length and are probed with a one-byte
// read.
func hasBody(r *http.Request) bool {
	if r.ContentLength > 0 {
		return true
	}
	if r.ContentLength == 0 {
		return false
	}
	var probe [1]byte
	n, _ := r.Body.Read(probe[:])
	return n > 0
}
