package handlers

import (
	"errors"
	"net/http"

	"github.com/mschuler/nwebdav/pkg/lock"
)

// handleUnlock releases the lock named by the Lock-Token header.
//
// A token that does not identify an active lock answers 409: the request
// conflicts with the actual lock state of the resource.
func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	mount, rel, ok := h.resolveMount(w, r)
	if !ok {
		return
	}
	if !requireWritable(w, mount) {
		return
	}
	ctx := r.Context()

	token, ok := parseLockToken(r)
	if !ok {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	res, err := mount.Store.Resolve(ctx, rel, principal(r))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := res.Locks().Unlock(ctx, token); err != nil {
		if errors.Is(err, lock.ErrNoSuchLock) {
			writeStatus(w, http.StatusConflict)
			return
		}
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	writeStatus(w, http.StatusNoContent)
}
