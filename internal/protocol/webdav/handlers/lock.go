package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	davxml "github.com/mschuler/nwebdav/internal/protocol/webdav/xml"
	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
	"github.com/mschuler/nwebdav/pkg/registry"
	"github.com/mschuler/nwebdav/pkg/store"
)

// handleLock grants or refreshes a lock.
//
// A body-less request refreshes the lock identified by the If header's
// token. A request on an unmapped URL first creates an empty item there
// (the lock-null pattern modern clients rely on) and answers 201 instead
// of 200.
func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	mount, rel, ok := h.resolveMount(w, r)
	if !ok {
		return
	}
	if !requireWritable(w, mount) {
		return
	}
	ctx := r.Context()
	who := principal(r)
	timeout := h.parseTimeout(r)

	info, refresh, err := davxml.ParseLockInfo(r.Body)
	if err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	if refresh {
		h.refreshLock(w, r, mount, rel, timeout)
		return
	}

	depth, err := parseDepthHeader(r, dav.DepthInfinity)
	if err != nil || depth == dav.DepthOne {
		// Locks are granted at depth 0 or infinity, nothing between.
		writeStatus(w, http.StatusBadRequest)
		return
	}

	res, err := mount.Store.Resolve(ctx, rel, who)
	created := false
	if err != nil {
		if !store.IsNotFound(err) {
			writeError(w, err)
			return
		}
		// Lock on an unmapped URL: materialize an empty item so the
		// lock has something to cover.
		dir, name := path.Split(rel)
		parent, resolveErr := mount.Store.ResolveCollection(ctx, dir, who)
		if resolveErr != nil {
			writeStatus(w, http.StatusConflict)
			return
		}
		result, createErr := parent.CreateItem(ctx, name, false, who)
		if createErr != nil {
			writeError(w, createErr)
			return
		}
		res = result.Item
		created = true
	}

	granted, err := res.Locks().Lock(ctx, res.Path(), info.Owner, info.Scope, depth, timeout)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			h.metrics.RecordLockDenied()
			writeStatus(w, http.StatusLocked)
			return
		}
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	h.metrics.RecordLockGranted(granted.Scope.String())

	status := dav.StatusOK
	if created {
		status = dav.StatusCreated
	}
	w.Header().Set("Lock-Token", fmt.Sprintf("<%s>", granted.Token))
	_ = davxml.WriteLockDiscovery(w, status, granted)
}

// refreshLock extends an existing lock identified by a submitted token.
func (h *Handler) refreshLock(w http.ResponseWriter, r *http.Request, mount *registry.Mount, rel string, timeout time.Duration) {
	ctx := r.Context()

	tokens := submittedTokens(r)
	if len(tokens) == 0 {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	res, err := mount.Store.Resolve(ctx, rel, principal(r))
	if err != nil {
		writeError(w, err)
		return
	}

	refreshed, err := res.Locks().Refresh(ctx, tokens[0], timeout)
	if err != nil {
		if errors.Is(err, lock.ErrNoSuchLock) {
			// The token does not name an active lock here; the
			// refresh precondition failed.
			writeStatus(w, http.StatusPreconditionFailed)
			return
		}
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	_ = davxml.WriteLockDiscovery(w, dav.StatusOK, refreshed)
}
