package handlers

import (
	"io"
	"net/http"
	"path"

	"github.com/mschuler/nwebdav/internal/bufpool"
	"github.com/mschuler/nwebdav/pkg/store"
)

// handlePut stores the request body as the item at the request path.
//
// A missing parent collection fails with 409; PUT never creates
// intermediate collections. A collection at the target path fails with
// 405 (its content cannot be replaced by a file body).
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
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

	if existing, resolveErr := mount.Store.Resolve(ctx, rel, who); resolveErr == nil {
		if _, isCollection := existing.(store.Collection); isCollection {
			writeStatus(w, http.StatusMethodNotAllowed)
			return
		}
	}

	if isLocked, lockErr := parent.Locks().IsLocked(ctx, rel, submittedTokens(r)...); lockErr != nil || isLocked {
		writeStatus(w, http.StatusLocked)
		return
	}

	result, err := parent.CreateItem(ctx, name, true, who)
	if err != nil {
		writeError(w, err)
		return
	}

	sink, err := result.Item.OpenWritable(ctx, who)
	if err != nil {
		writeError(w, err)
		return
	}

	buf := bufpool.Get()
	n, copyErr := io.CopyBuffer(sink, r.Body, buf)
	bufpool.Put(buf)
	closeErr := sink.Close()

	h.metrics.RecordBytesTransferred("write", n)

	if copyErr != nil || closeErr != nil {
		// The partially written item stays; the client sees the failure
		// and decides whether to retry or delete.
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	writeStatus(w, int(result.Status))
}
