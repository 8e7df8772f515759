package handlers

import (
	"net/http"
	"path"

	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/ops"
	"github.com/mschuler/nwebdav/pkg/store"
)

// handleDelete removes the resource at the request path, recursively for
// collections.
//
// Partial failures inside a collection yield a 207 body listing exactly
// the resources that could not be removed.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	mount, rel, ok := h.resolveMount(w, r)
	if !ok {
		return
	}
	if !requireWritable(w, mount) {
		return
	}
	if rel == "/" {
		// The mount root itself is configuration, not content.
		writeStatus(w, http.StatusForbidden)
		return
	}
	ctx := r.Context()
	who := principal(r)

	dir, name := path.Split(rel)
	parent, err := mount.Store.ResolveCollection(ctx, dir, who)
	if err != nil {
		if store.IsNotFound(err) {
			writeStatus(w, http.StatusNotFound)
			return
		}
		writeError(w, err)
		return
	}

	status, errs := ops.Delete(ctx, parent, name, ops.Options{
		Depth:     dav.DepthInfinity,
		Principal: who,
		Tokens:    submittedTokens(r),
		SrcPrefix: mount.Prefix,
	})

	if !errs.Empty() {
		writeFailures(w, errs)
		return
	}
	writeStatus(w, int(status))
}
