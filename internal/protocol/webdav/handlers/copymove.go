package handlers

import (
	"net/http"
	"path"

	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
	"github.com/mschuler/nwebdav/pkg/ops"
	"github.com/mschuler/nwebdav/pkg/store"
)

// handleCopyMove serves COPY and MOVE.
//
// Validation order matters for interoperability: the Destination header
// is checked before the source is touched, self-targeting fails with
// 403, and a missing destination parent with 409. Partial subtree
// failures come back as a 207 body; a clean run answers with the
// engine's top-level status.
func (h *Handler) handleCopyMove(w http.ResponseWriter, r *http.Request) {
	srcMount, srcRel, ok := h.resolveMount(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	who := principal(r)
	isMove := r.Method == "MOVE"

	dstMount, dstRel, served, err := h.parseDestination(r)
	if err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}
	if !served {
		// The destination lives outside every mount; this server
		// cannot act as a gateway to it.
		writeStatus(w, http.StatusBadGateway)
		return
	}
	if !requireWritable(w, dstMount) {
		return
	}
	if isMove && !requireWritable(w, srcMount) {
		return
	}
	if dstRel == "/" || (isMove && srcRel == "/") {
		writeStatus(w, http.StatusForbidden)
		return
	}

	if srcMount == dstMount && lock.CanonicalPath(srcRel) == lock.CanonicalPath(dstRel) {
		writeStatus(w, http.StatusForbidden)
		return
	}

	overwrite, err := parseOverwrite(r)
	if err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	depth, err := parseDepthHeader(r, dav.DepthInfinity)
	if err != nil || depth == dav.DepthOne || (isMove && depth != dav.DepthInfinity) {
		// COPY allows depth 0 and infinity; MOVE only infinity.
		writeStatus(w, http.StatusBadRequest)
		return
	}

	dstDir, dstName := path.Split(dstRel)
	dstParent, err := dstMount.Store.ResolveCollection(ctx, dstDir, who)
	if err != nil {
		if store.IsNotFound(err) {
			writeStatus(w, http.StatusConflict)
			return
		}
		writeError(w, err)
		return
	}

	opts := ops.Options{
		Overwrite: overwrite,
		Depth:     depth,
		Principal: who,
		Tokens:    submittedTokens(r),
		SrcPrefix: srcMount.Prefix,
		DstPrefix: dstMount.Prefix,
	}

	var status dav.Status
	var errs *ops.ErrorCollection

	if isMove {
		srcDir, srcName := path.Split(srcRel)
		srcParent, resolveErr := srcMount.Store.ResolveCollection(ctx, srcDir, who)
		if resolveErr != nil {
			writeError(w, resolveErr)
			return
		}
		status, errs = ops.Move(ctx, srcParent, srcName, dstParent, dstName, opts)
	} else {
		src, resolveErr := srcMount.Store.Resolve(ctx, srcRel, who)
		if resolveErr != nil {
			writeError(w, resolveErr)
			return
		}
		status, errs = ops.Copy(ctx, src, dstParent, dstName, opts)
	}

	if !errs.Empty() {
		writeFailures(w, errs)
		return
	}
	writeStatus(w, int(status))
}
