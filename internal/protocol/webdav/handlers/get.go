package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/mschuler/nwebdav/internal/bufpool"
	"github.com/mschuler/nwebdav/internal/logger"
	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/props"
	"github.com/mschuler/nwebdav/pkg/store"
)

// handleGet serves GET and HEAD.
//
// Collections have no content representation and answer 405; clients
// enumerate them with PROPFIND instead.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	mount, rel, ok := h.resolveMount(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	res, err := mount.Store.Resolve(ctx, rel, principal(r))
	if err != nil {
		writeError(w, err)
		return
	}

	item, isItem := res.(store.Item)
	if !isItem {
		w.Header().Set("Allow", "OPTIONS, PROPFIND, DELETE, COPY, MOVE, LOCK, UNLOCK")
		writeStatus(w, http.StatusMethodNotAllowed)
		return
	}

	setContentHeaders(ctx, w, item)

	if r.Method == "HEAD" {
		w.WriteHeader(http.StatusOK)
		return
	}

	content, err := item.OpenReadable(ctx, principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	defer content.Close()

	// Seekable content gets range and conditional handling for free.
	if rs, seekable := content.(io.ReadSeeker); seekable {
		http.ServeContent(w, r, item.DisplayName(), modTime(ctx, item), rs)
		return
	}

	buf := bufpool.Get()
	n, err := io.CopyBuffer(w, content, buf)
	bufpool.Put(buf)
	h.metrics.RecordBytesTransferred("read", n)
	if err != nil {
		// Headers are gone; all that is left is logging the truncation.
		logger.Warn("streaming %s aborted after %d bytes: %v", r.URL.Path, n, err)
	}
}

// setContentHeaders fills Content-Type and Last-Modified from the item's
// cheap properties. ServeContent overrides them where it knows better.
func setContentHeaders(ctx context.Context, w http.ResponseWriter, item store.Item) {
	reg := item.Properties()

	if v, status := reg.Get(ctx, item, props.Name{Space: dav.Namespace, Local: "getcontenttype"}); status == dav.StatusOK {
		if s, ok := v.(string); ok {
			w.Header().Set("Content-Type", s)
		}
	}
	if v, status := reg.Get(ctx, item, props.Name{Space: dav.Namespace, Local: "getlastmodified"}); status == dav.StatusOK {
		if s, ok := v.(string); ok {
			w.Header().Set("Last-Modified", s)
		}
	}
}

// modTime recovers the modification instant for ServeContent's
// conditional-request handling; the zero time disables it.
func modTime(ctx context.Context, item store.Item) (t time.Time) {
	v, status := item.Properties().Get(ctx, item, props.Name{Space: dav.Namespace, Local: "getlastmodified"})
	if status != dav.StatusOK {
		return
	}
	s, ok := v.(string)
	if !ok {
		return
	}
	parsed, err := http.ParseTime(s)
	if err != nil {
		return
	}
	return parsed
}
