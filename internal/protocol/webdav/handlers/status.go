package handlers

import (
	"fmt"
	"net/http"
	"path"

	davxml "github.com/mschuler/nwebdav/internal/protocol/webdav/xml"
	"github.com/mschuler/nwebdav/pkg/ops"
	"github.com/mschuler/nwebdav/pkg/registry"
	"github.com/mschuler/nwebdav/pkg/store"
)

// writeStatus writes a bare status response with the reason phrase as
// body.
func writeStatus(w http.ResponseWriter, status int) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintln(w, http.StatusText(status))
}

// writeError maps a store error to its protocol status and writes it.
func writeError(w http.ResponseWriter, err error) {
	writeStatus(w, int(store.StatusOf(err)))
}

// href builds the client-visible URL path for a mount-relative tree path.
func href(mount *registry.Mount, treePath string) string {
	return path.Join(mount.Prefix, treePath)
}

// writeFailures renders the aggregated failures of a recursive operation
// as a multistatus body. The engine records failure paths with their
// mount prefixes already restored, so they are used as hrefs verbatim.
func writeFailures(w http.ResponseWriter, errs *ops.ErrorCollection) {
	responses := make([]davxml.Response, 0, len(errs.Items()))
	for _, f := range errs.Items() {
		responses = append(responses, davxml.Response{
			Href:   f.Path,
			Status: f.Status,
		})
	}
	_ = davxml.WriteMultistatus(w, responses)
}
