package handlers

import (
	"net/http"

	davxml "github.com/mschuler/nwebdav/internal/protocol/webdav/xml"
	"github.com/mschuler/nwebdav/pkg/dav"
)

// handleProppatch applies property set and remove instructions.
//
// Instructions are applied independently in document order; a failing
// one does not roll back the ones before it. The response reports the
// outcome per property, so clients see exactly which changes took.
func (h *Handler) handleProppatch(w http.ResponseWriter, r *http.Request) {
	mount, rel, ok := h.resolveMount(w, r)
	if !ok {
		return
	}
	if !requireWritable(w, mount) {
		return
	}
	ctx := r.Context()
	who := principal(r)

	actions, err := davxml.ParsePropertyUpdate(r.Body)
	if err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	res, err := mount.Store.Resolve(ctx, rel, who)
	if err != nil {
		writeError(w, err)
		return
	}

	if isLocked, lockErr := res.Locks().IsLocked(ctx, res.Path(), submittedTokens(r)...); lockErr != nil || isLocked {
		writeStatus(w, http.StatusLocked)
		return
	}

	reg := res.Properties()
	resp := davxml.Response{Href: href(mount, res.Path())}

	for _, action := range actions {
		var status dav.Status
		if action.Remove {
			// Live properties cannot be removed: a known property
			// refuses with 403, an unknown one does not exist.
			if _, known := reg.Lookup(action.Name); known {
				status = dav.StatusForbidden
			} else {
				status = dav.StatusNotFound
			}
		} else {
			status = reg.Set(ctx, res, action.Name, action.Value)
		}

		resp.Propstats = append(resp.Propstats, davxml.Propstat{
			Status: status,
			Props:  []davxml.RenderedProp{{Name: action.Name}},
		})
	}

	_ = davxml.WriteMultistatus(w, []davxml.Response{resp})
}
