package handlers

import (
	"context"
	"net/http"

	"github.com/mschuler/nwebdav/internal/logger"
	davxml "github.com/mschuler/nwebdav/internal/protocol/webdav/xml"
	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/props"
	"github.com/mschuler/nwebdav/pkg/registry"
	"github.com/mschuler/nwebdav/pkg/store"
)

// handlePropfind enumerates resources and their properties.
//
// The Depth header bounds the walk (default infinity). Expensive
// properties are computed only when the request names them explicitly;
// allprop enumeration skips them.
func (h *Handler) handlePropfind(w http.ResponseWriter, r *http.Request) {
	mount, rel, ok := h.resolveMount(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	who := principal(r)

	depth, err := parseDepthHeader(r, dav.DepthInfinity)
	if err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	pf, err := davxml.ParsePropfind(r.Body)
	if err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	res, err := mount.Store.Resolve(ctx, rel, who)
	if err != nil {
		writeError(w, err)
		return
	}

	var responses []davxml.Response
	h.walkPropfind(ctx, mount, res, depth, pf, who, &responses)
	_ = davxml.WriteMultistatus(w, responses)
}

// walkPropfind appends the response for res and recurses into children
// within the depth budget. A child listing failure is recorded as a
// response for the collection rather than aborting the walk.
func (h *Handler) walkPropfind(ctx context.Context, mount *registry.Mount, res store.Resource, depth dav.Depth, pf *davxml.Propfind, who store.Principal, responses *[]davxml.Response) {
	*responses = append(*responses, h.propfindResponse(ctx, mount, res, pf))

	col, isCollection := res.(store.Collection)
	if !isCollection || depth == dav.DepthZero {
		return
	}

	children, err := col.ListChildren(ctx, who)
	if err != nil {
		logger.Warn("listing %s during PROPFIND failed: %v", res.Path(), err)
		return
	}
	for _, child := range children {
		h.walkPropfind(ctx, mount, child, depth.Dec(), pf, who, responses)
	}
}

// propfindResponse builds the response element for one resource.
func (h *Handler) propfindResponse(ctx context.Context, mount *registry.Mount, res store.Resource, pf *davxml.Propfind) davxml.Response {
	resp := davxml.Response{Href: href(mount, res.Path())}
	if _, isCollection := res.(store.Collection); isCollection && resp.Href != "/" {
		resp.Href += "/"
	}

	reg := res.Properties()

	switch pf.Kind {
	case davxml.PropfindPropName:
		ps := davxml.Propstat{Status: dav.StatusOK}
		for _, d := range reg.Describe() {
			ps.Props = append(ps.Props, davxml.RenderedProp{Name: d.Name})
		}
		resp.Propstats = []davxml.Propstat{ps}

	case davxml.PropfindAllProp:
		groups := map[dav.Status]*davxml.Propstat{}
		for _, d := range reg.Describe() {
			if d.Expensive {
				continue
			}
			h.addProp(ctx, res, reg, d.Name, groups)
		}
		resp.Propstats = flatten(groups)

	case davxml.PropfindProp:
		groups := map[dav.Status]*davxml.Propstat{}
		for _, name := range pf.Names {
			h.addProp(ctx, res, reg, name, groups)
		}
		resp.Propstats = flatten(groups)
	}

	return resp
}

// addProp evaluates one property and files it into the status group it
// belongs to. Values are only rendered in the 200 group; failing
// properties appear by name.
func (h *Handler) addProp(ctx context.Context, res store.Resource, reg *props.Registry, name props.Name, groups map[dav.Status]*davxml.Propstat) {
	value, status := reg.Get(ctx, res, name)

	group, ok := groups[status]
	if !ok {
		group = &davxml.Propstat{Status: status}
		groups[status] = group
	}

	p := davxml.RenderedProp{Name: name}
	if status == dav.StatusOK {
		p.Value = value
	}
	group.Props = append(group.Props, p)
}

// flatten orders the status groups deterministically: 200 first, then
// ascending status.
func flatten(groups map[dav.Status]*davxml.Propstat) []davxml.Propstat {
	var out []davxml.Propstat
	if g, ok := groups[dav.StatusOK]; ok {
		out = append(out, *g)
	}
	for status := dav.Status(201); status < 600; status++ {
		if g, ok := groups[status]; ok {
			out = append(out, *g)
		}
	}
	return out
}
