package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/registry"
)

// parseOverwrite parses the Overwrite header: "T", "F" or absent
// (equivalent to "T").
func parseOverwrite(r *http.Request) (bool, error) {
	switch r.Header.Get("Overwrite") {
	case "", "T", "t":
		return true, nil
	case "F", "f":
		return false, nil
	default:
		return false, fmt.Errorf("invalid Overwrite header %q", r.Header.Get("Overwrite"))
	}
}

// parseTimeout parses the Timeout header of a LOCK request.
//
// Accepts a comma-separated preference list of "Second-N" and "Infinite"
// values and takes the first one it understands. The result is clamped to
// the configured maximum; "Infinite" and absent headers yield the maximum
// and default respectively.
func (h *Handler) parseTimeout(r *http.Request) time.Duration {
	header := r.Header.Get("Timeout")
	if header == "" {
		return h.config.DefaultLockTimeout
	}

	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if strings.EqualFold(candidate, "Infinite") {
			return h.config.MaxLockTimeout
		}
		if rest, ok := strings.CutPrefix(candidate, "Second-"); ok {
			seconds, err := strconv.ParseInt(rest, 10, 64)
			if err != nil || seconds <= 0 {
				continue
			}
			timeout := time.Duration(seconds) * time.Second
			if timeout > h.config.MaxLockTimeout {
				return h.config.MaxLockTimeout
			}
			return timeout
		}
	}
	return h.config.DefaultLockTimeout
}

// submittedTokens extracts the lock tokens the client submitted with the
// request, from both the If header's coded URLs and the Lock-Token
// header.
//
// The If header grammar also wraps resource tags in angle brackets;
// those are URLs with a path component and are filtered out, since lock
// tokens are opaque URNs.
func submittedTokens(r *http.Request) []string {
	var tokens []string

	collect := func(header string) {
		for {
			start := strings.IndexByte(header, '<')
			if start < 0 {
				return
			}
			end := strings.IndexByte(header[start:], '>')
			if end < 0 {
				return
			}
			candidate := header[start+1 : start+end]
			header = header[start+end+1:]

			if candidate == "" || strings.HasPrefix(candidate, "/") ||
				strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
				continue
			}
			tokens = append(tokens, candidate)
		}
	}

	collect(r.Header.Get("If"))
	collect(r.Header.Get("Lock-Token"))

	return tokens
}

// parseLockToken extracts the single coded-URL token of a Lock-Token
// header.
func parseLockToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Lock-Token"))
	if len(header) < 3 || header[0] != '<' || header[len(header)-1] != '>' {
		return "", false
	}
	return header[1 : len(header)-1], true
}

// parseDestination resolves the Destination header through the mount
// registry.
//
// Returns the destination mount and mount-relative path. Absent or
// unparseable headers fail with an error; a destination outside every
// mount is reported via the ok flag so the caller can answer 502.
func (h *Handler) parseDestination(r *http.Request) (*registry.Mount, string, bool, error) {
	header := r.Header.Get("Destination")
	if header == "" {
		return nil, "", false, fmt.Errorf("missing Destination header")
	}

	u, err := url.Parse(header)
	if err != nil || u.Path == "" {
		return nil, "", false, fmt.Errorf("invalid Destination header %q", header)
	}

	mount, rel, err := h.registry.Resolve(u.Path)
	if err != nil {
		return nil, "", false, nil
	}
	return mount, rel, true, nil
}

// parseDepthHeader parses the Depth header with a per-method default.
func parseDepthHeader(r *http.Request, def dav.Depth) (dav.Depth, error) {
	return dav.ParseDepth(r.Header.Get("Depth"), def)
}
