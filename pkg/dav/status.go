package dav

import (
	"fmt"
	"net/http"
)

// Status is an HTTP status code as used in WebDAV responses.
//
// WebDAV operations frequently need to carry a protocol status alongside a
// result (a created resource, a failed child of a recursive operation), so
// the code is modeled as its own type rather than a bare int. The set of
// constants below covers every status the engine produces; the type still
// accepts any valid HTTP code for forward compatibility.
type Status int

const (
	StatusOK                   Status = http.StatusOK                   // 200
	StatusCreated              Status = http.StatusCreated              // 201
	StatusNoContent            Status = http.StatusNoContent            // 204
	StatusMultiStatus          Status = http.StatusMultiStatus          // 207
	StatusBadRequest           Status = http.StatusBadRequest           // 400
	StatusForbidden            Status = http.StatusForbidden            // 403
	StatusNotFound             Status = http.StatusNotFound             // 404
	StatusMethodNotAllowed     Status = http.StatusMethodNotAllowed     // 405
	StatusConflict             Status = http.StatusConflict             // 409
	StatusPreconditionFailed   Status = http.StatusPreconditionFailed   // 412
	StatusUnsupportedMediaType Status = http.StatusUnsupportedMediaType // 415
	StatusLocked               Status = http.StatusLocked               // 423
	StatusFailedDependency     Status = http.StatusFailedDependency     // 424
	StatusInternalServerError  Status = http.StatusInternalServerError  // 500
	StatusNotImplemented       Status = http.StatusNotImplemented       // 501
	StatusInsufficientStorage  Status = http.StatusInsufficientStorage  // 507
)

// Success reports whether the status indicates a successful outcome (2xx).
func (s Status) Success() bool {
	return s >= 200 && s < 300
}

// String renders the status as "201 Created", the form used inside
// multistatus bodies and log lines.
func (s Status) String() string {
	return fmt.Sprintf("%d %s", int(s), StatusText(s))
}

// StatusText returns the canonical reason phrase for a status code.
func StatusText(s Status) string {
	return http.StatusText(int(s))
}

// StatusLine renders the full status line used in multistatus response
// elements, e.g. "HTTP/1.1 404 Not Found".
func StatusLine(s Status) string {
	return "HTTP/1.1 " + s.String()
}
