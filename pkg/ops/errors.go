package ops

import (
	"github.com/mschuler/nwebdav/pkg/dav"
)

// Failure is one aggregated per-resource failure.
type Failure struct {
	// Path is the tree-absolute path of the resource that failed.
	Path string

	// Status is the protocol status describing the failure.
	Status dav.Status
}

// ErrorCollection accumulates per-resource failures during a recursive
// operation, in the order they were encountered.
//
// Each path is recorded at most once: once a subtree root has failed the
// engine stops descending into it, so a later duplicate would only repeat
// the same information.
type ErrorCollection struct {
	failures []Failure
	seen     map[string]bool
}

// NewErrorCollection returns an empty collection.
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{seen: make(map[string]bool)}
}

// Add records a failure for path, ignoring duplicates.
func (c *ErrorCollection) Add(path string, status dav.Status) {
	if c.seen[path] {
		return
	}
	c.seen[path] = true
	c.failures = append(c.failures, Failure{Path: path, Status: status})
}

// Empty reports whether no failures were recorded.
func (c *ErrorCollection) Empty() bool {
	return len(c.failures) == 0
}

// Items returns the recorded failures in encounter order.
// The returned slice is a copy and safe to modify.
func (c *ErrorCollection) Items() []Failure {
	out := make([]Failure, len(c.failures))
	copy(out, c.failures)
	return out
}
