// Package props implements per-resource-type property registries.
//
// A Registry is an ordered, immutable table mapping a property identity
// (XML namespace + local name) to a getter, an optional setter, and an
// expensiveness flag. One registry is built per resource type at store
// construction time and shared by every instance of that type; resolution
// goes through the table rather than through runtime type inspection.
//
// The package deliberately knows nothing about stores: resources are seen
// through the minimal Resource interface below, so registries can be
// referenced by resources without creating an import cycle.
package props

import (
	"context"

	"github.com/mschuler/nwebdav/internal/logger"
	"github.com/mschuler/nwebdav/pkg/dav"
)

// Resource is the minimal view of a resource a property accessor needs.
// Getters may type-assert to richer interfaces of the owning store.
type Resource interface {
	// Path returns the resource's tree-absolute path, e.g. "/docs/a.txt".
	Path() string

	// DisplayName returns the last path segment as shown to clients.
	DisplayName() string
}

// Name identifies a property by XML namespace and local name.
type Name struct {
	Space string
	Local string
}

// String renders the identity in Clark notation, e.g. "{DAV:}displayname".
func (n Name) String() string {
	return "{" + n.Space + "}" + n.Local
}

// Getter computes a property value for a resource. Getters must never
// mutate resource state. The returned value is one of the types the XML
// layer can render: string, dav.ResourceType, dav.SupportedLock, or a
// slice of lock.Lock.
type Getter func(ctx context.Context, r Resource) (any, error)

// Setter applies a new value to a writable property.
type Setter func(ctx context.Context, r Resource, value string) error

// Descriptor describes one property of a resource type.
type Descriptor struct {
	// Name is the property identity (namespace + local name).
	Name Name

	// Get computes the current value. Required.
	Get Getter

	// Set applies a new value. Nil means the property is read-only:
	// attempts to set it fail with 403, distinct from the 404 returned
	// for properties the type does not have at all.
	Set Setter

	// Expensive marks properties whose getter does significant work
	// (e.g. hashing the full content). Expensive properties are excluded
	// from default enumeration and computed only on explicit request;
	// the registry exposes the flag, the caller decides.
	Expensive bool
}

// Registry is an ordered, immutable property table for one resource type.
//
// Construction happens once, at store setup; afterwards the registry is
// read-only and safe for unsynchronized concurrent use.
type Registry struct {
	order  []Name
	byName map[Name]*Descriptor
}

// NewRegistry builds a registry from descriptors, preserving their order.
// Duplicate names or descriptors without a getter indicate a programming
// error and panic.
func NewRegistry(descriptors ...Descriptor) *Registry {
	reg := &Registry{
		order:  make([]Name, 0, len(descriptors)),
		byName: make(map[Name]*Descriptor, len(descriptors)),
	}
	for i := range descriptors {
		d := descriptors[i]
		if d.Get == nil {
			panic("props: descriptor " + d.Name.String() + " has no getter")
		}
		if _, dup := reg.byName[d.Name]; dup {
			panic("props: duplicate descriptor " + d.Name.String())
		}
		reg.order = append(reg.order, d.Name)
		reg.byName[d.Name] = &d
	}
	return reg
}

// Describe returns the registry's descriptors in registration order.
// The returned slice is a copy and safe to modify.
func (reg *Registry) Describe() []Descriptor {
	out := make([]Descriptor, 0, len(reg.order))
	for _, name := range reg.order {
		out = append(out, *reg.byName[name])
	}
	return out
}

// Lookup returns the descriptor for a property identity, if present.
func (reg *Registry) Lookup(name Name) (Descriptor, bool) {
	d, ok := reg.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// Get computes the value of one property.
//
// Returns 200 with the value on success, 404 for an unknown identity, and
// 500 when the getter itself fails (the cause is logged, not returned, so
// that multistatus bodies stay uniform).
func (reg *Registry) Get(ctx context.Context, r Resource, name Name) (any, dav.Status) {
	d, ok := reg.byName[name]
	if !ok {
		return nil, dav.StatusNotFound
	}

	value, err := d.Get(ctx, r)
	if err != nil {
		logger.Error("property %s getter failed for %s: %v", name, r.Path(), err)
		return nil, dav.StatusInternalServerError
	}
	return value, dav.StatusOK
}

// Set applies a new value to one property.
//
// Unknown identities fail with 404; known but read-only properties fail
// with 403. The two outcomes are distinct so callers can report accurate
// per-property statuses in multistatus responses.
func (reg *Registry) Set(ctx context.Context, r Resource, name Name, value string) dav.Status {
	d, ok := reg.byName[name]
	if !ok {
		return dav.StatusNotFound
	}
	if d.Set == nil {
		return dav.StatusForbidden
	}

	if err := d.Set(ctx, r, value); err != nil {
		logger.Error("property %s setter failed for %s: %v", name, r.Path(), err)
		return dav.StatusInternalServerError
	}
	return dav.StatusOK
}
