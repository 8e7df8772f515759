// Package dav holds the protocol vocabulary shared by every layer of the
// WebDAV engine: status codes, recursion depths, and the typed property
// values that the XML layer knows how to render.
//
// The package is a leaf by design. Stores, the lock manager, the property
// registries and the verb handlers all speak in terms of these types without
// depending on each other.
package dav

// Namespace is the WebDAV XML namespace defined by RFC 4918.
const Namespace = "DAV:"

// ResourceType is the typed value of the DAV: resourcetype property.
//
// A zero ResourceType marks a plain item; Collection set marks a collection.
// The XML layer renders the collection marker as <D:collection/>.
type ResourceType struct {
	Collection bool
}

// SupportedLock is the typed value of the DAV: supportedlock property.
//
// It is a marker: the engine always supports exclusive and shared write
// locks, so the value carries no state and the XML layer renders the two
// canonical lockentry elements.
type SupportedLock struct{}
