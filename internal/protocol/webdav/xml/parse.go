// Package xml implements the wire bodies of the WebDAV protocol: parsing
// of propfind, propertyupdate and lockinfo requests, and rendering of
// multistatus and lockdiscovery responses.
//
// The package is a pure codec. It knows property names, statuses and lock
// values, but nothing about stores or HTTP handlers.
package xml

import (
	"encoding/xml"
	"errors"
	"io"

	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
	"github.com/mschuler/nwebdav/pkg/props"
)

// ErrMalformedBody is returned for request bodies that are not
// well-formed XML or do not carry the expected root element. Maps to 400.
var ErrMalformedBody = errors.New("malformed request body")

// PropfindKind distinguishes the three propfind request forms.
type PropfindKind int

const (
	// PropfindAllProp requests all non-expensive properties.
	PropfindAllProp PropfindKind = iota

	// PropfindPropName requests property names only, no values.
	PropfindPropName

	// PropfindProp requests the explicitly named properties.
	PropfindProp
)

// Propfind is a parsed propfind request body.
type Propfind struct {
	Kind PropfindKind

	// Names holds the requested properties when Kind is PropfindProp.
	Names []props.Name
}

type anyNameXML struct {
	XMLName xml.Name
}

type propNamesXML struct {
	Names []anyNameXML `xml:",any"`
}

type propfindXML struct {
	XMLName  xml.Name      `xml:"DAV: propfind"`
	AllProp  *struct{}     `xml:"DAV: allprop"`
	PropName *struct{}     `xml:"DAV: propname"`
	Prop     *propNamesXML `xml:"DAV: prop"`
}

// ParsePropfind parses a propfind request body.
// An empty body is equivalent to allprop.
func ParsePropfind(r io.Reader) (*Propfind, error) {
	var parsed propfindXML
	if err := xml.NewDecoder(r).Decode(&parsed); err != nil {
		if errors.Is(err, io.EOF) {
			return &Propfind{Kind: PropfindAllProp}, nil
		}
		return nil, ErrMalformedBody
	}

	switch {
	case parsed.PropName != nil:
		return &Propfind{Kind: PropfindPropName}, nil
	case parsed.Prop != nil:
		pf := &Propfind{Kind: PropfindProp}
		for _, n := range parsed.Prop.Names {
			pf.Names = append(pf.Names, props.Name{Space: n.XMLName.Space, Local: n.XMLName.Local})
		}
		return pf, nil
	default:
		// allprop, or a bare propfind element.
		return &Propfind{Kind: PropfindAllProp}, nil
	}
}

// PatchAction is one set or remove instruction from a propertyupdate
// body, in document order.
type PatchAction struct {
	// Remove is true for remove instructions, false for set.
	Remove bool

	// Name is the property identity.
	Name props.Name

	// Value is the new value for set instructions.
	Value string
}

type propValueXML struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type propValuesXML struct {
	Values []propValueXML `xml:",any"`
}

type patchXML struct {
	XMLName xml.Name
	Prop    propValuesXML `xml:"DAV: prop"`
}

type propertyupdateXML struct {
	XMLName xml.Name   `xml:"DAV: propertyupdate"`
	Patches []patchXML `xml:",any"`
}

// ParsePropertyUpdate parses a propertyupdate request body into its
// actions, preserving document order across mixed set and remove blocks.
func ParsePropertyUpdate(r io.Reader) ([]PatchAction, error) {
	var parsed propertyupdateXML
	if err := xml.NewDecoder(r).Decode(&parsed); err != nil {
		return nil, ErrMalformedBody
	}

	var actions []PatchAction
	for _, patch := range parsed.Patches {
		if patch.XMLName.Space != dav.Namespace {
			continue
		}
		var remove bool
		switch patch.XMLName.Local {
		case "set":
			remove = false
		case "remove":
			remove = true
		default:
			continue
		}
		for _, v := range patch.Prop.Values {
			actions = append(actions, PatchAction{
				Remove: remove,
				Name:   props.Name{Space: v.XMLName.Space, Local: v.XMLName.Local},
				Value:  v.Value,
			})
		}
	}
	if len(actions) == 0 {
		return nil, ErrMalformedBody
	}
	return actions, nil
}

// LockInfo is a parsed lockinfo request body.
type LockInfo struct {
	Scope lock.Scope

	// Owner is the raw inner XML of the owner element, stored and echoed
	// back opaquely.
	Owner string
}

type lockinfoXML struct {
	XMLName xml.Name `xml:"DAV: lockinfo"`
	Scope   struct {
		Exclusive *struct{} `xml:"DAV: exclusive"`
		Shared    *struct{} `xml:"DAV: shared"`
	} `xml:"DAV: lockscope"`
	Type struct {
		Write *struct{} `xml:"DAV: write"`
	} `xml:"DAV: locktype"`
	Owner struct {
		Inner string `xml:",innerxml"`
	} `xml:"DAV: owner"`
}

// ParseLockInfo parses a lockinfo request body.
//
// An empty body means the request is a refresh of an existing lock, and
// is reported via the second return value with a nil LockInfo.
func ParseLockInfo(r io.Reader) (*LockInfo, bool, error) {
	var parsed lockinfoXML
	if err := xml.NewDecoder(r).Decode(&parsed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, true, nil
		}
		return nil, false, ErrMalformedBody
	}

	// Write locks are the only defined lock type.
	if parsed.Type.Write == nil {
		return nil, false, ErrMalformedBody
	}

	info := &LockInfo{Owner: parsed.Owner.Inner}
	switch {
	case parsed.Scope.Exclusive != nil:
		info.Scope = lock.ScopeExclusive
	case parsed.Scope.Shared != nil:
		info.Scope = lock.ScopeShared
	default:
		return nil, false, ErrMalformedBody
	}
	return info, false, nil
}
