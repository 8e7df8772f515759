package dav

import (
	"fmt"
	"strings"
)

// Depth is the recursion bound of an operation over a resource subtree.
//
// Values 0 and 1 bound the recursion to the resource itself or the resource
// plus its immediate children. DepthInfinity is a sentinel meaning the whole
// subtree; it is deliberately large so that Dec() applied any realistic
// number of times never reaches zero.
type Depth int

const (
	DepthZero Depth = 0
	DepthOne  Depth = 1

	// DepthInfinity represents unbounded recursion depth.
	DepthInfinity Depth = 1 << 30
)

// ParseDepth parses a Depth header value ("0", "1" or "infinity",
// case-insensitive). An empty value yields the provided default, which the
// protocol defines per method (infinity for PROPFIND, COPY and MOVE).
func ParseDepth(value string, def Depth) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return def, nil
	case "0":
		return DepthZero, nil
	case "1":
		return DepthOne, nil
	case "infinity":
		return DepthInfinity, nil
	default:
		return def, fmt.Errorf("invalid depth value %q", value)
	}
}

// Dec returns the depth budget remaining after descending one level.
// Infinity stays infinity.
func (d Depth) Dec() Depth {
	if d == DepthInfinity {
		return d
	}
	if d <= 0 {
		return 0
	}
	return d - 1
}

// String renders the depth as it appears on the wire.
func (d Depth) String() string {
	switch d {
	case DepthZero:
		return "0"
	case DepthOne:
		return "1"
	case DepthInfinity:
		return "infinity"
	default:
		return fmt.Sprintf("%d", int(d))
	}
}
