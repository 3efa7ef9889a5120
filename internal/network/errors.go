package network

import (
	"errors"
	"fmt"
)

// ErrLookup marks a reference the network cannot resolve: a missing node,
// link, route or route item. It signals an inconsistency between itinerary
// and route geometry.
var ErrLookup = errors.New("network lookup failed")

func lookupErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLookup, fmt.Sprintf(format, args...))
}
