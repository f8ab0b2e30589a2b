// Package filter implements the Event Router's policy filter: the
// allowed_kinds allow-list (and author allow/deny sets) an event must
// clear before it is eligible for dedup and batching.
package filter

import "novarelay.dev/pkg/event"

// Policy is a RoutingPolicy: the set of gates an event must pass before
// being routed onward. A zero-value Policy allows everything.
type Policy struct {
	// AllowedKinds, if non-empty, is the only set of kinds let through.
	AllowedKinds map[uint16]struct{}
	// AllowedAuthors, if non-empty, is the only set of pubkeys let
	// through (hex-encoded).
	AllowedAuthors map[string]struct{}
	// DeniedAuthors is always checked, regardless of AllowedAuthors.
	DeniedAuthors map[string]struct{}
}

// NewPolicy builds a Policy from allowed kind numbers; author sets are
// left empty (meaning unrestricted) and can be set directly.
func NewPolicy(allowedKinds ...uint16) *Policy {
	p := &Policy{}
	if len(allowedKinds) > 0 {
		p.AllowedKinds = make(map[uint16]struct{}, len(allowedKinds))
		for _, k := range allowedKinds {
			p.AllowedKinds[k] = struct{}{}
		}
	}
	return p
}

// Allow reports whether ev clears the policy.
func (p *Policy) Allow(ev *event.E) bool {
	if p == nil {
		return true
	}
	if len(p.DeniedAuthors) > 0 {
		if _, denied := p.DeniedAuthors[ev.PubkeyHex()]; denied {
			return false
		}
	}
	if len(p.AllowedKinds) > 0 {
		if _, ok := p.AllowedKinds[ev.Kind]; !ok {
			return false
		}
	}
	if len(p.AllowedAuthors) > 0 {
		if _, ok := p.AllowedAuthors[ev.PubkeyHex()]; !ok {
			return false
		}
	}
	return true
}
