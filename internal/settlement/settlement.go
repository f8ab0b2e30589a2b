// Package settlement is the settlement/credit worker collaborator
// boundary: a narrow contract taking one delivered batch per Charge call,
// kept outside the pipeline. The HTTP control surface carries a Worker in
// its Deps, but no component of the gateway calls Charge.
package settlement

import "novarelay.dev/internal/router"

// Worker is the billing contract; httpapi.Deps holds one.
// The real worker is an external service reached over the network; this
// package only defines the contract plus a no-op stand-in for when the
// `settlement` config section is absent.
type Worker interface {
	// Charge debits subscriberID for delivering batch, returning an
	// error if the subscriber has insufficient credit.
	Charge(subscriberID string, batch router.Batch) error
}

// NoOp charges nothing; used when settlement is not configured.
type NoOp struct{}

func (NoOp) Charge(string, router.Batch) error { return nil }

var _ Worker = NoOp{}
