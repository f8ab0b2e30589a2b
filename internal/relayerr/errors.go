// Package relayerr defines the sentinel error kinds novarelay components
// wrap their failures in, so callers (and the HTTP control surface) can
// classify an error with errors.Is instead of string-matching messages.
package relayerr

import "errors"

var (
	// ConfigInvalid marks a malformed or self-contradictory configuration.
	ConfigInvalid = errors.New("config invalid")
	// StoreUnavailable marks a dedup store or persistence failure.
	StoreUnavailable = errors.New("store unavailable")
	// TransportError marks a websocket dial, read, or write failure.
	TransportError = errors.New("transport error")
	// ProtocolError marks a malformed or out-of-sequence wire message.
	ProtocolError = errors.New("protocol error")
	// AuthRequired marks a request that needed and lacked authentication.
	AuthRequired = errors.New("auth required")
	// RateLimited marks a request rejected by a rate limiter.
	RateLimited = errors.New("rate limited")
	// PolicyRejected marks an event rejected by routing policy.
	PolicyRejected = errors.New("policy rejected")
	// CapacityExhausted marks a bounded queue or worker pool at capacity.
	CapacityExhausted = errors.New("capacity exhausted")
	// ShuttingDown marks a component that has begun or finished shutdown.
	ShuttingDown = errors.New("shutting down")
)
