// Package brokererr defines the failure taxonomy shared by the protocol
// client, the caches and the strategy engine. Callers classify with
// errors.Is against these sentinels.
package brokererr

import "github.com/pkg/errors"

var (
	// ErrConnection covers dial and socket failures.
	ErrConnection = errors.New("connection error")

	// ErrAuth is returned when the handshake fails or times out.
	ErrAuth = errors.New("authentication failed")

	// ErrRequestTimeout rejects a single in-flight request; the
	// correlation entry is removed atomically with the rejection.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrPayloadFormat marks frames whose shape we do not recognize.
	ErrPayloadFormat = errors.New("unexpected payload format")

	ErrCacheMiss          = errors.New("cache miss")
	ErrInstrumentNotFound = errors.New("instrument not found")

	// ErrReconnectionFailed is terminal: no subscription is retried
	// until a fresh Connect.
	ErrReconnectionFailed = errors.New("reconnection attempts exhausted")

	// ErrStopConditionReached is a control-flow outcome, not a fault.
	// The engine deactivates the strategy that hit it and moves on.
	ErrStopConditionReached = errors.New("stop condition reached")
)
