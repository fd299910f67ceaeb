// Package transport defines the interface for pluggable request transports.
//
// A transport accepts synthesis requests from the outside world and hands
// them to a Handler. The pipeline doesn't care how requests arrive; it only
// works with the Transport contract.
package transport

import (
	"context"

	"github.com/nadzzz/dialect-tts/internal/message"
)

// Handler processes a synthesis request and returns its result.
// The pipeline provides this handler to each transport.
type Handler func(ctx context.Context, req *message.SynthesisRequest) (*message.SynthesisResponse, error)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "http").
	Name() string

	// Listen starts accepting requests and passes them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
