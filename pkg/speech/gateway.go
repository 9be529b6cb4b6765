package speech

import (
	"context"

	"github.com/voxloop/voxloop/pkg/speech/iface"
)

// BatchBackend is the subset of iface.Gateway the batch transcriber
// implements.
type BatchBackend interface {
	TranscribeFile(ctx context.Context, path string, opts iface.TranscribeOptions) (iface.TranscriptionResult, error)
	IsAvailable(ctx context.Context) bool
}

// StreamBackend is the subset of iface.Gateway the streaming transcriber
// implements.
type StreamBackend interface {
	OpenStream(ctx context.Context, callID string) (iface.StreamHandle, error)
}

// Gateway composes a batch backend and a streaming backend behind the
// single iface.Gateway the Call Controller depends on (§4.2: "Core
// consumes both through one interface").
type Gateway struct {
	batch  BatchBackend
	stream StreamBackend
}

// New composes batch and stream into a single iface.Gateway.
func New(batch BatchBackend, stream StreamBackend) *Gateway {
	return &Gateway{batch: batch, stream: stream}
}

func (g *Gateway) TranscribeFile(ctx context.Context, path string, opts iface.TranscribeOptions) (iface.TranscriptionResult, error) {
	return g.batch.TranscribeFile(ctx, path, opts)
}

func (g *Gateway) OpenStream(ctx context.Context, callID string) (iface.StreamHandle, error) {
	return g.stream.OpenStream(ctx, callID)
}

// IsAvailable probes the batch backend only; the streaming transport's
// availability is discovered lazily on first OpenStream, per §4.6.7's
// fallback-to-batch failure semantics.
func (g *Gateway) IsAvailable(ctx context.Context) bool {
	return g.batch.IsAvailable(ctx)
}

var _ iface.Gateway = (*Gateway)(nil)
