// Package thumbnail defines the contract between the storage core and the
// thumbnail renderer. Rendering pixels is an external concern; the core
// only triggers generation after a save and stores whatever bytes come
// back. The placeholder renderer here exists so the pipeline works end to
// end without a real rasterizer wired in.
package thumbnail

import (
	"context"

	"github.com/sethwebster/presentations/deck"
)

// Default output parameters. Renderers emit WebP.
const (
	DefaultWidth   = 320
	DefaultHeight  = 180
	DefaultQuality = 80 // 0..100
)

// Renderer produces thumbnail bytes for a manifest.
type Renderer interface {
	Render(ctx context.Context, m *deck.Deck) ([]byte, error)
}

// placeholderWebP is a minimal lossless WebP: a RIFF container with a
// single VP8L chunk encoding a 1x1 image. Deterministic output keeps the
// stored thumbnail stable across renders of the same deck.
var placeholderWebP = []byte{
	'R', 'I', 'F', 'F', 0x24, 0x00, 0x00, 0x00,
	'W', 'E', 'B', 'P', 'V', 'P', '8', 'L',
	0x18, 0x00, 0x00, 0x00, 0x2f, 0x00, 0x00, 0x00,
	0x00, 0x07, 0x10, 0x11, 0x11, 0x88, 0x88, 0xfe,
	0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// Placeholder is a Renderer that always emits a static 1x1 WebP. It stands
// in when no rasterizing renderer is configured; a deck whose first slide
// background cannot be resolved also ends up here.
type Placeholder struct{}

// Render returns the placeholder bytes. The manifest content is ignored.
func (Placeholder) Render(_ context.Context, _ *deck.Deck) ([]byte, error) {
	out := make([]byte, len(placeholderWebP))
	copy(out, placeholderWebP)
	return out, nil
}
