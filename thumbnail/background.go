package thumbnail

import (
	"context"

	"github.com/sethwebster/presentations/assetref"
	"github.com/sethwebster/presentations/deck"
)

// AssetGetter resolves stored asset bytes by hash. nil means unknown.
type AssetGetter interface {
	Get(ctx context.Context, h assetref.Hash) ([]byte, error)
}

// FirstBackground renders a thumbnail from the first slide's image
// background when its bytes are resolvable, and falls through to the
// fallback renderer otherwise. The background bytes are served as stored;
// re-encoding to the WebP target size is left to a real rasterizer.
type FirstBackground struct {
	Assets   AssetGetter
	Fallback Renderer
}

func (r FirstBackground) Render(ctx context.Context, m *deck.Deck) ([]byte, error) {
	if p := r.firstBackground(ctx, m); p != nil {
		return p, nil
	}
	fallback := r.Fallback
	if fallback == nil {
		fallback = Placeholder{}
	}
	return fallback.Render(ctx, m)
}

func (r FirstBackground) firstBackground(ctx context.Context, m *deck.Deck) []byte {
	if r.Assets == nil || m == nil || len(m.Slides) == 0 {
		return nil
	}
	first := m.Slides[0]
	if first == nil || first.Background == nil || first.Background.Type != "image" {
		return nil
	}
	if !assetref.IsReference(first.Background.Value) {
		return nil
	}
	h, err := assetref.Parse(first.Background.Value)
	if err != nil {
		return nil
	}
	p, err := r.Assets.Get(ctx, h)
	if err != nil {
		return nil
	}
	return p
}
