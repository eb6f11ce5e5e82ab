package thumbnail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sethwebster/presentations/assetref"
	"github.com/sethwebster/presentations/deck"
)

type mapGetter map[assetref.Hash][]byte

func (g mapGetter) Get(_ context.Context, h assetref.Hash) ([]byte, error) {
	return g[h], nil
}

func TestPlaceholderDeterministic(t *testing.T) {
	var r Placeholder

	p1, err := r.Render(context.Background(), nil)
	require.NoError(t, err)
	p2, err := r.Render(context.Background(), &deck.Deck{})
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, "RIFF", string(p1[:4]))
	assert.Equal(t, "WEBP", string(p1[8:12]))

	// Callers own the returned slice.
	p1[0] = 'X'
	p3, err := r.Render(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, byte('R'), p3[0])
}

func TestFirstBackgroundServesStoredBytes(t *testing.T) {
	payload := []byte("image bytes")
	h := assetref.FromBytes(payload)

	slide := deck.NewSlide("s1")
	slide.Background = deck.NewBackground("image", h.Reference())
	m := &deck.Deck{Slides: []*deck.Slide{slide}}

	r := FirstBackground{Assets: mapGetter{h: payload}}
	p, err := r.Render(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, payload, p)
}

func TestFirstBackgroundFallsBack(t *testing.T) {
	r := FirstBackground{Assets: mapGetter{}}

	for _, m := range []*deck.Deck{
		nil,
		{},
		{Slides: []*deck.Slide{deck.NewSlide("s1")}},
		{Slides: []*deck.Slide{func() *deck.Slide {
			s := deck.NewSlide("s1")
			s.Background = deck.NewBackground("color", "#fff")
			return s
		}()}},
		{Slides: []*deck.Slide{func() *deck.Slide {
			// A reference whose bytes are gone.
			s := deck.NewSlide("s1")
			s.Background = deck.NewBackground("image", assetref.FromBytes([]byte("gone")).Reference())
			return s
		}()}},
	} {
		p, err := r.Render(context.Background(), m)
		require.NoError(t, err)
		assert.Equal(t, "RIFF", string(p[:4]))
	}
}
