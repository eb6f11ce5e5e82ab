package deck

import (
	"fmt"
	"strings"

	"github.com/sethwebster/presentations/assetref"
)

// ErrCyclicGroup reports a cycle in the group tree, by element identity.
// Decoded documents cannot contain one, but programmatically built decks
// can, and the walk must terminate rather than hang.
type ErrCyclicGroup struct {
	GroupID string
}

func (e ErrCyclicGroup) Error() string {
	return fmt.Sprintf("cyclic group tree at group %q", e.GroupID)
}

// SlotFunc visits one asset-bearing position. It receives the position's
// path (diagnostic) and current non-empty value and returns the value to
// store there. Returning the value unchanged leaves the slot alone.
type SlotFunc func(path, value string) (string, error)

// WalkAssetSlots visits every asset-bearing position of the deck in a fixed
// order: the cover image; then per slide the background value (image and
// video backgrounds only), the slide thumbnail, the slide's elements and
// each layer's elements with group children walked depth-first; finally the
// branding logo and the default background when it is an image. Empty and
// absent slots are not visited.
//
// The element walk is iterative with a visited set, so arbitrarily deep
// nesting is bounded and cycles surface as ErrCyclicGroup.
func WalkAssetSlots(d *Deck, fn SlotFunc) error {
	if d == nil {
		return nil
	}

	if err := visitSlot("meta.coverImage", &d.Meta.CoverImage, fn); err != nil {
		return err
	}

	for i, slide := range d.Slides {
		if slide == nil {
			continue
		}
		base := fmt.Sprintf("slides[%d]", i)
		if bg := slide.Background; bg != nil && (bg.Type == "image" || bg.Type == "video") {
			if err := visitSlot(base+".background.value", &bg.Value, fn); err != nil {
				return err
			}
		}
		if err := visitSlot(base+".thumbnail", &slide.Thumbnail, fn); err != nil {
			return err
		}
		visited := make(map[*Element]struct{})
		if err := walkElements(slide.Elements, base+".elements", visited, fn); err != nil {
			return err
		}
		for j, layer := range slide.Layers {
			if layer == nil {
				continue
			}
			if err := walkElements(layer.Elements, fmt.Sprintf("%s.layers[%d].elements", base, j), visited, fn); err != nil {
				return err
			}
		}
	}

	if s := d.Settings; s != nil {
		if s.Branding != nil && s.Branding.Logo != nil {
			if err := visitSlot("settings.branding.logo.src", &s.Branding.Logo.Src, fn); err != nil {
				return err
			}
		}
		if bg := s.DefaultBackground; bg != nil && bg.Type == "image" {
			if err := visitSlot("settings.defaultBackground.value", &bg.Value, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func visitSlot(path string, value *string, fn SlotFunc) error {
	if *value == "" {
		return nil
	}
	next, err := fn(path, *value)
	if err != nil {
		return err
	}
	*value = next
	return nil
}

// elementFrame is one level of the iterative walk. Frames hold only their
// own path segment and a parent link; full paths are rendered on demand, so
// the memory held across a walk stays linear in the nesting depth.
type elementFrame struct {
	elems  []*Element
	idx    int
	parent int    // stack index of the enclosing frame, -1 at the root
	seg    string // path segment relative to the parent
}

func walkElements(elems []*Element, base string, visited map[*Element]struct{}, fn SlotFunc) error {
	stack := []elementFrame{{elems: elems, parent: -1}}

	for len(stack) > 0 {
		frame := len(stack) - 1
		top := &stack[frame]
		if top.idx >= len(top.elems) {
			stack = stack[:frame]
			continue
		}
		el := top.elems[top.idx]
		i := top.idx
		top.idx++

		if el == nil {
			continue
		}
		switch el.Type {
		case TypeImage, TypeMedia:
			if el.Src == "" {
				continue
			}
			path := fmt.Sprintf("%s[%d].src", framePath(base, stack, frame), i)
			if err := visitSlot(path, &el.Src, fn); err != nil {
				return err
			}
		case TypeGroup:
			if _, ok := visited[el]; ok {
				return ErrCyclicGroup{GroupID: el.ID}
			}
			visited[el] = struct{}{}
			stack = append(stack, elementFrame{
				elems:  el.Children,
				parent: frame,
				seg:    fmt.Sprintf("[%d].children", i),
			})
		}
	}
	return nil
}

// framePath renders the path of the frame at index fi by following parent
// links back to the root.
func framePath(base string, stack []elementFrame, fi int) string {
	var segs []string
	for i := fi; i >= 0; i = stack[i].parent {
		segs = append(segs, stack[i].seg)
	}
	var b strings.Builder
	b.WriteString(base)
	for i := len(segs) - 1; i >= 0; i-- {
		b.WriteString(segs[i])
	}
	return b.String()
}

// CollectAssetRefs walks the deck and returns the distinct hashes of every
// well-formed asset reference found in an asset slot, in traversal order.
func CollectAssetRefs(d *Deck) ([]assetref.Hash, error) {
	var hashes []assetref.Hash
	seen := make(map[assetref.Hash]struct{})

	err := WalkAssetSlots(d, func(_, value string) (string, error) {
		if assetref.IsReference(value) {
			h, err := assetref.Parse(value)
			if err != nil {
				return "", err
			}
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				hashes = append(hashes, h)
			}
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}
