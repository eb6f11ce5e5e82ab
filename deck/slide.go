package deck

import "encoding/json"

// Slide is one page of the deck. Transitions, notes, timeline and any
// fields this core does not know about ride along verbatim in the raw
// attribute map.
type Slide struct {
	ID     string
	Title  string
	Layout string

	Elements []*Element
	Layers   []*Layer

	Background *Background

	// Thumbnail is an asset-bearing position.
	Thumbnail string

	attrs    map[string]json.RawMessage
	hasThumb bool
}

// NewSlide returns an empty slide.
func NewSlide(id string) *Slide {
	return &Slide{ID: id}
}

// Attr returns a raw slide-level field such as notes or transitions.
func (s *Slide) Attr(name string) (json.RawMessage, bool) {
	raw, ok := s.attrs[name]
	return raw, ok
}

// SetAttr stores a raw slide-level field.
func (s *Slide) SetAttr(name string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if s.attrs == nil {
		s.attrs = make(map[string]json.RawMessage)
	}
	s.attrs[name] = raw
	return nil
}

func (s *Slide) UnmarshalJSON(b []byte) error {
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(b, &attrs); err != nil {
		return err
	}
	*s = Slide{attrs: attrs}

	decodeRawString(attrs, "id", &s.ID)
	decodeRawString(attrs, "title", &s.Title)
	decodeRawString(attrs, "layout", &s.Layout)
	if decodeRawString(attrs, "thumbnail", &s.Thumbnail) {
		s.hasThumb = true
		delete(attrs, "thumbnail")
	}

	if raw, ok := attrs["elements"]; ok {
		if err := json.Unmarshal(raw, &s.Elements); err != nil {
			return err
		}
		delete(attrs, "elements")
	}
	if raw, ok := attrs["layers"]; ok {
		if err := json.Unmarshal(raw, &s.Layers); err != nil {
			return err
		}
		delete(attrs, "layers")
	}
	if raw, ok := attrs["background"]; ok {
		if err := json.Unmarshal(raw, &s.Background); err != nil {
			return err
		}
		delete(attrs, "background")
	}
	return nil
}

func (s *Slide) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.attrs)+6)
	for k, v := range s.attrs {
		out[k] = v
	}
	if s.ID != "" {
		out["id"] = encodeRawString(s.ID)
	}
	if s.Title != "" {
		out["title"] = encodeRawString(s.Title)
	}
	if s.Layout != "" {
		out["layout"] = encodeRawString(s.Layout)
	}
	if s.hasThumb || s.Thumbnail != "" {
		out["thumbnail"] = encodeRawString(s.Thumbnail)
	}
	if s.Elements != nil {
		raw, err := json.Marshal(s.Elements)
		if err != nil {
			return nil, err
		}
		out["elements"] = raw
	}
	if s.Layers != nil {
		raw, err := json.Marshal(s.Layers)
		if err != nil {
			return nil, err
		}
		out["layers"] = raw
	}
	if s.Background != nil {
		raw, err := json.Marshal(s.Background)
		if err != nil {
			return nil, err
		}
		out["background"] = raw
	}
	return json.Marshal(out)
}

// Layer is a painted group of elements; layers render in ascending Order
// after the slide's own elements.
type Layer struct {
	ID       string     `json:"id"`
	Order    float64    `json:"order"`
	Elements []*Element `json:"elements,omitempty"`
}

// Background describes a slide or deck-default background. Value is an
// asset-bearing position when Type is image or video; for other types
// (color, gradient) it is opaque.
type Background struct {
	Type  string
	Value string

	attrs    map[string]json.RawMessage
	hasValue bool
}

// NewBackground returns a background of the given type and value.
func NewBackground(typ, value string) *Background {
	return &Background{Type: typ, Value: value}
}

func (bg *Background) UnmarshalJSON(b []byte) error {
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(b, &attrs); err != nil {
		return err
	}
	*bg = Background{attrs: attrs}
	decodeRawString(attrs, "type", &bg.Type)
	if decodeRawString(attrs, "value", &bg.Value) {
		bg.hasValue = true
		delete(attrs, "value")
	}
	return nil
}

func (bg *Background) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(bg.attrs)+2)
	for k, v := range bg.attrs {
		out[k] = v
	}
	if bg.Type != "" {
		out["type"] = encodeRawString(bg.Type)
	}
	if bg.hasValue || bg.Value != "" {
		out["value"] = encodeRawString(bg.Value)
	}
	return json.Marshal(out)
}
