package deck

import (
	"encoding/json"
	"fmt"
)

// Element type discriminators with storage-relevant behavior. Any other
// value is an unknown variant: its payload is carried verbatim so newer
// element kinds survive a round-trip through an older store.
const (
	TypeImage = "image"
	TypeMedia = "media"
	TypeGroup = "group"
)

// Element is one item on a slide. The concrete variant is discriminated by
// Type (text, richtext, codeblock, table, chart, shape, image, media,
// group, ...). Only the fields the storage core acts on are parsed out:
// Src on image and media elements (the asset-bearing position) and Children
// on groups. Everything else, bounds and style and animation included, is
// retained as raw JSON and re-emitted untouched.
type Element struct {
	ID   string
	Type string

	// Src is the asset slot of image and media elements. Empty when the
	// element has no string src.
	Src string

	// Children of a group element. Groups may nest arbitrarily.
	Children []*Element

	attrs       map[string]json.RawMessage
	hasSrc      bool
	hasChildren bool
}

// NewElement returns an element of the given type.
func NewElement(id, typ string) *Element {
	return &Element{ID: id, Type: typ}
}

// Attr returns the raw JSON of a payload field, such as the text of a text
// element or the code of a codeblock.
func (e *Element) Attr(name string) (json.RawMessage, bool) {
	raw, ok := e.attrs[name]
	return raw, ok
}

// SetAttr stores a payload field, marshaling v.
func (e *Element) SetAttr(name string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("element %s: set %s: %w", e.ID, name, err)
	}
	if e.attrs == nil {
		e.attrs = make(map[string]json.RawMessage)
	}
	e.attrs[name] = raw
	return nil
}

func (e *Element) UnmarshalJSON(b []byte) error {
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(b, &attrs); err != nil {
		return err
	}
	*e = Element{attrs: attrs}

	// Discriminator fields. A non-string id or type stays verbatim in
	// attrs and the parsed field remains empty.
	decodeRawString(attrs, "id", &e.ID)
	decodeRawString(attrs, "type", &e.Type)

	switch e.Type {
	case TypeImage, TypeMedia:
		if decodeRawString(attrs, "src", &e.Src) {
			e.hasSrc = true
			delete(attrs, "src")
		}
	case TypeGroup:
		if raw, ok := attrs["children"]; ok {
			var children []*Element
			if err := json.Unmarshal(raw, &children); err != nil {
				return fmt.Errorf("group %s: %w", e.ID, err)
			}
			e.Children = children
			e.hasChildren = true
			delete(attrs, "children")
		}
	}
	return nil
}

func (e *Element) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.attrs)+4)
	for k, v := range e.attrs {
		out[k] = v
	}
	if e.ID != "" {
		out["id"] = encodeRawString(e.ID)
	}
	if e.Type != "" {
		out["type"] = encodeRawString(e.Type)
	}
	if e.hasSrc || e.Src != "" {
		out["src"] = encodeRawString(e.Src)
	}
	if e.hasChildren || e.Children != nil {
		raw, err := json.Marshal(e.Children)
		if err != nil {
			return nil, err
		}
		out["children"] = raw
	}
	return json.Marshal(out)
}

// decodeRawString extracts attrs[key] when it is a JSON string, reporting
// success. Non-string values, null included, are left alone.
func decodeRawString(attrs map[string]json.RawMessage, key string, dst *string) bool {
	raw, ok := attrs[key]
	if !ok {
		return false
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		return false
	}
	*dst = *s
	return true
}

func encodeRawString(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}
