// Package deck defines the document model shared by the legacy embedded-data
// form and the split-schema manifest form of a presentation. The two forms
// have the same shape; they differ only in what the asset-bearing positions
// hold (embedded data-URIs versus asset:// references) and in whether the
// schema stamp and root asset registry are populated.
//
// Opaque substructures (theme, provenance, element payloads, slide
// transitions and notes) are carried as raw JSON so unknown fields survive
// save/load cycles verbatim, including full numeric precision.
package deck

import "encoding/json"

// Deck is the root document. A Deck whose asset slots hold asset://
// references and whose Schema and Assets fields are populated is a manifest;
// otherwise it is a legacy deck.
type Deck struct {
	Schema *Schema `json:"schema,omitempty"`
	Meta   Meta    `json:"meta"`
	Slides []*Slide `json:"slides"`

	// Assets is the reference registry: a mapping whose keys and values
	// are both the asset reference, acting as the set of references used
	// by this manifest. Preserved verbatim across round-trips.
	Assets map[string]string `json:"assets,omitempty"`

	Settings *Settings `json:"settings,omitempty"`

	// Theme and Provenance are opaque passthrough structures.
	Theme      json.RawMessage `json:"theme,omitempty"`
	Provenance json.RawMessage `json:"provenance,omitempty"`
}

// Schema stamps the document format version.
type Schema struct {
	Version    string `json:"version"`
	EngineMin  string `json:"engineMin,omitempty"`
	MigratedAt string `json:"migratedAt,omitempty"`
}

// Settings holds deck-wide presentation settings. SlideSize, Presentation
// and Grid are opaque to the storage core.
type Settings struct {
	DefaultBackground *Background     `json:"defaultBackground,omitempty"`
	Branding          *Branding       `json:"branding,omitempty"`
	SlideSize         json.RawMessage `json:"slideSize,omitempty"`
	Presentation      json.RawMessage `json:"presentation,omitempty"`
	Grid              json.RawMessage `json:"grid,omitempty"`
}

// Branding carries the deck's branding configuration.
type Branding struct {
	Logo *Logo `json:"logo,omitempty"`
}

// Logo is an asset-bearing position: Src may be embedded binary in a legacy
// deck or an asset reference in a manifest.
type Logo struct {
	Src string `json:"src,omitempty"`
	Alt string `json:"alt,omitempty"`
}

// Clone deep-copies the deck by a JSON round-trip, which exercises the same
// raw-preserving codecs as persistence and therefore keeps opaque fields
// byte-identical.
func (d *Deck) Clone() (*Deck, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out Deck
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
