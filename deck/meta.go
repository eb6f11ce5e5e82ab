package deck

import "encoding/json"

// Meta is the document's metadata record. It is persisted twice: inside the
// manifest and as a separate projection keyed for cheap reads and search;
// the save pipeline keeps the two identical.
type Meta struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// ISO-8601 timestamps. UpdatedAt is stamped by the repository on
	// every save.
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	DeletedAt string `json:"deletedAt,omitempty"`

	// Ownership and sharing are persisted and returned as data;
	// authorization is the caller's concern.
	OwnerID    string   `json:"ownerId,omitempty"`
	SharedWith []string `json:"sharedWith,omitempty"`
	Public     bool     `json:"public,omitempty"`

	Slug string `json:"slug,omitempty"`

	// PresenterPasswordHash is an opaque SHA-256 hex string.
	PresenterPasswordHash string `json:"presenterPasswordHash,omitempty"`

	// CoverImage is an asset-bearing position.
	CoverImage string `json:"coverImage,omitempty"`

	// CustomProperties holds freeform string/number/boolean properties,
	// preserved verbatim.
	CustomProperties map[string]json.RawMessage `json:"customProperties,omitempty"`
}
