package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	presentations "github.com/sethwebster/presentations"
	"github.com/sethwebster/presentations/assetref"
	"github.com/sethwebster/presentations/deck"
)

// SchemaVersion is stamped on every manifest the converter produces.
const SchemaVersion = "v1.0"

// Converter transforms between the legacy embedded-data deck and the
// split-schema manifest. Going forward it uploads every embedded binary to
// the asset store and rewrites its position to an asset reference; going
// back it leaves references in place by default, or re-embeds them as
// data-URIs under the inline option.
type Converter struct {
	assets presentations.AssetService
	opts   Options
	log    *logrus.Entry
}

// NewConverter returns a converter ingesting assets into assets.
func NewConverter(assets presentations.AssetService, opts Options) *Converter {
	opts = opts.withDefaults()
	return &Converter{assets: assets, opts: opts, log: opts.Logger}
}

// DeckToManifest converts a legacy-shape deck to a manifest. The input is
// not mutated. Asset slots holding data-URIs are uploaded and rewritten to
// references; slots that already hold references are recorded untouched;
// HTTP(S) URLs, stock identifiers and other plain strings are legitimate
// external references and pass through unchanged. The root asset registry
// is rebuilt from the recorded hashes.
//
// Conversion is idempotent: converting an already-converted deck changes
// nothing but the migratedAt stamp.
func (c *Converter) DeckToManifest(ctx context.Context, d *deck.Deck) (*deck.Deck, error) {
	start := time.Now()
	defer operationTimer.WithValues("convert_to_manifest").UpdateSince(start)

	// The clone below serializes the group tree recursively, so a cyclic
	// tree must be caught first; the walk carries the visited set.
	if err := deck.WalkAssetSlots(d, keepSlot); err != nil {
		return nil, err
	}

	m, err := d.Clone()
	if err != nil {
		return nil, fmt.Errorf("cloning deck: %w", err)
	}
	if m.Schema == nil {
		m.Schema = &deck.Schema{}
	}
	m.Schema.Version = SchemaVersion
	m.Schema.MigratedAt = c.opts.timestamp()

	var hashes []assetref.Hash
	seen := make(map[assetref.Hash]struct{})
	record := func(h assetref.Hash) {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			hashes = append(hashes, h)
		}
	}

	err = deck.WalkAssetSlots(m, func(path, value string) (string, error) {
		switch {
		case assetref.IsReference(value):
			h, perr := assetref.Parse(value)
			if perr != nil {
				return "", perr
			}
			record(h)
			return value, nil

		case strings.HasPrefix(value, "asset://"):
			// Looks like a reference but failed the grammar.
			return "", fmt.Errorf("slot %s: %w: %q", path, assetref.ErrBadReference, value)

		default:
			mime, payload, isData, derr := parseDataURI(value)
			if derr != nil {
				return "", presentations.ErrAssetPutFailed{Slot: path, Err: derr}
			}
			if !isData {
				// External reference; only in-band binary is promoted.
				return value, nil
			}
			h, perr := c.assets.Put(ctx, payload, presentations.AssetInfo{MimeType: mime})
			if perr != nil {
				return "", presentations.ErrAssetPutFailed{Slot: path, Err: perr}
			}
			record(h)
			return h.Reference(), nil
		}
	})
	if err != nil {
		return nil, err
	}

	m.Assets = make(map[string]string, len(hashes))
	for _, h := range hashes {
		ref := h.Reference()
		m.Assets[ref] = ref
	}

	c.log.WithFields(logrus.Fields{
		"deck.id":     m.Meta.ID,
		"deck.assets": len(hashes),
	}).Debug("converted deck to manifest")
	return m, nil
}

// ManifestToDeck converts a manifest back to the legacy shape. The input is
// not mutated. By default asset references stay in place, since callers
// resolve them against the asset store themselves; with inline set, each
// resolvable reference is expanded back into a data-URI using the stored
// bytes and mime type. References whose bytes are gone stay references.
func (c *Converter) ManifestToDeck(ctx context.Context, m *deck.Deck, inline bool) (*deck.Deck, error) {
	start := time.Now()
	defer operationTimer.WithValues("convert_to_deck").UpdateSince(start)

	if err := deck.WalkAssetSlots(m, keepSlot); err != nil {
		return nil, err
	}

	d, err := m.Clone()
	if err != nil {
		return nil, fmt.Errorf("cloning manifest: %w", err)
	}
	if !inline {
		return d, nil
	}

	err = deck.WalkAssetSlots(d, func(path, value string) (string, error) {
		if !assetref.IsReference(value) {
			return value, nil
		}
		h, perr := assetref.Parse(value)
		if perr != nil {
			return "", perr
		}
		payload, gerr := c.assets.Get(ctx, h)
		if gerr != nil {
			return "", gerr
		}
		if payload == nil {
			c.log.WithFields(logrus.Fields{
				"deck.id":    d.Meta.ID,
				"asset.hash": h.String(),
				"slot":       path,
			}).Warn("asset bytes missing, leaving reference in place")
			return value, nil
		}
		mime := defaultMimeType
		if info, ierr := c.assets.Info(ctx, h); ierr == nil && info != nil && info.MimeType != "" {
			mime = info.MimeType
		}
		return formatDataURI(mime, payload), nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// keepSlot is the no-op visitor used to validate the group tree without
// touching any slot.
func keepSlot(_, value string) (string, error) { return value, nil }

// parseDataURI splits a base64 data-URI into its mime type and payload.
// isData is false for anything that is not a base64 data-URI, including
// percent-encoded data URIs, which are treated as external strings. A
// malformed base64 payload is an error.
func parseDataURI(s string) (mime string, payload []byte, isData bool, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, false, nil
	}
	idx := strings.Index(rest, ";base64,")
	if idx < 0 {
		return "", nil, false, nil
	}
	mime = rest[:idx]
	payload, err = base64.StdEncoding.DecodeString(rest[idx+len(";base64,"):])
	if err != nil {
		return "", nil, true, fmt.Errorf("decoding data-URI payload: %w", err)
	}
	return mime, payload, true, nil
}

func formatDataURI(mime string, payload []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}
