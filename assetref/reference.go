// Package assetref implements the asset reference grammar used inside deck
// manifests: asset://sha256:<64 lowercase hex>. A Hash is the bare hex
// digest of an asset's bytes; a reference is its URI form. Hashing is
// SHA-256 over the exact bytes.
package assetref

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/opencontainers/go-digest"
)

// Scheme is the URI prefix of an asset reference.
const Scheme = "asset://sha256:"

// ReferenceRegexp matches a full asset reference, anchored. The single
// capture group is the hex digest.
var ReferenceRegexp = regexp.MustCompile(`^asset://sha256:([0-9a-f]{64})$`)

var hexRegexp = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ErrBadReference is returned when parsing a string that does not satisfy
// the reference grammar.
var ErrBadReference = errors.New("invalid asset reference")

// Hash is the lowercase hex SHA-256 of an asset's bytes.
type Hash string

// FromBytes hashes p. Pure and deterministic.
func FromBytes(p []byte) Hash {
	return Hash(digest.SHA256.FromBytes(p).Encoded())
}

func (h Hash) String() string { return string(h) }

// Reference returns the URI form of h.
func (h Hash) Reference() string { return Scheme + string(h) }

// Validate checks that h is 64 lowercase hex characters.
func (h Hash) Validate() error {
	if !hexRegexp.MatchString(string(h)) {
		return fmt.Errorf("%w: bad hash %q", ErrBadReference, string(h))
	}
	return nil
}

// IsReference reports whether s is a well-formed asset reference.
func IsReference(s string) bool {
	return ReferenceRegexp.MatchString(s)
}

// Parse extracts the hash from a reference string. The error wraps
// ErrBadReference.
func Parse(s string) (Hash, error) {
	m := ReferenceRegexp.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrBadReference, s)
	}
	return Hash(m[1]), nil
}
