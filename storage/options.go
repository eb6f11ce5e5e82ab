package storage

import (
	"time"

	"github.com/sirupsen/logrus"

	presentations "github.com/sethwebster/presentations"
)

// Options configures the storage components. The zero value is usable:
// empty namespace, wall clock, and a discard-free default logger.
type Options struct {
	// Prefix is the namespace prepended to every key and honored by
	// SCAN patterns and the search index.
	Prefix string

	// Now is the single wall-clock source for every timestamp the core
	// writes. Tests freeze it.
	Now presentations.Clock

	// Logger receives structured operational logs.
	Logger *logrus.Entry
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return o
}

// timestamp renders the clock in the ISO-8601 form every createdAt,
// updatedAt and migratedAt field uses.
func (o Options) timestamp() string {
	return o.Now().UTC().Format(time.RFC3339Nano)
}
