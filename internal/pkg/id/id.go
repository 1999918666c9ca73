package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time, so transaction lists ordered by id are ordered by time.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// WithPrefix returns a ULID tagged with a short record-kind prefix, e.g. "tx_01J...".
func WithPrefix(prefix string) string {
	return prefix + "_" + New()
}
