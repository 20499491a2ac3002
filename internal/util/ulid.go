package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewMessageID mints a lexicographically sortable message id. ULIDs embed
// the creation time, so the message log sorts by id and by age at once.
func NewMessageID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
