// Package idx generates the ULIDs used for session handles and row ids.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a ULID in its canonical 26 character Crockford base32 form. IDs sort
// lexically by creation time, which keeps session handles and row ids in
// insertion order in the database indexes.
type ID string

// Zero is the empty ID. It only appears as a placeholder for "no id".
const Zero ID = ""

// ErrInvalid reports a string that is not a canonical ULID.
var ErrInvalid = errors.New("idx: invalid ulid")

// The monotonic source guarantees increasing IDs within one millisecond, but
// it is not safe for concurrent use on its own.
var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a ULID for the current time. IDs from one process sort in
// creation order, even within the same millisecond.
func New() ID {
	return NewAt(time.Now())
}

// NewAt returns a ULID carrying t, in UTC, as its timestamp. Tests use it to
// build handles with known creation times.
//
// NewAt panics only if t is outside the ULID time range (before 1970 or
// after the year 10889).
func NewAt(t time.Time) ID {
	mu.Lock()
	defer mu.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(t.UTC()), entropy).String())
}

// Parse validates s as a canonical ULID after trimming surrounding space.
// Anything else, including the empty string, returns ErrInvalid.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalid
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Time returns the timestamp embedded in id, or the zero time when id is not
// a valid ULID.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(string(id))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
