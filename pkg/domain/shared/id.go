package shared

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ID is the identifier every persisted entity carries. It wraps a
// random UUID so handlers and repositories exchange a validated value
// instead of a bare string.
type ID struct {
	value uuid.UUID
}

// NewID returns a freshly generated ID.
func NewID() ID {
	return ID{value: uuid.New()}
}

// IDFromString parses s into an ID. Malformed input surfaces as
// ErrInvalidInput so callers can map it to a client error without
// inspecting the message.
func IDFromString(s string) (ID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: malformed id %q", ErrInvalidInput, s)
	}
	return ID{value: parsed}, nil
}

// MustIDFromString is IDFromString for values known to be valid, such
// as test fixtures. It panics on malformed input.
func MustIDFromString(s string) ID {
	id, err := IDFromString(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string { return id.value.String() }

// IsZero reports whether the ID was never assigned.
func (id ID) IsZero() bool { return id.value == uuid.Nil }

// Equals reports whether two IDs name the same entity.
func (id ID) Equals(other ID) bool { return id.value == other.value }

// Value implements driver.Valuer. IDs travel to the database as text.
func (id ID) Value() (driver.Value, error) {
	return id.value.String(), nil
}

// Scan implements sql.Scanner for text and byte columns.
func (id *ID) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("%w: cannot scan %T into ID", ErrInternal, src)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("scan id: %w", err)
	}
	id.value = parsed
	return nil
}

// MarshalJSON renders the ID as a JSON string.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(id.value.String())), nil
}

// UnmarshalJSON accepts a quoted UUID. Anything else surfaces as
// ErrInvalidInput, matching IDFromString.
func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("%w: id must be a json string", ErrInvalidInput)
	}
	parsed, err := IDFromString(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
