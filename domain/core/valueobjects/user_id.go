package valueobjects

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// UserID is a value object identifying a social network participant.
// Ids are 64-bit integers upstream but are always carried and compared in their
// canonical decimal string form so that no precision is lost across layers.
type UserID struct {
	value string
}

// NewUserID parses and canonicalises a user id
func NewUserID(id string) (UserID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return UserID{}, errors.New("user ID cannot be empty")
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return UserID{}, errors.New("user ID must be a non-negative 64-bit integer")
	}
	if n > uint64(1<<63-1) {
		return UserID{}, errors.New("user ID overflows int64")
	}
	return UserID{value: strconv.FormatUint(n, 10)}, nil
}

// MustUserID is NewUserID for ids known to be valid, such as test fixtures
func MustUserID(id string) UserID {
	uid, err := NewUserID(id)
	if err != nil {
		panic(err)
	}
	return uid
}

// NewUserIDFromInt64 creates a UserID from the document store representation
func NewUserIDFromInt64(id int64) (UserID, error) {
	if id < 0 {
		return UserID{}, errors.New("user ID cannot be negative")
	}
	return UserID{value: strconv.FormatInt(id, 10)}, nil
}

// String returns the canonical form
func (id UserID) String() string {
	return id.value
}

// Int64 returns the numeric form used as the document key
func (id UserID) Int64() int64 {
	n, _ := strconv.ParseInt(id.value, 10, 64)
	return n
}

// Equals compares canonical forms
func (id UserID) Equals(other UserID) bool {
	return id.value == other.value
}

// IsZero checks if the UserID is the zero value
func (id UserID) IsZero() bool {
	return id.value == ""
}

// Less orders ids numerically
func (id UserID) Less(other UserID) bool {
	if len(id.value) != len(other.value) {
		return len(id.value) < len(other.value)
	}
	return id.value < other.value
}

// MarshalJSON implements json.Marshaler
func (id UserID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare numeric ids
func (id *UserID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	parsed, err := NewUserID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseUserIDs converts raw ids, failing on the first invalid one
func ParseUserIDs(raw []string) ([]UserID, error) {
	ids := make([]UserID, 0, len(raw))
	for _, r := range raw {
		id, err := NewUserID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UserIDStrings converts ids to their canonical strings
func UserIDStrings(ids []UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// SortUserIDs sorts ids numerically in place
func SortUserIDs(ids []UserID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// UserIDSet is a set of canonical user ids
type UserIDSet map[UserID]struct{}

// NewUserIDSet builds a set from ids
func NewUserIDSet(ids ...UserID) UserIDSet {
	s := make(UserIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports membership
func (s UserIDSet) Contains(id UserID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts an id
func (s UserIDSet) Add(id UserID) {
	s[id] = struct{}{}
}
