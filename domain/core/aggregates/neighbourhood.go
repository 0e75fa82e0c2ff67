package aggregates

import (
	"time"

	"coredetect/domain/core/valueobjects"
)

// Neighbourhood is the local social neighbourhood of a seed user: the seed, the accounts
// it follows, and the follow relationships among them.
type Neighbourhood struct {
	SeedID    valueobjects.UserID
	users     []valueobjects.UserID
	follows   map[valueobjects.UserID][]valueobjects.UserID
	CreatedAt time.Time
}

// NewNeighbourhood restricts every follow list to the member set
func NewNeighbourhood(seed valueobjects.UserID, members []valueobjects.UserID, follows map[valueobjects.UserID][]valueobjects.UserID) *Neighbourhood {
	set := valueobjects.NewUserIDSet(members...)
	set.Add(seed)

	users := make([]valueobjects.UserID, 0, len(set))
	for id := range set {
		users = append(users, id)
	}
	valueobjects.SortUserIDs(users)

	restricted := make(map[valueobjects.UserID][]valueobjects.UserID, len(users))
	for _, u := range users {
		seen := valueobjects.NewUserIDSet()
		for _, v := range follows[u] {
			if v.Equals(u) || !set.Contains(v) || seen.Contains(v) {
				continue
			}
			seen.Add(v)
			restricted[u] = append(restricted[u], v)
		}
		valueobjects.SortUserIDs(restricted[u])
	}

	return &Neighbourhood{
		SeedID:    seed,
		users:     users,
		follows:   restricted,
		CreatedAt: time.Now().UTC(),
	}
}

// UserIDs returns the members in ascending id order
func (n *Neighbourhood) UserIDs() []valueobjects.UserID {
	out := make([]valueobjects.UserID, len(n.users))
	copy(out, n.users)
	return out
}

// Follows returns the members that u follows
func (n *Neighbourhood) Follows(u valueobjects.UserID) []valueobjects.UserID {
	out := make([]valueobjects.UserID, len(n.follows[u]))
	copy(out, n.follows[u])
	return out
}

// Size is the number of members including the seed
func (n *Neighbourhood) Size() int {
	return len(n.users)
}

// EdgeCount is the number of directed follow relationships
func (n *Neighbourhood) EdgeCount() int {
	total := 0
	for _, vs := range n.follows {
		total += len(vs)
	}
	return total
}
