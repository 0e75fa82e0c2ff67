package aggregates

import (
	"errors"
	"sort"
	"time"

	"coredetect/domain/core/valueobjects"
)

// ErrEmptyRanking is returned when a ranking has no members to promote
var ErrEmptyRanking = errors.New("ranking is empty")

// RankedUser is a user with its score
type RankedUser struct {
	UserID valueobjects.UserID `json:"user_id"`
	Score  float64             `json:"score"`
}

// Ranking orders the members of a cluster relative to a pivot user
type Ranking struct {
	PivotID   valueobjects.UserID
	Method    string
	ranked    []RankedUser
	CreatedAt time.Time
}

// NewRanking sorts scores descending, breaking ties by ascending user id
func NewRanking(pivot valueobjects.UserID, method string, scores map[valueobjects.UserID]float64) *Ranking {
	ranked := make([]RankedUser, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, RankedUser{UserID: id, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].UserID.Less(ranked[j].UserID)
	})
	return &Ranking{
		PivotID:   pivot,
		Method:    method,
		ranked:    ranked,
		CreatedAt: time.Now().UTC(),
	}
}

// ReconstructRanking rebuilds a ranking already in score order, as stored
func ReconstructRanking(pivot valueobjects.UserID, method string, ranked []RankedUser, createdAt time.Time) *Ranking {
	out := make([]RankedUser, len(ranked))
	copy(out, ranked)
	return &Ranking{PivotID: pivot, Method: method, ranked: out, CreatedAt: createdAt}
}

// Top1 is the highest ranked user
func (r *Ranking) Top1() (valueobjects.UserID, error) {
	if len(r.ranked) == 0 {
		return valueobjects.UserID{}, ErrEmptyRanking
	}
	return r.ranked[0].UserID, nil
}

// TopN returns up to n user ids in rank order
func (r *Ranking) TopN(n int) []valueobjects.UserID {
	if n > len(r.ranked) || n < 0 {
		n = len(r.ranked)
	}
	out := make([]valueobjects.UserID, 0, n)
	for _, ru := range r.ranked[:n] {
		out = append(out, ru.UserID)
	}
	return out
}

// Top20 returns up to twenty user ids in rank order
func (r *Ranking) Top20() []valueobjects.UserID {
	return r.TopN(20)
}

// Entries returns a copy of the ranked users
func (r *Ranking) Entries() []RankedUser {
	out := make([]RankedUser, len(r.ranked))
	copy(out, r.ranked)
	return out
}

// Len is the number of ranked users
func (r *Ranking) Len() int {
	return len(r.ranked)
}
