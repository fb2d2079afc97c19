// Package brackets builds tournament pairing structures and carries the
// websocket hub that fans live updates out to viewers.
package brackets

import "errors"

var (
	ErrNotEnoughQualifiers = errors.New("not enough qualifiers to generate a knockout bracket (minimum 2)")
	ErrInvalidBracketSize  = errors.New("bracket size must be a power of two covering the qualifier count")
)

// Qualifier is one player advancing into the knockout, highest rank first.
// GroupID/GroupRank carry where the qualifier came from so round 1 can avoid
// same-group rematches; both are zero for manually seeded fields.
type Qualifier struct {
	PlayerID  int
	GroupID   int
	GroupRank int
}

// Slot is one addressable node of the knockout tree. Round starts at 1,
// Position is zero-based within the round. Rounds after the first have empty
// player references filled only by advancement.
type Slot struct {
	Round     int
	Position  int
	Player1ID *int
	Player2ID *int
	IsBye     bool
}

// Bracket is the generated tree: every slot of every round, ordered by
// (round, position).
type Bracket struct {
	Size   int
	Rounds int
	Slots  []Slot
}
