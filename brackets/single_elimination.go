package brackets

import (
	"fmt"
	"math/bits"
)

// BuildSingleElimination lays qualifiers into the smallest power-of-two
// bracket that holds them, or into an explicitly requested size. Missing
// opponents become byes. Standard seeding is used (seed 1 meets seed N in the
// final, not in round 1), then a swap pass breaks up same-group round-1 pairs
// where the field allows.
func BuildSingleElimination(qualifiers []Qualifier, requestedSize int) (*Bracket, error) {
	n := len(qualifiers)
	if n < 2 {
		return nil, ErrNotEnoughQualifiers
	}

	size := nextPowerOfTwo(n)
	if requestedSize > 0 {
		if requestedSize&(requestedSize-1) != 0 || requestedSize < n {
			return nil, fmt.Errorf("%w: requested %d for %d qualifiers", ErrInvalidBracketSize, requestedSize, n)
		}
		size = requestedSize
	}
	rounds := bits.TrailingZeros(uint(size))

	order := seedOrder(size)

	slots := make([]Slot, 0, size-1)
	for pos := 0; pos < size/2; pos++ {
		slot := Slot{Round: 1, Position: pos}
		if s := order[2*pos]; s <= n {
			slot.Player1ID = &qualifiers[s-1].PlayerID
		}
		if s := order[2*pos+1]; s <= n {
			slot.Player2ID = &qualifiers[s-1].PlayerID
		}
		if (slot.Player1ID == nil) != (slot.Player2ID == nil) {
			slot.IsBye = true
		}
		slots = append(slots, slot)
	}

	avoidGroupRematches(slots[:size/2], qualifiers)

	for r := 2; r <= rounds; r++ {
		count := size >> uint(r)
		for pos := 0; pos < count; pos++ {
			slots = append(slots, Slot{Round: r, Position: pos})
		}
	}

	return &Bracket{Size: size, Rounds: rounds, Slots: slots}, nil
}

// seedOrder returns the seed occupying each leaf position of a bracket of the
// given size, using the classic pattern 1,8,4,5,2,7,3,6 for size 8: pairing
// consecutive positions gives seed i vs seed size+1-i matchups.
func seedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		mirror := len(order)*2 + 1
		next := make([]int, 0, len(order)*2)
		for _, s := range order {
			next = append(next, s, mirror-s)
		}
		order = next
	}
	return order
}

// avoidGroupRematches swaps the second player of a same-group round-1 pair
// with another pair's equal-ranked qualifier from a different group. A bounded
// best-effort pass: when the field does not allow a clean swap the pair stays.
func avoidGroupRematches(round1 []Slot, qualifiers []Qualifier) {
	byPlayer := make(map[int]Qualifier, len(qualifiers))
	for _, q := range qualifiers {
		byPlayer[q.PlayerID] = q
	}

	sameGroup := func(s Slot) bool {
		if s.Player1ID == nil || s.Player2ID == nil {
			return false
		}
		q1, q2 := byPlayer[*s.Player1ID], byPlayer[*s.Player2ID]
		return q1.GroupID != 0 && q1.GroupID == q2.GroupID
	}

	for i := range round1 {
		if !sameGroup(round1[i]) {
			continue
		}
		want := byPlayer[*round1[i].Player2ID]
		for j := range round1 {
			if j == i || round1[j].Player2ID == nil {
				continue
			}
			cand := byPlayer[*round1[j].Player2ID]
			if cand.GroupRank != want.GroupRank || cand.GroupID == byPlayer[*round1[i].Player1ID].GroupID {
				continue
			}
			round1[i].Player2ID, round1[j].Player2ID = round1[j].Player2ID, round1[i].Player2ID
			if sameGroup(round1[j]) {
				// Swap made pair j a rematch; undo and keep looking.
				round1[i].Player2ID, round1[j].Player2ID = round1[j].Player2ID, round1[i].Player2ID
				continue
			}
			break
		}
	}
}

func nextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
