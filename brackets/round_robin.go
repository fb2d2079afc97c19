package brackets

// Pairing is one group-stage fixture between two players.
type Pairing struct {
	Player1ID int
	Player2ID int
	Order     int
}

// BuildRoundRobin pairs every player with every other player exactly once,
// in a deterministic order derived from the input order.
func BuildRoundRobin(playerIDs []int) []Pairing {
	pairings := make([]Pairing, 0, len(playerIDs)*(len(playerIDs)-1)/2)
	order := 0
	for i := 0; i < len(playerIDs); i++ {
		for j := i + 1; j < len(playerIDs); j++ {
			order++
			pairings = append(pairings, Pairing{
				Player1ID: playerIDs[i],
				Player2ID: playerIDs[j],
				Order:     order,
			})
		}
	}
	return pairings
}
