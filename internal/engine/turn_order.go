package engine

// TurnIndex maps draft progress to an index into the seat-sorted
// roster under snake order: forward in odd rounds, reversed in even
// rounds. Total for participantCount > 0, and the only source of turn
// truth in the system. The round boundary needs no wrap branch: round
// 1 position N-1 and round 2 position 0 land on the same index.
func TurnIndex(totalClaims, participantCount int) int {
	pos := totalClaims % participantCount
	if RoundOf(totalClaims, participantCount)%2 == 1 {
		return pos
	}
	return participantCount - 1 - pos
}

// RoundOf returns the 1-based round a pick at the given progress
// belongs to.
func RoundOf(totalClaims, participantCount int) int {
	return totalClaims/participantCount + 1
}
