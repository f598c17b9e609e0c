package conversation

// EstimateTokens approximates token cost by character count / 4, rounded
// up. Deliberately crude: the budget check only needs to be in the right
// order of magnitude, and a heuristic avoids a tokenizer dependency.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
