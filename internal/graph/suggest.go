package graph

// suggest returns the candidate most similar to target, or "" if none is
// close enough. Candidates are scanned in order so ties resolve the same way
// on every run.
func suggest(target string, candidates []string) string {
	var best string
	bestScore := 0

	for _, candidate := range candidates {
		if candidate == target {
			continue
		}
		score := similarity(target, candidate)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	if bestScore > len(target)/2 {
		return best
	}
	return ""
}

// similarity scores two names by common prefix plus common suffix length.
func similarity(a, b string) int {
	score := 0

	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		if a[i] != b[i] {
			break
		}
		score++
	}

	for i := 0; i < minLen-score; i++ {
		if a[len(a)-1-i] != b[len(b)-1-i] {
			break
		}
		score++
	}

	return score
}
