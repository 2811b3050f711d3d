package validate

import "strings"

// maxPermutationWords caps how many elements of a name sequence are
// exhaustively permuted. Sequences longer than this still score, but only the
// first maxPermutationWords! orderings are tried.
const maxPermutationWords = 8

// permutationCap = maxPermutationWords! orderings per sequence.
const permutationCap = 40320

// Similarity scores how far an identifier strays from a full display name.
// Zero means the identifier is some permutation-derived concatenation of the
// name's words or initials, possibly with letters dropped. Each unit of
// distance is a character that had to be inserted or changed; dropped
// characters are free, since initials and truncations are legitimate ways to
// derive an identifier.
func Similarity(fullName, identifier string) int {
	dist, _ := similarity(fullName, identifier)
	return dist
}

// similarity additionally reports whether the permutation search was
// truncated by the cap.
func similarity(fullName, identifier string) (int, bool) {
	identifier = strings.ToLower(identifier)
	words := splitWords(fullName)

	initials := make([]string, 0, len(words))
	for _, w := range words {
		initials = append(initials, w[:1])
	}

	best := len(identifier)
	truncated := false
	for _, seq := range [][]string{words, initials} {
		dist, cut := bestPermutation(seq, identifier)
		if cut {
			truncated = true
		}
		if dist < best {
			best = dist
		}
		if best == 0 {
			// An exact derivation was found; any earlier truncation could
			// not have improved on it.
			return 0, false
		}
	}
	return best, truncated
}

// splitWords tokenizes a name into lower-cased alphanumeric runs.
func splitWords(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		return !alnum
	})
}

// bestPermutation tries concatenations of orderings of elems against the
// identifier and returns the minimum alignment cost, short-circuiting on an
// exact derivation. Enumeration stops after permutationCap orderings.
func bestPermutation(elems []string, identifier string) (int, bool) {
	best := alignCost(strings.Join(elems, ""), identifier)
	if best == 0 {
		return 0, false
	}

	tried := 0
	stop := false
	perm := append([]string(nil), elems...)

	var walk func(k int)
	walk = func(k int) {
		if stop {
			return
		}
		if k == len(perm) {
			tried++
			if cost := alignCost(strings.Join(perm, ""), identifier); cost < best {
				best = cost
			}
			if best == 0 || tried >= permutationCap {
				stop = true
			}
			return
		}
		for i := k; i < len(perm); i++ {
			perm[k], perm[i] = perm[i], perm[k]
			walk(k + 1)
			perm[k], perm[i] = perm[i], perm[k]
			if stop {
				return
			}
		}
	}
	walk(0)

	// Truncation only matters when the cap left orderings unexplored and no
	// exact derivation was found among the tried ones.
	return best, best != 0 && len(elems) > maxPermutationWords
}

// alignCost counts the identifier characters that a longest-common-subsequence
// alignment cannot match against the candidate, i.e. the characters that were
// inserted or replaced. Candidate characters the identifier dropped cost
// nothing.
func alignCost(candidate, identifier string) int {
	return len(identifier) - lcsLength(candidate, identifier)
}

func lcsLength(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
