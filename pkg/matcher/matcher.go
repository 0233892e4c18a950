// Package matcher compares an extracted airline name against its label.
package matcher

import (
	"regexp"
	"strings"
)

// Match reports whether extracted equals expected after trimming surrounding
// whitespace (case-sensitive), together with their similarity percentage.
// Empty input on either side is a defined non-match with zero similarity.
func Match(extracted, expected string) (bool, float64) {
	if extracted == "" || expected == "" {
		return false, 0
	}
	exact := strings.TrimSpace(extracted) == strings.TrimSpace(expected)
	return exact, Similarity(extracted, expected)
}

// Similarity returns a case-insensitive fuzzy match percentage in [0, 100].
//
// The score is the matching-blocks ratio 2*M/T, where M is the number of
// characters in matching blocks and T the total length of both strings.
// Block discovery can tie-break differently depending on argument order, so
// both orders are computed and the larger ratio wins.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	m := matchingCharacters(ra, rb)
	if r := matchingCharacters(rb, ra); r > m {
		m = r
	}
	return 100 * 2 * float64(m) / float64(len(ra)+len(rb))
}

// matchingCharacters sums the sizes of the matching blocks between a and b,
// found by repeatedly taking the longest common block and recursing on the
// unmatched pieces to its left and right.
func matchingCharacters(a, b []rune) int {
	index := make(map[rune][]int, len(b))
	for j, r := range b {
		index[r] = append(index[r], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	total := 0
	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, index, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		total += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return total
}

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] inside the given
// bounds. Among equal-length blocks the earliest in a, then in b, wins.
func longestMatch(a []rune, bIndex map[rune][]int, alo, ahi, blo, bhi int) (int, int, int) {
	bestI, bestJ, bestK := alo, blo, 0
	// lengths[j] is the length of the match ending at a[i-1], b[j].
	lengths := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range bIndex[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := lengths[j-1] + 1
			next[j] = k
			if k > bestK {
				bestI, bestJ, bestK = i-k+1, j-k+1, k
			}
		}
		lengths = next
	}
	return bestI, bestJ, bestK
}

var listNumbering = regexp.MustCompile(`^\d+\.\s*`)

// handleNames expands account handles that models often echo back.
var handleNames = []struct{ handle, name string }{
	{"USAirways", "US Airways"},
	{"SouthwestAir", "Southwest Airlines"},
	{"AmericanAir", "American Airlines"},
}

// CleanAirlineName strips list numbering, array brackets and quotes from a
// model answer and expands well-known handles to their official names.
func CleanAirlineName(s string) string {
	if s == "" {
		return ""
	}
	cleaned := listNumbering.ReplaceAllString(s, "")
	cleaned = strings.Trim(cleaned, "[]'\" ")
	for _, h := range handleNames {
		cleaned = strings.ReplaceAll(cleaned, h.handle, h.name)
	}
	return strings.TrimSpace(cleaned)
}
