package qbittorrent

import (
	"sort"
	"strings"
	"unicode"
)

const (
	minNameMatchThreshold = 0.5
	defaultMaxMatches     = 10
)

// TorrentMatch is a torrent whose name resembles a search query
type TorrentMatch struct {
	Torrent   Torrent `json:"torrent"`
	Score     float64 `json:"score"`
	NameMatch float64 `json:"name_match"`
}

// MatchTorrents ranks torrents by how well their names match query. Release
// names like "Some.Movie.2023.1080p" are tokenized, so punctuation and case
// do not matter. At most limit matches are returned; limit <= 0 uses the
// default.
func MatchTorrents(torrents []Torrent, query string, limit int) []TorrentMatch {
	queryTokens := tokenizeName(query)
	if len(queryTokens) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = defaultMaxMatches
	}

	var matches []TorrentMatch
	for _, t := range torrents {
		if m, ok := evaluateMatch(t, queryTokens); ok {
			matches = append(matches, m)
		}
	}

	// stable keeps daemon order between equal scores
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func evaluateMatch(t Torrent, queryTokens []string) (TorrentMatch, bool) {
	tokens := tokenizeName(t.Name)
	if len(tokens) == 0 {
		return TorrentMatch{}, false
	}

	nameMatch := computeTokenMatch(queryTokens, tokens)
	if nameMatch < minNameMatchThreshold {
		return TorrentMatch{}, false
	}

	score := nameMatch
	if t.IsActivelySeeding() {
		score += 0.05
	}
	if t.IsComplete() {
		score += 0.05
	} else if t.Progress < 0.9 {
		score -= 0.15
	}

	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}

	return TorrentMatch{Torrent: t, Score: score, NameMatch: nameMatch}, true
}

// tokenizeName splits a name into normalized tokens for comparison.
func tokenizeName(input string) []string {
	clean := normalizeName(input)
	if clean == "" {
		return nil
	}
	return strings.Fields(clean)
}

// normalizeName lowercases input and keeps only alphanumeric tokens separated by spaces.
func normalizeName(input string) string {
	var b strings.Builder
	lastSpace := true

	for _, r := range strings.ToLower(input) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// computeTokenMatch returns the share of desired tokens present in candidate.
func computeTokenMatch(desired, candidate []string) float64 {
	if len(desired) == 0 || len(candidate) == 0 {
		return 0
	}

	candidateSet := make(map[string]struct{}, len(candidate))
	for _, token := range candidate {
		candidateSet[token] = struct{}{}
	}

	var matches int
	for _, token := range desired {
		if _, ok := candidateSet[token]; ok {
			matches++
		}
	}

	return float64(matches) / float64(len(desired))
}
