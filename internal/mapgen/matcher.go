// Package mapgen proposes pairings between source and destination accounts
// for a new mapping file, by name similarity and optionally via a model.
package mapgen

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/dvloznov/budget-sync/internal/domain"
)

// DefaultThreshold is the minimum similarity ratio for a proposed pairing.
// The ratio rewards shared length, so unrelated short names still score
// near 0.6; below this the proposals are noise.
const DefaultThreshold = 0.7

// Proposal pairs a source account with its best-matching destination account.
type Proposal struct {
	Source      domain.Account
	Destination domain.Account
	Score       float64
}

// Ratio is the normalized Levenshtein similarity between two account names,
// in [0, 1]. Names are lowercased and whitespace-collapsed first so that
// "ANZ  Everyday" and "anz everyday" compare equal.
func Ratio(a, b string) float64 {
	a, b = normalizeName(a), normalizeName(b)
	if a == "" && b == "" {
		return 0
	}
	return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Candidates greedily pairs each source account with its closest unclaimed
// destination account. Pairs are taken best-score-first; anything below the
// threshold is left unpaired. Closed destination accounts are never proposed.
func Candidates(source, dest []domain.Account, threshold float64) []Proposal {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	type pair struct {
		si, di int
		score  float64
	}
	var pairs []pair
	for si, s := range source {
		for di, d := range dest {
			if d.Closed {
				continue
			}
			if score := Ratio(s.Name, d.Name); score >= threshold {
				pairs = append(pairs, pair{si: si, di: di, score: score})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	usedSource := make(map[int]bool, len(source))
	usedDest := make(map[int]bool, len(dest))
	var proposals []Proposal
	for _, p := range pairs {
		if usedSource[p.si] || usedDest[p.di] {
			continue
		}
		usedSource[p.si] = true
		usedDest[p.di] = true
		proposals = append(proposals, Proposal{
			Source:      source[p.si],
			Destination: dest[p.di],
			Score:       p.score,
		})
	}
	return proposals
}
