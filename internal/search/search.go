// Package search ranks chunks against a query without an embedding model.
package search

import (
	"regexp"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// wordRe matches Unicode word tokens: letters, digits and underscore.
var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Scored is a chunk with its lexical relevance score.
type Scored struct {
	Position int     `json:"position"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// Rank scores every chunk against query and returns them best first, ties
// in chunk order. The score is twice the number of distinct words shared
// with the query plus the similarity ratio between the query and the
// chunk's opening characters (as many as the query has).
func Rank(chunks []string, query string) []Scored {
	q := strings.ToLower(query)
	qWords := wordSet(q)
	qRunes := []rune(q)
	qSeq := chars(qRunes)

	out := make([]Scored, len(chunks))
	for i, chunk := range chunks {
		lower := strings.ToLower(chunk)
		overlap := 0
		for w := range wordSet(lower) {
			if _, ok := qWords[w]; ok {
				overlap++
			}
		}
		prefix := []rune(lower)
		prefix = prefix[:min(len(prefix), len(qRunes))]
		sim := difflib.NewMatcher(qSeq, chars(prefix)).Ratio()

		out[i] = Scored{Position: i, Text: chunk, Score: float64(2*overlap) + sim}
	}
	slices.SortStableFunc(out, func(a, b Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return out
}

// Relevant returns the texts of the limit best-ranked chunks. An empty
// query or chunk list returns the first limit chunks unscored.
func Relevant(chunks []string, query string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	if query == "" || len(chunks) == 0 {
		return slices.Clone(chunks[:min(limit, len(chunks))])
	}
	ranked := Rank(chunks, query)
	out := make([]string, 0, min(limit, len(ranked)))
	for _, s := range ranked[:min(limit, len(ranked))] {
		out = append(out, s.Text)
	}
	return out
}

// Match is a chunk containing a search term.
type Match struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
}

// FindMatches returns every chunk containing term, case-insensitively, in
// chunk order. An empty term matches nothing.
func FindMatches(chunks []string, term string) []Match {
	if term == "" {
		return nil
	}
	needle := strings.ToLower(term)
	var out []Match
	for i, c := range chunks {
		if strings.Contains(strings.ToLower(c), needle) {
			out = append(out, Match{Position: i, Text: c})
		}
	}
	return out
}

func wordSet(s string) map[string]struct{} {
	words := wordRe.FindAllString(s, -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// chars splits runes into the one-element strings difflib compares.
func chars(rs []rune) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
