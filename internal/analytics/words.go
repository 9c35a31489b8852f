// Package analytics holds the pure summaries computed over fetched
// records: abstract word frequency and the yearly publication trend.
package analytics

import (
	"regexp"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MinWordLength is the shortest token counted by WordFrequency.
const MinWordLength = 4

// wordRun matches maximal runs of word characters.
var wordRun = regexp.MustCompile(`[\p{L}\p{N}\p{M}_]+`)

var lower = cases.Lower(language.Und)

// WordCount is one token and its number of occurrences.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// WordFrequency counts lowercased word tokens of at least MinWordLength
// runes and returns the top n by count. Equal counts keep the order in
// which the words first appeared. n <= 0 returns every token.
func WordFrequency(text string, n int) []WordCount {
	index := make(map[string]int)
	var counts []WordCount

	for _, w := range wordRun.FindAllString(lower.String(text), -1) {
		if utf8.RuneCountInString(w) < MinWordLength {
			continue
		}
		if i, ok := index[w]; ok {
			counts[i].Count++
			continue
		}
		index[w] = len(counts)
		counts = append(counts, WordCount{Word: w, Count: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})

	if n > 0 && n < len(counts) {
		counts = counts[:n]
	}
	return counts
}
