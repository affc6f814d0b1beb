// Package dedup decides whether a candidate title is new, a near-duplicate of
// a recent article, or unusable.
package dedup

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/deusflow/newshub/internal/news"
)

type Decision int

const (
	Insert Decision = iota
	Update
	Skip
)

func (d Decision) String() string {
	switch d {
	case Insert:
		return "insert"
	case Update:
		return "update"
	default:
		return "skip"
	}
}

// Result of checking one title. Match is set only for Update.
type Result struct {
	Decision Decision
	Match    news.WindowEntry
	Score    float64
}

// Filter holds the recent-articles window, most recent first.
type Filter struct {
	window    []news.WindowEntry
	threshold float64
	metric    *metrics.SorensenDice
}

// New copies window so later Remember calls do not touch the caller's slice.
func New(window []news.WindowEntry, threshold float64) *Filter {
	w := make([]news.WindowEntry, len(window))
	copy(w, window)

	sd := metrics.NewSorensenDice()
	sd.CaseSensitive = false
	sd.NgramSize = 2

	return &Filter{window: w, threshold: threshold, metric: sd}
}

// Check runs the exact pass over the whole window first, then the fuzzy pass.
// An entry matches on its published title or on its feed title. The fuzzy
// pass returns the first entry at or above the threshold in window order,
// not the highest scoring one.
func (f *Filter) Check(title string) Result {
	title = strings.TrimSpace(title)
	if title == "" {
		return Result{Decision: Skip}
	}

	for _, e := range f.window {
		if e.Title == title || (e.SourceTitle != "" && e.SourceTitle == title) {
			return Result{Decision: Update, Match: e, Score: 1}
		}
	}

	for _, e := range f.window {
		if score := f.score(title, e); score >= f.threshold {
			return Result{Decision: Update, Match: e, Score: score}
		}
	}

	return Result{Decision: Insert}
}

func (f *Filter) score(title string, e news.WindowEntry) float64 {
	s := f.Similarity(title, e.Title)
	if e.SourceTitle != "" {
		s = max(s, f.Similarity(title, e.SourceTitle))
	}
	return s
}

// Remember puts a freshly inserted article at the head of the window.
func (f *Filter) Remember(e news.WindowEntry) {
	f.window = append([]news.WindowEntry{e}, f.window...)
}

func (f *Filter) Len() int { return len(f.window) }

// Similarity is the case-insensitive Sørensen–Dice coefficient over character
// bigrams, computed with whitespace removed. Identical strings score 1 and
// strings shorter than two characters score 0.
func (f *Filter) Similarity(a, b string) float64 {
	a, b = stripSpace(a), stripSpace(b)
	if a == b {
		return 1
	}
	if utf8.RuneCountInString(a) < 2 || utf8.RuneCountInString(b) < 2 {
		return 0
	}
	return strutil.Similarity(a, b, f.metric)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
