package proxy

import (
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// List is the ordered candidates of one connection attempt.
//
// The zero value is an empty list.
type List struct {
	candidates []Candidate

	// proxies that failed during this attempt, by Key. They reach the shared
	// retry info only through Resolver.ReportSuccess.
	badMarks map[string]time.Time
}

func NewList(cs ...Candidate) *List {
	return &List{candidates: slices.Clone(cs)}
}

func (l *List) IsEmpty() bool {
	return len(l.candidates) == 0
}

func (l *List) Len() int {
	return len(l.candidates)
}

// Current is the candidate to try next. ok is false when the list is empty.
func (l *List) Current() (c Candidate, ok bool) {
	if l.IsEmpty() {
		return
	}
	return l.candidates[0], true
}

func (l *List) IsDirect() bool {
	c, ok := l.Current()
	return ok && c.IsDirect()
}

func (l *List) Candidates() []Candidate {
	return slices.Clone(l.candidates)
}

// UseDirect replaces the whole list with a single direct candidate.
func (l *List) UseDirect() {
	l.candidates = []Candidate{Direct}
}

// RemoveProxiesWithoutScheme drops every candidate whose scheme is not in mask.
func (l *List) RemoveProxiesWithoutScheme(mask Scheme) {
	for i := 0; i < len(l.candidates); {
		if l.candidates[i].Scheme&mask == 0 {
			l.candidates = slices.Delete(l.candidates, i, i+1)
			continue
		}
		i++
	}
}

// Fallback marks the current candidate bad and drops it.
// It reports whether another candidate remains.
func (l *List) Fallback(at time.Time) bool {
	c, ok := l.Current()
	if !ok {
		return false
	}
	if !c.IsDirect() {
		if l.badMarks == nil {
			l.badMarks = make(map[string]time.Time)
		}
		l.badMarks[c.Key()] = at
	}
	l.candidates = l.candidates[1:]
	return !l.IsEmpty()
}

// deprioritize moves candidates for which isBad is true to the back, keeping
// the relative order inside both groups. Direct is never bad.
func (l *List) deprioritize(isBad func(Candidate) bool) {
	good := make([]Candidate, 0, len(l.candidates))
	var bad []Candidate
	for _, c := range l.candidates {
		if !c.IsDirect() && isBad(c) {
			bad = append(bad, c)
		} else {
			good = append(good, c)
		}
	}
	l.candidates = append(good, bad...)
}

func (l *List) String() string {
	if l.IsEmpty() {
		return "[]"
	}
	ss := make([]string, len(l.candidates))
	for i, c := range l.candidates {
		ss[i] = c.String()
	}
	return "[" + strings.Join(ss, "; ") + "]"
}
