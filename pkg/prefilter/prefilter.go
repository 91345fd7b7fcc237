package prefilter

import (
	"github.com/cloudflare/ahocorasick"

	"github.com/praetorian-inc/dynhooks/pkg/finder"
)

// Prefilter uses Aho-Corasick to skip finders whose opening keyword never
// occurs in the content.
type Prefilter struct {
	matcher        *ahocorasick.Matcher
	finders        []finder.Finder
	keywords       []string         // keyword at each index
	keywordFinders map[string][]int // keyword -> indexes of finders needing it
	always         []bool           // finders without keywords (always run)
}

// New creates a prefilter from finders. Finders implementing
// finder.Keyworded with a non-empty keyword are filtered; all others always run.
func New(finders []finder.Finder) *Prefilter {
	pf := &Prefilter{
		finders:        finders,
		keywordFinders: make(map[string][]int),
		always:         make([]bool, len(finders)),
	}

	for i, f := range finders {
		kw, ok := f.(finder.Keyworded)
		if !ok || kw.Keyword() == "" {
			pf.always[i] = true
			continue
		}
		keyword := kw.Keyword()
		if _, seen := pf.keywordFinders[keyword]; !seen {
			pf.keywords = append(pf.keywords, keyword)
		}
		pf.keywordFinders[keyword] = append(pf.keywordFinders[keyword], i)
	}

	if len(pf.keywords) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(pf.keywords)
	}

	return pf
}

// Filter returns the finders that might match content, in registration order.
func (pf *Prefilter) Filter(content string) []finder.Finder {
	keep := make([]bool, len(pf.finders))
	copy(keep, pf.always)

	if pf.matcher != nil {
		for _, hit := range pf.matcher.MatchThreadSafe([]byte(content)) {
			for _, i := range pf.keywordFinders[pf.keywords[hit]] {
				keep[i] = true
			}
		}
	}

	result := make([]finder.Finder, 0, len(pf.finders))
	for i, f := range pf.finders {
		if keep[i] {
			result = append(result, f)
		}
	}
	return result
}
