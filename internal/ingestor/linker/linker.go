package linker

import (
	"fmt"
	"regexp"
	"strings"

	"market-pulse/internal/ingestor/dto"
)

// Matching methods in priority order. When several methods hit the same
// ticker for one article, only the highest-priority match is kept.
const (
	MethodCashtag = "cashtag"
	MethodDict    = "dict"
	MethodSynonym = "synonym"
	MethodNER     = "ner"
)

var methodPriority = map[string]int{
	MethodCashtag: 0,
	MethodDict:    1,
	MethodSynonym: 2,
	MethodNER:     3,
}

// Confidences holds per-method default confidence scores.
type Confidences struct {
	Cashtag float64 `mapstructure:"cashtag"`
	Dict    float64 `mapstructure:"dict"`
	Synonym float64 `mapstructure:"synonym"`
	NER     float64 `mapstructure:"ner"`
}

// DefaultConfidences returns the stock per-method confidences.
func DefaultConfidences() Confidences {
	return Confidences{
		Cashtag: 0.95,
		Dict:    0.7,
		Synonym: 0.6,
		NER:     0.4,
	}
}

// Linker matches article text against ticker alias maps.
type Linker struct {
	conf Confidences
}

// New creates a Linker. Zero-value confidences fall back to the defaults.
func New(conf Confidences) *Linker {
	if conf.Cashtag == 0 && conf.Dict == 0 && conf.Synonym == 0 && conf.NER == 0 {
		conf = DefaultConfidences()
	}
	return &Linker{conf: conf}
}

type candidate struct {
	method string
	conf   float64
	terms  []string
	spans  [][2]int
}

// Link produces at most one confidence-scored link per ticker from cleaned
// article text. nerCandidates are externally recognized entity strings and
// carry the lowest trust. Empty text or alias map yields zero links.
func (l *Linker) Link(text string, aliasMap map[string][]string, nerCandidates []string) []dto.TickerLink {
	if text == "" || len(aliasMap) == 0 {
		return nil
	}

	lowerText := strings.ToLower(text)
	best := make(map[string]*candidate)

	for symbol, aliases := range aliasMap {
		for _, alias := range aliases {
			if alias == "" {
				continue
			}
			if strings.HasPrefix(alias, "$") {
				l.matchCashtag(text, symbol, alias, best)
			} else if strings.EqualFold(alias, symbol) {
				l.matchTerm(lowerText, symbol, alias, MethodDict, l.conf.Dict, best)
			} else {
				l.matchTerm(lowerText, symbol, alias, MethodSynonym, l.conf.Synonym, best)
			}
		}
	}

	for _, ner := range nerCandidates {
		for symbol, aliases := range aliasMap {
			for _, alias := range aliases {
				if strings.EqualFold(strings.TrimPrefix(alias, "$"), ner) {
					l.record(best, symbol, candidate{
						method: MethodNER,
						conf:   l.conf.NER,
						terms:  []string{ner},
					})
				}
			}
		}
	}

	links := make([]dto.TickerLink, 0, len(best))
	for symbol, c := range best {
		links = append(links, dto.TickerLink{
			Ticker:       symbol,
			Confidence:   c.conf,
			Method:       c.method,
			MatchedTerms: c.terms,
			CharSpans:    c.spans,
		})
	}
	return links
}

// matchCashtag looks for an exact $SYMBOL token.
func (l *Linker) matchCashtag(text, symbol, alias string, best map[string]*candidate) {
	pattern := regexp.MustCompile(fmt.Sprintf(`(^|[\s([{"'])(%s)($|[\s.,;:!?)\]}"'])`, regexp.QuoteMeta(alias)))
	loc := pattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return
	}
	l.record(best, symbol, candidate{
		method: MethodCashtag,
		conf:   l.conf.Cashtag,
		terms:  []string{alias},
		spans:  [][2]int{{loc[4], loc[5]}},
	})
}

// matchTerm looks for a case-insensitive whole-word occurrence of alias.
func (l *Linker) matchTerm(lowerText, symbol, alias, method string, conf float64, best map[string]*candidate) {
	lowerAlias := strings.ToLower(alias)
	idx := indexWord(lowerText, lowerAlias)
	if idx < 0 {
		return
	}
	l.record(best, symbol, candidate{
		method: method,
		conf:   conf,
		terms:  []string{alias},
		spans:  [][2]int{{idx, idx + len(alias)}},
	})
}

// record keeps the highest-priority candidate per ticker and merges matched
// terms when the method ties.
func (l *Linker) record(best map[string]*candidate, symbol string, c candidate) {
	existing, ok := best[symbol]
	if !ok || methodPriority[c.method] < methodPriority[existing.method] {
		best[symbol] = &c
		return
	}
	if methodPriority[c.method] == methodPriority[existing.method] {
		for _, term := range c.terms {
			if !containsFold(existing.terms, term) {
				existing.terms = append(existing.terms, term)
				existing.spans = append(existing.spans, c.spans...)
			}
		}
	}
}

// indexWord returns the byte offset of needle in haystack when it occurs at
// word boundaries, or -1.
func indexWord(haystack, needle string) int {
	from := 0
	for {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return -1
		}
		idx += from
		if boundedAt(haystack, idx, len(needle)) {
			return idx
		}
		from = idx + 1
	}
}

func boundedAt(s string, idx, length int) bool {
	if idx > 0 && isWordByte(s[idx-1]) {
		return false
	}
	end := idx + length
	if end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
