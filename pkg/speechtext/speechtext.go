// Package speechtext prepares reply text for speech synthesis.
package speechtext

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var digitRunRe = regexp.MustCompile(`\d+`)

// Years in this range are spoken as a whole number.
const (
	minYear = 1900
	maxYear = 2099
)

// Preprocessor rewrites text so a synthesizer reads numbers digit by digit
// while keeping plausible years intact.
type Preprocessor struct {
	replacements []replacement
}

type replacement struct {
	re *regexp.Regexp
	to string
}

// New returns a preprocessor applying the given case-insensitive phrase
// replacements before digit expansion. Longer phrases are replaced first.
func New(replacements map[string]string) *Preprocessor {
	keys := make([]string, 0, len(replacements))
	for from := range replacements {
		if strings.TrimSpace(from) != "" {
			keys = append(keys, from)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	p := &Preprocessor{}
	for _, from := range keys {
		re := regexp.MustCompile(`(?i)` + boundary(from[0]) + regexp.QuoteMeta(from) + boundary(from[len(from)-1]))
		p.replacements = append(p.replacements, replacement{re: re, to: replacements[from]})
	}
	return p
}

// Expand applies the phrase replacements and then digit expansion.
func (p *Preprocessor) Expand(text string) string {
	if p != nil {
		for _, r := range p.replacements {
			text = r.re.ReplaceAllLiteralString(text, r.to)
		}
	}
	return ExpandDigits(text)
}

// ExpandDigits separates every digit run with spaces, except four digit
// runs between 1900 and 2099.
func ExpandDigits(text string) string {
	return digitRunRe.ReplaceAllStringFunc(text, func(run string) string {
		if isYear(run) {
			return run
		}
		return strings.Join(strings.Split(run, ""), " ")
	})
}

// boundary anchors a phrase edge only when that edge is a word character.
func boundary(c byte) string {
	if c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
		return `\b`
	}
	return ""
}

func isYear(run string) bool {
	if len(run) != 4 {
		return false
	}
	n, err := strconv.Atoi(run)
	return err == nil && n >= minYear && n <= maxYear
}
