// Package keyword is a local intent recognizer for the interview. It knows
// two things: whether an utterance confirms or rejects, and otherwise that
// the user is giving information.
package keyword

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/harunnryd/sprachbot/pkg/adapters/nlu"
)

// Config holds the phrase lists. Empty lists select the German defaults.
//
// Negators directly before a single-word phrase invert it ("nicht falsch").
// A phrase ending in one of the Postfix predicates is also inverted by a
// following PostfixNegator, optionally with one filler word in between
// ("stimmt so nicht"). "ja" and "nein" are never inverted from the right.
type Config struct {
	Confirm         []string `mapstructure:"confirm"`
	Reject          []string `mapstructure:"reject"`
	Negators        []string `mapstructure:"negators"`
	Postfix         []string `mapstructure:"postfix"`
	PostfixNegators []string `mapstructure:"postfix_negators"`
	Fillers         []string `mapstructure:"fillers"`
}

func DefaultConfig() Config {
	return Config{
		Confirm:         []string{"ja", "das stimmt", "stimmt", "richtig", "korrekt", "genau"},
		Reject:          []string{"nein", "das stimmt nicht", "falsch", "nicht korrekt", "nicht richtig"},
		Negators:        []string{"nicht", "kein", "keine"},
		Postfix:         []string{"stimmt", "richtig", "korrekt", "falsch"},
		PostfixNegators: []string{"nicht"},
		Fillers:         []string{"so", "ganz", "wirklich", "leider", "eben", "wohl", "aber"},
	}
}

type phrase struct {
	tokens   []string
	category string
}

// Recognizer matches whole tokens, never substrings, so "Jakob" is not "ja".
type Recognizer struct {
	phrases         []phrase
	negators        map[string]bool
	postfix         map[string]bool
	postfixNegators map[string]bool
	fillers         map[string]bool
}

func New(cfg Config) *Recognizer {
	def := DefaultConfig()
	if len(cfg.Confirm) == 0 {
		cfg.Confirm = def.Confirm
	}
	if len(cfg.Reject) == 0 {
		cfg.Reject = def.Reject
	}
	if len(cfg.Negators) == 0 {
		cfg.Negators = def.Negators
	}
	if len(cfg.Postfix) == 0 {
		cfg.Postfix = def.Postfix
	}
	if len(cfg.PostfixNegators) == 0 {
		cfg.PostfixNegators = def.PostfixNegators
	}
	if len(cfg.Fillers) == 0 {
		cfg.Fillers = def.Fillers
	}
	r := &Recognizer{
		negators:        tokenSet(cfg.Negators),
		postfix:         tokenSet(cfg.Postfix),
		postfixNegators: tokenSet(cfg.PostfixNegators),
		fillers:         tokenSet(cfg.Fillers),
	}
	add := func(list []string, category string) {
		for _, p := range list {
			if toks := tokenize(p); len(toks) > 0 {
				r.phrases = append(r.phrases, phrase{tokens: toks, category: category})
			}
		}
	}
	add(cfg.Confirm, nlu.EntityConfirm)
	add(cfg.Reject, nlu.EntityReject)
	sort.SliceStable(r.phrases, func(i, j int) bool {
		return len(r.phrases[i].tokens) > len(r.phrases[j].tokens)
	})
	return r
}

func (r *Recognizer) Name() string { return "keyword" }

// Recognize never fails.
func (r *Recognizer) Recognize(_ context.Context, text, _ string) (nlu.Result, error) {
	tokens := tokenize(text)
	used := make([]bool, len(tokens))
	var confirm, reject []string

	for _, p := range r.phrases {
		for i := 0; i+len(p.tokens) <= len(tokens); i++ {
			if !matchAt(tokens, used, i, p.tokens) {
				continue
			}
			for k := range p.tokens {
				used[i+k] = true
			}
			category := p.category
			span := strings.Join(p.tokens, " ")
			if at, ok := r.negatedBefore(tokens, used, i, p); ok {
				used[at] = true
				category = invert(category)
				span = tokens[at] + " " + span
			} else if from, at, ok := r.negatedAfter(tokens, used, i+len(p.tokens), p); ok {
				for k := from; k <= at; k++ {
					used[k] = true
				}
				category = invert(category)
				span = span + " " + strings.Join(tokens[from:at+1], " ")
			}
			if category == nlu.EntityConfirm {
				confirm = append(confirm, span)
			} else {
				reject = append(reject, span)
			}
		}
	}

	switch {
	case len(confirm) > 0 && len(reject) > 0:
		return nlu.Result{TopIntent: nlu.IntentConfirmation}, nil
	case len(confirm) > 0:
		return nlu.Result{
			TopIntent: nlu.IntentConfirmation,
			Entities:  []nlu.Entity{{Category: nlu.EntityConfirm, Text: confirm[0]}},
		}, nil
	case len(reject) > 0:
		return nlu.Result{
			TopIntent: nlu.IntentConfirmation,
			Entities:  []nlu.Entity{{Category: nlu.EntityReject, Text: reject[0]}},
		}, nil
	default:
		return nlu.Result{TopIntent: nlu.IntentEnterInformation}, nil
	}
}

// negatedBefore reports a free negator directly before a single-word phrase
// starting at i.
func (r *Recognizer) negatedBefore(tokens []string, used []bool, i int, p phrase) (int, bool) {
	if len(p.tokens) != 1 || i == 0 || used[i-1] || !r.negators[tokens[i-1]] {
		return -1, false
	}
	return i - 1, true
}

// negatedAfter reports a free postfix negator following a phrase that ends
// in a predicate. end is the index after the phrase; one filler word may
// sit in between. It returns the first and last consumed index.
func (r *Recognizer) negatedAfter(tokens []string, used []bool, end int, p phrase) (int, int, bool) {
	if !r.postfix[p.tokens[len(p.tokens)-1]] {
		return -1, -1, false
	}
	for j := end; j < len(tokens) && j <= end+1; j++ {
		if used[j] {
			return -1, -1, false
		}
		if r.postfixNegators[tokens[j]] {
			return end, j, true
		}
		if !r.fillers[tokens[j]] {
			return -1, -1, false
		}
	}
	return -1, -1, false
}

func matchAt(tokens []string, used []bool, i int, want []string) bool {
	for k, w := range want {
		if used[i+k] || tokens[i+k] != w {
			return false
		}
	}
	return true
}

func invert(category string) string {
	if category == nlu.EntityConfirm {
		return nlu.EntityReject
	}
	return nlu.EntityConfirm
}

func tokenSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, item := range list {
		for _, tok := range tokenize(item) {
			set[tok] = true
		}
	}
	return set
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var _ nlu.Recognizer = (*Recognizer)(nil)
