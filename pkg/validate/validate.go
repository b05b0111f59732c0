// Package validate holds the answer rules applied to each interview field.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/sprachbot/pkg/errorsx"
)

// Rule identifies a validation predicate.
type Rule string

const (
	RuleText        Rule = "text"
	RuleBirthDate   Rule = "birthdate"
	RulePostalCode  Rule = "postal_code"
	RuleCountry     Rule = "country"
	RuleEmail       Rule = "email"
	RuleHouseNumber Rule = "house_number"
	RulePhone       Rule = "phone"
)

// ErrValidationFailed matches every *ValidationError.
var ErrValidationFailed = errors.New("validation failed")

// ValidationError reports an answer that does not satisfy its field rule.
type ValidationError struct {
	Field  string
	Rule   Rule
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("field %s: value does not satisfy rule %s", e.Field, e.Rule)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

type checkFunc func(raw string) (string, string)

// Options configures locale dependent rules.
type Options struct {
	// Country is the ISO 3166 alpha-2 code used for postal code and phone grammars.
	Country string
	// Language selects the language of accepted country names.
	Language string
	// Now is used to reject birth dates in the future.
	Now func() time.Time
}

// Validator applies field rules. It is safe for concurrent use.
type Validator struct {
	country   string
	now       func() time.Time
	countries *countryIndex
	rules     map[Rule]checkFunc
}

// New builds a validator for the given locale.
func New(opts Options) (*Validator, error) {
	country := strings.ToUpper(strings.TrimSpace(opts.Country))
	if country == "" {
		country = "DE"
	}
	postal, ok := postalCodeGrammars[country]
	if !ok {
		return nil, fmt.Errorf("no postal code grammar for country %s", country)
	}
	phone, ok := mobileGrammars[country]
	if !ok {
		return nil, fmt.Errorf("no phone grammar for country %s", country)
	}
	countries, err := countriesFor(opts.Language)
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	v := &Validator{country: country, now: now, countries: countries}
	v.rules = map[Rule]checkFunc{
		RuleText:        checkText,
		RuleBirthDate:   v.checkBirthDate,
		RulePostalCode:  matchPostal(postal),
		RuleCountry:     v.countries.check,
		RuleEmail:       checkEmail,
		RuleHouseNumber: checkHouseNumber,
		RulePhone:       matchPhone(phone),
	}
	return v, nil
}

// Known reports whether rule is registered.
func (v *Validator) Known(rule Rule) bool {
	_, ok := v.rules[rule]
	return ok
}

// Check validates raw for field under rule and returns the normalized value.
// Failures are *ValidationError values matching ErrValidationFailed.
func (v *Validator) Check(rule Rule, field, raw string) (string, error) {
	fail := func(reason string) error {
		return errorsx.Wrap(&ValidationError{Field: field, Rule: rule, Value: raw, Reason: reason}, errorsx.ReasonValidation)
	}
	check, ok := v.rules[rule]
	if !ok {
		return "", fail("unknown rule")
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fail("empty")
	}
	out, reason := check(value)
	if reason != "" {
		return "", fail(reason)
	}
	return out, nil
}

func checkText(raw string) (string, string) {
	return strings.Join(strings.Fields(raw), " "), ""
}
