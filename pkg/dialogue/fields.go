package dialogue

import (
	"fmt"
	"strings"

	"github.com/harunnryd/sprachbot/pkg/validate"
)

// NameEntity is the NLU category shared by first and last name.
const NameEntity = "Name"

// FieldSpec describes one interview question.
type FieldSpec struct {
	// Name is the field label shown to the user and the Record key.
	Name string `mapstructure:"name"`
	// Rule selects the validator.
	Rule validate.Rule `mapstructure:"rule"`
	// Entity is the NLU category carrying the answer; defaults to Name.
	Entity string `mapstructure:"entity"`
	// Clarify overrides the rule's clarification template.
	Clarify string `mapstructure:"clarify"`
}

func (f FieldSpec) entityCategory() string {
	if strings.TrimSpace(f.Entity) != "" {
		return f.Entity
	}
	return f.Name
}

// DefaultFields is the account interview in its fixed order.
func DefaultFields() []FieldSpec {
	return []FieldSpec{
		{Name: "Vorname", Rule: validate.RuleText, Entity: NameEntity},
		{Name: "Nachname", Rule: validate.RuleText, Entity: NameEntity},
		{Name: "Geburtsdatum", Rule: validate.RuleBirthDate},
		{Name: "Land", Rule: validate.RuleCountry},
		{Name: "Stadt", Rule: validate.RuleText},
		{Name: "Straße", Rule: validate.RuleText},
		{Name: "Hausnummer", Rule: validate.RuleHouseNumber},
		{Name: "Postleitzahl", Rule: validate.RulePostalCode},
		{Name: "eMail", Rule: validate.RuleEmail},
		{Name: "Telefonnummer", Rule: validate.RulePhone},
	}
}

func checkFields(fields []FieldSpec, known func(validate.Rule) bool) error {
	if len(fields) == 0 {
		return fmt.Errorf("interview has no fields")
	}
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("duplicate field %q", name)
		}
		seen[key] = true
		if known != nil && !known(f.Rule) {
			return fmt.Errorf("field %q uses unknown rule %q", name, f.Rule)
		}
	}
	return nil
}
