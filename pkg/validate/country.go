package validate

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// countryIndex maps case-folded country names to their display form.
type countryIndex struct {
	names map[string]string
}

var (
	countryIndexMu sync.Mutex
	countryIndexes = map[string]*countryIndex{}
)

func countriesFor(lang string) (*countryIndex, error) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = "de"
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("country names: %w", err)
	}
	base, _ := tag.Base()
	key := base.String()

	countryIndexMu.Lock()
	defer countryIndexMu.Unlock()
	if idx, ok := countryIndexes[key]; ok {
		return idx, nil
	}
	idx := buildCountryIndex(language.Make(key))
	if len(idx.names) == 0 {
		return nil, fmt.Errorf("no country names for language %s", key)
	}
	countryIndexes[key] = idx
	return idx, nil
}

func buildCountryIndex(tag language.Tag) *countryIndex {
	namer := display.Regions(tag)
	fold := cases.Fold()
	idx := &countryIndex{names: make(map[string]string, 256)}
	if namer == nil {
		return idx
	}
	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			region, err := language.ParseRegion(string([]rune{a, b}))
			if err != nil || !region.IsCountry() {
				continue
			}
			name := namer.Name(region)
			if name == "" {
				continue
			}
			idx.names[fold.String(name)] = name
		}
	}
	return idx
}

func (c *countryIndex) check(raw string) (string, string) {
	key := cases.Fold().String(strings.Join(strings.Fields(raw), " "))
	name, ok := c.names[key]
	if !ok {
		return "", "unknown country"
	}
	return name, ""
}
