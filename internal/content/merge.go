package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Merge reconciles a persisted, possibly partial or stale, document against
// the defaults. It never fails: anything it cannot use falls back to the
// default value for that section.
//
// Record sections are overlaid key by key. Nested records (hero.stats,
// footer.socialLinks) are overlaid one level deep. Any list present in the
// candidate, including an empty one, replaces the default list wholesale;
// list entries are never merged with default entries.
func Merge(raw []byte) Document {
	doc := Defaults()
	if isNull(raw) {
		return doc
	}
	var candidate map[string]json.RawMessage
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return doc
	}
	fallback := Defaults()

	overlay(candidate[string(SectionHeader)], &doc.Header,
		listKey("navigation", &doc.Header.Navigation, fallback.Header.Navigation),
	)
	overlay(candidate[string(SectionHero)], &doc.Hero,
		listKey("features", &doc.Hero.Features, fallback.Hero.Features),
	)
	overlay(candidate[string(SectionFooter)], &doc.Footer,
		listKey("quickLinks", &doc.Footer.QuickLinks, fallback.Footer.QuickLinks),
		listKey("services", &doc.Footer.Services, fallback.Footer.Services),
	)
	overlay(candidate[string(SectionContact)], &doc.Contact)
	overlay(candidate[string(SectionFeatures)], &doc.Features,
		listKey("items", &doc.Features.Items, fallback.Features.Items),
	)
	doc.Destinations = mergeDestinations(candidate[string(SectionDestinations)], doc.Destinations)
	return doc
}

// MergeDocument runs an in-memory document through Merge.
func MergeDocument(doc Document) Document {
	raw, err := json.Marshal(doc)
	if err != nil {
		return Defaults()
	}
	return Merge(raw)
}

type listField struct {
	key   string
	reset func()
	heal  func()
}

func listKey[T any](key string, field *[]T, fallback []T) listField {
	return listField{
		key:   key,
		reset: func() { *field = nil },
		heal: func() {
			if *field == nil {
				*field = cloneSlice(fallback)
			}
		},
	}
}

// overlay decodes the candidate section over target, which already holds the
// default values. Lists named in lists are cleared first when the candidate
// carries them so decoding replaces rather than blends their entries.
func overlay(raw json.RawMessage, target any, lists ...listField) {
	if isNull(raw) {
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return
	}
	for key, value := range fields {
		if isNull(value) {
			delete(fields, key)
			continue
		}
		for _, list := range lists {
			if strings.EqualFold(key, list.key) {
				list.reset()
			}
		}
	}
	cleaned, err := json.Marshal(fields)
	if err == nil {
		// A type mismatch on one field leaves that field at its default and
		// still applies the rest.
		var typeErr *json.UnmarshalTypeError
		if err := json.Unmarshal(cleaned, target); err != nil && !errors.As(err, &typeErr) {
			return
		}
	}
	for _, list := range lists {
		list.heal()
	}
}

func mergeDestinations(raw json.RawMessage, fallback []Destination) []Destination {
	trimmed := bytes.TrimSpace(raw)
	if isNull(trimmed) || trimmed[0] != '[' {
		return fallback
	}
	out := []Destination{}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return fallback
		}
	}
	if out == nil {
		out = []Destination{}
	}
	return out
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
