package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownSection  = errors.New("unknown section")
	ErrListSection     = errors.New("section is a list and cannot be merged")
	ErrPatchType       = errors.New("patch value does not match section type")
	ErrInvalidPatch    = errors.New("invalid patch")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// PatchKind tags the three ways a section can be updated.
type PatchKind string

const (
	PatchMerge     PatchKind = "merge"
	PatchReplace   PatchKind = "replace"
	PatchTransform PatchKind = "transform"
)

// Patch is a single section update. Build one with MergeFields, Replace or
// Transform.
type Patch interface {
	Section() Section
	Kind() PatchKind
	apply(doc *Document) error
}

type mergePatch struct {
	section Section
	fields  map[string]json.RawMessage
}

// MergeFields shallow-merges fields into a record section: each given key
// replaces that field of the section outright, other fields are kept.
func MergeFields(section Section, fields map[string]any) Patch {
	encoded := make(map[string]json.RawMessage, len(fields))
	for key, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			raw = nil
		}
		encoded[key] = raw
	}
	return mergePatch{section: section, fields: encoded}
}

// MergeJSON is MergeFields for an already encoded JSON object.
func MergeJSON(section Section, raw json.RawMessage) (Patch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: merge value must be an object", ErrInvalidPatch)
	}
	return mergePatch{section: section, fields: fields}, nil
}

func (p mergePatch) Section() Section { return p.section }
func (p mergePatch) Kind() PatchKind  { return PatchMerge }

func (p mergePatch) apply(doc *Document) error {
	if p.section.IsList() {
		return ErrListSection
	}
	target, err := doc.sectionPtr(p.section)
	if err != nil {
		return err
	}
	current, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.section, err)
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(current, &merged); err != nil {
		return fmt.Errorf("decode %s: %w", p.section, err)
	}
	for key, value := range p.fields {
		if _, known := merged[key]; !known {
			return fmt.Errorf("%w: %s has no field %q", ErrInvalidPatch, p.section, key)
		}
		if value == nil {
			return fmt.Errorf("%w: field %q is not encodable", ErrInvalidPatch, key)
		}
		merged[key] = value
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.section, err)
	}
	return decodeSection(p.section, encoded, doc)
}

type replacePatch[T any] struct {
	section Section
	value   T
}

// Replace swaps a whole section for value. T must be the section's type.
func Replace[T any](section Section, value T) Patch {
	return replacePatch[T]{section: section, value: value}
}

func (p replacePatch[T]) Section() Section { return p.section }
func (p replacePatch[T]) Kind() PatchKind  { return PatchReplace }

func (p replacePatch[T]) apply(doc *Document) error {
	target, err := doc.sectionPtr(p.section)
	if err != nil {
		return err
	}
	ptr, ok := target.(*T)
	if !ok {
		return fmt.Errorf("%w: %s wants %T", ErrPatchType, p.section, target)
	}
	*ptr = p.value
	fillLists(target)
	return nil
}

type transformPatch[T any] struct {
	section Section
	fn      func(T) (T, error)
}

// Transform derives the new section value from the current one.
func Transform[T any](section Section, fn func(T) T) Patch {
	if fn == nil {
		return transformPatch[T]{section: section}
	}
	return transformPatch[T]{section: section, fn: func(v T) (T, error) { return fn(v), nil }}
}

// TryTransform is Transform for functions that can refuse the update. A
// returned error leaves the document unchanged.
func TryTransform[T any](section Section, fn func(T) (T, error)) Patch {
	return transformPatch[T]{section: section, fn: fn}
}

func (p transformPatch[T]) Section() Section { return p.section }
func (p transformPatch[T]) Kind() PatchKind  { return PatchTransform }

func (p transformPatch[T]) apply(doc *Document) error {
	if p.fn == nil {
		return fmt.Errorf("%w: nil transform", ErrInvalidPatch)
	}
	target, err := doc.sectionPtr(p.section)
	if err != nil {
		return err
	}
	ptr, ok := target.(*T)
	if !ok {
		return fmt.Errorf("%w: %s wants %T", ErrPatchType, p.section, target)
	}
	next, err := p.fn(*ptr)
	if err != nil {
		return err
	}
	*ptr = next
	fillLists(target)
	return nil
}

// ReplaceJSON decodes raw as the section's type and wraps it in a Replace
// patch.
func ReplaceJSON(section Section, raw json.RawMessage) (Patch, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("%w: replace value is required", ErrInvalidPatch)
	}
	var scratch Document
	if err := decodeSection(section, raw, &scratch); err != nil {
		return nil, err
	}
	switch section {
	case SectionHeader:
		return Replace(section, scratch.Header), nil
	case SectionHero:
		return Replace(section, scratch.Hero), nil
	case SectionFooter:
		return Replace(section, scratch.Footer), nil
	case SectionContact:
		return Replace(section, scratch.Contact), nil
	case SectionFeatures:
		return Replace(section, scratch.Features), nil
	case SectionDestinations:
		if scratch.Destinations == nil {
			scratch.Destinations = []Destination{}
		}
		return Replace(section, scratch.Destinations), nil
	}
	return nil, ErrUnknownSection
}

// Apply returns a copy of doc with the patch applied. doc itself is never
// modified and shares no slices with the result.
func Apply(doc Document, patch Patch) (Document, error) {
	if patch == nil {
		return doc, fmt.Errorf("%w: nil patch", ErrInvalidPatch)
	}
	next := doc.Clone()
	if err := patch.apply(&next); err != nil {
		return doc, err
	}
	return next.Clone(), nil
}

// SectionValue returns a copy of one section.
func SectionValue(doc Document, section Section) (any, error) {
	clone := doc.Clone()
	target, err := clone.sectionPtr(section)
	if err != nil {
		return nil, err
	}
	switch v := target.(type) {
	case *Header:
		return *v, nil
	case *Hero:
		return *v, nil
	case *Footer:
		return *v, nil
	case *Contact:
		return *v, nil
	case *Features:
		return *v, nil
	case *[]Destination:
		return *v, nil
	}
	return nil, ErrUnknownSection
}

func (d *Document) sectionPtr(section Section) (any, error) {
	switch section {
	case SectionHeader:
		return &d.Header, nil
	case SectionHero:
		return &d.Hero, nil
	case SectionFooter:
		return &d.Footer, nil
	case SectionContact:
		return &d.Contact, nil
	case SectionFeatures:
		return &d.Features, nil
	case SectionDestinations:
		return &d.Destinations, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSection, section)
}

// decodeSection strictly decodes raw into a zeroed section of doc.
func decodeSection(section Section, raw []byte, doc *Document) error {
	target, err := doc.sectionPtr(section)
	if err != nil {
		return err
	}
	fresh, err := zeroSection(section)
	if err != nil {
		return err
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(fresh); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPatch, section, err)
	}
	switch t := target.(type) {
	case *Header:
		*t = *fresh.(*Header)
	case *Hero:
		*t = *fresh.(*Hero)
	case *Footer:
		*t = *fresh.(*Footer)
	case *Contact:
		*t = *fresh.(*Contact)
	case *Features:
		*t = *fresh.(*Features)
	case *[]Destination:
		*t = *fresh.(*[]Destination)
	}
	return nil
}

func zeroSection(section Section) (any, error) {
	switch section {
	case SectionHeader:
		return &Header{}, nil
	case SectionHero:
		return &Hero{}, nil
	case SectionFooter:
		return &Footer{}, nil
	case SectionContact:
		return &Contact{}, nil
	case SectionFeatures:
		return &Features{}, nil
	case SectionDestinations:
		return &[]Destination{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSection, section)
}
