package types

import "strings"

// Default marker delimiters.
const (
	DefaultOpeningDelimiter = "<"
	DefaultClosingDelimiter = ">"
)

// HookSpec declares one kind of hook: how its markers look and which of its
// attributes may be bound.
type HookSpec struct {
	Name             string   // parser name, unique per engine
	Selector         string   // hook name in markers, tag name in element mode
	OpeningDelimiter string   // e.g. "<" or "[["
	ClosingDelimiter string   // e.g. ">" or "]]"
	SelfClosing      bool     // hook has no closing marker
	AllowInputs      []string // regex patterns; empty allows all
	DenyInputs       []string // regex patterns
	AllowOutputs     []string // regex patterns; empty allows all
	DenyOutputs      []string // regex patterns
}

// WithDefaults returns a copy with empty fields filled in.
func (s HookSpec) WithDefaults() HookSpec {
	if s.OpeningDelimiter == "" {
		s.OpeningDelimiter = DefaultOpeningDelimiter
	}
	if s.ClosingDelimiter == "" {
		s.ClosingDelimiter = DefaultClosingDelimiter
	}
	if s.Name == "" {
		s.Name = s.Selector
	}
	return s
}

// OpeningKeyword returns the literal text every opening marker starts with.
func (s HookSpec) OpeningKeyword() string {
	return s.OpeningDelimiter + s.Selector
}

// ElementName returns the selector as an element name.
func (s HookSpec) ElementName() string {
	return strings.ToLower(s.Selector)
}
