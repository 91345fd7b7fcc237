package binding

import (
	"fmt"
	"regexp"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// FilterConfig specifies include and exclude patterns for attribute names.
type FilterConfig struct {
	Include []string // Regex patterns - only matching names bound
	Exclude []string // Regex patterns - matching names dropped
}

// Filter drops the attributes a hook kind does not allow. Inputs (including
// static attributes) and outputs have separate lists. Include is applied
// first, then exclude. Empty include means "include all".
type Filter struct {
	inputs  compiledFilter
	outputs compiledFilter
}

type compiledFilter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewFilter compiles the attribute filters declared on spec.
// Returns error if any pattern is invalid regex.
func NewFilter(spec types.HookSpec) (*Filter, error) {
	inputs, err := compile(FilterConfig{Include: spec.AllowInputs, Exclude: spec.DenyInputs})
	if err != nil {
		return nil, fmt.Errorf("hook %q inputs: %w", spec.Name, err)
	}
	outputs, err := compile(FilterConfig{Include: spec.AllowOutputs, Exclude: spec.DenyOutputs})
	if err != nil {
		return nil, fmt.Errorf("hook %q outputs: %w", spec.Name, err)
	}
	return &Filter{inputs: inputs, outputs: outputs}, nil
}

// Apply returns the attributes that pass the filter, in their original order.
// A nil filter passes everything.
func (f *Filter) Apply(attrs []types.RawAttribute) []types.RawAttribute {
	if f == nil {
		return attrs
	}
	result := make([]types.RawAttribute, 0, len(attrs))
	for _, a := range attrs {
		cf := f.inputs
		if a.Kind == types.AttrOutput {
			cf = f.outputs
		}
		if cf.allows(a.Name) {
			result = append(result, a)
		}
	}
	return result
}

func compile(config FilterConfig) (compiledFilter, error) {
	var cf compiledFilter
	for _, pattern := range config.Include {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return cf, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		cf.include = append(cf.include, re)
	}
	for _, pattern := range config.Exclude {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return cf, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		cf.exclude = append(cf.exclude, re)
	}
	return cf, nil
}

func (cf compiledFilter) allows(name string) bool {
	if len(cf.include) > 0 && !matchesAny(name, cf.include) {
		return false
	}
	return !matchesAny(name, cf.exclude)
}

func matchesAny(name string, regexes []*regexp.Regexp) bool {
	for _, re := range regexes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
