package finder

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"golang.org/x/net/html"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// DefaultMatchTimeout bounds a single marker search.
const DefaultMatchTimeout = 5 * time.Second

// Selector finds hooks declared by a types.HookSpec. In string mode it
// matches `OPEN name attrs CLOSE` ... `OPEN /name CLOSE` markers; in element
// mode it selects elements whose tag name equals the selector.
type Selector struct {
	spec    types.HookSpec
	opening *regexp2.Regexp
	closing *regexp2.Regexp
	log     *slog.Logger
}

// NewSelector compiles the marker patterns for spec.
func NewSelector(spec types.HookSpec, log *slog.Logger) (*Selector, error) {
	spec = spec.WithDefaults()
	if spec.Selector == "" {
		return nil, fmt.Errorf("hook %q: empty selector", spec.Name)
	}
	if strings.ContainsAny(spec.Selector, " \t\r\n") {
		return nil, fmt.Errorf("hook %q: selector %q contains whitespace", spec.Name, spec.Selector)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	open := regexp2.Escape(spec.OpeningDelimiter)
	name := regexp2.Escape(spec.Selector)
	end := regexp2.Escape(spec.ClosingDelimiter)

	// The name must be followed by whitespace or the end of the marker, so
	// <item> never matches <items>. Quoted attribute values are consumed whole
	// so delimiters inside them do not end the marker.
	openingPattern := open + name + `(?=\s|/?` + end + `)` +
		`(?:"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'|[^"'])*?/?` + end
	closingPattern := open + `/` + name + `\s*` + end

	opening, err := regexp2.Compile(openingPattern, regexp2.Singleline)
	if err != nil {
		return nil, fmt.Errorf("hook %q: failed to compile opening pattern: %w", spec.Name, err)
	}
	closing, err := regexp2.Compile(closingPattern, regexp2.Singleline)
	if err != nil {
		return nil, fmt.Errorf("hook %q: failed to compile closing pattern: %w", spec.Name, err)
	}
	opening.MatchTimeout = DefaultMatchTimeout
	closing.MatchTimeout = DefaultMatchTimeout

	return &Selector{
		spec:    spec,
		opening: opening,
		closing: closing,
		log:     log,
	}, nil
}

// Name returns the hook kind's parser name.
func (s *Selector) Name() string { return s.spec.Name }

// Spec returns the hook spec with defaults applied.
func (s *Selector) Spec() types.HookSpec { return s.spec }

// Keyword returns the literal every opening marker starts with.
func (s *Selector) Keyword() string { return s.spec.OpeningKeyword() }

// Find returns the positions of all hooks in content. Openings and closings
// are paired with a stack so hooks of the same name nest. Unmatched markers
// are logged and dropped.
func (s *Selector) Find(content string) ([]types.HookPosition, error) {
	offsets := byteOffsets(content)

	openings, err := s.scan(s.opening, content, offsets)
	if err != nil {
		return nil, fmt.Errorf("hook %q: scanning openings: %w", s.spec.Name, err)
	}
	if len(openings) == 0 {
		return nil, nil
	}

	var closings []types.OffsetSpan
	if !s.spec.SelfClosing {
		closings, err = s.scan(s.closing, content, offsets)
		if err != nil {
			return nil, fmt.Errorf("hook %q: scanning closings: %w", s.spec.Name, err)
		}
	}

	selfClose := "/" + s.spec.ClosingDelimiter
	var positions []types.HookPosition
	var stack []types.OffsetSpan

	ci := 0
	flushClosings := func(before int) {
		for ; ci < len(closings) && closings[ci].Start < before; ci++ {
			c := closings[ci]
			if len(stack) == 0 {
				s.warnUnmatched("closing", content, c)
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			closing := c
			positions = append(positions, types.HookPosition{Opening: top, Closing: &closing})
		}
	}

	for _, o := range openings {
		flushClosings(o.Start)
		// closing markers inside this opening's quoted attributes are text
		for ci < len(closings) && closings[ci].Start < o.End {
			ci++
		}
		if s.spec.SelfClosing || strings.HasSuffix(content[o.Start:o.End], selfClose) {
			positions = append(positions, types.HookPosition{Opening: o})
			continue
		}
		stack = append(stack, o)
	}
	flushClosings(len(content) + 1)

	for _, o := range stack {
		s.warnUnmatched("opening", content, o)
	}

	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].Opening.Start < positions[j].Opening.Start
	})
	return positions, nil
}

// FindElements returns the positions of all elements named like the selector.
func (s *Selector) FindElements(root *html.Node) ([]types.HookPosition, error) {
	positions := walkElements(root, s.Match)
	if s.spec.SelfClosing {
		for i := range positions {
			positions[i].Closing = nil
		}
	}
	return positions, nil
}

// Match reports whether n is an element this selector hooks.
func (s *Selector) Match(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == s.spec.ElementName()
}

// Attributes reads the bindings written on an opening marker.
func (s *Selector) Attributes(opening string) []types.RawAttribute {
	body := strings.TrimPrefix(opening, s.spec.OpeningKeyword())
	body = strings.TrimSuffix(body, s.spec.ClosingDelimiter)
	body = strings.TrimRight(body, " \t\r\n")
	body = strings.TrimSuffix(body, "/")
	return ParseAttributes(body)
}

func (s *Selector) scan(re *regexp2.Regexp, content string, offsets []int) ([]types.OffsetSpan, error) {
	var spans []types.OffsetSpan
	m, err := re.FindStringMatch(content)
	for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
		start, end := m.Index, m.Index+m.Length
		if offsets != nil {
			start, end = offsets[start], offsets[end]
		}
		spans = append(spans, types.OffsetSpan{Start: start, End: end})
	}
	if err != nil {
		return nil, err
	}
	return spans, nil
}

func (s *Selector) warnUnmatched(marker, content string, span types.OffsetSpan) {
	line, column := types.ComputeLineColumn(content, span.Start)
	s.log.Warn("unmatched hook marker dropped",
		"parser", s.spec.Name,
		"marker", marker,
		"line", line,
		"column", column,
	)
}

// byteOffsets maps rune indexes, as reported by regexp2, to byte offsets.
// It returns nil for ASCII content where both coincide.
func byteOffsets(content string) []int {
	ascii := true
	for i := 0; i < len(content); i++ {
		if content[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return nil
	}
	offsets := make([]int, 0, len(content)+1)
	for i := range content {
		offsets = append(offsets, i)
	}
	return append(offsets, len(content))
}
