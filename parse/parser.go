// Package parse extracts tool-use blocks from assistant text.
//
// The model interleaves prose with XML-style tool blocks:
//
//	I'll read the config first.
//	<read_file>
//	<path>config.yaml</path>
//	</read_file>
//
// Parsing is lenient by construction: only names in the closed registry are
// treated as tools, anything else in angle brackets stays prose, and a
// malformed block degrades into a Malformed segment instead of an error.
package parse

import (
	"fmt"
	"strings"

	"github.com/recodeai/recode"
)

// SegmentKind discriminates the variants of a parsed segment.
type SegmentKind int

const (
	// SegmentText is plain assistant prose.
	SegmentText SegmentKind = iota
	// SegmentToolUse is a well-formed, schema-valid tool invocation.
	SegmentToolUse
	// SegmentMalformed is a recognized tool block that failed validation.
	// It is never executed; the runtime reports it back to the model as a
	// failed tool result so it can self-correct.
	SegmentMalformed
)

// Segment is one piece of a parsed assistant message.
type Segment struct {
	Kind SegmentKind
	// Text holds the prose for SegmentText, or the raw block text for
	// SegmentMalformed.
	Text string
	// ToolUse is set for SegmentToolUse.
	ToolUse *recode.ToolUse
	// ToolName is set for SegmentMalformed.
	ToolName string
	// Reason explains why a SegmentMalformed block was rejected.
	Reason string
}

// maxTagLen bounds how far ahead the scanner looks for a closing '>' when
// deciding whether a '<' opens a tool tag.
const maxTagLen = 32

// Parser splits assistant text into segments. A Parser is stateless and
// safe for concurrent use.
type Parser struct {
	specs map[string]ToolSpec
}

// New creates a Parser over the default tool registry.
func New() *Parser {
	return &Parser{specs: DefaultSpecs}
}

// NewWithSpecs creates a Parser over a custom registry. Used by hosts that
// restrict the tool surface per mode.
func NewWithSpecs(specs map[string]ToolSpec) *Parser {
	return &Parser{specs: specs}
}

// Parse splits finalized assistant text into ordered segments.
func (p *Parser) Parse(text string) []Segment {
	segs, _ := p.scan(text, true)
	return segs
}

// ParsePartial splits growing assistant text into the segments that are
// already complete. rest is a trailing fragment that may still become a
// tool block; callers hold it and re-feed once more text arrives. When the
// turn finalizes, use Parse instead.
func (p *Parser) ParsePartial(text string) (segs []Segment, rest string) {
	return p.scan(text, false)
}

// FirstToolUse returns the first tool-use segment, or nil.
func FirstToolUse(segs []Segment) *recode.ToolUse {
	for _, s := range segs {
		if s.Kind == SegmentToolUse {
			return s.ToolUse
		}
	}
	return nil
}

func (p *Parser) scan(text string, final bool) ([]Segment, string) {
	var segs []Segment
	textStart := 0

	flushText := func(end int) {
		if end > textStart {
			segs = append(segs, Segment{Kind: SegmentText, Text: text[textStart:end]})
		}
	}

	i := 0
	for {
		j := strings.IndexByte(text[i:], '<')
		if j < 0 {
			break
		}
		j += i

		name, tagEnd := p.openingTagAt(text, j)
		if name == "" {
			if !final && p.couldBeTagPrefix(text[j:]) {
				flushText(j)
				return segs, text[j:]
			}
			i = j + 1
			continue
		}

		closing := "</" + name + ">"
		rel := strings.Index(text[tagEnd:], closing)
		if rel < 0 {
			flushText(j)
			if !final {
				// Mid-block: hold until the turn finalizes.
				return segs, text[j:]
			}
			segs = append(segs, Segment{
				Kind:     SegmentMalformed,
				Text:     text[j:],
				ToolName: name,
				Reason:   "unterminated tool block",
			})
			textStart = len(text)
			i = len(text)
			break
		}

		flushText(j)
		body := text[tagEnd : tagEnd+rel]
		segs = append(segs, p.parseBlock(name, body, text[j:tagEnd+rel+len(closing)], j))
		i = tagEnd + rel + len(closing)
		textStart = i
	}

	if textStart < len(text) {
		segs = append(segs, Segment{Kind: SegmentText, Text: text[textStart:]})
	}
	return segs, ""
}

// openingTagAt reports the registered tool name opened by the tag starting
// at offset j, and the index just past its '>'. Returns "" when the text at
// j is not a registered opening tag.
func (p *Parser) openingTagAt(text string, j int) (string, int) {
	limit := j + maxTagLen
	if limit > len(text) {
		limit = len(text)
	}
	k := strings.IndexByte(text[j:limit], '>')
	if k < 0 {
		return "", 0
	}
	name := text[j+1 : j+k]
	if _, ok := p.specs[name]; !ok {
		return "", 0
	}
	return name, j + k + 1
}

// couldBeTagPrefix reports whether frag (starting with '<') might still
// grow into a registered opening tag.
func (p *Parser) couldBeTagPrefix(frag string) bool {
	if strings.ContainsRune(frag, '>') || len(frag) >= maxTagLen {
		return false
	}
	partial := frag[1:]
	for name := range p.specs {
		if strings.HasPrefix(name, partial) {
			return true
		}
	}
	return false
}

func (p *Parser) parseBlock(name, body, raw string, offset int) Segment {
	spec := p.specs[name]

	malformed := func(reason string) Segment {
		return Segment{Kind: SegmentMalformed, Text: raw, ToolName: name, Reason: reason}
	}

	params := make(map[string]string, len(spec.Params))
	for _, ps := range spec.Params {
		open := "<" + ps.Name + ">"
		closing := "</" + ps.Name + ">"
		s := strings.Index(body, open)
		if s < 0 {
			continue
		}
		// Use the last closing tag so parameter values may themselves
		// contain tag-like text (file contents, HTML, etc).
		e := strings.LastIndex(body, closing)
		if e < s {
			return malformed(fmt.Sprintf("unterminated parameter %q", ps.Name))
		}
		params[ps.Name] = strings.TrimSpace(body[s+len(open) : e])
	}

	for _, ps := range spec.Params {
		val, present := params[ps.Name]
		if !present || val == "" {
			if ps.Required {
				return malformed(fmt.Sprintf("missing required parameter %q", ps.Name))
			}
			delete(params, ps.Name)
			continue
		}
		switch ps.Kind {
		case KindBool:
			if val != "true" && val != "false" {
				return malformed(fmt.Sprintf("parameter %q must be true or false, got %q", ps.Name, val))
			}
		case KindEnum:
			if !contains(ps.Enum, val) {
				return malformed(fmt.Sprintf("parameter %q must be one of %s, got %q", ps.Name, strings.Join(ps.Enum, ", "), val))
			}
		}
	}

	return Segment{
		Kind: SegmentToolUse,
		ToolUse: &recode.ToolUse{
			ID:     recode.GenerateToolUseID(),
			Name:   name,
			Params: params,
			Offset: offset,
		},
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
