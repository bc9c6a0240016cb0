// Package postprocess implements the Post-Processor (C7): an ordered
// extractor (first capture group, empty on no match) followed by a
// strip_prefix/strip_suffix pipeline. Built on github.com/dlclark/regexp2
// rather than stdlib regexp because the extractor needs numbered-group
// addressing and the dotall/multiline/non-greedy features stdlib RE2
// cannot express; chosen per the corpus's own precedent (go.mod entries in
// jeranaias-rigrun and jinterlante1206-AleutianLocal).
package postprocess

import (
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
)

// Rule is one configured post-processing pipeline, per §4.7.
type Rule struct {
	// Extractor, if non-empty, is a regexp2 pattern whose first capture
	// group replaces the whole text; no match yields an empty string.
	Extractor string
	// StripPrefix and StripSuffix are removed, in that order, after
	// extraction if present.
	StripPrefix string
	StripSuffix string
}

// Pipeline is a compiled, ready-to-apply Rule.
type Pipeline struct {
	extractor *regexp2.Regexp
	stripPre  string
	stripSuf  string
}

// Compile parses rule's extractor pattern once, so Apply never pays
// compilation cost per request.
func Compile(rule Rule) (*Pipeline, error) {
	p := &Pipeline{stripPre: rule.StripPrefix, stripSuf: rule.StripSuffix}
	if rule.Extractor == "" {
		return p, nil
	}
	re, err := regexp2.Compile(rule.Extractor, regexp2.None)
	if err != nil {
		return nil, apperr.Config("compiling post-process extractor %q: %v", rule.Extractor, err)
	}
	p.extractor = re
	return p, nil
}

// Apply runs text through the extractor (if configured) then the
// strip_prefix/strip_suffix pipeline, per §4.7's fixed ordering.
func (p *Pipeline) Apply(text string) (string, error) {
	out := text
	if p.extractor != nil {
		extracted, err := p.extract(out)
		if err != nil {
			return "", err
		}
		out = extracted
	}
	if p.stripPre != "" {
		out = strings.TrimPrefix(out, p.stripPre)
	}
	if p.stripSuf != "" {
		out = strings.TrimSuffix(out, p.stripSuf)
	}
	return out, nil
}

func (p *Pipeline) extract(text string) (string, error) {
	m, err := p.extractor.FindStringMatch(text)
	if err != nil {
		return "", apperr.Backend(false, "running post-process extractor: %v", err)
	}
	if m == nil {
		return "", nil
	}
	groups := m.Groups()
	if len(groups) < 2 {
		return "", nil
	}
	return groups[1].String(), nil
}
