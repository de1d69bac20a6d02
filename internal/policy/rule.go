package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/theory/jsonpath"
)

// Rule is a single governance rule (spec.md §3 Policy rule). `When` is a
// JSONPath expression (SPEC_FULL.md §3.1) evaluated against the envelope
// encoded as a generic JSON document; a rule "matches" an envelope when
// the expression selects at least one node.
type Rule struct {
	Name      string `yaml:"name"`
	When      string `yaml:"when"`
	Action    Action `yaml:"action"`
	Message   string `yaml:"message,omitempty"`
	Level     string `yaml:"level,omitempty"`
	Transform string `yaml:"transform,omitempty"`
	Priority  int32  `yaml:"priority,omitempty"`

	// index is the rule's position in file order, used as the final
	// tie-break in precedence resolution (spec.md §4.4).
	index int

	compiledWhen *jsonpath.Path
	compiledRe   *regexp.Regexp
}

// compile validates the rule and pre-compiles its `when` JSONPath and,
// if present, its regex transform. Called once at policy load time so
// load failures are caught before the engine is ever evaluated
// (spec.md §4.4 Validation: "Any rejection leaves the engine unloaded").
func (r *Rule) compile() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("policy: rule has empty name")
	}
	if strings.TrimSpace(r.When) == "" {
		return fmt.Errorf("policy: rule %q has empty when condition", r.Name)
	}
	if !r.Action.valid() {
		return fmt.Errorf("policy: rule %q has invalid action %q", r.Name, r.Action)
	}

	p, err := jsonpath.Parse(r.When)
	if err != nil {
		return fmt.Errorf("policy: rule %q has malformed when expression: %w", r.Name, err)
	}
	r.compiledWhen = p

	if transformPattern, ok := strings.CutPrefix(r.Transform, "regex:"); ok {
		re, err := regexp.Compile(transformPattern)
		if err != nil {
			return fmt.Errorf("policy: rule %q has malformed transform regex: %w", r.Name, err)
		}
		r.compiledRe = re
	}
	return nil
}

// matches reports whether the rule's when-expression selects any node of
// doc, the envelope encoded as a generic JSON document.
func (r *Rule) matches(doc any) bool {
	if r.compiledWhen == nil {
		return false
	}
	return len(r.compiledWhen.Select(doc)) > 0
}
