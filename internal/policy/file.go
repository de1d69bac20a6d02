package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// file is the on-disk shape of a policy file (spec.md §6 Policy file):
//
//	tool_allowlist: [string]?
//	rules: [ { name, when, action, message?, level?, transform?, priority? } ]
type file struct {
	ToolAllowlist []string `yaml:"tool_allowlist,omitempty"`
	Rules         []Rule   `yaml:"rules"`
}

// parseFile reads and validates a policy file at path. Validation
// rejects empty/invalid actions, empty names or conditions, duplicate
// allowlist entries, malformed `when` JSONPath, and malformed regex in
// `transform` (spec.md §4.4 Validation, extended by SPEC_FULL.md §3.1).
// A rejected file never mutates an already-loaded engine; the caller
// decides what happens to the previous state.
func parseFile(path string) (rules []Rule, allowlist []string, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("policy: read %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, nil, fmt.Errorf("policy: parse %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(f.ToolAllowlist))
	for _, entry := range f.ToolAllowlist {
		key := strings.ToLower(strings.TrimSpace(entry))
		if key == "" {
			return nil, nil, fmt.Errorf("policy: %s has an empty tool_allowlist entry", path)
		}
		if _, dup := seen[key]; dup {
			return nil, nil, fmt.Errorf("policy: %s has duplicate tool_allowlist entry %q", path, entry)
		}
		seen[key] = struct{}{}
	}

	for i := range f.Rules {
		f.Rules[i].index = i
		if err := f.Rules[i].compile(); err != nil {
			return nil, nil, err
		}
	}

	return f.Rules, f.ToolAllowlist, nil
}
