package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ziXnOrg/ORCA/internal/identity"
)

func writePolicy(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func envelopeWithPayload(t *testing.T, payload any) identity.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return identity.Envelope{
		ID: "env-1", TraceID: "trace-1", Agent: "agent-a",
		Kind: identity.KindAgentTask, Payload: raw, ProtocolVersion: 1,
	}
}

func TestEngine_UnloadedDeniesEverything(t *testing.T) {
	e := NewEngine()
	d, _ := e.Evaluate("pre", envelopeWithPayload(t, map[string]string{"hello": "world"}))
	require.Equal(t, ActionDeny, d.Action)
	require.Equal(t, OutcomeDenied, d.Outcome)
}

func TestEngine_PIIRedactionRunsBeforePolicyCheck(t *testing.T) {
	e := NewEngine() // unloaded
	env := envelopeWithPayload(t, map[string]string{"note": "My SSN is 123-45-6789"})
	d, out := e.Evaluate("pre", env)
	require.Equal(t, ActionModify, d.Action)
	require.Equal(t, OutcomeModified, d.Outcome)
	require.NotContains(t, string(out.Payload), "123-45-6789")
	require.NotContains(t, d.Reason, "123-45-6789")
}

func TestEngine_RulePrecedence_HighestPriorityWins(t *testing.T) {
	path := writePolicy(t, `
rules:
  - name: low-priority-allow
    when: "$.agent"
    action: allow_but_flag
    priority: 1
  - name: high-priority-deny
    when: "$.agent"
    action: deny
    priority: 10
`)
	e := NewEngine()
	require.NoError(t, e.Load(path))

	d, _ := e.Evaluate("pre", envelopeWithPayload(t, map[string]string{"x": "y"}))
	require.Equal(t, ActionDeny, d.Action)
	require.Equal(t, "high-priority-deny", d.RuleName)
}

func TestEngine_RulePrecedence_TieBreaksByRestrictiveness(t *testing.T) {
	path := writePolicy(t, `
rules:
  - name: allow-rule
    when: "$.agent"
    action: allow_but_flag
    priority: 5
  - name: deny-rule
    when: "$.agent"
    action: deny
    priority: 5
`)
	e := NewEngine()
	require.NoError(t, e.Load(path))

	d, _ := e.Evaluate("pre", envelopeWithPayload(t, map[string]string{"x": "y"}))
	require.Equal(t, ActionDeny, d.Action)
	require.Equal(t, "deny-rule", d.RuleName)
}

func TestEngine_RulePrecedence_TieBreaksByFileOrder(t *testing.T) {
	path := writePolicy(t, `
rules:
  - name: first-deny
    when: "$.agent"
    action: deny
    priority: 5
  - name: second-deny
    when: "$.agent"
    action: deny
    priority: 5
`)
	e := NewEngine()
	require.NoError(t, e.Load(path))

	d, _ := e.Evaluate("pre", envelopeWithPayload(t, map[string]string{"x": "y"}))
	require.Equal(t, "first-deny", d.RuleName)
}

func TestEngine_ToolAllowlist_DeniesUnlisted(t *testing.T) {
	path := writePolicy(t, `
tool_allowlist: ["fs.read"]
rules:
  - name: noop
    when: "$.nonexistent"
    action: allow_but_flag
`)
	e := NewEngine()
	require.NoError(t, e.Load(path))

	d, _ := e.Evaluate("pre", envelopeWithPayload(t, map[string]string{"tool": "fs.write"}))
	require.Equal(t, ActionDeny, d.Action)
	require.Equal(t, "builtin:tool-allowlist", d.RuleName)
}

func TestEngine_ToolAllowlist_GlobMatchesCaseInsensitive(t *testing.T) {
	path := writePolicy(t, `
tool_allowlist: ["FS.*"]
rules:
  - name: noop
    when: "$.nonexistent"
    action: allow_but_flag
`)
	e := NewEngine()
	require.NoError(t, e.Load(path))

	d, _ := e.Evaluate("pre", envelopeWithPayload(t, map[string]string{"tool": "fs.read"}))
	require.NotEqual(t, "builtin:tool-allowlist", d.RuleName)
}

func TestParseFile_RejectsMalformedWhen(t *testing.T) {
	path := writePolicy(t, `
rules:
  - name: bad
    when: "$[not valid"
    action: deny
`)
	e := NewEngine()
	require.Error(t, e.Load(path))
	require.False(t, e.Loaded())
}

func TestParseFile_RejectsDuplicateAllowlistEntries(t *testing.T) {
	path := writePolicy(t, `
tool_allowlist: ["fs.read", "FS.READ"]
rules: []
`)
	e := NewEngine()
	require.Error(t, e.Load(path))
}

func TestParseFile_RejectsInvalidAction(t *testing.T) {
	path := writePolicy(t, `
rules:
  - name: bad
    when: "$.agent"
    action: delete_everything
`)
	e := NewEngine()
	require.Error(t, e.Load(path))
}

func TestEngine_FailedReloadKeepsPreviousPolicy(t *testing.T) {
	path := writePolicy(t, `
rules:
  - name: deny-all
    when: "$.agent"
    action: deny
`)
	e := NewEngine()
	require.NoError(t, e.Load(path))

	require.NoError(t, os.WriteFile(path, []byte("rules: [\n  - name: unterminated\n"), 0o644))
	require.Error(t, e.Load(path))

	d, _ := e.Evaluate("pre", envelopeWithPayload(t, map[string]string{"x": "y"}))
	require.Equal(t, "deny-all", d.RuleName)
}
