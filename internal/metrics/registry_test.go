package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterVec_IncAndValue(t *testing.T) {
	c := NewCounterVec("policy_decision_count", "decisions", "phase", "kind", "action")
	c.Inc("pre", "agent_task", "deny")
	c.Inc("pre", "agent_task", "deny")
	c.Inc("pre", "agent_task", "allow")

	require.Equal(t, int64(2), c.Value("pre", "agent_task", "deny"))
	require.Equal(t, int64(1), c.Value("pre", "agent_task", "allow"))
	require.Equal(t, int64(0), c.Value("post", "agent_task", "deny"))
}

func TestRegistry_WriteText(t *testing.T) {
	r := NewRegistry()
	c := r.Register(NewCounterVec("plugin_verify_failures", "verification failures", "error_code"))
	c.Inc("DigestMismatch")

	var sb strings.Builder
	r.WriteText(&sb)
	out := sb.String()

	require.Contains(t, out, "# HELP plugin_verify_failures")
	require.Contains(t, out, "# TYPE plugin_verify_failures counter")
	require.Contains(t, out, `plugin_verify_failures{error_code="DigestMismatch"} 1`)
}
