package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReloader_StartLoadsAndWatchesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: deny-all
    when: "$.agent"
    action: deny
`), 0o644))

	e := NewEngine()
	r := NewReloader(e, path, nil)
	require.NoError(t, r.Start(time.Hour))
	defer func() { require.NoError(t, r.Stop()) }()

	require.True(t, e.Loaded())
}

func TestReloader_StartFailsOnInvalidInitialPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: [\n"), 0o644))

	e := NewEngine()
	r := NewReloader(e, path, nil)
	require.Error(t, r.Start(time.Hour))
	require.False(t, e.Loaded())
}
