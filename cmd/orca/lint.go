package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziXnOrg/ORCA/internal/policy"
)

// newPolicyLintCmd loads a policy file through the same parser the
// running engine uses and reports whether it would load cleanly,
// without needing a running orchestrator (spec.md §4.4).
func newPolicyLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy-lint <policy.yaml>",
		Short: "Validate a policy file the way the engine would load it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := policy.NewEngine()
			if err := e.Load(args[0]); err != nil {
				return fmt.Errorf("orca: %s: %w", args[0], err)
			}
			fmt.Printf("%s: ok\n", args[0])
			return nil
		},
	}
}
