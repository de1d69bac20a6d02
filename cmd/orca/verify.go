package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ziXnOrg/ORCA/internal/plugin"
)

// newVerifyManifestCmd runs the offline manifest verification pipeline
// against a manifest file and its referenced wasm binary, without
// starting a Runner — useful in CI for plugin authors (spec.md §4.6).
func newVerifyManifestCmd() *cobra.Command {
	var wasmPath string
	cmd := &cobra.Command{
		Use:   "verify-manifest <manifest.yaml>",
		Short: "Verify a plugin manifest and wasm binary offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestBytes, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("orca: read manifest: %w", err)
			}
			var m plugin.Manifest
			if err := yaml.Unmarshal(manifestBytes, &m); err != nil {
				return fmt.Errorf("orca: parse manifest: %w", err)
			}
			wasm, err := os.ReadFile(wasmPath)
			if err != nil {
				return fmt.Errorf("orca: read wasm binary: %w", err)
			}
			v := plugin.NewVerifier(nil)
			if err := v.Verify(m, wasm); err != nil {
				return fmt.Errorf("orca: manifest verification failed: %w", err)
			}
			fmt.Printf("%s@%s: verified\n", m.Name, m.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&wasmPath, "wasm", "", "path to the wasm binary the manifest describes")
	_ = cmd.MarkFlagRequired("wasm")
	return cmd
}
