package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ziXnOrg/ORCA/internal/budget"
	"github.com/ziXnOrg/ORCA/internal/config"
	"github.com/ziXnOrg/ORCA/internal/orchestrator"
	"github.com/ziXnOrg/ORCA/internal/policy"
	"github.com/ziXnOrg/ORCA/internal/sink"
	"github.com/ziXnOrg/ORCA/internal/wal"
)

// newReplayCmd rebuilds in-memory state from an existing WAL and
// prints a one-line completion message, without binding any listener;
// the recovered per-run state is not printed. Useful for verifying a
// WAL is replayable (e.g. after a crash) before pointing serve at it.
func newReplayCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay the configured WAL and report whether it replays cleanly",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("orca: load config: %w", err)
			}
			walFile, err := wal.Open(cfg.WALPath, logger)
			if err != nil {
				return fmt.Errorf("orca: open wal: %w", err)
			}
			orch, err := orchestrator.New(orchestrator.Config{
				WAL:     walFile,
				Policy:  policy.NewEngine(),
				Budgets: budget.NewManager(cfg.DefaultBudget),
				Sinks:   sink.NewFanout(logger),
				Logger:  logger,
			})
			if err != nil {
				return fmt.Errorf("orca: replay: %w", err)
			}
			_ = orch
			fmt.Printf("replay of %s completed\n", cfg.WALPath)
			return nil
		},
	}
}
