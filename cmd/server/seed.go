package main

import (
	"fmt"
	"math/rand/v2"

	"noteboard/internal/models"
	"noteboard/internal/notes"

	"github.com/spf13/cobra"
)

var seedCount int

var sampleNotes = []string{
	"Had a productive morning meeting",
	"Finished the quarterly report",
	"Reviewed pull requests",
	"Fixed a critical bug in production",
	"Standup notes: discussed blockers",
	"Brainstormed new feature ideas",
	"Updated documentation",
	"Deployed new version to staging",
	"Sprint planning completed",
	"Added unit tests for new feature",
	"Fixed UI alignment issues",
	"Weekly sync with stakeholders",
}

// seedCmd appends sample notes to the configured store.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Append sample notes to the board",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedCount < 1 {
			return fmt.Errorf("--count must be positive")
		}

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer st.Close()

		svc := notes.NewService(st, notes.WithLogger(log))
		inserted := 0
		for range seedCount {
			content := sampleNotes[rand.IntN(len(sampleNotes))]
			color := models.Colors[rand.IntN(len(models.Colors))]
			if _, err := svc.Append(cmd.Context(), content, color); err != nil {
				log.Error().Err(err).Msg("error inserting note")
				continue
			}
			inserted++
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d notes\n", inserted)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 20, "Number of notes to append")
	rootCmd.AddCommand(seedCmd)
}
