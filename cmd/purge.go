package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/result"
)

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <model-id>",
		Short: "Remove a model's results and cached artifacts",
		Long:  "Delete every stored result for the model, drop its generation and judge cache entries, and recompute metrics from the remaining corpus.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			modelID := args[0]

			summary, kept, err := result.Purge(cfg.Results.Dir, modelID)
			if err != nil {
				return err
			}
			if summary.RemovedResults == 0 && summary.RemovedCacheFiles == 0 {
				fmt.Printf("No results or cache entries found for %s\n", modelID)
				return nil
			}

			if err := result.SaveMetrics(cfg.Results.Dir, computeMetrics(kept, cfg)); err != nil {
				return fmt.Errorf("recomputing metrics: %w", err)
			}

			fmt.Printf("Purged %s: %d results, %d cache files removed\n",
				modelID, summary.RemovedResults, summary.RemovedCacheFiles)
			fmt.Printf("%d results remain\n", len(kept))
			return nil
		},
	}
}
