package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/judge"
	"github.com/signalnine/pantheon/internal/llm"
	"github.com/signalnine/pantheon/internal/logging"
	"github.com/signalnine/pantheon/internal/report"
	"github.com/signalnine/pantheon/internal/result"
	"github.com/signalnine/pantheon/internal/runner"
	"github.com/signalnine/pantheon/internal/store"
)

var (
	flagModel string
	flagTask  string
	flagCases string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a benchmark run",
		RunE:  runBenchmark,
	}
	cmd.Flags().StringVar(&flagModel, "model", "", "filter to a single model")
	cmd.Flags().StringVar(&flagTask, "task", "", "filter to a single task")
	cmd.Flags().StringVar(&flagCases, "cases", "test_cases.json", "test cases file")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log := logging.New(flagVerbose)
	defer log.Sync()
	log = log.With("run_id", uuid.NewString()[:8])

	cases, err := runner.LoadTestCases(flagCases)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no usable test cases in %s", flagCases)
	}

	apiKey := os.Getenv(cfg.Provider.APIKeyEnv)
	if apiKey == "" {
		return fmt.Errorf("environment variable %s is not set", cfg.Provider.APIKeyEnv)
	}
	client, err := llm.NewOpenRouterClient(apiKey, cfg.Provider.BaseURL, llm.PolicyFromConfig(cfg.Retry), log)
	if err != nil {
		return fmt.Errorf("creating provider client: %w", err)
	}

	models := filterModels(cfg.Models, flagModel)
	tasks := filterTaskNames(cfg.Tasks, flagTask)
	if len(models) == 0 {
		return fmt.Errorf("no models match %q", flagModel)
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks match %q", flagTask)
	}

	ctx := context.Background()
	models = availableModels(ctx, client, models, log)
	if len(models) == 0 {
		return fmt.Errorf("no configured models are available from the provider")
	}

	genCache, err := store.NewFSStore(filepath.Join(cfg.Results.Dir, result.CacheDir))
	if err != nil {
		return err
	}
	judgeCache, err := store.NewFSStore(filepath.Join(cfg.Results.Dir, result.JudgeCacheDir))
	if err != nil {
		return err
	}

	evaluator := judge.NewEvaluator(client, cfg, judgeCache, log)
	r := runner.New(client, evaluator, genCache, cfg, log)

	results, runErr := r.Run(ctx, models, tasks, cases)
	if runErr != nil {
		log.Warnw("run finished with errors", "error", runErr)
	}
	if len(results) == 0 {
		return fmt.Errorf("run produced no results: %w", runErr)
	}

	existing, err := result.Load(cfg.Results.Dir)
	if err != nil {
		return err
	}
	merged := result.Merge(existing, results)
	if err := result.Save(cfg.Results.Dir, merged); err != nil {
		return err
	}
	if err := result.SaveMetrics(cfg.Results.Dir, computeMetrics(merged, cfg)); err != nil {
		return err
	}

	fmt.Println("\n--- Results ---")
	return report.Generate(merged, cfg, "table", os.Stdout)
}

func availableModels(ctx context.Context, client *llm.OpenRouterClient, models []config.Model, log *zap.SugaredLogger) []config.Model {
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	avail := client.CheckAvailability(ctx, ids)
	var usable []config.Model
	for _, m := range models {
		if avail[m.ID] {
			usable = append(usable, m)
		} else {
			log.Warnw("skipping unavailable model", "model", m.ID)
		}
	}
	return usable
}

func filterModels(models []config.Model, id string) []config.Model {
	if id == "" {
		return models
	}
	var filtered []config.Model
	for _, m := range models {
		if m.ID == id {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

func filterTaskNames(tasks []string, name string) []string {
	if name == "" {
		return tasks
	}
	for _, t := range tasks {
		if t == name {
			return []string{t}
		}
	}
	return nil
}
