package result

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/signalnine/pantheon/internal/store"
)

// Corpus file and cache directory names under the results dir.
const (
	ResultsFile   = "benchmark_results.json"
	MetricsFile   = "benchmark_metrics.json"
	CacheDir      = "cache"
	JudgeCacheDir = "judge_cache"
)

// Load reads the corpus from dir. A missing file is an empty corpus.
// Reads retry briefly so a run that starts while another process is
// mid-save does not fail spuriously.
func Load(dir string) ([]BenchmarkResult, error) {
	path := filepath.Join(dir, ResultsFile)

	op := func() ([]BenchmarkResult, error) {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, backoff.Permanent(os.ErrNotExist)
		}
		if err != nil {
			return nil, err
		}
		var results []BenchmarkResult
		if err := json.Unmarshal(data, &results); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", ResultsFile, err)
		}
		return results, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	results, err := backoff.Retry(context.Background(), op,
		backoff.WithBackOff(bo), backoff.WithMaxTries(3))
	if err != nil {
		if os.IsNotExist(err) {
			return []BenchmarkResult{}, nil
		}
		return nil, fmt.Errorf("loading results: %w", err)
	}
	return results, nil
}

// Save writes the corpus atomically: temp file in the same directory,
// then rename over the destination.
func Save(dir string, results []BenchmarkResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return writeAtomic(filepath.Join(dir, ResultsFile), data)
}

// SaveMetrics writes the aggregated metrics document next to the
// corpus.
func SaveMetrics(dir string, metrics any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	return writeAtomic(filepath.Join(dir, MetricsFile), data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".save-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("committing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// PurgeSummary reports what a purge removed.
type PurgeSummary struct {
	RemovedResults    int `json:"removed_results"`
	RemovedCacheFiles int `json:"removed_cache_files"`
}

// Purge removes every trace of a model from the results dir: its
// corpus records plus any generation or judge cache entries whose
// payload mentions the model id. The caller is expected to recompute
// metrics afterwards.
func Purge(dir, modelID string) (*PurgeSummary, []BenchmarkResult, error) {
	results, err := Load(dir)
	if err != nil {
		return nil, nil, err
	}
	kept := FilterModel(results, modelID)
	summary := &PurgeSummary{RemovedResults: len(results) - len(kept)}

	if err := Save(dir, kept); err != nil {
		return nil, nil, err
	}

	for _, sub := range []string{CacheDir, JudgeCacheDir} {
		cachePath := filepath.Join(dir, sub)
		if _, err := os.Stat(cachePath); os.IsNotExist(err) {
			continue
		}
		s, err := store.NewFSStore(cachePath)
		if err != nil {
			return nil, nil, err
		}
		removed, err := s.Purge(modelID)
		if err != nil {
			return nil, nil, fmt.Errorf("purging %s: %w", sub, err)
		}
		summary.RemovedCacheFiles += removed
	}
	return summary, kept, nil
}
