package runner

import (
	"encoding/json"
	"fmt"
	"os"
)

// TestCase is one source document a model is benchmarked against.
type TestCase struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Topic  string `json:"topic_category"`
	Format string `json:"format_type"`
	Text   string `json:"text"`
	Error  string `json:"error,omitempty"`
}

// LoadTestCases reads a test case file, dropping entries that carry a
// generation error.
func LoadTestCases(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading test cases: %w", err)
	}
	var cases []TestCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parsing test cases: %w", err)
	}
	usable := make([]TestCase, 0, len(cases))
	for _, tc := range cases {
		if tc.Error != "" {
			continue
		}
		usable = append(usable, tc)
	}
	return usable, nil
}
