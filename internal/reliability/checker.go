// Package reliability scores output format conformance on a 1-100
// scale using deterministic rules only. It is entirely separate from
// judge-assessed content quality: a summary can be fluent nonsense and
// still score 100 here.
package reliability

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/signalnine/pantheon/internal/config"
)

// Penalty points per issue class. Schema issues are the most severe
// because malformed data is unusable downstream.
const (
	MarkdownIssuePenalty     = 5.0
	LatexIssuePenalty        = 3.0
	SchemaIssuePenalty       = 10.0
	LatexInStructuredPenalty = 2.0
)

// Result of a reliability evaluation. Score is always in [1,100]; 1 is
// "failed convincingly", never "no data".
type Result struct {
	Score   float64        `json:"reliability_score"`
	Issues  []string       `json:"issues"`
	Details map[string]any `json:"details"`
}

var (
	displayBlockRe = regexp.MustCompile(`\$\$[^$]+\$\$`)
	codeFenceRe    = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
)

// Meta/closing phrases the summary prompt forbids; matched
// case-insensitively as substrings.
var forbiddenPhrases = []string{
	"Damit kann man sich gut vorbereiten",
	"Alles kommt aus den Vorlesungsfolien",
	"Diese Zusammenfassung basiert auf",
}

// CheckLatex validates LaTeX delimiter hygiene in text.
func CheckLatex(text string) (bool, []string) {
	var issues []string

	// A line with an odd number of dollar signs ends in an
	// unterminated inline formula.
	unclosed := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.Count(line, "$")%2 != 0 {
			unclosed++
		}
	}
	if unclosed > 0 {
		issues = append(issues, fmt.Sprintf("Unclosed inline LaTeX: %d instances", unclosed))
	}

	if n := strings.Count(text, "$"); n > 0 && n%2 != 0 {
		issues = append(issues, "Unpaired dollar signs (LaTeX delimiters)")
	}

	for _, block := range displayBlockRe.FindAllString(text, -1) {
		if len(block) < 5 {
			issues = append(issues, fmt.Sprintf("Invalid display math block: %.20s", block))
		}
	}

	return len(issues) == 0, issues
}

// CheckMarkdown validates the structural rules for summary output.
func CheckMarkdown(text string) (bool, []string) {
	var issues []string
	trimmed := strings.TrimSpace(text)

	if !strings.HasPrefix(trimmed, "#") {
		issues = append(issues, "Does not start with H1 heading")
	} else if !strings.HasPrefix(trimmed, "# ") {
		issues = append(issues, "First heading is not properly formatted H1 (# Title)")
	}

	if strings.HasPrefix(trimmed, "---") {
		issues = append(issues, "Contains frontmatter (---)")
	}

	lower := strings.ToLower(text)
	for _, phrase := range forbiddenPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			issues = append(issues, fmt.Sprintf("Contains forbidden phrase: %s", phrase))
		}
	}

	if strings.Count(text, "```")%2 != 0 {
		issues = append(issues, "Unclosed code block")
	}

	return len(issues) == 0, issues
}

// CheckSchema validates the parsed structure of quiz or flashcards
// output against the fixed delivery schema.
func CheckSchema(data any, taskType string) (bool, []string) {
	var issues []string

	obj, ok := data.(map[string]any)
	if !ok {
		return false, []string{"Top level is not an object"}
	}

	switch taskType {
	case config.TaskQuiz:
		issues = checkQuiz(obj)
	case config.TaskFlashcards:
		issues = checkFlashcards(obj)
	}

	return len(issues) == 0, issues
}

func checkQuiz(obj map[string]any) []string {
	var issues []string
	raw, present := obj["questions"]
	if !present {
		return []string{"Missing 'questions' key"}
	}
	questions, ok := raw.([]any)
	if !ok {
		return []string{"'questions' is not an array"}
	}
	required := []string{"sectionId", "sectionTitle", "question", "options", "correctIndex", "sourceSnippet"}
	for i, item := range questions {
		q, ok := item.(map[string]any)
		if !ok {
			issues = append(issues, fmt.Sprintf("Question %d is not an object", i))
			continue
		}
		for _, field := range required {
			if _, ok := q[field]; !ok {
				issues = append(issues, fmt.Sprintf("Question %d missing field: %s", i, field))
			}
		}
		if raw, ok := q["options"]; ok {
			opts, isArr := raw.([]any)
			if !isArr {
				issues = append(issues, fmt.Sprintf("Question %d options is not an array", i))
			} else if len(opts) != 4 {
				issues = append(issues, fmt.Sprintf("Question %d does not have exactly 4 options", i))
			}
		}
		if raw, ok := q["correctIndex"]; ok {
			idx, isInt := asInt(raw)
			if !isInt || idx < 0 || idx > 3 {
				issues = append(issues, fmt.Sprintf("Question %d has invalid correctIndex: %v", i, raw))
			}
		}
	}
	return issues
}

func checkFlashcards(obj map[string]any) []string {
	var issues []string
	raw, present := obj["flashcards"]
	if !present {
		return []string{"Missing 'flashcards' key"}
	}
	cards, ok := raw.([]any)
	if !ok {
		return []string{"'flashcards' is not an array"}
	}
	required := []string{"sectionId", "sectionTitle", "type", "front", "back", "sourceSnippet"}
	for i, item := range cards {
		card, ok := item.(map[string]any)
		if !ok {
			issues = append(issues, fmt.Sprintf("Flashcard %d is not an object", i))
			continue
		}
		for _, field := range required {
			if _, ok := card[field]; !ok {
				issues = append(issues, fmt.Sprintf("Flashcard %d missing field: %s", i, field))
			}
		}
		if raw, ok := card["type"]; ok {
			t, _ := raw.(string)
			if t != "qa" && t != "cloze" {
				issues = append(issues, fmt.Sprintf("Flashcard %d has invalid type: %v", i, raw))
			}
		}
	}
	return issues
}

// asInt accepts JSON numbers that are integral; 2.0 counts, 2.5 does not.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case int:
		return n, true
	}
	return 0, false
}

// ParseStructured extracts and parses JSON from model output,
// tolerating a markdown code-fence wrapper.
func ParseStructured(outputText string) (map[string]any, error) {
	text := strings.TrimSpace(outputText)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Evaluate computes the reliability score for one output. parsed may
// be nil for structured tasks, in which case outputText is parsed here;
// a parse failure floors the score at 1 and skips all further checks.
func Evaluate(taskType, outputText string, parsed map[string]any) *Result {
	score := 100.0
	var allIssues []string
	details := map[string]any{}

	if strings.TrimSpace(outputText) == "" {
		details["empty_output"] = true
		if taskType == config.TaskQuiz || taskType == config.TaskFlashcards {
			details["json_parseable"] = false
			details["parse_error"] = "Empty output text"
		}
		return &Result{
			Score:   1.0,
			Issues:  []string{"Empty output text"},
			Details: details,
		}
	}

	switch taskType {
	case config.TaskSummary:
		mdValid, mdIssues := CheckMarkdown(outputText)
		allIssues = append(allIssues, mdIssues...)
		score -= float64(len(mdIssues)) * MarkdownIssuePenalty

		latexValid, latexIssues := CheckLatex(outputText)
		allIssues = append(allIssues, latexIssues...)
		score -= float64(len(latexIssues)) * LatexIssuePenalty

		details["markdown_valid"] = mdValid
		details["latex_valid"] = latexValid
		details["markdown_issues"] = mdIssues
		details["latex_issues"] = latexIssues

	case config.TaskQuiz, config.TaskFlashcards:
		if parsed == nil {
			var err error
			parsed, err = ParseStructured(outputText)
			if err != nil {
				return &Result{
					Score:  1.0,
					Issues: []string{fmt.Sprintf("JSON parse error: %v", err)},
					Details: map[string]any{
						"json_parseable": false,
						"parse_error":    err.Error(),
					},
				}
			}
		}

		schemaValid, schemaIssues := CheckSchema(parsed, taskType)
		allIssues = append(allIssues, schemaIssues...)
		score -= float64(len(schemaIssues)) * SchemaIssuePenalty

		details["json_parseable"] = true
		details["json_valid"] = schemaValid
		details["json_issues"] = schemaIssues

		// LaTeX inside string fields breaks rendering too, just less
		// severely than a broken schema.
		if serialized, err := json.Marshal(parsed); err == nil {
			_, latexIssues := CheckLatex(string(serialized))
			for _, issue := range latexIssues {
				allIssues = append(allIssues, "LaTeX in JSON: "+issue)
			}
			score -= float64(len(latexIssues)) * LatexInStructuredPenalty
		}
	}

	return &Result{
		Score:   clamp(score),
		Issues:  allIssues,
		Details: details,
	}
}

func clamp(score float64) float64 {
	if score < 1 {
		return 1
	}
	if score > 100 {
		return 100
	}
	return score
}
