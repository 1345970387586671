package judge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/signalnine/pantheon/internal/config"
)

const judgeSystemPrompt = `Du bist ein Experte für die Bewertung von KI-generierten Lernmaterialien.
Bewerte objektiv und konsistent. Nutze die volle Skala von 1-100.`

const summaryPromptTemplate = `Du bewertest eine KI-generierte Zusammenfassung von Vorlesungsmaterial.

Quelle (Originaltext):
%s

Generierte Zusammenfassung:
%s

Bewerte die Zusammenfassung auf einer Skala von 1-100 für folgende Kriterien:

1. **Factual Accuracy (Faktische Genauigkeit)**: Entspricht die Ausgabe dem Quellmaterial? Gibt es Halluzinationen oder Fehler? (1 = viele Fehler, 100 = perfekt)
2. **Completeness (Vollständigkeit)**: Werden alle wichtigen Konzepte aus der Quelle abgedeckt? Fehlt etwas Wichtiges? (1 = unvollständig, 100 = vollständig)
3. **Quality (Qualität)**: Wie nützlich ist die Zusammenfassung für die Prüfungsvorbereitung? Ist sie klar strukturiert und verständlich? (1 = unbrauchbar, 100 = ausgezeichnet)
4. **LaTeX Correctness**: Sind mathematische Formeln korrekt escaped (inline: $...$ oder \(...\), Display: $$...$$ oder \[...\]) und renderbar? (1 = fehlerhaft, 100 = perfekt)

WICHTIG: Wenn die Zusammenfassung leer ist oder keine Inhalte hat, gib für alle Scores 1 (nicht 0).

Antworte NUR mit einem JSON-Objekt im folgenden Format:
{
  "factual_accuracy": <1-100>,
  "completeness": <1-100>,
  "quality": <1-100>,
  "latex_correctness": <1-100>,
  "reasoning": "Kurze Begründung für die Scores"
}`

const quizPromptTemplate = `Du bewertest KI-generierte Quiz-Fragen zu Vorlesungsmaterial.

Quelle (Originaltext):
%s

Generierte Quiz-Fragen:
%s

Bewerte die Quiz-Fragen auf einer Skala von 1-100 für folgende Kriterien:

1. **Factual Accuracy**: Entsprechen die Fragen und Antworten dem Quellmaterial? Gibt es Halluzinationen? (1 = viele Fehler, 100 = perfekt)
2. **Completeness**: Werden wichtige Konzepte aus der Quelle abgedeckt? (1 = unvollständig, 100 = vollständig)
3. **Question Quality**: Sind die Fragen klar, relevant und prüfungsorientiert? (1 = schlecht, 100 = ausgezeichnet)
4. **Distractor Quality**: Sind die Distraktoren plausibel und nicht offensichtlich falsch? (1 = offensichtlich falsch, 100 = sehr plausibel)
5. **Pedagogical Usefulness**: Ist die Erklärung in den Quiz-Antworten so hilfreich, dass ein Student den Fehler versteht, ohne Google zu nutzen? (1 = nicht hilfreich, 100 = sehr hilfreich)

WICHTIG: Wenn die Quiz-Fragen leer sind oder keine Inhalte haben, gib für alle Scores 1 (nicht 0).

Antworte NUR mit einem JSON-Objekt im folgenden Format:
{
  "factual_accuracy": <1-100>,
  "completeness": <1-100>,
  "question_quality": <1-100>,
  "distractor_quality": <1-100>,
  "pedagogical_usefulness": <1-100>,
  "reasoning": "Kurze Begründung für die Scores"
}`

const flashcardsPromptTemplate = `Du bewertest KI-generierte Flashcards zu Vorlesungsmaterial.

Quelle (Originaltext):
%s

Generierte Flashcards:
%s

Bewerte die Flashcards auf einer Skala von 1-100 für folgende Kriterien:

1. **Factual Accuracy**: Entsprechen die Flashcards dem Quellmaterial? Gibt es Halluzinationen? (1 = viele Fehler, 100 = perfekt)
2. **Completeness**: Werden wichtige Konzepte abgedeckt? (1 = unvollständig, 100 = vollständig)
3. **Clarity**: Sind die Fragen/Aufgaben klar und verständlich? (1 = unklar, 100 = sehr klar)
4. **Memorability**: Sind die Flashcards gut zum Lernen geeignet? (1 = schlecht, 100 = ausgezeichnet)
5. **Appropriate Detail**: Ist das Detailniveau angemessen (nicht zu oberflächlich, nicht zu detailliert)? (1 = unangemessen, 100 = perfekt)

WICHTIG: Wenn die Flashcards leer sind oder keine Inhalte haben, gib für alle Scores 1 (nicht 0).

Antworte NUR mit einem JSON-Objekt im folgenden Format:
{
  "factual_accuracy": <1-100>,
  "completeness": <1-100>,
  "clarity": <1-100>,
  "memorability": <1-100>,
  "appropriate_detail": <1-100>,
  "reasoning": "Kurze Begründung für die Scores"
}`

// buildJudgePrompt renders the task-specific rubric prompt. Structured
// tasks embed the parsed payload rather than the raw output so the
// judge sees exactly what the schema check saw.
func buildJudgePrompt(taskType, sourceText, outputText string, parsed map[string]any) (string, error) {
	src := sourceExcerpt(sourceText, maxSourceExcerpt)

	switch taskType {
	case config.TaskSummary:
		return fmt.Sprintf(summaryPromptTemplate, src, outputText), nil
	case config.TaskQuiz:
		return fmt.Sprintf(quizPromptTemplate, src, structuredPayload(parsed, "questions")), nil
	case config.TaskFlashcards:
		return fmt.Sprintf(flashcardsPromptTemplate, src, structuredPayload(parsed, "flashcards")), nil
	default:
		return "", fmt.Errorf("unknown task type: %s", taskType)
	}
}

func structuredPayload(parsed map[string]any, key string) string {
	var items any = []any{}
	if parsed != nil {
		if v, ok := parsed[key]; ok {
			items = v
		}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// sourceExcerpt trims source text to limit characters, preferring to
// cut at a paragraph or sentence boundary in the final 20% of the
// window so mid-sentence truncation stays rare.
func sourceExcerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	window := string(runes[:limit])
	floor := limit * 8 / 10

	if idx := strings.LastIndex(window, "\n\n"); idx >= floor {
		return window[:idx]
	}
	best := -1
	for _, sep := range []string{". ", ".\n", "! ", "? "} {
		if idx := strings.LastIndex(window, sep); idx+1 > best {
			best = idx + 1
		}
	}
	if best >= floor {
		return window[:best]
	}
	return window + "…"
}
