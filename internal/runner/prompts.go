package runner

import (
	"fmt"
	"strings"

	"github.com/signalnine/pantheon/internal/config"
)

// Default generation budgets per task before tier multipliers.
const (
	defaultSummaryTokens    = 2800
	defaultQuizTokens       = 3200
	defaultFlashcardsTokens = 4096
)

const quizQuestionCount = 6
const flashcardsPerSection = 6

var baseIdentity = strings.Join([]string{
	"Du bist ein spezialisierter KI-Assistent fuer akademische Aufbereitung.",
	"Deine Aufgabe ist es, aus gegebenem Lernstoff hochwertige, pruefungsorientierte Lernartefakte zu erstellen (Zusammenfassung, Flashcards, Quiz).",
	"Du arbeitest strikt mit dem gelieferten Text und erfindest nichts hinzu.",
	"Ausgabe ist auf Deutsch (englische Fachbegriffe aus dem Skript beibehalten).",
}, "\n")

var summaryFormatContract = strings.Join([]string{
	"WICHTIG - Formatvertrag:",
	"- Ausgabe beginnt DIREKT mit einer H1-Ueberschrift (# Titel).",
	"- KEINE Metadaten, KEIN Frontmatter, KEINE einleitenden Kommentare.",
	"- Nur reines Markdown.",
	"- Ueberschriften niemals nummerieren (kein '## 1.' / '## I.' etc).",
	"- Wenn Mathe/Formeln vorkommen: nutze LaTeX (inline $...$, Display $$ ... $$) und erklaere Variablen direkt danach.",
	"- VERBOTEN: Abschluss-Saetze wie 'Damit kann man sich gut vorbereiten' oder 'Alles kommt aus den Vorlesungsfolien'.",
	"- Auch wenn der Text kurz, verrauscht (OCR) oder lueckenhaft ist: Erstelle immer die bestmoegliche fachliche Zusammenfassung des vorhandenen Inhalts.",
	"- Gib KEINE Fehlermeldungen wie 'Fehlende Quelle' oder aehnliche Meta-Kommentare aus.",
}, "\n")

// Prompts is a system/user prompt pair plus the task's default token
// budget.
type Prompts struct {
	System    string
	User      string
	MaxTokens int
}

// BuildPrompts renders the generation prompts for a task over one test
// case.
func BuildPrompts(task string, tc *TestCase, text string) (*Prompts, error) {
	switch task {
	case config.TaskSummary:
		return buildSummaryPrompts(text), nil
	case config.TaskQuiz:
		return buildQuizPrompts(tc, text), nil
	case config.TaskFlashcards:
		return buildFlashcardsPrompts(tc, text), nil
	default:
		return nil, fmt.Errorf("unknown task: %s", task)
	}
}

func buildSummaryPrompts(text string) *Prompts {
	system := strings.Join([]string{
		baseIdentity,
		"",
		summaryFormatContract,
	}, "\n")
	user := strings.Join([]string{
		"Quelle (PDF-Extrakt):",
		text,
		"",
		"Gib ausschliesslich die fertige Zusammenfassung in Markdown aus. Beginne direkt mit # Titel.",
	}, "\n")
	return &Prompts{System: system, User: user, MaxTokens: defaultSummaryTokens}
}

func buildQuizPrompts(tc *TestCase, text string) *Prompts {
	system := strings.Join([]string{
		baseIdentity,
		"",
		"Format:",
		"- Ausgabe ist NUR gueltiges JSON (kein Markdown, keine Codefences).",
		"- Top-Level: {\"questions\": QuizQuestion[]}.",
		"",
		"QuizQuestion Schema:",
		"- sectionId: string",
		"- sectionTitle: string",
		"- question: string",
		"- options: string[4]",
		"- correctIndex: number (0..3)",
		"- explanation: string (kurz, 1-2 Saetze)",
		"- sourceSnippet: string (kurzes, woertliches Zitat aus dem Section-Text, max 240 Zeichen)",
	}, "\n")
	user := strings.Join([]string{
		fmt.Sprintf("Erzeuge exakt %d Multiple-Choice Fragen (4 Optionen) fuer diese Section.", quizQuestionCount),
		"Distractors muessen aus Begriffen/Ideen derselben Section kommen (keine externen Facts).",
		"",
		"Section:",
		"-----",
		fmt.Sprintf("ID: %s | Title: %s", tc.ID, tc.Title),
		"Text:",
		text,
		"",
		"WICHTIG:",
		"- sourceSnippet muss ein woertliches Zitat aus dem Section-Text sein.",
		"- correctIndex muss zur richtigen Option passen.",
		"",
		"Gib nur das JSON aus.",
	}, "\n")
	return &Prompts{System: system, User: user, MaxTokens: defaultQuizTokens}
}

func buildFlashcardsPrompts(tc *TestCase, text string) *Prompts {
	system := strings.Join([]string{
		baseIdentity,
		"",
		"Format:",
		"- Ausgabe ist NUR gueltiges JSON (kein Markdown, keine Codefences).",
		"- Top-Level: {\"flashcards\": Flashcard[]}.",
		"",
		"Kuerze (wichtig fuer Geschwindigkeit):",
		"- front: max 140 Zeichen, keine Schachtelsaetze.",
		"- back: max 280 Zeichen, nur die minimale korrekte Antwort.",
		"- Keine Newlines in Strings (nutze Leerzeichen).",
		"",
		"Flashcard Schema:",
		"- sectionId: string",
		"- sectionTitle: string",
		"- type: \"qa\" | \"cloze\"",
		"- front: string",
		"- back: string",
		"- sourceSnippet: string (kurzes, woertliches Zitat aus dem Section-Text, 1-3 Saetze, max 240 Zeichen)",
	}, "\n")
	user := strings.Join([]string{
		fmt.Sprintf("Erzeuge bis zu %d Flashcards pro Section (Ziel: %d).", flashcardsPerSection, flashcardsPerSection),
		"Mische Q/A und Cloze sinnvoll (mindestens 1 Cloze pro Section, wenn moeglich).",
		"Wenn du die Zielanzahl nicht sauber/ohne Erfindungen erreichst: lieber weniger, aber hochwertig.",
		"",
		"Quelle (Sections):",
		"-----",
		fmt.Sprintf("ID: %s | Title: %s", tc.ID, tc.Title),
		"Text:",
		text,
		"",
		"WICHTIG:",
		"- sourceSnippet muss ein woertliches Zitat aus dem jeweiligen Section-Text sein.",
		"- Keine doppelten Karten pro Section.",
		"",
		"Gib nur das JSON aus.",
	}, "\n")
	return &Prompts{System: system, User: user, MaxTokens: defaultFlashcardsTokens}
}
