package annotate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	summaryPrompt = `Generate a summary of the following text. The summary should be concise and capture the main points of the text. The summary is of the user's conversation with a companion bot and will be shown back to the user. The text is as follows:
%s

summarise:`

	sentimentPrompt = `Classify the sentiment of the following text. Output exactly one word, either POSITIVE or NEGATIVE. The text is as follows:
%s

sentiment:`

	moodPrompt = `Predict the mood of the following text given the sentiment and the text. Output only one word that describes the mood of the text. The text is as follows:
%s

sentiment: %s`

	takeawaysPrompt = `Generate 3 takeaways from this entire conversation. The takeaways should be concise and capture the main points of the text. There should be 3 takeaways. The takeaways should be separated by commas (,). Do not do more than 1 sentence per takeaway, do not use periods or any other punctuation. The text is as follows:
%s

takeaway:`
)

// Generator produces text for a prompt. Satisfied by GeminiClient.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result holds whatever annotations could be derived. Any field may be empty
// when the backend failed for that prompt.
type Result struct {
	Summary   string
	Sentiment string
	Mood      string
	Takeaways string
}

// Annotator runs the four annotation prompts against one generator. Failures
// are logged and degrade to empty fields so writes never depend on the
// annotation backend being up.
type Annotator struct {
	gen Generator
	log *zap.Logger
}

func New(gen Generator, logger *zap.Logger) *Annotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Annotator{gen: gen, log: logger}
}

// Annotate derives all annotations for the given text.
func (a *Annotator) Annotate(ctx context.Context, text string) Result {
	var res Result
	if a == nil || a.gen == nil || strings.TrimSpace(text) == "" {
		return res
	}

	res.Summary = a.run(ctx, "summary", summaryPrompt, text)
	res.Sentiment = normalizeSentiment(a.run(ctx, "sentiment", sentimentPrompt, text))
	if res.Sentiment != "" {
		res.Mood = firstWord(a.run(ctx, "mood", moodPrompt, text, res.Sentiment))
	}
	res.Takeaways = cleanTakeaways(a.run(ctx, "takeaways", takeawaysPrompt, text))
	return res
}

func (a *Annotator) run(ctx context.Context, name, prompt string, args ...any) string {
	out, err := a.gen.Generate(ctx, fmt.Sprintf(prompt, args...))
	if err != nil {
		a.log.Warn("annotation degraded", zap.String("kind", name), zap.Error(err))
		return ""
	}
	return out
}

func normalizeSentiment(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "POSITIVE"):
		return "POSITIVE"
	case strings.Contains(s, "NEGATIVE"):
		return "NEGATIVE"
	default:
		return ""
	}
}

func firstWord(s string) string {
	fields := strings.Fields(strings.ReplaceAll(s, "\n", " "))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(strings.Trim(fields[0], ".,!"))
}

// cleanTakeaways strips everything but words, whitespace, and the comma
// separators, then rejoins the pieces.
func cleanTakeaways(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		if isWordRune(r) || r == ',' || r == ' ' {
			b.WriteRune(r)
		} else if r == '\n' {
			b.WriteRune(' ')
		}
	}
	parts := strings.Split(b.String(), ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, ", ")
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
