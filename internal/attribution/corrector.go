package attribution

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/kildespor/kildespor/models"
)

// LLM is the completion surface the corrector needs. provider/openai
// satisfies it.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Corrector rewrites the generated answer against enriched source transcripts
// to fix transcription artifacts (misheard names, places, terms). It never
// fails a turn: on any error the original answer is returned unchanged.
type Corrector struct {
	LLM    LLM
	Logger *log.Logger

	// MaxSources bounds how many source contexts go into the prompt.
	MaxSources int
}

const correctionPrompt = `Du er ekspert på å rette transkripsjonsfeil i norsk tekst.

Svaret under er generert fra videotranskripsjoner som kan inneholde transkripsjonsfeil, som feilstavede navn, steder eller fagbegreper.

SPØRSMÅL:
%s

SVAR:
%s

KILDEUTDRAG FRA TRANSKRIPSJONENE:
%s

Rett eventuelle transkripsjonsfeil i svaret ved å bruke kildeutdragene som fasit. Behold svarets struktur, formatering og meningsinnhold uendret. Hvis ingenting trenger retting, gjengi svaret som det er.

Returner kun det korrigerte svaret, uten forklaring.`

// Correct returns the answer with transcription errors fixed, or the answer
// verbatim when there are no sources, no model, or the call fails.
func (c *Corrector) Correct(ctx context.Context, answer, query string, sources []models.Source) string {
	if c.LLM == nil || len(sources) == 0 || strings.TrimSpace(answer) == "" {
		return answer
	}
	max := c.MaxSources
	if max <= 0 {
		max = 3
	}
	if len(sources) > max {
		sources = sources[:max]
	}

	var b strings.Builder
	for i, src := range sources {
		text := src.Context
		if text == "" {
			text = src.Text
		}
		fmt.Fprintf(&b, "Kilde %d (%s):\n%s\n\n", i+1, src.VideoTitle, text)
	}

	prompt := fmt.Sprintf(correctionPrompt, query, answer, strings.TrimSpace(b.String()))
	corrected, err := c.LLM.Complete(ctx, prompt)
	if err != nil {
		correctionFailuresTotal.Inc()
		c.logf("correction failed, keeping original answer: %v", err)
		return answer
	}
	corrected = stripFences(corrected)
	if corrected == "" {
		correctionFailuresTotal.Inc()
		c.logf("correction returned empty text, keeping original answer")
		return answer
	}
	return corrected
}

// stripFences removes surrounding whitespace and markdown code fences some
// models wrap their output in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (c *Corrector) logf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}
