package rag

import (
	"fmt"
	"strings"

	"github.com/spigell/talentcore/internal/vectorindex"
)

const (
	DefaultNoInformationMessage = "No tengo esa información."
	DefaultFallbackMessage      = "Lo siento, no he podido encontrar una respuesta fiable a tu pregunta. Por favor, contacta con el equipo de soporte."
)

const systemPrompt = `You are the help assistant of a recruiting and training platform.
Answer ONLY with facts stated in the numbered context blocks.
Answer in the language of the question, in at most five sentences.
Copy figures, prices, dates and proper names exactly as they appear in the context.
If the context does not contain the answer, reply exactly: %q`

const strictSuffix = `
Your previous answer contained statements that are not in the context.
Do not add any figure, name or detail that is not written verbatim in the context.`

func buildSystemPrompt(noInformation string, strict bool) string {
	prompt := fmt.Sprintf(systemPrompt, noInformation)
	if strict {
		prompt += strictSuffix
	}
	return prompt
}

func buildUserPrompt(query string, chunks []vectorindex.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d]", i+1)
		if c.SourceTitle != "" {
			fmt.Fprintf(&b, " %s", c.SourceTitle)
		}
		if c.SourceURL != "" {
			fmt.Fprintf(&b, " (%s)", c.SourceURL)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(c.Text))
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}
