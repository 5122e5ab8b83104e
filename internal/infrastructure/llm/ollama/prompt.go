package ollama

import (
	"fmt"
	"strings"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

const maxPromptContexts = 5

func buildAnswerPrompt(question string, contexts []domain.Candidate) string {
	if len(contexts) > maxPromptContexts {
		contexts = contexts[:maxPromptContexts]
	}

	var contextBuilder strings.Builder
	for idx, c := range contexts {
		if idx > 0 {
			contextBuilder.WriteString("\n\n")
		}
		fmt.Fprintf(&contextBuilder, "[Source %d]: %s", idx+1, strings.TrimSpace(c.Text))
	}

	return fmt.Sprintf(`You are AceBuddy, an expert IT support assistant. Provide accurate, helpful and professional technical support.

INSTRUCTIONS:
1. Use ONLY the information from the Knowledge Base Context below
2. Provide clear, step-by-step instructions when applicable
3. If the context doesn't contain the answer, politely say so and suggest contacting support
4. Be specific with technical details (port numbers, file paths, commands)
5. Keep your response concise but complete

KNOWLEDGE BASE CONTEXT:
%s

QUESTION: %s

RESPONSE:`, contextBuilder.String(), question)
}
