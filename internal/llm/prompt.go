package llm

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docqa/internal/chunker"
)

const SystemPrompt = `You are a knowledgeable and professional assistant. Answer in a clear, natural, conversational style. Do not include metadata, debug info, or system output.`

// DocumentSystemPrompt is used when the context comes from lexical search
// over a single document's sections.
func DocumentSystemPrompt(sections int) string {
	return fmt.Sprintf(`You are a helpful AI assistant analyzing a document.
The document has %d sections.
Answer based on the provided document content. Be specific and reference relevant parts.
If information isn't in the document, say so clearly.`, sections)
}

// BuildPrompt wraps the question with retrieved context. Contexts are
// added in order while the estimated token count stays within budget; the
// first context is always included. A budget <= 0 disables the limit.
// With no context the question is returned as is.
func BuildPrompt(question string, contexts []string, budget int) string {
	kept := make([]string, 0, len(contexts))
	used := chunker.EstimateTokens(question)
	for _, c := range contexts {
		if strings.TrimSpace(c) == "" {
			continue
		}
		cost := chunker.EstimateTokens(c)
		if budget > 0 && len(kept) > 0 && used+cost > budget {
			break
		}
		kept = append(kept, c)
		used += cost
	}
	if len(kept) == 0 {
		return question
	}

	var sb strings.Builder
	sb.WriteString("Based on the provided CONTEXT from documents, answer the question.\n\n")
	sb.WriteString("Document CONTEXT:\n")
	sb.WriteString(strings.Join(kept, "\n\n"))
	sb.WriteString("\n\nUser's Question:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer clearly and naturally.\n")
	return sb.String()
}
