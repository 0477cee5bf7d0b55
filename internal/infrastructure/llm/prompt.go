package llm

import (
	"fmt"
	"strings"

	"NewsCaster/internal/domain"
)

const scriptPromptTemplate = "You are a Wall Street squawk box reporter. " +
	"Rewrite this news item into a concise 30-second script in %s for audio reading. " +
	"No greetings or introductions. Just the facts. " +
	"ALWAYS spell out numbers. Your response shall only contain the script text."

func systemPrompt(language string) string {
	language = strings.TrimSpace(language)
	if language == "" {
		language = "English"
	}
	return fmt.Sprintf(scriptPromptTemplate, language)
}

func userPrompt(article domain.Article) string {
	body := strings.TrimSpace(article.FullText)
	if body == "" {
		body = strings.TrimSpace(article.Description)
	}
	return fmt.Sprintf("Headline: %s\nDetail: %s", strings.TrimSpace(article.Title), body)
}

// cleanScript drops code fences and quotes some models wrap around plain text.
func cleanScript(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```text")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if len(content) >= 2 && strings.HasPrefix(content, `"`) && strings.HasSuffix(content, `"`) {
		content = strings.TrimSpace(content[1 : len(content)-1])
	}
	return content
}
