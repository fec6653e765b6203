package dispatch

import "fmt"

// SystemPrompt frames every provider request.
const SystemPrompt = `You are an AI assistant analyzing UI content from a webpage. You will receive a simplified HTML representation of the visible content.

IMPORTANT RULES:
1. Focus on the VISIBLE TEXT and CONTENT (tables, lists, images).
2. Do NOT output the full HTML code unless explicitly asked to 'refactor' or 'rewrite code'.
3. If asked to translate, summarize, or explain, provide ONLY the text result, not the HTML structure.
4. Ignore technical noise (classes, attributes) if they are not relevant to the query.`

// UserPrompt wraps the selected HTML and the user's question.
func UserPrompt(html, query string) string {
	return fmt.Sprintf("Here is the visible content structure (simplified HTML) of the selected element:\n\n```html\n%s\n```\n\nUser Query:\n%s", html, query)
}

// SearchPrompt is the query-first prompt submitted to Google AI Mode,
// which has no separate system turn.
func SearchPrompt(html, query string) string {
	return fmt.Sprintf("%s\n\nData to process:\n```html\n%s\n```\n\n(Provide direct answer only in Markdown format within a codeblock. Do not add any extra conversation.)", query, html)
}
