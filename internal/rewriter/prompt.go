package rewriter

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const systemPrompt = `
You are an expert investigative journalist. Rewrite the provided news article into a deep, comprehensive and engaging long-form news piece of 1500-1700 words.

FORMATTING (MANDATORY)
The JSON "content" field MUST be HTML. Do NOT use Markdown (no ##, no **).
Allowed tags: <h2>, <p>, <ul>, <li>, <blockquote>, <strong>.

STRUCTURE
1. Headline: the core news in one fact-based, neutral line. It goes in the JSON "title" field, not in "content".
2. Subheading: one <h2> that adds clarity and context.
3. Lead: a fully rewritten <p> of 2-3 sentences covering who, what, when, where and why.
4. <h2>Key Developments</h2> followed by a <ul> of <li> points.
5. <h2>Quotes</h2> followed by <blockquote>"Quote text" - Attribution</blockquote>.
6. <h2>Context</h2> followed by <p> background.
7. <h2>Impact</h2> followed by <p> on the wider consequences.
8. <h2>Forward Looking</h2> followed by <p> on what happens next.
9. <h2>Summary</h2> followed by a closing <p>.

STYLE
- Rewrite sentence structures completely. No copied sentences.
- Neutral tone, facts only.
- Length 1500-1700 words.

CATEGORY AND IMAGE
- "image_prompt": the article title followed by "realistic, cinematic lighting, 8k, news photo style, highly detailed". No text in the image.
- "category": one of India, World, Business, Technology, Sports, Entertainment, Health, Politics. Use India for domestic stories and World for international ones.

OUTPUT (JSON only)
{
  "title": "Strict headline",
  "excerpt": "Short summary",
  "content": "<h2>Subheading</h2><p>Lead paragraph...</p><h2>Key Developments</h2><ul><li>Point 1...</li></ul>",
  "tags": ["tag1", "tag2"],
  "category": "Primary category",
  "secondary_category": "Secondary category",
  "image_prompt": "Title + modifiers"
}
`

// maxContentChars bounds the source text sent to the model.
const maxContentChars = 6000

func userPrompt(title, content string) string {
	return fmt.Sprintf("Original Title: %s\nOriginal Content: %s\n\nRewrite this article following the system instructions.",
		strings.TrimSpace(title), truncate(content))
}

// truncate collapses whitespace and cuts long text on a sentence boundary.
func truncate(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= maxContentChars {
		return content
	}
	trimmed := string([]rune(content)[:maxContentChars])
	// keep some meaningful size
	if idx := strings.LastIndex(trimmed, ". "); idx > 1200 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed + " [TRUNCATED]"
}
