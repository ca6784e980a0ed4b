package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mohammad-safakhou/paperlens/models"
)

// DefaultMaxContextChars bounds how much of the paper body rides along on
// every chat call. Papers front-load the abstract and introduction, so a
// head clip keeps the parts that answer most questions.
const DefaultMaxContextChars = 60000

const chatInstruction = `You are a helpful research assistant.
Ground your answers ONLY in the provided paper text. If you are uncertain, say you are unsure.
Cite specific sections/ideas from the context when possible (no external links).

Return ONLY valid HTML.
Use <h2> for section titles, <p> for paragraphs, and <ul><li> for lists.
For emphasis use <strong> (bold) and <em> (italic) - DO NOT use ** or *.
Do not include Markdown, code fences, or any text outside HTML.`

// BuildPrompt flattens the clipped paper body, the prior turns, and the new
// question into a single prompt. The clip point is fixed, so the same
// (document, history, message) triple always produces the same prompt.
func BuildPrompt(docText string, history []models.ChatTurn, message string, maxContextChars int) string {
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	context := clipHead(docText, maxContextChars)

	var b strings.Builder
	b.WriteString(chatInstruction)
	b.WriteString("\n\nCONTEXT (paper excerpt):\n")
	b.WriteString(context)
	b.WriteString("\n\nNow continue the conversation.\n")
	for _, turn := range history {
		fmt.Fprintf(&b, "\n%s: %s", roleLabel(turn.Role), turn.Text)
	}
	fmt.Fprintf(&b, "\nUser: %s\nAssistant:", message)
	return b.String()
}

func roleLabel(role models.Role) string {
	if role == models.RoleAssistant {
		return "Assistant"
	}
	return "User"
}

// clipHead cuts at max bytes, backing up so a multi-byte rune is never
// split.
func clipHead(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
