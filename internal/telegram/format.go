package telegram

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var (
	mdV2Escaper = strings.NewReplacer(
		"\\", "\\\\",
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"(", "\\(",
		")", "\\)",
		"~", "\\~",
		"`", "\\`",
		">", "\\>",
		"#", "\\#",
		"+", "\\+",
		"-", "\\-",
		"=", "\\=",
		"|", "\\|",
		"{", "\\{",
		"}", "\\}",
		".", "\\.",
		"!", "\\!",
	)

	urlEscaper  = strings.NewReplacer("\\", "\\\\", ")", "\\)")
	codeEscaper = strings.NewReplacer("\\", "\\\\", "`", "\\`")

	htmlTagRe    = regexp.MustCompile(`(?i)</?(details|summary|table|thead|tbody|tr|td|th|img|br|p|b|i|a|code|pre|ul|ol|li|blockquote|sub|sup)\b[^>]*>`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// EscapeMarkdownV2 escapes all characters Telegram's MarkdownV2 parser
// treats as markup.
func EscapeMarkdownV2(s string) string {
	return mdV2Escaper.Replace(s)
}

// EscapeMarkdownV2URL escapes a URL for use inside a MarkdownV2 link target.
func EscapeMarkdownV2URL(s string) string {
	return urlEscaper.Replace(s)
}

func FormatUser(login string) string {
	return fmt.Sprintf("[%s](https://github.com/%s)", EscapeMarkdownV2(login), login)
}

func FormatRepo(fullName string) string {
	return fmt.Sprintf("[%s](https://github.com/%s)", EscapeMarkdownV2(fullName), fullName)
}

// RenderBody prepares an issue-comment body for a MarkdownV2 send. Agent
// comments routinely embed HTML fragments (<details>, tables) that Telegram
// cannot render; those are converted to markdown first, then the whole text
// is escaped with code spans kept intact.
func RenderBody(body string) string {
	if htmlTagRe.MatchString(body) {
		if md, err := htmltomarkdown.ConvertString(body); err == nil {
			body = md
		}
	}
	return FormatTextWithMarkdown(body)
}

// FormatTextWithMarkdown escapes text for MarkdownV2 while passing fenced
// blocks and inline code spans through as code entities.
func FormatTextWithMarkdown(text string) string {
	var b strings.Builder

	fences := strings.Split(text, "```")
	for i, seg := range fences {
		if i%2 == 1 {
			if i == len(fences)-1 {
				// unbalanced fence, render it literally
				b.WriteString(EscapeMarkdownV2("```" + seg))
				continue
			}
			b.WriteString("```")
			b.WriteString(codeEscaper.Replace(seg))
			b.WriteString("```")
			continue
		}
		b.WriteString(escapeInline(seg))
	}

	return b.String()
}

func escapeInline(text string) string {
	var b strings.Builder

	spans := strings.Split(text, "`")
	for i, seg := range spans {
		if i%2 == 1 {
			if i == len(spans)-1 {
				b.WriteString(EscapeMarkdownV2("`" + seg))
				continue
			}
			b.WriteString("`")
			b.WriteString(codeEscaper.Replace(seg))
			b.WriteString("`")
			continue
		}
		b.WriteString(EscapeMarkdownV2(seg))
	}

	return b.String()
}

// Normalize trims trailing spaces on each line and collapses 3+ consecutive
// newlines into 2
func Normalize(s string) string {
	if s == "" {
		return s
	}

	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t")
	}
	out := strings.Join(lines, "\n")

	out = newlineRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// Truncate shortens s to max runes, appending an ellipsis when it cuts.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
