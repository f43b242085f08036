package monitor

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var paragraphRe = regexp.MustCompile(`\n{2,}`)

// Segment splits a comment body into chunks of at most limit bytes, keeping
// paragraphs together where possible, and appends the reference link to the
// final chunk (or as its own chunk when it does not fit). Chunks are never
// empty and preserve document order.
func Segment(body, link string, limit int) []string {
	body = strings.TrimSpace(body)

	if body == "" {
		if link == "" {
			return nil
		}
		return splitOversized(link, limit)
	}

	if joined := body + "\n\n" + link; link != "" && len(joined) <= limit {
		return []string{joined}
	}
	if link == "" && len(body) <= limit {
		return []string{body}
	}

	var chunks []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, para := range paragraphRe.Split(body, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > limit {
			flush()
			chunks = append(chunks, splitOversized(para, limit)...)
			continue
		}

		if cur.Len() > 0 && cur.Len()+2+len(para) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()

	if link == "" {
		return chunks
	}

	if n := len(chunks); n > 0 && len(chunks[n-1])+2+len(link) <= limit {
		chunks[n-1] += "\n\n" + link
	} else {
		chunks = append(chunks, splitOversized(link, limit)...)
	}

	return chunks
}

// splitOversized cuts a single oversized block at the best boundary found by
// scanning backward from the limit: a sentence-ending period, else a
// newline, else a space, else a hard cut.
func splitOversized(s string, limit int) []string {
	var out []string

	for len(s) > limit {
		cut := boundary(s, limit)
		piece := strings.TrimRight(s[:cut], " \n")
		if piece != "" {
			out = append(out, piece)
		}
		s = strings.TrimLeft(s[cut:], " \n")
	}

	if s != "" {
		out = append(out, s)
	}
	return out
}

func boundary(s string, limit int) int {
	// sentence end: a period followed by whitespace
	for i := limit - 1; i > 0; i-- {
		if s[i] == '.' && i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '\n') {
			return i + 1
		}
	}

	if i := strings.LastIndexByte(s[:limit], '\n'); i > 0 {
		return i
	}
	if i := strings.LastIndexByte(s[:limit], ' '); i > 0 {
		return i
	}

	// hard cut, nudged back onto a rune boundary
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return cut
}
