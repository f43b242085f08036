package telegram

import (
	"strings"
	"testing"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			input:    "Hello World",
			expected: "Hello World",
		},
		{
			input:    "Hello_World",
			expected: "Hello\\_World",
		},
		{
			input:    "[]()~`>#+-=|{}.!",
			expected: "\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!",
		},
		{
			input:    "Backslash \\ test",
			expected: "Backslash \\\\ test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := EscapeMarkdownV2(tt.input); got != tt.expected {
				t.Errorf("EscapeMarkdownV2() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEscapeMarkdownV2URL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			input:    "https://example.com",
			expected: "https://example.com",
		},
		{
			input:    "https://example.com/foo(bar)",
			expected: "https://example.com/foo(bar\\)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := EscapeMarkdownV2URL(tt.input); got != tt.expected {
				t.Errorf("EscapeMarkdownV2URL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFormatRepo(t *testing.T) {
	tests := []struct {
		repo     string
		expected string
	}{
		{
			repo:     "owner/repo",
			expected: "[owner/repo](https://github.com/owner/repo)",
		},
		{
			repo:     "owner/my_repo",
			expected: "[owner/my\\_repo](https://github.com/owner/my_repo)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.repo, func(t *testing.T) {
			if got := FormatRepo(tt.repo); got != tt.expected {
				t.Errorf("FormatRepo() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFormatTextWithMarkdown(t *testing.T) {
	t.Run("plain text escaped", func(t *testing.T) {
		got := FormatTextWithMarkdown("a.b())")
		if got != "a\\.b\\(\\)\\)" {
			t.Errorf("FormatTextWithMarkdown() = %v", got)
		}
	})

	t.Run("inline code kept", func(t *testing.T) {
		got := FormatTextWithMarkdown("run `go test ./...` locally.")
		if !strings.Contains(got, "`go test ./...`") {
			t.Errorf("inline code mangled: %v", got)
		}
		if !strings.HasSuffix(got, "locally\\.") {
			t.Errorf("surrounding text not escaped: %v", got)
		}
	})

	t.Run("fenced block kept", func(t *testing.T) {
		got := FormatTextWithMarkdown("see:\n```go\na := b.c\n```\ndone.")
		if !strings.Contains(got, "```go\na := b.c\n```") {
			t.Errorf("fence mangled: %v", got)
		}
	})

	t.Run("unbalanced fence escaped", func(t *testing.T) {
		got := FormatTextWithMarkdown("broken ```code")
		if strings.Contains(got, "```") {
			t.Errorf("unbalanced fence must not survive: %v", got)
		}
	})
}

func TestRenderBodyConvertsHTMLFragments(t *testing.T) {
	body := "<details><summary>Logs</summary>ok</details>"
	got := RenderBody(body)
	if strings.Contains(got, "<details>") {
		t.Errorf("RenderBody() left HTML intact: %v", got)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("a  \nb\n\n\n\nc\n")
	want := "a\nb\n\nc"
	if got != want {
		t.Errorf("Normalize() = %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate() = %v", got)
	}
	if got := Truncate("hello world", 8); got != "hello w…" {
		t.Errorf("Truncate() = %v", got)
	}
	if n := len([]rune(Truncate("héllo wörld", 8))); n != 8 {
		t.Errorf("Truncate() rune length = %d", n)
	}
}
