package monitor

import "strings"

// actionMarker is the literal the coding agent appends to its final comment
// when a branch is ready for review.
const actionMarker = "Create PR ➔"

// completionPhrases is the fixed set of wordings that count as "done". This
// is a best-effort heuristic, not a contract: a comment merely mentioning
// "fixed" triggers it, and an unexpected phrasing slips past it.
var completionPhrases = []string{
	"implementation complete",
	"implementation is complete",
	"task completed",
	"task complete",
	"all tasks completed",
	"work is complete",
	"resolved",
	"fixed",
	"closing this issue",
	"issue has been addressed",
}

// IsFinished reports whether a comment reads like a completion signal.
func IsFinished(text string) bool {
	if strings.Contains(text, actionMarker) {
		return true
	}

	lower := strings.ToLower(text)
	for _, phrase := range completionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
