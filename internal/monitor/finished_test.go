package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFinished(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"action marker", "All done!\n\n[Create PR ➔](https://github.com/acme/widgets/compare/fix)", true},
		{"phrase exact", "implementation complete", true},
		{"phrase mixed case", "The Task Completed without errors.", true},
		{"phrase embedded", "This bug is now fixed in commit abc123.", true},
		{"closing phrase", "Closing this issue since the patch landed.", true},
		{"resolved", "Marking as RESOLVED.", true},
		{"progress update", "Still working through the failing tests.", false},
		{"near miss", "I am fixing the flaky test next.", false},
		{"empty", "", false},
		{"unexpected phrasing", "Everything is wrapped up now.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFinished(tt.text))
		})
	}
}
