package devagent

import "fmt"

// MaxToolOutputChars caps the rendered output of workspace tools
// before it enters the transcript.
const MaxToolOutputChars = 8000

// TruncateOutput trims output to maxChars and appends a marker noting
// how much was removed. Output at or under the limit passes through
// unchanged.
func TruncateOutput(output string, maxChars int) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars
	return output[:maxChars] + fmt.Sprintf(
		"\n\n[WARNING: Tool output was truncated. %d characters were removed from the end. "+
			"Re-run the tool with more targeted parameters if you need the rest.]",
		removed)
}
