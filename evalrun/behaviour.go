package evalrun

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CheckContent verifies a task's content expectations against the
// workspace. It fails on the first expectation whose file is missing,
// whose forbidden pattern is still present, or whose required patterns
// occur fewer times than demanded.
func CheckContent(repoRoot string, expectations []Expectation) (bool, string) {
	for _, expect := range expectations {
		path := filepath.Join(repoRoot, expect.File)
		data, err := os.ReadFile(path)
		if err != nil {
			return false, fmt.Sprintf("File not found: %s", expect.File)
		}
		content := string(data)

		for _, bad := range expect.MustNotContain {
			if strings.Contains(content, bad) {
				return false, fmt.Sprintf("Bug not fixed: %q still present in %s", bad, expect.File)
			}
		}

		found := 0
		for _, good := range expect.MustContain {
			found += strings.Count(content, good)
		}
		if found < expect.MinOccurrences {
			return false, fmt.Sprintf("Expected fix found %d times in %s, needed %d", found, expect.File, expect.MinOccurrences)
		}
	}
	return true, "Behaviour verified by content patterns"
}
