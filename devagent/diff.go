package devagent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// hunkLine is one body line of a hunk.
type hunkLine struct {
	op   byte // ' ' context, '-' removal, '+' addition
	text string
}

// diffHunk is one @@ block with its declared source range.
type diffHunk struct {
	oldStart int // 1-based line in the original file
	oldCount int
	newStart int
	newCount int
	lines    []hunkLine
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// parseUnifiedDiff parses a single-file unified diff: the ---/+++
// header pair followed by one or more @@ hunks. Leading noise such as
// "diff --git" or index lines is skipped.
func parseUnifiedDiff(diff string) ([]diffHunk, error) {
	lines := strings.Split(diff, "\n")
	i := 0

	for i < len(lines) && !strings.HasPrefix(lines[i], "--- ") {
		if strings.HasPrefix(lines[i], "@@") {
			return nil, fmt.Errorf("hunk header before '---' file header")
		}
		i++
	}
	if i >= len(lines) {
		return nil, fmt.Errorf("missing '--- <filepath>' header")
	}
	i++
	if i >= len(lines) || !strings.HasPrefix(lines[i], "+++ ") {
		return nil, fmt.Errorf("missing '+++ <filepath>' header")
	}
	i++

	var hunks []diffHunk
	for i < len(lines) {
		line := lines[i]
		if line == "" && i == len(lines)-1 {
			break // trailing newline from the split
		}

		m := hunkHeaderRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("expected '@@' hunk header at line %d, got %q", i+1, line)
		}
		hunk := diffHunk{
			oldStart: atoiDefault(m[1], 1),
			oldCount: atoiDefault(m[2], 1),
			newStart: atoiDefault(m[3], 1),
			newCount: atoiDefault(m[4], 1),
		}
		i++

		for i < len(lines) {
			body := lines[i]
			if body == "" && i == len(lines)-1 {
				break
			}
			if strings.HasPrefix(body, "@@") {
				break
			}
			if body == `\ No newline at end of file` {
				i++
				continue
			}

			op := byte(' ')
			text := ""
			if len(body) > 0 {
				switch body[0] {
				case '+', '-', ' ':
					op = body[0]
					text = body[1:]
				default:
					return nil, fmt.Errorf("invalid hunk line %d: %q", i+1, body)
				}
			}
			hunk.lines = append(hunk.lines, hunkLine{op: op, text: text})
			i++
		}

		if len(hunk.lines) == 0 {
			return nil, fmt.Errorf("hunk at line %d has no body", i)
		}
		hunks = append(hunks, hunk)
	}

	if len(hunks) == 0 {
		return nil, fmt.Errorf("diff contains no hunks")
	}
	return hunks, nil
}

// applyUnifiedDiff applies hunks to content. In strict mode every hunk
// must match the file exactly at its declared position. In fuzzy mode
// a hunk that misses its position is relocated to the first place its
// old lines actually occur.
func applyUnifiedDiff(content string, hunks []diffHunk, strict bool) (string, error) {
	fileLines := strings.Split(content, "\n")
	offset := 0

	for idx, hunk := range hunks {
		oldLines := make([]string, 0, len(hunk.lines))
		for _, hl := range hunk.lines {
			if hl.op == ' ' || hl.op == '-' {
				oldLines = append(oldLines, hl.text)
			}
		}

		// Zero-length source ranges name the line before the insertion
		// point, so they map to the index itself rather than index-1.
		want := hunk.oldStart - 1 + offset
		if hunk.oldCount == 0 || hunk.oldStart == 0 {
			want = hunk.oldStart + offset
		}

		pos := -1
		if matchesAt(fileLines, oldLines, want) {
			pos = want
		} else if !strict {
			pos = firstMatch(fileLines, oldLines)
		}
		if pos < 0 {
			return "", fmt.Errorf("hunk %d does not match the file at line %d", idx+1, hunk.oldStart)
		}

		var next []string
		next = append(next, fileLines[:pos]...)
		consumed := 0
		for _, hl := range hunk.lines {
			switch hl.op {
			case ' ':
				next = append(next, fileLines[pos+consumed])
				consumed++
			case '-':
				consumed++
			case '+':
				next = append(next, hl.text)
			}
		}
		next = append(next, fileLines[pos+consumed:]...)

		offset += len(next) - len(fileLines)
		fileLines = next
	}

	return strings.Join(fileLines, "\n"), nil
}

func matchesAt(fileLines, oldLines []string, pos int) bool {
	if pos < 0 || pos+len(oldLines) > len(fileLines) {
		return false
	}
	for i, want := range oldLines {
		if fileLines[pos+i] != want {
			return false
		}
	}
	return true
}

func firstMatch(fileLines, oldLines []string) int {
	for i := 0; i+len(oldLines) <= len(fileLines); i++ {
		if matchesAt(fileLines, oldLines, i) {
			return i
		}
	}
	return -1
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
