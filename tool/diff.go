package tool

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/recodeai/recode"
)

// diffBlockRE matches the single SEARCH/REPLACE block of an apply_diff
// call. One block per call; multi-edit turns submit multiple calls.
var diffBlockRE = regexp.MustCompile(`(?s)<<<<<<< SEARCH\n(.*?)\n=======\n(.*?)\n>>>>>>> REPLACE`)

// diffWhitespaceRE collapses runs of whitespace when comparing a search
// block against a file window, so an indentation mismatch alone does not
// reject an otherwise exact match.
var diffWhitespaceRE = regexp.MustCompile(`\s+`)

func (w *Workspace) applyDiff(_ context.Context, call recode.ToolUse) (string, error) {
	path, err := w.resolve(call.Param("path"))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", classifyFSError(path, err)
	}

	m := diffBlockRE.FindStringSubmatch(call.Param("diff"))
	if m == nil {
		return "", Failf(FailureInvalidInput, "invalid diff format, missing SEARCH/REPLACE sections")
	}
	search, replace := m[1], m[2]

	startLine, err := diffLineHint(call, "start_line")
	if err != nil {
		return "", err
	}
	endLine, err := diffLineHint(call, "end_line")
	if err != nil {
		return "", err
	}

	updated, first, last, err := applySearchReplace(string(data), search, replace, startLine, endLine)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return "", classifyFSError(path, err)
	}
	return fmt.Sprintf("Successfully applied diff to %s (lines %d-%d)", call.Param("path"), first, last), nil
}

func diffLineHint(call recode.ToolUse, name string) (int, error) {
	v := call.Param(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 0, Failf(FailureInvalidInput, "%s must be a positive line number, got %q", name, v)
	}
	return n, nil
}

// applySearchReplace swaps the first file window matching search for
// replace and reports the 1-based line range that was replaced. Line hints
// are tried before the whole file is scanned. An empty search block with
// start_line set inserts replace before that line.
func applySearchReplace(original, search, replace string, startLine, endLine int) (string, int, int, error) {
	lines := strings.Split(original, "\n")

	var replaceLines []string
	if replace != "" {
		replaceLines = strings.Split(replace, "\n")
	}

	if search == "" {
		if startLine == 0 {
			return "", 0, 0, Failf(FailureInvalidInput, "an empty SEARCH section requires start_line")
		}
		if endLine != 0 && endLine != startLine {
			return "", 0, 0, Failf(FailureInvalidInput, "an empty SEARCH section requires start_line and end_line to match (got %d-%d)", startLine, endLine)
		}
		if startLine > len(lines)+1 {
			return "", 0, 0, Failf(FailureInvalidInput, "start_line %d is past the end of the file (%d lines)", startLine, len(lines))
		}
		out := make([]string, 0, len(lines)+len(replaceLines))
		out = append(out, lines[:startLine-1]...)
		out = append(out, replaceLines...)
		out = append(out, lines[startLine-1:]...)
		return strings.Join(out, "\n"), startLine, startLine, nil
	}

	searchLines := strings.Split(search, "\n")
	match := -1

	if startLine > 0 && endLine >= startLine && endLine <= len(lines) {
		window := strings.Join(lines[startLine-1:endLine], "\n")
		if windowMatches(window, search) {
			match = startLine - 1
		}
	}
	if match < 0 {
		for i := 0; i+len(searchLines) <= len(lines); i++ {
			window := strings.Join(lines[i:i+len(searchLines)], "\n")
			if windowMatches(window, search) {
				match = i
				break
			}
		}
	}
	if match < 0 {
		return "", 0, 0, Failf(FailureInvalidInput, "no match found for the SEARCH section; read the file and use its exact content")
	}

	out := make([]string, 0, len(lines)-len(searchLines)+len(replaceLines))
	out = append(out, lines[:match]...)
	out = append(out, replaceLines...)
	out = append(out, lines[match+len(searchLines):]...)
	return strings.Join(out, "\n"), match + 1, match + len(searchLines), nil
}

func windowMatches(window, search string) bool {
	if window == search {
		return true
	}
	return normalizeWhitespace(window) == normalizeWhitespace(search)
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(diffWhitespaceRE.ReplaceAllString(s, " "))
}
