package agent

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	thinkRe    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fenceRe    = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")
	speakerRe  = regexp.MustCompile(`(?i)^(assistant|coach|ai)\s*:\s*`)
	emphasisRe = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	blankRe    = regexp.MustCompile(`\n{3,}`)
	spacesRe   = regexp.MustCompile(`[ \t]+`)
)

// Clean turns raw model output into text fit for a terminal line:
//
//   - drops <think> blocks and code fences
//   - strips a leading "Assistant:" style speaker tag
//   - unwraps **bold** and surrounding quotes
//   - collapses runs of spaces and blank lines
//
// It then truncates to maxLen characters, preferring a sentence or word
// boundary. maxLen <= 0 means no limit.
func Clean(output string, maxLen int) string {
	s := strings.ReplaceAll(output, "\r\n", "\n")
	s = thinkRe.ReplaceAllString(s, "")
	s = fenceRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = speakerRe.ReplaceAllString(s, "")
	s = emphasisRe.ReplaceAllString(s, "$1")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacesRe.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRe.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' && strings.Count(s, `"`) == 2 {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	return truncate(s, maxLen)
}

// truncate cuts s to at most maxLen runes. A cut after the last sentence
// end in the second half of the limit wins; otherwise it cuts at the last
// space and adds an ellipsis.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:maxLen])

	if i := strings.LastIndexAny(cut, ".!?"); i >= 0 && utf8.RuneCountInString(cut[:i]) >= maxLen/2 {
		return cut[:i+1]
	}

	// Leave room for the ellipsis.
	cut = string(runes[:max(maxLen-1, 0)])
	if i := strings.LastIndexAny(cut, " \n"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-\n") + "…"
}
