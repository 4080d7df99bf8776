package util

import (
	"regexp"
	"strings"
)

var (
	hyphenBreak = regexp.MustCompile(`(\p{L})-\n(\p{Ll})`)
	blankRuns   = regexp.MustCompile(`[ \t]+`)
	lineGaps    = regexp.MustCompile(`\n{3,}`)
	invisibles  = strings.NewReplacer("\u00a0", " ", "\u00ad", "", "\ufeff", "", "\r\n", "\n", "\r", "\n")
)

// CleanText normalizes text pulled out of a PDF page: invalid UTF-8 and
// control bytes (NUL included) are dropped, words split across a line break
// are rejoined, runs of blanks collapse to one space and paragraph breaks
// are kept to at most one empty line.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = invisibles.Replace(strings.ToValidUTF8(s, ""))
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(blankRuns.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = hyphenBreak.ReplaceAllString(s, "$1$2")
	s = lineGaps.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
