package extract

import (
	"regexp"
	"strings"
)

var (
	controlCharRe  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// CleanText strips control characters (keeping newlines and tabs),
// collapses runs of spaces within each line, and collapses 3+ newlines
// into 2.
func CleanText(text string) string {
	text = controlCharRe.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = multiSpaceRe.ReplaceAllString(line, " ")
		cleaned = append(cleaned, strings.TrimSpace(line))
	}
	text = strings.Join(cleaned, "\n")

	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// masterNoisePatterns are master-slide template placeholders that leak
// into legacy binary decks and carry no content.
var masterNoisePatterns = []string{
	"Click to edit Master title style",
	"Click to edit Master text styles",
	"Click to edit Master subtitle style",
}

var masterNoiseExact = map[string]bool{
	"*":            true,
	"Second level": true,
	"Third level":  true,
	"Fourth level": true,
	"Fifth level":  true,
}

// isMasterNoise reports whether a text line is slide-master template
// noise rather than authored content.
func isMasterNoise(text string) bool {
	if masterNoiseExact[text] {
		return true
	}
	for _, pat := range masterNoisePatterns {
		if strings.Contains(text, pat) {
			return true
		}
	}
	return false
}
