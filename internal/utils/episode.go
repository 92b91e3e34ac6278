package utils

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Season/episode markers, tried in order
var episodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)S(\d{1,2})E(\d{1,3})(?:\D|$)`),
	regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,2})\b`),
	regexp.MustCompile(`(?i)Season[.\s\-_](\d{1,2})[.\s\-_]Episode[.\s\-_](\d{1,3})(?:\D|$)`),
}

var (
	firstDigitsRegex = regexp.MustCompile(`\d+`)
	separatorRegex   = regexp.MustCompile(`[._\-]+`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
)

// ExtractSeasonEpisode finds the season and episode numbers in a name.
// ok is false when no marker matches.
func ExtractSeasonEpisode(name string) (season int, episode int, ok bool) {
	for _, pattern := range episodePatterns {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		s, err1 := strconv.Atoi(m[1])
		e, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		return s, e, true
	}
	return 0, 0, false
}

// ExtractSeriesTitleGuess returns the text before the first season/episode
// marker, or before the first digit run when there is no marker, with
// separators turned into spaces
func ExtractSeriesTitleGuess(name string) string {
	base := StripVideoExtension(filepath.Base(name))

	cut := -1
	for _, pattern := range episodePatterns {
		if loc := pattern.FindStringIndex(base); loc != nil {
			cut = loc[0]
			break
		}
	}
	if cut < 0 {
		if loc := firstDigitsRegex.FindStringIndex(base); loc != nil {
			cut = loc[0]
		}
	}
	if cut >= 0 {
		base = base[:cut]
	}

	guess := separatorRegex.ReplaceAllString(base, " ")
	guess = whitespaceRegex.ReplaceAllString(guess, " ")
	return strings.TrimSpace(guess)
}
