package utils

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/amaumene/reconcilarr/internal/models"
)

// QualityMetadata is what a release or file name says about its encode
type QualityMetadata struct {
	Quality      models.Quality
	Source       string
	Codec        string
	Audio        string
	Edition      string
	ReleaseGroup string
}

type keyword struct {
	match []string
	value string
}

// Vocabularies are checked in order; the first keyword found wins.
var (
	qualityKeywords = []struct {
		match   []string
		quality models.Quality
	}{
		{[]string{"2160p", "4k", "uhd"}, models.Quality2160p},
		{[]string{"1080p"}, models.Quality1080p},
		{[]string{"720p"}, models.Quality720p},
		{[]string{"480p"}, models.Quality480p},
		{[]string{"360p"}, models.Quality360p},
	}

	sourceKeywords = []keyword{
		{[]string{"bluray", "bdrip", "brrip"}, "BluRay"},
		{[]string{"web-dl", "webdl"}, "WEB-DL"},
		{[]string{"webrip"}, "WEBRip"},
		{[]string{"hdtv"}, "HDTV"},
		{[]string{"dvdrip"}, "DVDRip"},
		{[]string{"dvd"}, "DVD"},
	}

	codecKeywords = []keyword{
		{[]string{"x265", "hevc", "h.265", "h265"}, "x265"},
		{[]string{"x264", "h.264", "h264"}, "x264"},
		{[]string{"xvid"}, "XviD"},
		{[]string{"divx"}, "DivX"},
	}

	audioKeywords = []keyword{
		{[]string{"dts-hd", "dts.hd"}, "DTS-HD"},
		{[]string{"dts"}, "DTS"},
		{[]string{"dd5.1", "dd51", "ac3"}, "AC3"},
		{[]string{"aac"}, "AAC"},
		{[]string{"mp3"}, "MP3"},
		{[]string{"truehd"}, "TrueHD"},
		{[]string{"atmos"}, "Atmos"},
	}

	editionKeywords = []keyword{
		{[]string{"extended"}, "Extended"},
		{[]string{"directors.cut", "directors cut", "director's cut"}, "Directors Cut"},
		{[]string{"unrated"}, "Unrated"},
		{[]string{"theatrical"}, "Theatrical"},
		{[]string{"ultimate"}, "Ultimate"},
		{[]string{"remastered"}, "Remastered"},
	}

	knownGroups = []string{
		"YIFY", "YTS", "RARBG", "SPARKS", "ROVERS", "EVO", "PSA",
		"FGT", "MeGusta", "FLAME", "GALAXY", "GECKOS",
	}
)

var trailingGroupRegex = regexp.MustCompile(`-([A-Za-z0-9]+)$`)

// DetermineQuality returns the resolution tier named in a title
func DetermineQuality(title string) models.Quality {
	titleLower := strings.ToLower(title)
	for _, q := range qualityKeywords {
		for _, m := range q.match {
			if strings.Contains(titleLower, m) {
				return q.quality
			}
		}
	}
	return models.QualityUnknown
}

// ExtractQualityMetadata infers encode details from a file or release name.
// Matching is case-insensitive substring search; absent fields are empty.
func ExtractQualityMetadata(name string) QualityMetadata {
	base := StripVideoExtension(filepath.Base(name))
	lower := strings.ToLower(base)

	return QualityMetadata{
		Quality:      DetermineQuality(base),
		Source:       firstKeyword(lower, sourceKeywords),
		Codec:        firstKeyword(lower, codecKeywords),
		Audio:        firstKeyword(lower, audioKeywords),
		Edition:      firstKeyword(lower, editionKeywords),
		ReleaseGroup: extractReleaseGroup(base),
	}
}

func firstKeyword(lower string, vocabulary []keyword) string {
	for _, k := range vocabulary {
		for _, m := range k.match {
			if strings.Contains(lower, m) {
				return k.value
			}
		}
	}
	return ""
}

// extractReleaseGroup prefers a trailing "-GROUP" suffix and falls back to
// the list of well-known groups
func extractReleaseGroup(base string) string {
	if m := trailingGroupRegex.FindStringSubmatch(base); m != nil && !isVocabularyWord(m[1]) {
		return m[1]
	}

	upper := strings.ToUpper(base)
	for _, group := range knownGroups {
		if strings.Contains(upper, strings.ToUpper(group)) {
			return group
		}
	}
	return ""
}

// isVocabularyWord reports whether a suffix is really an encode keyword,
// as in "Movie.2020.WEB-DL"
func isVocabularyWord(word string) bool {
	lower := strings.ToLower(word)
	if DetermineQuality(lower) != models.QualityUnknown {
		return true
	}
	for _, vocabulary := range [][]keyword{sourceKeywords, codecKeywords, audioKeywords, editionKeywords} {
		for _, k := range vocabulary {
			for _, m := range k.match {
				if lower == m || strings.HasSuffix(m, "-"+lower) {
					return true
				}
			}
		}
	}
	return false
}

var yearRegex = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// ExtractYear extracts a 4-digit year from a title
// Returns 0 if no year is found
// Matches years like: (2009), 2009, [2009], etc.
func ExtractYear(title string) int {
	matches := yearRegex.FindStringSubmatch(title)
	if len(matches) > 1 {
		year, err := strconv.Atoi(matches[1])
		if err == nil {
			return year
		}
	}
	return 0
}
