// Package naming parses user naming formats such as
// "{Movie Title} ({Release Year})" into a token tree and renders them into
// sanitized file and folder names.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/amaumene/reconcilarr/internal/utils"
)

// Field identifies the value a token renders
type Field string

const (
	FieldMovieTitle   Field = "movie title"
	FieldReleaseYear  Field = "release year"
	FieldSeriesTitle  Field = "series title"
	FieldSeason       Field = "season"
	FieldEpisode      Field = "episode"
	FieldEpisodeTitle Field = "episode title"
	FieldQuality      Field = "quality"
	FieldSource       Field = "source"
	FieldCodec        Field = "codec"
	FieldAudio        Field = "audio"
	FieldEdition      Field = "edition"
	FieldReleaseGroup Field = "release group"
)

var knownFields = map[Field]bool{
	FieldMovieTitle: true, FieldReleaseYear: true, FieldSeriesTitle: true,
	FieldSeason: true, FieldEpisode: true, FieldEpisodeTitle: true,
	FieldQuality: true, FieldSource: true, FieldCodec: true,
	FieldAudio: true, FieldEdition: true, FieldReleaseGroup: true,
}

type letterCase int

const (
	caseAsIs letterCase = iota
	caseLower
	caseUpper
)

type node struct {
	literal string // set for literal nodes
	field   Field  // set for token nodes
	letters letterCase
	pad     int
}

func (n node) isToken() bool {
	return n.field != ""
}

// Template is a parsed naming format
type Template struct {
	raw   string
	nodes []node
}

var tokenRegex = regexp.MustCompile(`\{([^{}]+)\}`)

// Parse turns a format string into a Template. Unknown tokens are kept as
// literal text.
func Parse(format string) Template {
	t := Template{raw: format}
	last := 0
	for _, loc := range tokenRegex.FindAllStringSubmatchIndex(format, -1) {
		n, ok := parseToken(format[loc[2]:loc[3]])
		if !ok {
			continue
		}
		if loc[0] > last {
			t.nodes = append(t.nodes, node{literal: format[last:loc[0]]})
		}
		t.nodes = append(t.nodes, n)
		last = loc[1]
	}
	if last < len(format) {
		t.nodes = append(t.nodes, node{literal: format[last:]})
	}
	return t
}

func parseToken(body string) (node, bool) {
	name, padSpec, hasPad := strings.Cut(body, ":")
	field := Field(strings.ToLower(strings.TrimSpace(name)))
	if !knownFields[field] {
		return node{}, false
	}

	n := node{field: field}
	switch {
	case name == strings.ToLower(name) && name != strings.ToUpper(name):
		n.letters = caseLower
	case name == strings.ToUpper(name) && name != strings.ToLower(name):
		n.letters = caseUpper
	}
	if hasPad {
		if strings.Trim(padSpec, "0") != "" || padSpec == "" {
			return node{}, false
		}
		n.pad = len(padSpec)
	}
	return n, true
}

// String returns the original format
func (t Template) String() string {
	return t.raw
}

// HasFolders reports whether rendering produces directory segments
func (t Template) HasFolders() bool {
	for _, n := range t.nodes {
		if !n.isToken() && strings.Contains(n.literal, "/") {
			return true
		}
	}
	return false
}

// Values are the inputs a template renders from
type Values struct {
	MovieTitle   string
	Year         int
	SeriesTitle  string
	Season       int
	Episode      int
	EpisodeTitle string
	Metadata     utils.QualityMetadata
}

func (v Values) text(f Field) string {
	switch f {
	case FieldMovieTitle:
		return v.MovieTitle
	case FieldSeriesTitle:
		return v.SeriesTitle
	case FieldEpisodeTitle:
		return v.EpisodeTitle
	case FieldQuality:
		return string(v.Metadata.Quality)
	case FieldSource:
		return v.Metadata.Source
	case FieldCodec:
		return v.Metadata.Codec
	case FieldAudio:
		return v.Metadata.Audio
	case FieldEdition:
		return v.Metadata.Edition
	case FieldReleaseGroup:
		return v.Metadata.ReleaseGroup
	}
	return ""
}

func (v Values) number(f Field) (int, bool) {
	switch f {
	case FieldReleaseYear:
		return v.Year, v.Year > 0
	case FieldSeason:
		return v.Season, true
	case FieldEpisode:
		return v.Episode, true
	}
	return 0, false
}

func (n node) render(v Values) string {
	switch n.field {
	case FieldReleaseYear, FieldSeason, FieldEpisode:
		num, ok := v.number(n.field)
		if !ok {
			return ""
		}
		if n.pad > 0 {
			return fmt.Sprintf("%0*d", n.pad, num)
		}
		return strconv.Itoa(num)
	}

	// Token values never introduce path separators
	value := strings.NewReplacer("/", "", "\\", "").Replace(v.text(n.field))
	switch n.letters {
	case caseLower:
		return strings.ToLower(value)
	case caseUpper:
		return strings.ToUpper(value)
	}
	return value
}

// Segments renders the template into sanitized path segments. Segments
// that sanitize to nothing are dropped.
func (t Template) Segments(v Values) []string {
	var raw []string
	var current strings.Builder
	for _, n := range t.nodes {
		if n.isToken() {
			current.WriteString(n.render(v))
			continue
		}
		parts := strings.Split(n.literal, "/")
		for i, part := range parts {
			if i > 0 {
				raw = append(raw, current.String())
				current.Reset()
			}
			current.WriteString(part)
		}
	}
	raw = append(raw, current.String())

	segments := make([]string, 0, len(raw))
	for _, segment := range raw {
		if s := Sanitize(segment); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// Render renders the template into a slash separated relative path
func (t Template) Render(v Values) string {
	return strings.Join(t.Segments(v), "/")
}

// RenderFileName renders only the final segment. Movie formats use this
// since a movie is renamed in place.
func (t Template) RenderFileName(v Values) string {
	segments := t.Segments(v)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

var (
	illegalChars      = regexp.MustCompile(`[<>:"\\|?*]`)
	multiSpace        = regexp.MustCompile(`\s+`)
	multiDot          = regexp.MustCompile(`\.{2,}`)
	multiDash         = regexp.MustCompile(`-{2,}`)
	emptyBrackets     = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	spaceBeforeClose  = regexp.MustCompile(`\s+([.,)\]])`)
	spaceAfterOpen    = regexp.MustCompile(`([(\[])\s+`)
	repeatedSeparator = regexp.MustCompile(`\s+-(\s+-)+\s+`)
)

// Sanitize cleans one path segment: it strips characters that are illegal
// in file names, collapses runs of whitespace, dots and dashes, removes
// empty brackets and trims dangling separators
func Sanitize(segment string) string {
	s := illegalChars.ReplaceAllString(segment, "")
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiDot.ReplaceAllString(s, ".")
	s = multiDash.ReplaceAllString(s, "-")
	s = emptyBrackets.ReplaceAllString(s, "")
	s = spaceBeforeClose.ReplaceAllString(s, "$1")
	s = spaceAfterOpen.ReplaceAllString(s, "$1")
	s = multiSpace.ReplaceAllString(s, " ")
	s = repeatedSeparator.ReplaceAllString(s, " - ")
	return strings.Trim(s, " -._")
}
