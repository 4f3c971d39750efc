package study

import (
	"regexp"
	"strings"
)

type Kind string

const (
	KindPDF   Kind = "pdf"
	KindVideo Kind = "video"
	KindText  Kind = "text"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPDF, KindVideo, KindText:
		return true
	}
	return false
}

// Descriptor identifies a loaded document. Source is a URL or path for
// pdf and video, or the raw text for text documents. Data carries PDF
// bytes when the document came from memory and is never persisted.
type Descriptor struct {
	Kind   Kind   `json:"kind"`
	Source string `json:"source"`
	Title  string `json:"title"`
	Data   []byte `json:"-"`
}

var youtubeID = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&\n?#]+)`)

// VideoID returns the YouTube id in a watch or short link, or src itself
// when neither shape matches.
func VideoID(src string) string {
	if m := youtubeID.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return src
}

func EmbedURL(src string) string {
	return "https://www.youtube.com/embed/" + VideoID(src)
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML makes text safe to place inside markup.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
