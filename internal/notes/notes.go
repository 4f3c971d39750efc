// Package notes exports a study session as a Markdown file.
package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/thywilljoshua/studyspace/internal/study"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9\-]+`)

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "-", "/", "-", ".", "-").Replace(s)
	s = nonSlug.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Exporter writes notes into Dir, one file per document title.
type Exporter struct {
	Dir string
}

func (e Exporter) Export(s study.Snapshot) (string, error) {
	title := "untitled"
	if s.Document != nil && s.Document.Title != "" {
		title = s.Document.Title
	}
	slug := slugify(title)
	if slug == "" {
		slug = "notes"
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(e.Dir, slug+".md")
	if err := os.WriteFile(path, []byte(Render(title, s)), 0o644); err != nil {
		return "", fmt.Errorf("writing notes: %w", err)
	}
	return path, nil
}

// Render formats the session as Markdown with a title front matter block.
func Render(title string, s study.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "---\ntitle: \"%s\"\n", escapeQuotes(title))
	if s.Document != nil {
		fmt.Fprintf(&b, "kind: %s\n", s.Document.Kind)
		if s.Document.Kind != study.KindText && s.Document.Source != "" {
			fmt.Fprintf(&b, "source: \"%s\"\n", escapeQuotes(s.Document.Source))
		}
	}
	b.WriteString("---\n\n# ")
	b.WriteString(title)
	b.WriteString("\n\n")

	if s.TotalPages > 0 {
		fmt.Fprintf(&b, "Stopped at page %d of %d.\n\n", s.CurrentPage, s.TotalPages)
	}
	if sum := strings.TrimSpace(s.Summary); sum != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(sum)
		b.WriteString("\n\n")
	}
	if len(s.Transcript) > 0 {
		b.WriteString("## Conversation\n\n")
		for _, e := range s.Transcript {
			who := "You"
			if e.Role == study.RoleAssistant {
				who = "AI"
			}
			fmt.Fprintf(&b, "**%s** (%s): %s\n\n", who, e.Timestamp.Format("2006-01-02 15:04"), strings.TrimSpace(e.Content))
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
