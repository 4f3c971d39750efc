// Package study holds the state of one study session: the open document,
// the viewer position, and the AI panel.
package study

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/thywilljoshua/studyspace/internal/logger"
	"github.com/thywilljoshua/studyspace/internal/pdf"
	"github.com/thywilljoshua/studyspace/internal/recent"
	"github.com/thywilljoshua/studyspace/internal/storage"
)

const (
	DefaultZoom = 1.5
	MinZoom     = 0.5
	MaxZoom     = 3.0
	ZoomStep    = 0.2

	DefaultExtractPages = 5
)

var (
	ErrUnsupportedKind = errors.New("unsupported document kind")
	ErrLoadFailed      = errors.New("document failed to load")
)

type Tab string

const (
	TabChat    Tab = "chat"
	TabSummary Tab = "summary"
	TabTools   Tab = "tools"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Document is an opened PDF.
type Document interface {
	PageCount() int
	Render(page int, scale float64) (*pdf.Page, error)
	Text(maxPages int) string
}

// Renderer opens PDFs from bytes or a source reference.
type Renderer interface {
	Open(ctx context.Context, data []byte, source string) (Document, error)
}

// Completer sends a prompt to the generative endpoint on behalf of token.
type Completer interface {
	Complete(ctx context.Context, token, prompt string, temperature float64) (string, error)
}

// Notifier shows short-lived messages to the user.
type Notifier interface {
	Notify(message string)
}

// Exporter writes the session notes somewhere and reports where.
type Exporter interface {
	Export(s Snapshot) (string, error)
}

type Deps struct {
	Renderer  Renderer
	Completer Completer
	Store     *storage.Store
	Recent    *recent.Tracker
	Notifier  Notifier
	Exporter  Exporter
	Logger    logger.Logger
	Clock     func() time.Time
	NewID     func() string

	Token              string
	ExtractPages       int
	ChatTemperature    float64
	SummaryTemperature float64
}

type Session struct {
	mu sync.Mutex
	d  Deps

	doc         *Descriptor
	pdfDoc      Document
	page        *pdf.Page
	currentPage int
	totalPages  int
	zoom        float64
	extracted   string
	embedURL    string
	textHTML    string

	transcript []Entry
	tab        Tab
	summary    string
	theme      Theme
	panelOpen  bool
}

func NewSession(d Deps) *Session {
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = logNotifier{d.Logger}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.NewID == nil {
		d.NewID = newEntryID
	}
	if d.ExtractPages <= 0 {
		d.ExtractPages = DefaultExtractPages
	}
	return &Session{
		d:           d,
		currentPage: 1,
		zoom:        DefaultZoom,
		tab:         TabChat,
		theme:       ThemeLight,
		panelOpen:   true,
	}
}

type logNotifier struct{ log logger.Logger }

func (n logNotifier) Notify(message string) {
	n.log.Info("session", message, nil)
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	Document      *Descriptor
	CurrentPage   int
	TotalPages    int
	Zoom          float64
	Page          *pdf.Page
	ExtractedText string
	EmbedURL      string
	TextHTML      string
	Transcript    []Entry
	Tab           Tab
	Summary       string
	Theme         Theme
	PanelOpen     bool
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		CurrentPage:   s.currentPage,
		TotalPages:    s.totalPages,
		Zoom:          s.zoom,
		Page:          s.page,
		ExtractedText: s.extracted,
		EmbedURL:      s.embedURL,
		TextHTML:      s.textHTML,
		Transcript:    append([]Entry(nil), s.transcript...),
		Tab:           s.tab,
		Summary:       s.summary,
		Theme:         s.theme,
		PanelOpen:     s.panelOpen,
	}
	if s.doc != nil {
		d := *s.doc
		snap.Document = &d
	}
	return snap
}

// Restore applies persisted preferences. Missing or malformed slots keep
// the defaults.
func (s *Session) Restore(ctx context.Context) {
	if s.d.Store == nil {
		return
	}
	if theme, ok := s.d.Store.Theme(ctx); ok {
		s.mu.Lock()
		s.theme = Theme(theme)
		s.mu.Unlock()
	}
}

// Resume reopens the last persisted document at its saved page. It reports
// false when there is nothing to reopen.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	if s.d.Store == nil {
		return false, nil
	}
	var last Descriptor
	if !s.d.Store.GetJSON(ctx, storage.KeyLastDoc, &last) || !last.Kind.Valid() || last.Source == "" {
		return false, nil
	}
	page, hasPage := s.d.Store.CurrentPage(ctx)
	if err := s.LoadDocument(ctx, last); err != nil {
		return false, err
	}
	if hasPage {
		s.GoToPage(ctx, page)
	}
	return true, nil
}

// LoadDocument replaces the current document. On failure the previous
// document and view are left untouched.
func (s *Session) LoadDocument(ctx context.Context, desc Descriptor) error {
	if !desc.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, desc.Kind)
	}

	var (
		doc       Document
		page      *pdf.Page
		total     int
		extracted string
		embed     string
		textHTML  string
	)
	switch desc.Kind {
	case KindPDF:
		var err error
		doc, page, err = s.openPDF(ctx, desc)
		if err != nil {
			s.d.Logger.Error("loader", "pdf load failed", map[string]any{"title": desc.Title, "error": err})
			s.d.Notifier.Notify("Failed to load PDF")
			return fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
		total = doc.PageCount()
		extracted = doc.Text(s.d.ExtractPages)
	case KindVideo:
		embed = EmbedURL(desc.Source)
	case KindText:
		textHTML = EscapeHTML(desc.Source)
	}

	s.mu.Lock()
	d := desc
	s.doc = &d
	s.pdfDoc = doc
	s.page = page
	s.currentPage = 1
	s.totalPages = total
	s.extracted = extracted
	s.embedURL = embed
	s.textHTML = textHTML
	s.transcript = nil
	s.summary = ""
	s.tab = TabChat
	s.mu.Unlock()

	s.d.Logger.Info("loader", "document loaded", map[string]any{"kind": string(desc.Kind), "title": desc.Title, "pages": total})
	s.persistOpened(ctx, desc)
	return nil
}

func (s *Session) openPDF(ctx context.Context, desc Descriptor) (Document, *pdf.Page, error) {
	if s.d.Renderer == nil {
		return nil, nil, errors.New("no pdf renderer configured")
	}
	doc, err := s.d.Renderer.Open(ctx, desc.Data, desc.Source)
	if err != nil {
		return nil, nil, err
	}
	if doc.PageCount() < 1 {
		return nil, nil, pdf.ErrNoPages
	}
	s.mu.Lock()
	zoom := s.zoom
	s.mu.Unlock()
	page, err := doc.Render(1, zoom)
	if err != nil {
		return nil, nil, err
	}
	return doc, page, nil
}

func (s *Session) persistOpened(ctx context.Context, desc Descriptor) {
	rec := recent.Document{Kind: string(desc.Kind), Source: desc.Source, Title: desc.Title}
	if desc.Kind == KindPDF && desc.Source == "" {
		rec.Source = desc.Title
	}
	if s.d.Recent != nil {
		if _, err := s.d.Recent.RecordOpened(ctx, rec, 1); err != nil {
			s.d.Logger.Warn("recent", "could not persist recent list", map[string]any{"error": err})
		}
	}
	if s.d.Store == nil {
		return
	}
	if err := s.d.Store.SetJSON(ctx, storage.KeyLastDoc, desc); err != nil {
		s.d.Logger.Warn("storage", "could not persist last document", map[string]any{"error": err})
	}
	s.persistPage(ctx, 1)
}

func (s *Session) persistPage(ctx context.Context, page int) {
	if s.d.Store == nil {
		return
	}
	if err := s.d.Store.SetCurrentPage(ctx, page); err != nil {
		s.d.Logger.Warn("storage", "could not persist current page", map[string]any{"error": err})
	}
}

// NextPage advances one page when not on the last page.
func (s *Session) NextPage(ctx context.Context) bool {
	return s.movePage(ctx, func(cur, total int) (int, bool) {
		return cur + 1, cur < total
	})
}

// PrevPage goes back one page when not on the first page.
func (s *Session) PrevPage(ctx context.Context) bool {
	return s.movePage(ctx, func(cur, _ int) (int, bool) {
		return cur - 1, cur > 1
	})
}

// GoToPage jumps to n when 1 <= n <= total pages.
func (s *Session) GoToPage(ctx context.Context, n int) bool {
	return s.movePage(ctx, func(_, total int) (int, bool) {
		return n, n >= 1 && n <= total
	})
}

func (s *Session) movePage(ctx context.Context, step func(cur, total int) (int, bool)) bool {
	s.mu.Lock()
	next, ok := step(s.currentPage, s.totalPages)
	if !ok || s.totalPages == 0 {
		s.mu.Unlock()
		return false
	}
	s.currentPage = next
	doc, zoom := s.pdfDoc, s.zoom
	s.mu.Unlock()

	s.rerender(doc, next, zoom)
	s.persistPage(ctx, next)
	return true
}

func (s *Session) ZoomIn(ctx context.Context) bool {
	return s.setZoom(func(z float64) float64 { return math.Min(z+ZoomStep, MaxZoom) })
}

func (s *Session) ZoomOut(ctx context.Context) bool {
	return s.setZoom(func(z float64) float64 { return math.Max(z-ZoomStep, MinZoom) })
}

func (s *Session) setZoom(f func(float64) float64) bool {
	s.mu.Lock()
	z := math.Round(f(s.zoom)*100) / 100
	if z == s.zoom {
		s.mu.Unlock()
		return false
	}
	s.zoom = z
	doc, page := s.pdfDoc, s.currentPage
	s.mu.Unlock()

	s.rerender(doc, page, z)
	return true
}

// rerender draws page n of doc and keeps it if doc is still the open document.
func (s *Session) rerender(doc Document, n int, zoom float64) {
	if doc == nil {
		return
	}
	p, err := doc.Render(n, zoom)
	if err != nil {
		s.d.Logger.Warn("viewer", "render failed", map[string]any{"page": n, "error": err})
		return
	}
	s.mu.Lock()
	if s.pdfDoc == doc {
		s.page = p
	}
	s.mu.Unlock()
}

// SwitchTab selects an AI panel tab. Unknown tabs are ignored.
func (s *Session) SwitchTab(tab Tab) bool {
	switch tab {
	case TabChat, TabSummary, TabTools:
	default:
		return false
	}
	s.mu.Lock()
	s.tab = tab
	s.mu.Unlock()
	return true
}

// ToggleTheme flips between light and dark and persists the choice.
func (s *Session) ToggleTheme(ctx context.Context) Theme {
	s.mu.Lock()
	if s.theme == ThemeDark {
		s.theme = ThemeLight
	} else {
		s.theme = ThemeDark
	}
	theme := s.theme
	s.mu.Unlock()

	if s.d.Store != nil {
		if err := s.d.Store.SetTheme(ctx, string(theme)); err != nil {
			s.d.Logger.Warn("storage", "could not persist theme", map[string]any{"error": err})
		}
	}
	return theme
}

func (s *Session) TogglePanel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelOpen = !s.panelOpen
	return s.panelOpen
}

// OpenTool runs a tool from the tools tab. Only export is available.
func (s *Session) OpenTool(name string) (string, error) {
	if name != "export" || s.d.Exporter == nil {
		s.d.Notifier.Notify(fmt.Sprintf("Tool %q is coming soon", name))
		return "", nil
	}
	path, err := s.d.Exporter.Export(s.Snapshot())
	if err != nil {
		s.d.Notifier.Notify("Export failed")
		return "", err
	}
	s.d.Notifier.Notify("Notes exported to " + path)
	return path, nil
}
