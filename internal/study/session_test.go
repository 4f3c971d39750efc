package study

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thywilljoshua/studyspace/internal/pdf"
	"github.com/thywilljoshua/studyspace/internal/recent"
	"github.com/thywilljoshua/studyspace/internal/storage"
)

type fakeDoc struct {
	pages   int
	text    string
	renders []string
	failAt  int
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) Render(n int, scale float64) (*pdf.Page, error) {
	if n == d.failAt {
		return nil, errors.New("render failed")
	}
	d.renders = append(d.renders, fmt.Sprintf("%d@%.1f", n, scale))
	return &pdf.Page{Number: n, Scale: scale}, nil
}

func (d *fakeDoc) Text(int) string { return d.text }

type fakeRenderer struct {
	docs map[string]*fakeDoc
}

func (r *fakeRenderer) Open(_ context.Context, _ []byte, source string) (Document, error) {
	d, ok := r.docs[source]
	if !ok {
		return nil, errors.New("malformed pdf")
	}
	return d, nil
}

type fakeCompleter struct {
	calls []completion
	reply string
	err   error
}

type completion struct {
	token, prompt string
	temperature   float64
}

func (c *fakeCompleter) Complete(_ context.Context, token, prompt string, temperature float64) (string, error) {
	c.calls = append(c.calls, completion{token, prompt, temperature})
	return c.reply, c.err
}

type notices struct{ msgs []string }

func (n *notices) Notify(m string) { n.msgs = append(n.msgs, m) }

type harness struct {
	s         *Session
	store     *storage.Store
	recents   *recent.Tracker
	renderer  *fakeRenderer
	completer *fakeCompleter
	notices   *notices
}

func newHarness(token string) *harness {
	store := storage.NewStore(storage.NewMemory(), nil)
	h := &harness{
		store:   store,
		recents: recent.NewTracker(store),
		renderer: &fakeRenderer{docs: map[string]*fakeDoc{
			"algebra.pdf": {pages: 10, text: "Linear equations"},
			"short.pdf":   {pages: 2, text: ""},
			"empty.pdf":   {pages: 0},
		}},
		completer: &fakeCompleter{reply: "AI reply"},
		notices:   &notices{},
	}
	clock := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	h.s = NewSession(Deps{
		Renderer:  h.renderer,
		Completer: h.completer,
		Store:     store,
		Recent:    h.recents,
		Notifier:  h.notices,
		Clock:     func() time.Time { return clock },
		Token:     token,
	})
	return h
}

func (h *harness) loadPDF(t *testing.T, src string) {
	t.Helper()
	require.NoError(t, h.s.LoadDocument(context.Background(), Descriptor{Kind: KindPDF, Source: src, Title: src}))
}

func TestNewSessionDefaults(t *testing.T) {
	snap := newHarness("").s.Snapshot()
	assert.Nil(t, snap.Document)
	assert.Equal(t, 1, snap.CurrentPage)
	assert.Equal(t, 0, snap.TotalPages)
	assert.Equal(t, DefaultZoom, snap.Zoom)
	assert.Equal(t, TabChat, snap.Tab)
	assert.Equal(t, ThemeLight, snap.Theme)
	assert.True(t, snap.PanelOpen)
}

func TestLoadPDF(t *testing.T) {
	h := newHarness("tok")
	ctx := context.Background()
	h.loadPDF(t, "algebra.pdf")

	snap := h.s.Snapshot()
	require.NotNil(t, snap.Document)
	assert.Equal(t, KindPDF, snap.Document.Kind)
	assert.Equal(t, 1, snap.CurrentPage)
	assert.Equal(t, 10, snap.TotalPages)
	assert.Equal(t, "Linear equations", snap.ExtractedText)
	require.NotNil(t, snap.Page)
	assert.Equal(t, 1, snap.Page.Number)
	assert.Equal(t, []string{"1@1.5"}, h.renderer.docs["algebra.pdf"].renders)

	var last Descriptor
	assert.True(t, h.store.GetJSON(ctx, storage.KeyLastDoc, &last))
	assert.Equal(t, "algebra.pdf", last.Title)
	page, ok := h.store.CurrentPage(ctx)
	assert.True(t, ok)
	assert.Equal(t, 1, page)

	list := h.recents.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "algebra.pdf", list[0].Title)
}

func TestLoadResetsChatAndTab(t *testing.T) {
	h := newHarness("tok")
	ctx := context.Background()
	h.loadPDF(t, "algebra.pdf")
	h.s.Send(ctx, "question one")
	h.s.Summarize(ctx, "")
	h.s.SwitchTab(TabTools)
	require.NotEmpty(t, h.s.Snapshot().Transcript)

	for _, d := range []Descriptor{
		{Kind: KindVideo, Source: "https://youtu.be/abc123", Title: "Lecture"},
		{Kind: KindText, Source: "<b>notes</b>", Title: "Notes"},
		{Kind: KindPDF, Source: "short.pdf", Title: "Short"},
	} {
		h.s.Send(ctx, "something")
		h.s.SwitchTab(TabSummary)
		require.NoError(t, h.s.LoadDocument(ctx, d))
		snap := h.s.Snapshot()
		assert.Empty(t, snap.Transcript, d.Kind)
		assert.Equal(t, TabChat, snap.Tab, d.Kind)
		assert.Empty(t, snap.Summary, d.Kind)
	}
}

func TestLoadVideoAndText(t *testing.T) {
	h := newHarness("")
	ctx := context.Background()
	h.loadPDF(t, "algebra.pdf")

	require.NoError(t, h.s.LoadDocument(ctx, Descriptor{Kind: KindVideo, Source: "https://youtube.com/watch?v=xyz789&t=5", Title: "V"}))
	snap := h.s.Snapshot()
	assert.Equal(t, "https://www.youtube.com/embed/xyz789", snap.EmbedURL)
	assert.Equal(t, 0, snap.TotalPages)
	assert.Equal(t, 1, snap.CurrentPage)
	assert.Empty(t, snap.ExtractedText)
	assert.Nil(t, snap.Page)

	require.NoError(t, h.s.LoadDocument(ctx, Descriptor{Kind: KindText, Source: `<script>alert("x")</script>`, Title: "T"}))
	snap = h.s.Snapshot()
	assert.Equal(t, "&lt;script&gt;alert(&quot;x&quot;)&lt;/script&gt;", snap.TextHTML)
	assert.Equal(t, `<script>alert("x")</script>`, snap.Document.Source)
	assert.Empty(t, snap.EmbedURL)
}

func TestLoadUnsupportedKind(t *testing.T) {
	h := newHarness("")
	err := h.s.LoadDocument(context.Background(), Descriptor{Kind: "audio", Source: "x", Title: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedKind)
	assert.Nil(t, h.s.Snapshot().Document)
}

func TestLoadFailureKeepsPriorState(t *testing.T) {
	h := newHarness("tok")
	ctx := context.Background()
	h.loadPDF(t, "algebra.pdf")
	h.s.GoToPage(ctx, 4)
	h.s.Send(ctx, "keep me")
	before := h.s.Snapshot()

	for _, src := range []string{"broken.pdf", "empty.pdf"} {
		err := h.s.LoadDocument(ctx, Descriptor{Kind: KindPDF, Source: src, Title: "Broken"})
		require.ErrorIs(t, err, ErrLoadFailed)
		assert.Equal(t, before, h.s.Snapshot())
	}
	assert.Equal(t, []string{"Failed to load PDF", "Failed to load PDF"}, h.notices.msgs)
	assert.Len(t, h.recents.List(ctx), 1, "failed load is not recorded")
}

func TestLoadFailureFromEmptySession(t *testing.T) {
	h := newHarness("")
	err := h.s.LoadDocument(context.Background(), Descriptor{Kind: KindPDF, Source: "broken.pdf", Title: "B"})
	require.Error(t, err)
	snap := h.s.Snapshot()
	assert.Nil(t, snap.Document)
	assert.Equal(t, 0, snap.TotalPages)
	assert.Equal(t, 1, snap.CurrentPage)
}

func TestGoToPage(t *testing.T) {
	h := newHarness("")
	ctx := context.Background()
	h.loadPDF(t, "algebra.pdf")

	for n := -2; n <= 12; n++ {
		h.s.GoToPage(ctx, 5)
		changed := h.s.GoToPage(ctx, n)
		inRange := n >= 1 && n <= 10
		assert.Equal(t, inRange, changed, "n=%d", n)
		if inRange {
			assert.Equal(t, n, h.s.Snapshot().CurrentPage)
		} else {
			assert.Equal(t, 5, h.s.Snapshot().CurrentPage)
		}
	}
}

func TestNextPrevBounds(t *testing.T) {
	h := newHarness("")
	ctx := context.Background()
	h.loadPDF(t, "short.pdf")

	assert.False(t, h.s.PrevPage(ctx))
	assert.True(t, h.s.NextPage(ctx))
	assert.Equal(t, 2, h.s.Snapshot().CurrentPage)
	assert.False(t, h.s.NextPage(ctx))
	assert.Equal(t, 2, h.s.Snapshot().CurrentPage)
	assert.True(t, h.s.PrevPage(ctx))
	assert.Equal(t, 1, h.s.Snapshot().CurrentPage)

	page, _ := h.store.CurrentPage(ctx)
	assert.Equal(t, 1, page)
	assert.Equal(t, []string{"1@1.5", "2@1.5", "1@1.5"}, h.renderer.docs["short.pdf"].renders)
}

func TestNavigationWithoutDocument(t *testing.T) {
	h := newHarness("")
	ctx := context.Background()
	assert.False(t, h.s.NextPage(ctx))
	assert.False(t, h.s.PrevPage(ctx))
	assert.False(t, h.s.GoToPage(ctx, 1))
	assert.Equal(t, 1, h.s.Snapshot().CurrentPage)
}

func TestZoomClamped(t *testing.T) {
	h := newHarness("")
	ctx := context.Background()
	h.loadPDF(t, "algebra.pdf")

	for i := 0; i < 20; i++ {
		h.s.ZoomIn(ctx)
		z := h.s.Snapshot().Zoom
		assert.True(t, z >= MinZoom && z <= MaxZoom)
	}
	assert.Equal(t, MaxZoom, h.s.Snapshot().Zoom)
	assert.False(t, h.s.ZoomIn(ctx))

	for i := 0; i < 20; i++ {
		h.s.ZoomOut(ctx)
		z := h.s.Snapshot().Zoom
		assert.True(t, z >= MinZoom && z <= MaxZoom)
	}
	assert.Equal(t, MinZoom, h.s.Snapshot().Zoom)
	assert.False(t, h.s.ZoomOut(ctx))

	assert.True(t, h.s.ZoomIn(ctx))
	assert.InDelta(t, 0.7, h.s.Snapshot().Zoom, 1e-9)
	assert.InDelta(t, 0.7, h.s.Snapshot().Page.Scale, 1e-9, "zoom re-renders the page")
}

func TestRenderFailureKeepsPage(t *testing.T) {
	h := newHarness("")
	ctx := context.Background()
	h.renderer.docs["algebra.pdf"].failAt = 3
	h.loadPDF(t, "algebra.pdf")

	assert.True(t, h.s.GoToPage(ctx, 3))
	snap := h.s.Snapshot()
	assert.Equal(t, 3, snap.CurrentPage)
	assert.Equal(t, 1, snap.Page.Number)
}

func TestToggles(t *testing.T) {
	h := newHarness("")
	ctx := context.Background()

	assert.Equal(t, ThemeDark, h.s.ToggleTheme(ctx))
	theme, ok := h.store.Theme(ctx)
	assert.True(t, ok)
	assert.Equal(t, "dark", theme)
	assert.Equal(t, ThemeLight, h.s.ToggleTheme(ctx))

	assert.False(t, h.s.TogglePanel())
	assert.True(t, h.s.TogglePanel())

	assert.True(t, h.s.SwitchTab(TabTools))
	assert.False(t, h.s.SwitchTab("settings"))
	assert.Equal(t, TabTools, h.s.Snapshot().Tab)
}

func TestRestoreAndResume(t *testing.T) {
	h := newHarness("")
	ctx := context.Background()
	h.loadPDF(t, "algebra.pdf")
	h.s.GoToPage(ctx, 7)
	h.s.ToggleTheme(ctx)

	next := NewSession(Deps{Renderer: h.renderer, Store: h.store, Recent: h.recents})
	next.Restore(ctx)
	assert.Equal(t, ThemeDark, next.Snapshot().Theme)

	ok, err := next.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	snap := next.Snapshot()
	assert.Equal(t, "algebra.pdf", snap.Document.Title)
	assert.Equal(t, 7, snap.CurrentPage)
}

func TestResumeNothingStored(t *testing.T) {
	h := newHarness("")
	ok, err := h.s.Resume(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}

type fakeExporter struct {
	got Snapshot
	err error
}

func (e *fakeExporter) Export(s Snapshot) (string, error) {
	e.got = s
	return "notes/algebra.md", e.err
}

func TestOpenTool(t *testing.T) {
	h := newHarness("")
	exp := &fakeExporter{}
	h.s.d.Exporter = exp
	h.loadPDF(t, "algebra.pdf")

	path, err := h.s.OpenTool("export")
	require.NoError(t, err)
	assert.Equal(t, "notes/algebra.md", path)
	assert.Equal(t, "algebra.pdf", exp.got.Document.Title)

	path, err = h.s.OpenTool("flashcards")
	assert.NoError(t, err)
	assert.Empty(t, path)
	assert.True(t, strings.Contains(h.notices.msgs[len(h.notices.msgs)-1], "coming soon"))
}
