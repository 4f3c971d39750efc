// Package pdf opens PDF documents for the study viewer: page counting and
// single-page rendering through pdfcpu, text extraction through rsc.io/pdf.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	rpdf "rsc.io/pdf"
)

var (
	ErrNoSource = errors.New("no pdf data or source provided")
	ErrNoPages  = errors.New("pdf has no pages")
	ErrPage     = errors.New("page out of range")
)

// Page is one rendered page: a standalone single-page PDF plus the
// viewport it should be displayed at.
type Page struct {
	Number int
	Scale  float64
	Width  float64
	Height float64
	Data   []byte
}

type Document struct {
	mu    sync.Mutex
	raw   []byte
	ctx   *model.Context
	pages int
}

// Parse validates data and counts its pages.
func Parse(data []byte) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}
	if ctx.PageCount == 0 {
		return nil, ErrNoPages
	}
	return &Document{raw: data, ctx: ctx, pages: ctx.PageCount}, nil
}

func (d *Document) PageCount() int { return d.pages }

// Render extracts page n and sizes its viewport by scale.
func (d *Document) Render(n int, scale float64) (*Page, error) {
	if n < 1 || n > d.pages {
		return nil, fmt.Errorf("%w: %d of %d", ErrPage, n, d.pages)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := api.ExtractPage(d.ctx, n)
	if err != nil {
		return nil, fmt.Errorf("extracting page %d: %w", n, err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading page %d: %w", n, err)
	}
	p := &Page{Number: n, Scale: scale, Data: b}
	if dims, err := d.ctx.PageDims(); err == nil && len(dims) >= n {
		p.Width = dims[n-1].Width * scale
		p.Height = dims[n-1].Height * scale
	}
	return p, nil
}

// Text returns the plain text of the first maxPages pages. Extraction is
// best effort; pages that cannot be decoded contribute nothing.
func (d *Document) Text(maxPages int) (text string) {
	defer func() {
		// rsc.io/pdf panics on some malformed content streams
		if recover() != nil {
			text = ""
		}
	}()
	r, err := rpdf.NewReader(bytes.NewReader(d.raw), int64(len(d.raw)))
	if err != nil {
		return ""
	}
	n := r.NumPage()
	if maxPages > 0 && maxPages < n {
		n = maxPages
	}
	var b strings.Builder
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, t := range p.Content().Text {
			b.WriteString(t.S)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// Loader resolves a pdf source to bytes and parses it.
type Loader struct {
	client *http.Client
}

func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client}
}

// Open parses data when given, otherwise fetches source as a URL or local path.
func (l *Loader) Open(ctx context.Context, data []byte, source string) (*Document, error) {
	if len(data) == 0 {
		var err error
		data, err = l.fetch(ctx, source)
		if err != nil {
			return nil, err
		}
	}
	return Parse(data)
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	switch {
	case source == "":
		return nil, ErrNoSource
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", source, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("fetching %s: status %d", source, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	default:
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", source, err)
		}
		return b, nil
	}
}
