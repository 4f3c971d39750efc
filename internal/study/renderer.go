package study

import (
	"context"

	"github.com/thywilljoshua/studyspace/internal/pdf"
)

type pdfRenderer struct {
	loader *pdf.Loader
}

// NewPDFRenderer adapts a pdf.Loader to Renderer.
func NewPDFRenderer(l *pdf.Loader) Renderer {
	return pdfRenderer{loader: l}
}

func (r pdfRenderer) Open(ctx context.Context, data []byte, source string) (Document, error) {
	doc, err := r.loader.Open(ctx, data, source)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
