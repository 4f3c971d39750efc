package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	genai "google.golang.org/genai"
)

var (
	ErrMissingAPIKey = errors.New("missing API key")
	ErrEmptyResponse = errors.New("model returned no text")
)

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Refiner rewrites loose text into a complete instruction for a model.
type Refiner interface {
	Refine(ctx context.Context, text string) (string, error)
}

// UpstreamError is a failure reported by the model provider, carrying the
// provider's HTTP status.
type UpstreamError struct {
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// upstream normalises provider SDK errors into *UpstreamError. Other errors
// pass through untouched.
func upstream(err error) error {
	if err == nil {
		return nil
	}
	var gv genai.APIError
	if errors.As(err, &gv) {
		return &UpstreamError{Status: statusOr500(gv.Code), Message: gv.Message, Err: err}
	}
	var gp *genai.APIError
	if errors.As(err, &gp) && gp != nil {
		return &UpstreamError{Status: statusOr500(gp.Code), Message: gp.Message, Err: err}
	}
	var oe *openai.Error
	if errors.As(err, &oe) && oe != nil {
		msg := oe.Message
		if msg == "" {
			msg = http.StatusText(oe.StatusCode)
		}
		return &UpstreamError{Status: statusOr500(oe.StatusCode), Message: msg, Err: err}
	}
	return err
}

func statusOr500(code int) int {
	if code < 400 || code > 599 {
		return http.StatusInternalServerError
	}
	return code
}
