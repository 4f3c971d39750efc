// Package gateway is the HTTP client for the study API endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	genai "google.golang.org/genai"

	"github.com/thywilljoshua/studyspace/internal/ai"
)

const (
	EndpointChat   = "/api/gemini"
	EndpointRefine = "/api/refine-prompt"
	EndpointScan   = "/api/image-scan"
)

var (
	ErrNoToken      = errors.New("no authentication token")
	ErrNoText       = errors.New("response carries no text field")
	ErrUnknownRoute = errors.New("unknown endpoint")
)

// StatusError is a non-2xx reply.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway: status %d: %s", e.Status, e.Body)
}

// textFields is the order in which reply fields are tried for the model text.
var textFields = []string{"response", "text"}

// ExtractText picks the reply text by field preference.
func ExtractText(body []byte) (string, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return "", fmt.Errorf("decoding reply: %w", err)
	}
	for _, f := range textFields {
		raw, ok := m[f]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, nil
		}
	}
	return "", ErrNoText
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// RatePerSec limits outbound calls; zero means unlimited.
	RatePerSec float64
	Timeout    time.Duration
}

type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return &Client{base: strings.TrimRight(opts.BaseURL, "/"), http: hc, limiter: lim}
}

// URL joins the base with a known endpoint.
func (c *Client) URL(endpoint string) (string, error) {
	switch endpoint {
	case EndpointChat, EndpointRefine, EndpointScan:
		return c.base + endpoint, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownRoute, endpoint)
}

func (c *Client) post(ctx context.Context, endpoint, token string, payload any) ([]byte, error) {
	url, err := c.URL(endpoint)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s reply: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return b, nil
}

type chatRequest struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
}

// Complete sends a prompt to the chat endpoint.
func (c *Client) Complete(ctx context.Context, token, prompt string, temperature float64) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}
	b, err := c.post(ctx, EndpointChat, token, chatRequest{Prompt: prompt, Temperature: temperature})
	if err != nil {
		return "", err
	}
	return ExtractText(b)
}

type scanRequest struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
	Action      string `json:"action"`
	CurrentText string `json:"currentText,omitempty"`
}

// ScanImage sends an image to the scan endpoint and classifies the reply.
func (c *Client) ScanImage(ctx context.Context, image []byte, mimeType string) (ai.ScanResult, error) {
	b, err := c.post(ctx, EndpointScan, "", scanRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		MimeType:    mimeType,
		Action:      "scan",
	})
	if err != nil {
		return ai.ScanResult{}, err
	}
	var res genai.GenerateContentResponse
	if err := json.Unmarshal(b, &res); err != nil {
		return ai.ScanResult{}, fmt.Errorf("decoding scan reply: %w", err)
	}
	return ai.ParseScan(res.Text()), nil
}

type refineRequest struct {
	CurrentText string `json:"currentText"`
}

// Refine asks the refine endpoint to rewrite text into a full prompt.
func (c *Client) Refine(ctx context.Context, text string) (string, error) {
	b, err := c.post(ctx, EndpointRefine, "", refineRequest{CurrentText: text})
	if err != nil {
		return "", err
	}
	return ExtractText(b)
}
