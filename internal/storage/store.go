// Package storage persists the study session's named slots.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/thywilljoshua/studyspace/internal/logger"
)

type Key string

const (
	KeyTheme       Key = "study-theme"
	KeyLastDoc     Key = "study-last-doc"
	KeyCurrentPage Key = "study-current-page"
	KeyRecentDocs  Key = "study-recent-docs"
)

var ErrUnknownKey = errors.New("unknown storage key")

func (k Key) valid() bool {
	switch k {
	case KeyTheme, KeyLastDoc, KeyCurrentPage, KeyRecentDocs:
		return true
	}
	return false
}

// Store is the typed view over a Backend. Reads never fail: an unreachable
// backend or a value that is not well formed for its slot reads as absent.
type Store struct {
	backend Backend
	log     logger.Logger
}

func NewStore(b Backend, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{backend: b, log: log}
}

func (s *Store) Get(ctx context.Context, key Key) (string, bool) {
	if !key.valid() {
		return "", false
	}
	v, ok, err := s.backend.Get(ctx, string(key))
	if err != nil {
		s.log.Warn("storage", "read failed, treating as absent", map[string]any{"key": string(key), "error": err})
		return "", false
	}
	return v, ok
}

func (s *Store) Set(ctx context.Context, key Key, value string) error {
	if !key.valid() {
		return ErrUnknownKey
	}
	return s.backend.Set(ctx, string(key), value)
}

func (s *Store) Delete(ctx context.Context, key Key) error {
	if !key.valid() {
		return ErrUnknownKey
	}
	return s.backend.Delete(ctx, string(key))
}

// GetJSON decodes the slot into v and reports whether it held a well-formed value.
func (s *Store) GetJSON(ctx context.Context, key Key, v any) bool {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.log.Warn("storage", "malformed value, treating as absent", map[string]any{"key": string(key), "error": err})
		return false
	}
	return true
}

func (s *Store) SetJSON(ctx context.Context, key Key, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(b))
}

// Theme returns light or dark.
func (s *Store) Theme(ctx context.Context) (string, bool) {
	v, ok := s.Get(ctx, KeyTheme)
	if !ok || (v != "light" && v != "dark") {
		return "", false
	}
	return v, true
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	return s.Set(ctx, KeyTheme, theme)
}

func (s *Store) CurrentPage(ctx context.Context) (int, bool) {
	v, ok := s.Get(ctx, KeyCurrentPage)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (s *Store) SetCurrentPage(ctx context.Context, page int) error {
	return s.Set(ctx, KeyCurrentPage, strconv.Itoa(page))
}

func (s *Store) Close() error { return s.backend.Close() }
