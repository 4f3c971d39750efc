// Package recent keeps the most-recent-first list of opened documents.
package recent

import (
	"context"
	"time"

	"github.com/thywilljoshua/studyspace/internal/storage"
)

const Limit = 5

type Document struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Title  string `json:"title"`
}

type Entry struct {
	Document
	Timestamp time.Time `json:"timestamp"`
	LastPage  int       `json:"lastPage"`
}

type Tracker struct {
	store *storage.Store
	now   func() time.Time
}

func NewTracker(store *storage.Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// WithClock replaces the timestamp source.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// List returns the persisted entries. A missing or malformed list is empty.
func (t *Tracker) List(ctx context.Context) []Entry {
	var entries []Entry
	if !t.store.GetJSON(ctx, storage.KeyRecentDocs, &entries) {
		return nil
	}
	return entries
}

// RecordOpened moves doc to the front of the list. Entries are keyed by
// title, so two sources sharing a title replace each other.
func (t *Tracker) RecordOpened(ctx context.Context, doc Document, lastPage int) ([]Entry, error) {
	prev := t.List(ctx)
	entries := make([]Entry, 0, Limit)
	entries = append(entries, Entry{
		Document:  doc,
		Timestamp: t.now().UTC().Truncate(time.Second),
		LastPage:  lastPage,
	})
	for _, e := range prev {
		if e.Title == doc.Title {
			continue
		}
		entries = append(entries, e)
		if len(entries) == Limit {
			break
		}
	}
	if err := t.store.SetJSON(ctx, storage.KeyRecentDocs, entries); err != nil {
		return entries, err
	}
	return entries, nil
}
