package study

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ChatContextLimit    = 3000
	SummaryContextLimit = 5000

	DefaultChatTemperature    = 0.7
	DefaultSummaryTemperature = 0.3

	AdvisoryMessage = "Please sign in to use the AI assistant."
	ErrorMessage    = "Sorry, something went wrong while contacting the AI. Please try again."
)

const (
	chatPreamble    = "You are a study assistant. Use the document content below to answer the question.\n\nDocument content:\n"
	summaryPreamble = "Summarize the main points of the following document as a concise study summary:\n\n"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Entry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func newEntryID() string { return uuid.NewString() }

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ChatPrompt builds the outbound prompt for msg given the document context.
func ChatPrompt(docText, msg string) string {
	if docText == "" {
		return msg
	}
	return chatPreamble + truncate(docText, ChatContextLimit) + "\n\nQuestion: " + msg
}

func SummaryPrompt(text string) string {
	return summaryPreamble + truncate(text, SummaryContextLimit)
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.d.Token = token
	s.mu.Unlock()
}

func (s *Session) appendEntry(role Role, content string) Entry {
	e := Entry{ID: s.d.NewID(), Role: role, Content: content, Timestamp: s.d.Clock()}
	s.mu.Lock()
	s.transcript = append(s.transcript, e)
	s.mu.Unlock()
	return e
}

// Send trims input and, when anything is left, records it and asks the AI.
func (s *Session) Send(ctx context.Context, input string) (Entry, bool) {
	msg := strings.TrimSpace(input)
	if msg == "" {
		return Entry{}, false
	}
	s.appendEntry(RoleUser, msg)
	return s.Ask(ctx, msg), true
}

// Ask sends msg with the document context and appends exactly one
// assistant entry: the reply, the sign-in advisory, or the error notice.
func (s *Session) Ask(ctx context.Context, msg string) Entry {
	s.mu.Lock()
	token, docText := s.d.Token, s.extracted
	s.mu.Unlock()

	if token == "" || s.d.Completer == nil {
		return s.appendEntry(RoleAssistant, AdvisoryMessage)
	}

	temp := s.d.ChatTemperature
	if temp == 0 {
		temp = DefaultChatTemperature
	}
	reply, err := s.d.Completer.Complete(ctx, token, ChatPrompt(docText, msg), temp)
	if err != nil {
		s.d.Logger.Error("chat", "completion failed", map[string]any{"error": err})
		return s.appendEntry(RoleAssistant, ErrorMessage)
	}
	return s.appendEntry(RoleAssistant, reply)
}

// Summarize writes a summary of text, or of the document context when text
// is empty, to the summary tab.
func (s *Session) Summarize(ctx context.Context, text string) string {
	s.mu.Lock()
	token := s.d.Token
	if text == "" {
		text = s.extracted
	}
	s.mu.Unlock()

	var out string
	switch {
	case token == "" || s.d.Completer == nil:
		out = AdvisoryMessage
	default:
		temp := s.d.SummaryTemperature
		if temp == 0 {
			temp = DefaultSummaryTemperature
		}
		reply, err := s.d.Completer.Complete(ctx, token, SummaryPrompt(text), temp)
		if err != nil {
			s.d.Logger.Error("chat", "summary failed", map[string]any{"error": err})
			out = ErrorMessage
		} else {
			out = reply
		}
	}

	s.mu.Lock()
	s.summary = out
	s.tab = TabSummary
	s.mu.Unlock()
	return out
}
