// Package session holds the process-wide floorplan context and chat history.
//
// There is exactly one slot: every upload replaces the previous floorplan
// and resets the conversation. All methods are safe for concurrent use.
package session

import (
	"sync"
	"time"
)

const (
	// NoFloorplan is reported as the features line before any upload.
	NoFloorplan = "No floorplan uploaded yet."

	// NoText is reported as the extracted text before any upload.
	NoText = "No text detected."

	// RecommendationQuestion labels the history entry created by an upload.
	RecommendationQuestion = "AI Recommendation"
)

// Context is the latest analyzed floorplan.
type Context struct {
	Features   string    `json:"detected_features"`
	Text       string    `json:"extracted_text"`
	Analyzed   bool      `json:"analyzed"`
	AnalyzedAt time.Time `json:"analyzed_at,omitempty"`
}

// ChatEntry is one question/reply pair.
type ChatEntry struct {
	Question string `json:"question"`
	Reply    string `json:"reply"`
}

// Store is the single-slot context store.
type Store struct {
	mu      sync.RWMutex
	current Context
	history []ChatEntry
	now     func() time.Time
}

// NewStore creates a Store holding the default context.
func NewStore() *Store {
	return &Store{current: defaultContext(), now: time.Now}
}

func defaultContext() Context {
	return Context{Features: NoFloorplan, Text: NoText}
}

// RecordFloorplan replaces the stored context and clears the history.
func (s *Store) RecordFloorplan(features, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(features, text)
}

// CommitAnalysis records a floorplan and seeds the history with its
// recommendation in one step, so readers never observe the cleared
// history without the recommendation.
func (s *Store) CommitAnalysis(features, text, recommendation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(features, text)
	s.history = append(s.history, ChatEntry{Question: RecommendationQuestion, Reply: recommendation})
}

func (s *Store) recordLocked(features, text string) {
	s.current = Context{
		Features:   features,
		Text:       text,
		Analyzed:   true,
		AnalyzedAt: s.now(),
	}
	s.history = nil
}

// AppendChatTurn adds one turn to the end of the history.
func (s *Store) AppendChatTurn(question, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, ChatEntry{Question: question, Reply: reply})
}

// CurrentContext returns the latest context, or the default one when
// nothing has been uploaded.
func (s *Store) CurrentContext() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// History returns a copy of the chat history, oldest first.
func (s *Store) History() []ChatEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatEntry, len(s.history))
	copy(out, s.history)
	return out
}

// Reset restores the default context and empties the history.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = defaultContext()
	s.history = nil
}
