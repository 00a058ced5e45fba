package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buddyhq/buddy/internal/model/chat"
	"github.com/buddyhq/buddy/internal/service/responder"
)

// transcriptLimit bounds the in-memory transcript; older turns are dropped.
const transcriptLimit = 200

// Reply is the outcome of one conversation turn.
type Reply struct {
	Response string
	Kind     responder.Kind
	State    chat.SessionState
}

// Service runs conversation turns and keeps the transcript.
type Service struct {
	responder *responder.Responder

	mu       sync.RWMutex
	messages []chat.Message
}

// NewService wraps a responder.
func NewService(r *responder.Responder) *Service {
	return &Service{
		responder: r,
		messages:  make([]chat.Message, 0, 16),
	}
}

// Send answers text and records both sides of the turn.
func (s *Service) Send(ctx context.Context, text string) Reply {
	answer := s.responder.Answer(ctx, text)
	state := answer.State

	now := time.Now().UTC()
	s.append(
		chat.Message{
			ID:        uuid.NewString(),
			Sender:    chat.SenderUser,
			Content:   text,
			Platform:  state.Platform,
			FocusArea: state.FocusArea,
			CreatedAt: now,
		},
		chat.Message{
			ID:        uuid.NewString(),
			Sender:    chat.SenderAssistant,
			Content:   answer.Text,
			CreatedAt: now,
		},
	)

	return Reply{Response: answer.Text, Kind: answer.Kind, State: state}
}

// Greeting records and returns an opening line without classifying anything.
func (s *Service) Greeting() string {
	text := s.responder.Greeting()
	s.append(chat.Message{
		ID:        uuid.NewString(),
		Sender:    chat.SenderAssistant,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	})
	return text
}

// Farewell records and returns a closing line.
func (s *Service) Farewell() string {
	text := s.responder.Farewell()
	s.append(chat.Message{
		ID:        uuid.NewString(),
		Sender:    chat.SenderAssistant,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	})
	return text
}

// State returns the current session snapshot.
func (s *Service) State() chat.SessionState {
	return s.responder.Session().Snapshot()
}

// LoadTranscript returns a copy of the recorded messages.
func (s *Service) LoadTranscript(_ context.Context) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

func (s *Service) append(msgs ...chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msgs...)
	if overflow := len(s.messages) - transcriptLimit; overflow > 0 {
		s.messages = append(s.messages[:0:0], s.messages[overflow:]...)
	}
}
