package history

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/prompt-history/internal/ai"
	"github.com/suPer8Hu/prompt-history/internal/audit"
	"github.com/suPer8Hu/prompt-history/internal/common"
)

// Publisher receives audit events after a change is committed.
type Publisher interface {
	Publish(ctx context.Context, e audit.Event) error
}

type Service struct {
	repo     *Repo
	provider ai.Provider
	events   Publisher
}

func NewService(repo *Repo, provider ai.Provider, events Publisher) *Service {
	return &Service{repo: repo, provider: provider, events: events}
}

// Submit generates a response for prompt and stores the exchange. Nothing is
// stored when generation fails.
func (s *Service) Submit(ctx context.Context, userID uint64, prompt string) (*Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, common.Validation("prompt is required")
	}

	reply, err := ai.Generate(ctx, s.provider, prompt)
	if err != nil {
		return nil, common.Upstream(err)
	}

	msg := &Message{
		ID:        common.NewULID(),
		UserID:    userID,
		Prompt:    prompt,
		Response:  reply,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, common.Storage(err)
	}

	log.Printf("[prompts] saved prompt id=%s user=%d", msg.ID, userID)
	s.publish(ctx, audit.NewEvent(audit.PromptCreated, userID, msg.ID))
	return msg, nil
}

func (s *Service) List(ctx context.Context, userID uint64) ([]Message, error) {
	msgs, err := s.repo.ListMessages(ctx, userID)
	if err != nil {
		return nil, common.Storage(err)
	}
	return msgs, nil
}

func (s *Service) Clear(ctx context.Context, userID uint64) error {
	n, err := s.repo.DeleteMessages(ctx, userID)
	if err != nil {
		return common.Storage(err)
	}
	log.Printf("[prompts] cleared history user=%d removed=%d", userID, n)
	s.publish(ctx, audit.NewEvent(audit.HistoryCleared, userID, ""))
	return nil
}

func (s *Service) publish(ctx context.Context, e audit.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		log.Printf("[prompts] publish %s failed user=%d err=%v", e.Type, e.UserID, err)
	}
}
