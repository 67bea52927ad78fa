package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/logx"
	"github.com/shivanandham/pregnancy-assistant/internal/metrics"
	"github.com/shivanandham/pregnancy-assistant/internal/repository"
)

const systemPreamble = `You are a helpful pregnancy assistant AI. You provide supportive, evidence-based information about pregnancy, but always remind users to consult with their healthcare provider for medical advice.

Key guidelines:
- Be encouraging and supportive
- Provide practical, evidence-based information
- Always include disclaimers about consulting healthcare providers
- Focus on common pregnancy topics: nutrition, exercise, symptoms, preparation, milestones
- Be sensitive to concerns and anxieties
- Provide week-by-week information when relevant

Remember: You are not a replacement for medical care, but a supportive companion.`

// ChatReply is the outcome of one chat exchange.
type ChatReply struct {
	Reply string `json:"reply"`
	Week  *int   `json:"week,omitempty"`
}

// ChatService runs the chat-send path: persist, retrieve context, call the
// text-generation service under a timeout, persist the reply, queue
// extraction.
type ChatService struct {
	messageRepo   repository.MessageRepository
	pregnancyRepo repository.PregnancyRepository
	retriever     *RetrieverService
	extractor     *ExtractionService
	generator     TextGenerator
	collector     metrics.Collector
	timeout       time.Duration
}

func NewChatService(messageRepo repository.MessageRepository, pregnancyRepo repository.PregnancyRepository, retriever *RetrieverService, extractor *ExtractionService, generator TextGenerator, collector metrics.Collector, timeout time.Duration) *ChatService {
	return &ChatService{
		messageRepo:   messageRepo,
		pregnancyRepo: pregnancyRepo,
		retriever:     retriever,
		extractor:     extractor,
		generator:     generator,
		collector:     collector,
		timeout:       timeout,
	}
}

// Send processes one user message. The user message is persisted before the
// AI call, so a timed-out or failed call still leaves the exchange's user
// half on record; the error returned then is terminal, not retried.
func (s *ChatService) Send(ctx context.Context, userID uuid.UUID, message string, week *int) (*ChatReply, error) {
	userMsg := &domain.ChatMessage{
		ID:      uuid.New(),
		UserID:  userID,
		Role:    domain.RoleUser,
		Content: message,
	}
	if err := s.messageRepo.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	if week == nil {
		week = s.currentWeek(ctx, userID)
	}

	retrieved := s.retriever.Retrieve(ctx, userID, message, week, 10)

	prompt := s.buildPrompt(message, week, retrieved.FormattedText)

	aiCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.generator.Generate(aiCtx, prompt)
	s.collector.RecordAILatency(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("text generation: %w", err)
	}

	assistantMsg := &domain.ChatMessage{
		ID:      uuid.New(),
		UserID:  userID,
		Role:    domain.RoleAssistant,
		Content: reply,
	}
	if err := s.messageRepo.Create(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("persisting assistant message: %w", err)
	}

	s.extractor.Enqueue(ExtractionJob{
		UserID:          userID,
		UserMessage:     message,
		AssistantReply:  reply,
		Week:            week,
		SourceMessageID: &userMsg.ID,
	})

	return &ChatReply{Reply: reply, Week: week}, nil
}

func (s *ChatService) currentWeek(ctx context.Context, userID uuid.UUID) *int {
	pregnancy, err := s.pregnancyRepo.GetByUserID(ctx, userID)
	if err != nil {
		logx.Error().Err(err).Msg("loading pregnancy record")
		return nil
	}
	if pregnancy == nil {
		return nil
	}
	return pregnancy.CurrentWeek(time.Now())
}

func (s *ChatService) buildPrompt(message string, week *int, contextBlock string) string {
	var b strings.Builder
	b.WriteString(systemPreamble)

	if week != nil {
		fmt.Fprintf(&b, "\n\nThe user is currently at week %d of pregnancy.", *week)
	}

	if contextBlock != "" {
		b.WriteString("\n\n")
		b.WriteString(contextBlock)
	}

	b.WriteString("\n\nUser: ")
	b.WriteString(message)
	return b.String()
}
