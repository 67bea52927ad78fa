package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/logx"
	"github.com/shivanandham/pregnancy-assistant/internal/metrics"
	"github.com/shivanandham/pregnancy-assistant/internal/repository"
	"gorm.io/datatypes"
)

// TextGenerator is the external text-completion service. Implementations
// must honor ctx cancellation.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ExtractionJob is one chat exchange queued for knowledge extraction.
type ExtractionJob struct {
	UserID          uuid.UUID
	UserMessage     string
	AssistantReply  string
	Week            *int
	SourceMessageID *uuid.UUID
}

// ExtractionService runs knowledge extraction off the request path. Jobs go
// through a bounded queue into a single worker; a full queue drops the job
// rather than blocking the chat flow.
type ExtractionService struct {
	factRepo  repository.FactRepository
	chunkRepo repository.ChunkRepository
	generator TextGenerator
	collector metrics.Collector
	timeout   time.Duration

	jobs chan ExtractionJob
	wg   sync.WaitGroup
	once sync.Once
}

func NewExtractionService(factRepo repository.FactRepository, chunkRepo repository.ChunkRepository, generator TextGenerator, collector metrics.Collector, timeout time.Duration, queueSize int) *ExtractionService {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &ExtractionService{
		factRepo:  factRepo,
		chunkRepo: chunkRepo,
		generator: generator,
		collector: collector,
		timeout:   timeout,
		jobs:      make(chan ExtractionJob, queueSize),
	}
}

// Start launches the worker. Call Stop to drain and shut down.
func (s *ExtractionService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for job := range s.jobs {
			s.process(job)
		}
	}()
}

// Stop closes the queue and waits for queued jobs to finish.
func (s *ExtractionService) Stop() {
	s.once.Do(func() { close(s.jobs) })
	s.wg.Wait()
}

// Enqueue hands a job to the worker without blocking. Returns false when the
// queue is saturated and the job was dropped.
func (s *ExtractionService) Enqueue(job ExtractionJob) bool {
	select {
	case s.jobs <- job:
		return true
	default:
		s.collector.RecordExtractionDropped()
		logx.Warn().Str("user_id", job.UserID.String()).Msg("extraction queue full, dropping job")
		return false
	}
}

func (s *ExtractionService) process(job ExtractionJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.collector.RecordExtractionJob()

	// The raw exchange is persisted unconditionally so facts can be
	// re-extracted later even when the AI call fails.
	keywords := ExtractKeywords(job.UserMessage + " " + job.AssistantReply)
	chunk := &domain.ConversationChunk{
		ID:         uuid.New(),
		UserID:     job.UserID,
		Content:    fmt.Sprintf("User: %s\n\nAssistant: %s", job.UserMessage, job.AssistantReply),
		WeekNumber: job.Week,
		Keywords:   strings.Join(keywords, ", "),
		Timestamp:  time.Now(),
	}
	if err := s.chunkRepo.Create(ctx, chunk); err != nil {
		logx.Error().Err(err).Msg("persisting conversation chunk")
		return
	}

	facts, err := s.extractFacts(ctx, job)
	if err != nil {
		logx.Error().Err(err).Msg("fact extraction failed, chunk kept")
		return
	}

	saved := 0
	for _, fact := range facts {
		fact.SourceMessageID = job.SourceMessageID
		if err := s.factRepo.Create(ctx, fact); err != nil {
			logx.Error().Err(err).Msg("persisting extracted fact")
			continue
		}
		saved++
	}

	s.collector.RecordFactsExtracted(saved)
	logx.Debug().Int("facts", saved).Str("user_id", job.UserID.String()).Msg("extraction finished")
}

type extractedFact struct {
	Category string `json:"category"`
	FactText string `json:"fact_text"`
}

func (s *ExtractionService) extractFacts(ctx context.Context, job ExtractionJob) ([]*domain.KnowledgeFact, error) {
	week := "unknown"
	if job.Week != nil {
		week = fmt.Sprintf("%d", *job.Week)
	}

	prompt := fmt.Sprintf(`
Extract structured pregnancy-related facts from this conversation.
Return a JSON array of facts with category and fact_text.

Categories: symptom, milestone, preference, medical, activity

User: %s
Assistant: %s

Return format (JSON only, no other text):
[
  {"category": "symptom", "fact_text": "User experiencing morning sickness at week %s"},
  {"category": "preference", "fact_text": "User prefers natural birth options"}
]

Only extract facts that are explicitly mentioned or clearly implied. Be conservative - if unsure, don't extract.
`, job.UserMessage, job.AssistantReply, week)

	response, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	raw := bracketedArray(response)
	if raw == "" {
		return nil, nil
	}

	var parsed []extractedFact
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		// Malformed model output is discarded, not surfaced.
		logx.Debug().Str("response", raw).Msg("unparseable extraction output discarded")
		return nil, nil
	}

	now := time.Now()
	var facts []*domain.KnowledgeFact
	for _, f := range parsed {
		if f.FactText == "" || !domain.ValidFactCategory(f.Category) {
			continue
		}
		meta, _ := json.Marshal(map[string]string{"extractedFrom": "chat"})
		facts = append(facts, &domain.KnowledgeFact{
			ID:           uuid.New(),
			UserID:       job.UserID,
			Category:     domain.FactCategory(f.Category),
			FactText:     f.FactText,
			WeekNumber:   job.Week,
			DateRecorded: now,
			Metadata:     datatypes.JSON(meta),
		})
	}
	return facts, nil
}

// bracketedArray returns the first '['..last ']' span, the same loose JSON
// fishing the model's answers need.
func bracketedArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}
