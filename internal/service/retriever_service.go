package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/logx"
	"github.com/shivanandham/pregnancy-assistant/internal/metrics"
	"github.com/shivanandham/pregnancy-assistant/internal/repository"
)

const (
	maxKeywords          = 8
	maxConversationQuote = 200
	maxQuotedChunks      = 3
	categoryFallbackSize = 5
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {}, "might": {}, "can": {},
	"this": {}, "that": {}, "these": {}, "those": {},
	"i": {}, "you": {}, "he": {}, "she": {}, "it": {}, "we": {}, "they": {},
	"me": {}, "him": {}, "her": {}, "us": {}, "them": {}, "my": {}, "your": {},
	"what": {}, "how": {}, "when": {}, "where": {}, "why": {}, "who": {}, "which": {},
}

// RetrievedContext is the bounded context block injected into outbound AI
// prompts. FormattedText is empty when nothing relevant was found; callers
// treat that as "no augmentation", not an error.
type RetrievedContext struct {
	Facts         []*domain.KnowledgeFact
	Conversations []*domain.ConversationChunk
	FormattedText string
	Keywords      []string
}

// RetrieverService assembles relevant prior knowledge for a query. It only
// reads the knowledge store.
type RetrieverService struct {
	factRepo  repository.FactRepository
	chunkRepo repository.ChunkRepository
	collector metrics.Collector
}

func NewRetrieverService(factRepo repository.FactRepository, chunkRepo repository.ChunkRepository, collector metrics.Collector) *RetrieverService {
	return &RetrieverService{
		factRepo:  factRepo,
		chunkRepo: chunkRepo,
		collector: collector,
	}
}

// Retrieve never fails the caller: store errors degrade to an empty context
// and are only logged.
func (s *RetrieverService) Retrieve(ctx context.Context, userID uuid.UUID, query string, currentWeek *int, limit int) *RetrievedContext {
	if limit <= 0 {
		limit = 10
	}

	keywords := ExtractKeywords(query)

	facts, err := s.searchFacts(ctx, userID, keywords, currentWeek, limit)
	if err != nil {
		logx.Error().Err(err).Msg("fact search failed, degrading to empty context")
		facts = nil
	}

	conversations, err := s.searchConversations(ctx, userID, keywords, currentWeek, limit/2)
	if err != nil {
		logx.Error().Err(err).Msg("conversation search failed, degrading to empty context")
		conversations = nil
	}

	s.collector.RecordContextRetrieval(len(facts), len(conversations))

	return &RetrievedContext{
		Facts:         facts,
		Conversations: conversations,
		FormattedText: formatContext(facts, conversations),
		Keywords:      keywords,
	}
}

func (s *RetrieverService) searchFacts(ctx context.Context, userID uuid.UUID, keywords []string, currentWeek *int, limit int) ([]*domain.KnowledgeFact, error) {
	facts, err := s.factRepo.Search(ctx, userID, keywords, limit)
	if err != nil {
		return nil, err
	}

	if len(facts) == 0 {
		facts, err = s.factsByInferredCategory(ctx, userID, keywords)
		if err != nil {
			return nil, err
		}
	}

	sortByWeekProximity(facts, currentWeek,
		func(f *domain.KnowledgeFact) *int { return f.WeekNumber },
		func(f *domain.KnowledgeFact) time.Time { return f.CreatedAt },
	)

	if len(facts) > limit {
		facts = facts[:limit]
	}
	return facts, nil
}

func (s *RetrieverService) searchConversations(ctx context.Context, userID uuid.UUID, keywords []string, currentWeek *int, limit int) ([]*domain.ConversationChunk, error) {
	if limit <= 0 {
		limit = 1
	}

	chunks, err := s.chunkRepo.Search(ctx, userID, keywords, limit)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return s.chunkRepo.GetRecent(ctx, userID, limit)
	}

	sortByWeekProximity(chunks, currentWeek,
		func(c *domain.ConversationChunk) *int { return c.WeekNumber },
		func(c *domain.ConversationChunk) time.Time { return c.CreatedAt },
	)

	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

// factsByInferredCategory maps keyword substrings onto the closed category
// set and returns the most recent facts in each inferred category.
func (s *RetrieverService) factsByInferredCategory(ctx context.Context, userID uuid.UUID, keywords []string) ([]*domain.KnowledgeFact, error) {
	categories := InferCategories(keywords)

	var all []*domain.KnowledgeFact
	for _, category := range categories {
		facts, err := s.factRepo.GetRecentByCategory(ctx, userID, category, categoryFallbackSize)
		if err != nil {
			return nil, err
		}
		all = append(all, facts...)
	}
	return all, nil
}

// InferCategories maps keywords to fact categories by substring. Order
// follows the fixed category set, each category at most once.
func InferCategories(keywords []string) []domain.FactCategory {
	hits := make(map[domain.FactCategory]bool)
	for _, kw := range keywords {
		if containsAny(kw, "symptom", "pain", "nausea", "tired") {
			hits[domain.CategorySymptom] = true
		}
		if containsAny(kw, "milestone", "week", "month") {
			hits[domain.CategoryMilestone] = true
		}
		if containsAny(kw, "prefer", "like", "want") {
			hits[domain.CategoryPreference] = true
		}
		if containsAny(kw, "doctor", "medical", "health") {
			hits[domain.CategoryMedical] = true
		}
		if containsAny(kw, "exercise", "activity", "walk") {
			hits[domain.CategoryActivity] = true
		}
	}

	var categories []domain.FactCategory
	for _, c := range domain.FactCategories {
		if hits[c] {
			categories = append(categories, c)
		}
	}
	return categories
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ExtractKeywords lowercases the text, strips punctuation, drops stop words
// and short tokens, dedupes preserving first occurrence, and caps the list.
// Pure: equal input always yields the same ordered list.
func ExtractKeywords(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	seen := make(map[string]struct{})
	var keywords []string
	for _, word := range strings.Fields(b.String()) {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// sortByWeekProximity orders items by |week - currentWeek| ascending with
// weekless items last, breaking ties by recency descending. Stable so equal
// items keep their store order.
func sortByWeekProximity[T any](items []T, currentWeek *int, week func(T) *int, created func(T) time.Time) {
	if currentWeek == nil {
		return
	}

	sort.SliceStable(items, func(i, j int) bool {
		wi, wj := week(items[i]), week(items[j])
		switch {
		case wi == nil && wj == nil:
			return created(items[i]).After(created(items[j]))
		case wi == nil:
			return false
		case wj == nil:
			return true
		}

		di := abs(*wi - *currentWeek)
		dj := abs(*wj - *currentWeek)
		if di != dj {
			return di < dj
		}
		return created(items[i]).After(created(items[j]))
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func formatContext(facts []*domain.KnowledgeFact, conversations []*domain.ConversationChunk) string {
	var b strings.Builder

	if len(facts) > 0 {
		b.WriteString("RELEVANT FACTS FROM PREVIOUS CONVERSATIONS:\n")
		for i, fact := range facts {
			weekInfo := ""
			if fact.WeekNumber != nil {
				weekInfo = fmt.Sprintf(" (Week %d)", *fact.WeekNumber)
			}
			fmt.Fprintf(&b, "%d. [%s]%s: %s\n", i+1, strings.ToUpper(string(fact.Category)), weekInfo, fact.FactText)
		}
		b.WriteString("\n")
	}

	if len(conversations) > 0 {
		b.WriteString("RELEVANT PREVIOUS CONVERSATIONS:\n")
		quoted := conversations
		if len(quoted) > maxQuotedChunks {
			quoted = quoted[:maxQuotedChunks]
		}
		for i, chunk := range quoted {
			weekInfo := ""
			if chunk.WeekNumber != nil {
				weekInfo = fmt.Sprintf(" (Week %d)", *chunk.WeekNumber)
			}
			preview := chunk.Content
			if len(preview) > maxConversationQuote {
				cut := maxConversationQuote
				// Back up so the cut never lands inside a multi-byte rune.
				for cut > 0 && !utf8.RuneStart(preview[cut]) {
					cut--
				}
				preview = preview[:cut] + "..."
			}
			fmt.Fprintf(&b, "%d.%s %s\n\n", i+1, weekInfo, preview)
		}
	}

	if b.Len() > 0 {
		b.WriteString("Use this information to provide more personalized and contextually relevant responses.\n")
	}

	return b.String()
}
