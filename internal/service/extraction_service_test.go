package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/metrics"
	"github.com/shivanandham/pregnancy-assistant/internal/repository/postgres"
	"github.com/shivanandham/pregnancy-assistant/internal/service"
	"github.com/shivanandham/pregnancy-assistant/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runExtraction(t *testing.T, testDB *testutil.TestDB, generator service.TextGenerator, job service.ExtractionJob) {
	t.Helper()

	repos := postgres.NewRepositories(testDB.DB)
	extractor := service.NewExtractionService(repos.Fact, repos.Chunk, generator, metrics.Nop{}, 5*time.Second, 8)
	extractor.Start()
	require.True(t, extractor.Enqueue(job))
	extractor.Stop()
}

func TestExtractionService_Process(t *testing.T) {
	testDB := testutil.NewTestDB(t)

	t.Run("persists facts and the conversation chunk", func(t *testing.T) {
		testDB.Truncate(t)
		user := testutil.NewUserBuilder().Build(t, testDB.DB)

		generator := &testutil.StubGenerator{
			Reply: `Here you go:
[
  {"category": "symptom", "fact_text": "User experiencing morning sickness at week 8"},
  {"category": "preference", "fact_text": "User prefers ginger tea"}
]`,
		}

		runExtraction(t, testDB, generator, service.ExtractionJob{
			UserID:         user.ID,
			UserMessage:    "I feel sick every morning, ginger tea helps",
			AssistantReply: "Morning sickness is common around week 8.",
			Week:           testutil.IntPtr(8),
		})

		var facts []domain.KnowledgeFact
		require.NoError(t, testDB.DB.Where("user_id = ?", user.ID).Order("category").Find(&facts).Error)
		require.Len(t, facts, 2)
		assert.Equal(t, domain.CategoryPreference, facts[0].Category)
		assert.Equal(t, domain.CategorySymptom, facts[1].Category)
		require.NotNil(t, facts[1].WeekNumber)
		assert.Equal(t, 8, *facts[1].WeekNumber)

		var chunks []domain.ConversationChunk
		require.NoError(t, testDB.DB.Where("user_id = ?", user.ID).Find(&chunks).Error)
		require.Len(t, chunks, 1)
		assert.Contains(t, chunks[0].Content, "User: I feel sick every morning")
		assert.Contains(t, chunks[0].Content, "Assistant: Morning sickness")
		assert.Contains(t, chunks[0].Keywords, "ginger")
	})

	t.Run("chunk survives a generator failure", func(t *testing.T) {
		testDB.Truncate(t)
		user := testutil.NewUserBuilder().Build(t, testDB.DB)

		generator := &testutil.StubGenerator{Err: errors.New("model unavailable")}

		runExtraction(t, testDB, generator, service.ExtractionJob{
			UserID:         user.ID,
			UserMessage:    "hello",
			AssistantReply: "hi",
		})

		var chunks int64
		testDB.DB.Model(&domain.ConversationChunk{}).Where("user_id = ?", user.ID).Count(&chunks)
		assert.Equal(t, int64(1), chunks)

		var facts int64
		testDB.DB.Model(&domain.KnowledgeFact{}).Where("user_id = ?", user.ID).Count(&facts)
		assert.Equal(t, int64(0), facts)
	})

	t.Run("discards invalid categories and empty facts", func(t *testing.T) {
		testDB.Truncate(t)
		user := testutil.NewUserBuilder().Build(t, testDB.DB)

		generator := &testutil.StubGenerator{
			Reply: `[
  {"category": "astrology", "fact_text": "User is a Libra"},
  {"category": "symptom", "fact_text": ""},
  {"category": "symptom", "fact_text": "User has back pain"}
]`,
		}

		runExtraction(t, testDB, generator, service.ExtractionJob{
			UserID:         user.ID,
			UserMessage:    "my back hurts",
			AssistantReply: "Back pain is common.",
		})

		var facts []domain.KnowledgeFact
		require.NoError(t, testDB.DB.Where("user_id = ?", user.ID).Find(&facts).Error)
		require.Len(t, facts, 1)
		assert.Equal(t, "User has back pain", facts[0].FactText)
	})

	t.Run("tolerates unparseable model output", func(t *testing.T) {
		testDB.Truncate(t)
		user := testutil.NewUserBuilder().Build(t, testDB.DB)

		generator := &testutil.StubGenerator{Reply: "Sorry, I cannot help with that."}

		runExtraction(t, testDB, generator, service.ExtractionJob{
			UserID:         user.ID,
			UserMessage:    "hello",
			AssistantReply: "hi",
		})

		var facts int64
		testDB.DB.Model(&domain.KnowledgeFact{}).Where("user_id = ?", user.ID).Count(&facts)
		assert.Equal(t, int64(0), facts)
	})

	t.Run("enqueue drops when the queue is full", func(t *testing.T) {
		repos := postgres.NewRepositories(testDB.DB)
		generator := &testutil.StubGenerator{Reply: "[]"}
		extractor := service.NewExtractionService(repos.Fact, repos.Chunk, generator, metrics.Nop{}, time.Second, 1)
		// Worker never started, so the buffer is the only capacity.

		assert.True(t, extractor.Enqueue(service.ExtractionJob{}))
		assert.False(t, extractor.Enqueue(service.ExtractionJob{}))
	})
}
