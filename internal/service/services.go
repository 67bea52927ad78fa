package service

import (
	"github.com/shivanandham/pregnancy-assistant/internal/config"
	"github.com/shivanandham/pregnancy-assistant/internal/metrics"
	"github.com/shivanandham/pregnancy-assistant/internal/repository"
)

type Services struct {
	Verifier   *Verifier
	Session    *SessionService
	Retriever  *RetrieverService
	Extraction *ExtractionService
	Chat       *ChatService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, keys KeySource, generator TextGenerator, collector metrics.Collector) *Services {
	retriever := NewRetrieverService(repos.Fact, repos.Chunk, collector)
	extraction := NewExtractionService(repos.Fact, repos.Chunk, generator, collector, cfg.AICallTimeout(), 64)

	return &Services{
		Verifier:   NewVerifier(cfg, keys),
		Session:    NewSessionService(repos.User, repos.Session, cfg, collector),
		Retriever:  retriever,
		Extraction: extraction,
		Chat:       NewChatService(repos.Message, repos.Pregnancy, retriever, extraction, generator, collector, cfg.AICallTimeout()),
	}
}
