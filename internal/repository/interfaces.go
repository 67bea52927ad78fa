package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	Revoke(ctx context.Context, id uuid.UUID) error
	// RevokeIfActive flips is_revoked on a non-revoked row and reports
	// whether this call was the one that flipped it. Concurrent callers
	// racing on the same row see exactly one true.
	RevokeIfActive(ctx context.Context, id uuid.UUID) (bool, error)
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	CountActiveByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	// DeleteInertBefore removes rows expired before cutoff, or revoked and
	// untouched since before cutoff.
	DeleteInertBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type FactRepository interface {
	Create(ctx context.Context, fact *domain.KnowledgeFact) error
	Search(ctx context.Context, userID uuid.UUID, keywords []string, limit int) ([]*domain.KnowledgeFact, error)
	GetRecentByCategory(ctx context.Context, userID uuid.UUID, category domain.FactCategory, limit int) ([]*domain.KnowledgeFact, error)
	List(ctx context.Context, userID uuid.UUID, category string, limit int) ([]*domain.KnowledgeFact, error)
	CountByCategory(ctx context.Context, userID uuid.UUID) (map[string]int64, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

type ChunkRepository interface {
	Create(ctx context.Context, chunk *domain.ConversationChunk) error
	Search(ctx context.Context, userID uuid.UUID, keywords []string, limit int) ([]*domain.ConversationChunk, error)
	GetRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ConversationChunk, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ConversationChunk, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	GetRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
}

type PregnancyRepository interface {
	Upsert(ctx context.Context, p *domain.Pregnancy) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Pregnancy, error)
}

type Repositories struct {
	User      UserRepository
	Session   SessionRepository
	Fact      FactRepository
	Chunk     ChunkRepository
	Message   MessageRepository
	Pregnancy PregnancyRepository
}
