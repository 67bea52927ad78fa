package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	firebaseUID string
	email       string
	displayName string
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New().String()[:8]
	return &UserBuilder{
		firebaseUID: fmt.Sprintf("firebase-uid-%s", suffix),
		email:       fmt.Sprintf("test_%s@example.com", suffix),
		displayName: fmt.Sprintf("testuser_%s", suffix),
	}
}

// WithFirebaseUID sets the Firebase UID
func (b *UserBuilder) WithFirebaseUID(uid string) *UserBuilder {
	b.firebaseUID = uid
	return b
}

// WithEmail sets the email
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

// WithDisplayName sets the display name
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.displayName = name
	return b
}

// Build creates the user in the database
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:          uuid.New(),
		FirebaseUID: b.firebaseUID,
		Email:       b.email,
		DisplayName: b.displayName,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user
}

// Claim returns the identity claim that would log this user in.
func (b *UserBuilder) Claim() domain.IdentityClaim {
	return domain.IdentityClaim{
		SubjectID:   b.firebaseUID,
		Email:       b.email,
		DisplayName: b.displayName,
	}
}

// CreateFact inserts a knowledge fact for user.
func CreateFact(t *testing.T, db *gorm.DB, userID uuid.UUID, category domain.FactCategory, text string, week *int) *domain.KnowledgeFact {
	t.Helper()

	fact := &domain.KnowledgeFact{
		ID:           uuid.New(),
		UserID:       userID,
		Category:     category,
		FactText:     text,
		WeekNumber:   week,
		DateRecorded: time.Now(),
		CreatedAt:    time.Now(),
	}

	if err := db.Create(fact).Error; err != nil {
		t.Fatalf("failed to create fact: %v", err)
	}

	return fact
}

// CreateChunk inserts a conversation chunk for user.
func CreateChunk(t *testing.T, db *gorm.DB, userID uuid.UUID, content, keywords string, week *int) *domain.ConversationChunk {
	t.Helper()

	chunk := &domain.ConversationChunk{
		ID:         uuid.New(),
		UserID:     userID,
		Content:    content,
		WeekNumber: week,
		Keywords:   keywords,
		Timestamp:  time.Now(),
		CreatedAt:  time.Now(),
	}

	if err := db.Create(chunk).Error; err != nil {
		t.Fatalf("failed to create chunk: %v", err)
	}

	return chunk
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
