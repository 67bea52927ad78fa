package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FactCategory is the closed set of categories a knowledge fact may carry.
type FactCategory string

const (
	CategorySymptom    FactCategory = "symptom"
	CategoryMilestone  FactCategory = "milestone"
	CategoryPreference FactCategory = "preference"
	CategoryMedical    FactCategory = "medical"
	CategoryActivity   FactCategory = "activity"
)

var FactCategories = []FactCategory{
	CategorySymptom,
	CategoryMilestone,
	CategoryPreference,
	CategoryMedical,
	CategoryActivity,
}

func ValidFactCategory(s string) bool {
	for _, c := range FactCategories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// KnowledgeFact is a single extracted fact. Facts are written once by the
// extraction pipeline and only ever deleted, never updated.
type KnowledgeFact struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID          uuid.UUID      `json:"userId" gorm:"type:uuid;not null;index"`
	User            *User          `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Category        FactCategory   `json:"category" gorm:"type:varchar(32);not null;index"`
	FactText        string         `json:"factText" gorm:"not null"`
	SourceMessageID *uuid.UUID     `json:"sourceMessageId,omitempty" gorm:"type:uuid"`
	WeekNumber      *int           `json:"weekNumber,omitempty" gorm:"index"`
	DateRecorded    time.Time      `json:"dateRecorded"`
	Metadata        datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// ConversationChunk is one paired user/assistant exchange kept verbatim so
// facts can be re-extracted later.
type ConversationChunk struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID     uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
	User       *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Content    string    `json:"content" gorm:"not null"`
	WeekNumber *int      `json:"weekNumber,omitempty" gorm:"index"`
	Keywords   string    `json:"keywords"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"createdAt"`
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ChatMessage struct {
	ID        uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID   `json:"userId" gorm:"type:uuid;not null;index"`
	User      *User       `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Role      MessageRole `json:"role" gorm:"type:varchar(16);not null"`
	Content   string      `json:"content" gorm:"not null"`
	CreatedAt time.Time   `json:"createdAt"`
}
