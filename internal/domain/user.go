package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// IdentityClaim is the normalized result of verifying an external
// identity-provider token. It never touches the database directly.
type IdentityClaim struct {
	SubjectID   string
	Email       string
	DisplayName string
	PhotoURL    string
}

type User struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	FirebaseUID string    `json:"-" gorm:"uniqueIndex;not null"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoURL"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Session is one issued session-token/refresh-token pair. Rotation never
// mutates an existing row's tokens; it revokes the row and creates a new one.
type Session struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	UserID           uuid.UUID      `json:"userId" gorm:"type:uuid;not null;index"`
	User             *User          `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Token            string         `json:"-" gorm:"uniqueIndex;not null"`
	RefreshToken     string         `json:"-" gorm:"uniqueIndex;not null"`
	ExpiresAt        time.Time      `json:"expiresAt" gorm:"not null"`
	RefreshExpiresAt time.Time      `json:"refreshExpiresAt" gorm:"not null"`
	IsRevoked        bool           `json:"isRevoked" gorm:"not null;default:false"`
	DeviceInfo       datatypes.JSON `json:"deviceInfo,omitempty"`
	LastUsedAt       time.Time      `json:"lastUsedAt"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Usable reports whether the session can still authenticate requests.
func (s *Session) Usable(now time.Time) bool {
	return !s.IsRevoked && now.Before(s.ExpiresAt)
}

// Pregnancy holds the due date the current week is derived from.
type Pregnancy struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;uniqueIndex"`
	User      *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	DueDate   time.Time `json:"dueDate" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const termWeeks = 40

// CurrentWeek derives the pregnancy week from the due date, clamped to
// [1, 42]. Returns nil before conception is plausible.
func (p *Pregnancy) CurrentWeek(now time.Time) *int {
	start := p.DueDate.AddDate(0, 0, -termWeeks*7)
	if now.Before(start) {
		return nil
	}

	week := int(now.Sub(start).Hours()/(24*7)) + 1
	if week > 42 {
		week = 42
	}
	return &week
}
