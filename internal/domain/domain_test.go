package domain_test

import (
	"testing"
	"time"

	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionUsable(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		session domain.Session
		want    bool
	}{
		{
			name:    "active and unexpired",
			session: domain.Session{ExpiresAt: now.Add(time.Hour)},
			want:    true,
		},
		{
			name:    "revoked",
			session: domain.Session{ExpiresAt: now.Add(time.Hour), IsRevoked: true},
			want:    false,
		},
		{
			name:    "expired",
			session: domain.Session{ExpiresAt: now.Add(-time.Minute)},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.Usable(now))
		})
	}
}

func TestPregnancyCurrentWeek(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	t.Run("mid pregnancy", func(t *testing.T) {
		// 20 weeks in: due date 20 weeks out.
		p := domain.Pregnancy{DueDate: now.AddDate(0, 0, 20*7)}
		week := p.CurrentWeek(now)
		require.NotNil(t, week)
		assert.Equal(t, 21, *week)
	})

	t.Run("before conception", func(t *testing.T) {
		p := domain.Pregnancy{DueDate: now.AddDate(0, 0, 41*7)}
		assert.Nil(t, p.CurrentWeek(now))
	})

	t.Run("clamped past term", func(t *testing.T) {
		p := domain.Pregnancy{DueDate: now.AddDate(0, 0, -5*7)}
		week := p.CurrentWeek(now)
		require.NotNil(t, week)
		assert.Equal(t, 42, *week)
	})
}

func TestValidFactCategory(t *testing.T) {
	for _, c := range domain.FactCategories {
		assert.True(t, domain.ValidFactCategory(string(c)))
	}
	assert.False(t, domain.ValidFactCategory("astrology"))
	assert.False(t, domain.ValidFactCategory(""))
	assert.False(t, domain.ValidFactCategory("Symptom"))
}
