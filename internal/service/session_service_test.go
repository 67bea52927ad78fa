package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/metrics"
	"github.com/shivanandham/pregnancy-assistant/internal/repository/postgres"
	"github.com/shivanandham/pregnancy-assistant/internal/service"
	"github.com/shivanandham/pregnancy-assistant/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionService(t *testing.T, testDB *testutil.TestDB) *service.SessionService {
	t.Helper()
	repos := postgres.NewRepositories(testDB.DB)
	return service.NewSessionService(repos.User, repos.Session, testutil.TestConfig(), metrics.Nop{})
}

func TestSessionService_Login(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	sessions := newSessionService(t, testDB)
	ctx := context.Background()

	t.Run("first login creates the user", func(t *testing.T) {
		testDB.Truncate(t)

		claim := testutil.NewUserBuilder().Claim()
		issued, err := sessions.Login(ctx, &claim, nil)
		require.NoError(t, err)

		assert.Equal(t, claim.Email, issued.User.Email)
		assert.NotEmpty(t, issued.SessionToken)
		assert.NotEmpty(t, issued.RefreshToken)
		assert.True(t, issued.RefreshExpiresAt.After(issued.ExpiresAt))

		var count int64
		testDB.DB.Model(&domain.User{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("second login reuses the user and refreshes the profile", func(t *testing.T) {
		testDB.Truncate(t)

		claim := testutil.NewUserBuilder().Claim()
		_, err := sessions.Login(ctx, &claim, nil)
		require.NoError(t, err)

		claim.DisplayName = "renamed"
		issued, err := sessions.Login(ctx, &claim, nil)
		require.NoError(t, err)

		assert.Equal(t, "renamed", issued.User.DisplayName)

		var count int64
		testDB.DB.Model(&domain.User{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("login revokes every earlier session", func(t *testing.T) {
		testDB.Truncate(t)

		claim := testutil.NewUserBuilder().Claim()
		first, err := sessions.Login(ctx, &claim, nil)
		require.NoError(t, err)

		second, err := sessions.Login(ctx, &claim, nil)
		require.NoError(t, err)

		var active int64
		testDB.DB.Model(&domain.Session{}).
			Where("user_id = ? AND is_revoked = ?", second.User.ID, false).
			Count(&active)
		assert.Equal(t, int64(1), active)

		_, err = sessions.Verify(ctx, first.SessionToken)
		assert.ErrorIs(t, err, domain.ErrSessionRevoked)

		verified, err := sessions.Verify(ctx, second.SessionToken)
		require.NoError(t, err)
		assert.Equal(t, second.SessionID, verified.ID)
	})
}

func TestSessionService_Verify(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	sessions := newSessionService(t, testDB)
	ctx := context.Background()

	t.Run("valid token resolves the session and user", func(t *testing.T) {
		testDB.Truncate(t)

		claim := testutil.NewUserBuilder().Claim()
		issued, err := sessions.Login(ctx, &claim, nil)
		require.NoError(t, err)

		verified, err := sessions.Verify(ctx, issued.SessionToken)
		require.NoError(t, err)
		assert.Equal(t, issued.SessionID, verified.ID)
		require.NotNil(t, verified.User)
		assert.Equal(t, issued.User.ID, verified.User.ID)
	})

	t.Run("garbage token is malformed", func(t *testing.T) {
		_, err := sessions.Verify(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, domain.ErrTokenMalformed)
	})

	t.Run("revoked session is rejected", func(t *testing.T) {
		testDB.Truncate(t)

		claim := testutil.NewUserBuilder().Claim()
		issued, err := sessions.Login(ctx, &claim, nil)
		require.NoError(t, err)

		require.NoError(t, sessions.Revoke(ctx, issued.SessionID))

		_, err = sessions.Verify(ctx, issued.SessionToken)
		assert.ErrorIs(t, err, domain.ErrSessionRevoked)
	})
}

func TestSessionService_Refresh(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	sessions := newSessionService(t, testDB)
	ctx := context.Background()

	t.Run("rotation revokes the old session", func(t *testing.T) {
		testDB.Truncate(t)

		claim := testutil.NewUserBuilder().Claim()
		issued, err := sessions.Login(ctx, &claim, nil)
		require.NoError(t, err)

		rotated, err := sessions.Refresh(ctx, issued.RefreshToken)
		require.NoError(t, err)

		assert.NotEqual(t, issued.SessionID, rotated.SessionID)
		assert.NotEqual(t, issued.RefreshToken, rotated.RefreshToken)
		assert.True(t, rotated.ExpiresAt.After(issued.ExpiresAt))

		_, err = sessions.Verify(ctx, issued.SessionToken)
		assert.ErrorIs(t, err, domain.ErrSessionRevoked)

		_, err = sessions.Verify(ctx, rotated.SessionToken)
		assert.NoError(t, err)
	})

	t.Run("refresh token is single use", func(t *testing.T) {
		testDB.Truncate(t)

		claim := testutil.NewUserBuilder().Claim()
		issued, err := sessions.Login(ctx, &claim, nil)
		require.NoError(t, err)

		_, err = sessions.Refresh(ctx, issued.RefreshToken)
		require.NoError(t, err)

		_, err = sessions.Refresh(ctx, issued.RefreshToken)
		assert.ErrorIs(t, err, domain.ErrSessionRevoked)
	})

	t.Run("concurrent refreshes of one token yield one winner", func(t *testing.T) {
		testDB.Truncate(t)

		claim := testutil.NewUserBuilder().Claim()
		issued, err := sessions.Login(ctx, &claim, nil)
		require.NoError(t, err)

		const racers = 8
		errs := make([]error, racers)
		var wg sync.WaitGroup
		wg.Add(racers)
		for i := 0; i < racers; i++ {
			go func(i int) {
				defer wg.Done()
				_, errs[i] = sessions.Refresh(ctx, issued.RefreshToken)
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, domain.ErrSessionRevoked)
			}
		}
		assert.Equal(t, 1, winners)
	})

	t.Run("unknown refresh token", func(t *testing.T) {
		_, err := sessions.Refresh(ctx, "no-such-token")
		assert.ErrorIs(t, err, domain.ErrRefreshInvalid)
	})
}

func TestSessionService_RevokeAll(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	sessions := newSessionService(t, testDB)
	ctx := context.Background()

	testDB.Truncate(t)

	claim := testutil.NewUserBuilder().Claim()
	issued, err := sessions.Login(ctx, &claim, nil)
	require.NoError(t, err)

	count, err := sessions.RevokeAll(ctx, issued.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = sessions.Verify(ctx, issued.SessionToken)
	assert.ErrorIs(t, err, domain.ErrSessionRevoked)
}

func TestSessionService_DeleteAccount(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	sessions := newSessionService(t, testDB)
	ctx := context.Background()

	testDB.Truncate(t)

	claim := testutil.NewUserBuilder().Claim()
	issued, err := sessions.Login(ctx, &claim, nil)
	require.NoError(t, err)

	require.NoError(t, sessions.DeleteAccount(ctx, issued.User.ID))

	var users int64
	testDB.DB.Model(&domain.User{}).Count(&users)
	assert.Equal(t, int64(0), users)

	var rows int64
	testDB.DB.Model(&domain.Session{}).Count(&rows)
	assert.Equal(t, int64(0), rows)
}
