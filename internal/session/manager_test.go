package session

import (
	"context"
	"testing"
	"time"
	"unicode"

	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	levels []security.Level
	events []string
}

func (r *recordingSink) Event(level security.Level, _ string, event string) {
	r.levels = append(r.levels, level)
	r.events = append(r.events, event)
}

func newTestManager(t *testing.T) (*Manager, *security.ManualClock, *recordingSink) {
	t.Helper()
	clock := security.NewManualClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	sink := &recordingSink{}
	return NewManager(NewMemoryStore(), clock, sink, models.DefaultSecurityPolicy()), clock, sink
}

func TestCreateSession_Token(t *testing.T) {
	m, _, sink := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateSession(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, token, 32)
	for _, r := range token {
		assert.True(t, unicode.IsLetter(r) || unicode.IsDigit(r), "unexpected rune %q", r)
	}
	assert.Equal(t, []security.Level{security.LevelLow}, sink.levels)

	other, err := m.CreateSession(ctx, "B")
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestValidateSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateSession(ctx, "A")
	require.NoError(t, err)

	assert.NoError(t, m.ValidateSession(ctx, "A", token))
	assert.ErrorIs(t, m.ValidateSession(ctx, "A", token+"x"), ErrTokenMismatch)
	assert.ErrorIs(t, m.ValidateSession(ctx, "B", token), ErrSessionNotFound)

	// a mismatch does not destroy the session
	assert.NoError(t, m.ValidateSession(ctx, "A", token))
}

func TestValidateSession_MismatchKeepsActivity(t *testing.T) {
	m, clock, _ := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateSession(ctx, "A")
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	assert.ErrorIs(t, m.ValidateSession(ctx, "A", token+"x"), ErrTokenMismatch)

	s, err := m.Get(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, s.CreatedAt, s.LastActivity)

	// a valid token does refresh it
	require.NoError(t, m.ValidateSession(ctx, "A", token))
	s, err = m.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), s.LastActivity)
}

func TestCreateSession_ReplacesPrevious(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.CreateSession(ctx, "A")
	require.NoError(t, err)
	second, err := m.CreateSession(ctx, "A")
	require.NoError(t, err)

	assert.ErrorIs(t, m.ValidateSession(ctx, "A", first), ErrTokenMismatch)
	assert.NoError(t, m.ValidateSession(ctx, "A", second))
}

func TestValidateSession_IdleExpiry(t *testing.T) {
	m, clock, sink := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateSession(ctx, "A")
	require.NoError(t, err)

	clock.Advance(14 * time.Minute)
	require.NoError(t, m.ValidateSession(ctx, "A", token), "activity refreshes the idle timer")

	clock.Advance(14 * time.Minute)
	require.NoError(t, m.ValidateSession(ctx, "A", token))

	clock.Advance(16 * time.Minute)
	assert.ErrorIs(t, m.ValidateSession(ctx, "A", token), ErrSessionExpired)
	assert.Contains(t, sink.events, "Session expired due to inactivity")

	s, err := m.Get(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, s, "expired session must be removed")
	assert.ErrorIs(t, m.ValidateSession(ctx, "A", token), ErrSessionNotFound)
}

func TestEndSession_Idempotent(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateSession(ctx, "A")
	require.NoError(t, err)

	require.NoError(t, m.EndSession(ctx, "A"))
	require.NoError(t, m.EndSession(ctx, "A"))
	assert.ErrorIs(t, m.ValidateSession(ctx, "A", token), ErrSessionNotFound)
}

func TestCleanupExpired(t *testing.T) {
	m, clock, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateSession(ctx, "A")
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	tokenB, err := m.CreateSession(ctx, "B")
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	removed, err := m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "sweep is idempotent")

	assert.NoError(t, m.ValidateSession(ctx, "B", tokenB))
}

func TestCheckAttempts(t *testing.T) {
	m, _, sink := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.True(t, m.CheckAttempts(ctx, "A"), "attempt %d", i+1)
	}
	assert.False(t, m.CheckAttempts(ctx, "A"))
	assert.False(t, m.CheckAttempts(ctx, "A"), "stays denied until a session is created")
	assert.Equal(t, security.LevelHigh, sink.levels[len(sink.levels)-1])

	_, err := m.CreateSession(ctx, "A")
	require.NoError(t, err)
	assert.True(t, m.CheckAttempts(ctx, "A"))
}

func TestSetStepUp(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	assert.ErrorIs(t, m.SetStepUp(ctx, "A", models.StepUpPending), ErrSessionNotFound)

	_, err := m.CreateSession(ctx, "A")
	require.NoError(t, err)
	require.NoError(t, m.SetStepUp(ctx, "A", models.StepUpPending))

	s, err := m.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, models.StepUpPending, s.StepUp)
}

func TestRedisStoreKey(t *testing.T) {
	r := NewRedisStore(nil, "", time.Hour)
	assert.Equal(t, "session:APNA1", r.key("APNA1"))

	r = NewRedisStore(nil, "terminal:session:", time.Hour)
	assert.Equal(t, "terminal:session:APNA1", r.key("APNA1"))
}
