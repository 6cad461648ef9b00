package challenge

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode"

	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSink struct{}

func (nopSink) Event(security.Level, string, string) {}

type recordingDispatcher struct {
	deliveries []models.ChallengeDelivery
	err        error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, d models.ChallengeDelivery) error {
	r.deliveries = append(r.deliveries, d)
	return r.err
}

func newTestManager(t *testing.T) (*Manager, *security.ManualClock, *recordingDispatcher) {
	t.Helper()
	clock := security.NewManualClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	d := &recordingDispatcher{}
	return NewManager(d, clock, nopSink{}, models.DefaultSecurityPolicy()), clock, d
}

func TestIssueAndVerify(t *testing.T) {
	m, _, d := newTestManager(t)
	ctx := context.Background()

	handle, err := m.Issue(ctx, "A", "+919800000001")
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	require.Len(t, d.deliveries, 1)
	code := d.deliveries[0].Code
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, unicode.IsDigit(r))
	}
	assert.Equal(t, "+919800000001", d.deliveries[0].Destination)
	assert.True(t, m.IsPending("A"))

	require.NoError(t, m.Verify(ctx, "A", code))
	assert.False(t, m.IsPending("A"))
	assert.ErrorIs(t, m.Verify(ctx, "A", code), ErrNoPending)
}

func TestVerify_MismatchKeepsPending(t *testing.T) {
	m, _, d := newTestManager(t)
	ctx := context.Background()

	_, err := m.Issue(ctx, "A", "+919800000001")
	require.NoError(t, err)
	code := d.deliveries[0].Code

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, m.Verify(ctx, "A", wrong), ErrCodeMismatch)
	assert.True(t, m.IsPending("A"))
	assert.NoError(t, m.Verify(ctx, "A", code))
}

func TestVerify_ExpiredClears(t *testing.T) {
	m, clock, d := newTestManager(t)
	ctx := context.Background()

	_, err := m.Issue(ctx, "A", "+919800000001")
	require.NoError(t, err)
	code := d.deliveries[0].Code

	clock.Advance(5*time.Minute + time.Second)
	assert.ErrorIs(t, m.Verify(ctx, "A", code), ErrChallengeExpired)
	assert.False(t, m.IsPending("A"))
	assert.ErrorIs(t, m.Verify(ctx, "A", code), ErrNoPending)
}

func TestIssue_Overwrites(t *testing.T) {
	m, clock, d := newTestManager(t)
	ctx := context.Background()

	first, err := m.Issue(ctx, "A", "+919800000001")
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := m.Issue(ctx, "A", "+919800000001")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.Len(t, d.deliveries, 2)
	assert.NoError(t, m.Verify(ctx, "A", d.deliveries[1].Code))
}

func TestIssue_DeliveryFailureIsNotFatal(t *testing.T) {
	m, _, d := newTestManager(t)
	d.err = errors.New("gateway down")

	_, err := m.Issue(context.Background(), "A", "+919800000001")
	require.NoError(t, err)
	assert.True(t, m.IsPending("A"))
}

func TestCleanupExpired(t *testing.T) {
	m, clock, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Issue(ctx, "A", "x")
	require.NoError(t, err)
	clock.Advance(3 * time.Minute)
	_, err = m.Issue(ctx, "B", "y")
	require.NoError(t, err)

	clock.Advance(3 * time.Minute)
	removed, err := m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, m.IsPending("A"))
	assert.True(t, m.IsPending("B"))
}

func TestCancel(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Issue(context.Background(), "A", "x")
	require.NoError(t, err)
	m.Cancel("A")
	assert.False(t, m.IsPending("A"))
}
