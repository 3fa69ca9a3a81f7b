package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kachalka/models"
)

func TestAdvanceCompletesAfterGrace(t *testing.T) {
	env := newEngineEnv(t)
	lifecycle := NewLifecycle(env.repo, env.clock, testConfig(t))

	startsAt := env.slot(1, 10, 0)
	session, rej, err := env.engine.Propose(env.user.ID, env.trainer.ID, startsAt)
	require.NoError(t, err)
	require.Nil(t, rej)

	// За минуту до истечения допуска — рано.
	ok, err := lifecycle.Advance(session, startsAt.Add(89*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.StatusScheduled, session.Status)

	// Ровно на границе допуска тренировка завершается.
	ok, err = lifecycle.Advance(session, startsAt.Add(90*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.StatusCompleted, session.Status)

	// Повторный вызов — no-op.
	ok, err = lifecycle.Advance(session, startsAt.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := env.repo.GetSessionByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

func TestAdvanceSkipsTerminalStatuses(t *testing.T) {
	env := newEngineEnv(t)
	lifecycle := NewLifecycle(env.repo, env.clock, testConfig(t))

	startsAt := env.slot(1, 10, 0)
	session, rej, err := env.engine.Propose(env.user.ID, env.trainer.ID, startsAt)
	require.NoError(t, err)
	require.Nil(t, rej)

	ok, err := env.repo.CASStatus(session.ID, models.StatusScheduled, models.StatusCancelled)
	require.NoError(t, err)
	require.True(t, ok)
	session.Status = models.StatusCancelled

	ok, err = lifecycle.Advance(session, startsAt.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := env.repo.GetSessionByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)
}

func TestCancelByOwnerBeforeStart(t *testing.T) {
	env := newEngineEnv(t)
	lifecycle := NewLifecycle(env.repo, env.clock, testConfig(t))

	session, rej, err := env.engine.Propose(env.user.ID, env.trainer.ID, env.slot(1, 18, 0))
	require.NoError(t, err)
	require.Nil(t, rej)

	outcome, cancelled, err := lifecycle.Cancel(session.ID, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, CancelOK, outcome)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	stored, err := env.repo.GetSessionByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)
}

func TestCancelRejectsForeignSession(t *testing.T) {
	env := newEngineEnv(t)
	lifecycle := NewLifecycle(env.repo, env.clock, testConfig(t))
	other := seedProfile(t, env.db, "Мария Кузнецова", "maria@example.com")

	session, rej, err := env.engine.Propose(env.user.ID, env.trainer.ID, env.slot(1, 18, 0))
	require.NoError(t, err)
	require.Nil(t, rej)

	outcome, _, err := lifecycle.Cancel(session.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, CancelNotOwner, outcome)

	stored, err := env.repo.GetSessionByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, stored.Status)
}

func TestCancelMissingSession(t *testing.T) {
	env := newEngineEnv(t)
	lifecycle := NewLifecycle(env.repo, env.clock, testConfig(t))

	outcome, _, err := lifecycle.Cancel(12345, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, CancelNotFound, outcome)
}

func TestCancelRejectsStartedSession(t *testing.T) {
	env := newEngineEnv(t)
	lifecycle := NewLifecycle(env.repo, env.clock, testConfig(t))

	startsAt := env.slot(1, 18, 0)
	session, rej, err := env.engine.Propose(env.user.ID, env.trainer.ID, startsAt)
	require.NoError(t, err)
	require.Nil(t, rej)

	// Часы уходят за начало тренировки: отменять уже поздно.
	env.clock.Time = startsAt.Add(time.Minute)

	outcome, _, err := lifecycle.Cancel(session.ID, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, CancelNotAllowed, outcome)
}

func TestSweepCompletesOverdueSessions(t *testing.T) {
	env := newEngineEnv(t)
	cfg := testConfig(t)
	lifecycle := NewLifecycle(env.repo, env.clock, cfg)
	sweeper := NewSweeper(lifecycle, env.repo, env.clock, cfg.SweepInterval)
	other := seedProfile(t, env.db, "Мария Кузнецова", "maria@example.com")

	overdue1 := env.slot(1, 10, 0)
	overdue2 := env.slot(1, 12, 0)
	future := env.slot(2, 18, 0)

	for _, b := range []struct {
		userID uint
		at     time.Time
	}{
		{env.user.ID, overdue1},
		{other.ID, overdue2},
		{env.user.ID, future},
	} {
		_, rej, err := env.engine.Propose(b.userID, env.trainer.ID, b.at)
		require.NoError(t, err)
		require.Nil(t, rej)
	}

	// Перематываем часы за допуск завершения обеих утренних тренировок.
	env.clock.Time = overdue2.Add(2 * time.Hour)

	completed, err := sweeper.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, completed)

	remaining, err := env.repo.ListScheduledSessions()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.True(t, remaining[0].StartsAt.Equal(future))

	// Повторный проход ничего не находит.
	completed, err = sweeper.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 0, completed)
}
